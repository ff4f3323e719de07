package validator

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// attestationDomain domain-separates the message a validator signs from
// any other use of the same key.
const attestationDomain = "NATLANGCHAIN_ATTESTATION_V1"

// Attestation is an optional signed witness over a validation decision,
// for external audit. It is advisory: its absence never blocks admission,
// and it carries no authority over chain state.
type Attestation struct {
	AttestationID uuid.UUID `json:"attestation_id"`
	ValidatorID   string    `json:"validator_id"`
	MessageHash   [32]byte  `json:"message_hash"`
	PublicKey     []byte    `json:"public_key"`
	Signature     []byte    `json:"signature"`
	CreatedAt     time.Time `json:"created_at"`
}

// Attestor signs Records with an Ed25519 key.
type Attestor struct {
	validatorID string
	priv        ed25519.PrivateKey
	pub         ed25519.PublicKey
}

// NewAttestor generates a fresh Ed25519 key pair for the given validator ID.
func NewAttestor(validatorID string) (*Attestor, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("validator: generate attestor key: %w", err)
	}
	return &Attestor{validatorID: validatorID, priv: priv, pub: pub}, nil
}

// PublicKey returns the attestor's Ed25519 public key.
func (a *Attestor) PublicKey() ed25519.PublicKey { return a.pub }

// Sign produces an Attestation over a validation Record for a given entry
// reference (opaque string — typically "block_index/offset" or a content
// hash prior to sealing).
func (a *Attestor) Sign(ctx context.Context, entryRef string, rec Record) (*Attestation, error) {
	hash, err := messageHash(entryRef, rec)
	if err != nil {
		return nil, fmt.Errorf("validator: compute attestation message hash: %w", err)
	}

	domainMsg := domainSeparate(hash[:])
	sig := ed25519.Sign(a.priv, domainMsg)

	return &Attestation{
		AttestationID: uuid.New(),
		ValidatorID:   a.validatorID,
		MessageHash:   hash,
		PublicKey:      append([]byte(nil), a.pub...),
		Signature:      sig,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// Verify checks an Attestation's signature against its own embedded key.
// Callers that need to trust the key itself must check it against a
// separately-maintained validator registry.
func Verify(att *Attestation) (bool, error) {
	if len(att.PublicKey) != ed25519.PublicKeySize {
		return false, fmt.Errorf("validator: invalid public key size %d", len(att.PublicKey))
	}
	if len(att.Signature) != ed25519.SignatureSize {
		return false, fmt.Errorf("validator: invalid signature size %d", len(att.Signature))
	}
	domainMsg := domainSeparate(att.MessageHash[:])
	return ed25519.Verify(att.PublicKey, domainMsg, att.Signature), nil
}

// ThresholdConfig configures how many attestations are required before a
// set of decisions is considered externally auditable.
type ThresholdConfig struct {
	Numerator     uint64
	Denominator   uint64
	MinValidators int
}

// DefaultThresholdConfig is the standard 2/3+1 supermajority.
func DefaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{Numerator: 2, Denominator: 3, MinValidators: 3}
}

// Met reports whether the collected attestation count satisfies the
// threshold out of the total validator set size.
func (c ThresholdConfig) Met(collected, total int) bool {
	if total < c.MinValidators {
		return false
	}
	required := (total*int(c.Numerator))/int(c.Denominator) + 1
	return collected >= required
}

func messageHash(entryRef string, rec Record) ([32]byte, error) {
	payload := struct {
		EntryRef string `json:"entry_ref"`
		Record   Record `json:"record"`
	}{EntryRef: entryRef, Record: rec}

	data, err := json.Marshal(payload)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}

func domainSeparate(hash []byte) []byte {
	h := sha256.New()
	h.Write([]byte(attestationDomain))
	h.Write(hash)
	return h.Sum(nil)
}
