package validator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// llmResponse is the strict wire shape expected back from the LLM. Unknown
// fields are dropped by json.Unmarshal; anything off-schema surfaces as
// ErrValidatorProtocol.
type llmResponse struct {
	Decision   string `json:"decision"`
	Paraphrase string `json:"paraphrase"`
	Reasoning  string `json:"reasoning"`
}

// Sanitizer is the subset of the semantic firewall the LLM validator needs:
// paraphrase and reasoning text coming back from the model pass through it
// before being stored, same as any other untrusted text.
type Sanitizer interface {
	Sanitize(field string, raw string, maxLen int) (string, error)
}

// LLMConfig configures the single-LLM validator variant.
type LLMConfig struct {
	Endpoint        string
	ModelVersion    string
	ValidatorID     string
	Timeout         time.Duration
	MaxRetries      int
	BackoffBase     time.Duration
}

// DefaultLLMConfig returns sane defaults for the single-LLM variant.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Timeout:     5 * time.Second,
		MaxRetries:  3,
		BackoffBase: 200 * time.Millisecond,
	}
}

// LLM is a Validator backed by a single LLM endpoint. Timeouts and network
// errors are retried with bounded exponential backoff up to MaxRetries;
// past the cap the entry fails with ErrValidatorUnavailable.
type LLM struct {
	cfg       LLMConfig
	client    *http.Client
	sanitizer Sanitizer
}

// NewLLM constructs a single-LLM validator.
func NewLLM(cfg LLMConfig, sanitizer Sanitizer) *LLM {
	return &LLM{
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.Timeout},
		sanitizer: sanitizer,
	}
}

func (v *LLM) Decide(ctx context.Context, req Request) (Record, error) {
	var lastErr error

	for attempt := 0; attempt <= v.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := v.cfg.BackoffBase * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return Record{}, fmt.Errorf("%w: %v", ErrValidatorTransient, ctx.Err())
			case <-time.After(backoff):
			}
		}

		rec, err := v.attempt(ctx, req)
		if err == nil {
			return rec, nil
		}
		lastErr = err
		if !isTransient(err) {
			return Record{}, err
		}
	}

	return Record{}, fmt.Errorf("%w: %v", ErrValidatorUnavailable, lastErr)
}

func (v *LLM) attempt(ctx context.Context, req Request) (Record, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Record{}, fmt.Errorf("%w: marshal request: %v", ErrValidatorProtocol, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.Endpoint, strings.NewReader(string(payload)))
	if err != nil {
		return Record{}, fmt.Errorf("%w: build request: %v", ErrValidatorTransient, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(httpReq)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrValidatorTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Record{}, fmt.Errorf("%w: read body: %v", ErrValidatorTransient, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return Record{}, fmt.Errorf("%w: status %d", ErrValidatorTransient, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return Record{}, fmt.Errorf("%w: status %d", ErrValidatorProtocol, resp.StatusCode)
	}

	var parsed llmResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Record{}, fmt.Errorf("%w: unmarshal response: %v", ErrValidatorProtocol, err)
	}

	decision, ok := validateDecision(parsed.Decision)
	if !ok {
		return Record{}, fmt.Errorf("%w: unrecognized decision %q", ErrValidatorProtocol, parsed.Decision)
	}

	paraphrase, err := v.sanitizer.Sanitize("paraphrase", parsed.Paraphrase, 4096)
	if err != nil {
		return Record{}, fmt.Errorf("%w: paraphrase failed firewall: %v", ErrValidatorProtocol, err)
	}
	reasoning, err := v.sanitizer.Sanitize("reasoning", parsed.Reasoning, 4096)
	if err != nil {
		return Record{}, fmt.Errorf("%w: reasoning failed firewall: %v", ErrValidatorProtocol, err)
	}

	return Record{
		Decision:     decision,
		Paraphrase:   paraphrase,
		Reasoning:    reasoning,
		ValidatorID:  v.cfg.ValidatorID,
		ModelVersion: v.cfg.ModelVersion,
	}, nil
}

func validateDecision(s string) (Decision, bool) {
	switch Decision(s) {
	case Valid, NeedsClarification, Invalid:
		return Decision(s), true
	default:
		return "", false
	}
}

func isTransient(err error) bool {
	return errors.Is(err, ErrValidatorTransient)
}
