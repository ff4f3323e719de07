package contract

import "sync"

// Registry is the small configured table of contract-metadata keys and
// recognized Kind values, adapted from the teacher's RWMutex-guarded
// strategy registry (register once at startup, read concurrently
// thereafter) and repointed at a fixed vocabulary instead of pluggable
// strategy implementations. Deployments extend the vocabulary by calling
// RegisterKind, never by a code change to this package.
type Registry struct {
	mu sync.RWMutex

	typeKey       string
	obligationKey string
	timelineKey   string
	valueKey      string
	currencyKey   string
	conditionsKey string

	kinds map[Kind]bool
}

// DefaultRegistry returns a Registry seeded with the standard metadata key
// names and the five built-in Kind values.
func DefaultRegistry() *Registry {
	r := &Registry{
		typeKey:       "contract_type",
		obligationKey: "contract_obligation",
		timelineKey:   "contract_timeline",
		valueKey:      "contract_value",
		currencyKey:   "contract_currency",
		conditionsKey: "contract_conditions",
		kinds:         make(map[Kind]bool),
	}
	for _, k := range []Kind{KindOffer, KindSeek, KindProposal, KindResponse, KindClosure} {
		r.kinds[k] = true
	}
	return r
}

// RegisterKind extends the recognized contract-type vocabulary with k.
func (r *Registry) RegisterKind(k Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[k] = true
}

// IsKnownKind reports whether k is a recognized contract-type tag.
func (r *Registry) IsKnownKind(k Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.kinds[k]
}

// TypeKey returns the metadata key an entry must carry to be recognized as
// contract-related.
func (r *Registry) TypeKey() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.typeKey
}

// ObligationKey returns the metadata key carrying the free-text obligation.
func (r *Registry) ObligationKey() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.obligationKey
}

// TimelineKey returns the metadata key carrying the free-text timeline.
func (r *Registry) TimelineKey() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.timelineKey
}

// ValueKey returns the metadata key carrying the integer-encoded value.
func (r *Registry) ValueKey() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.valueKey
}

// CurrencyKey returns the metadata key carrying the currency code.
func (r *Registry) CurrencyKey() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currencyKey
}

// ConditionsKey returns the metadata key carrying semicolon-separated
// conditions.
func (r *Registry) ConditionsKey() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conditionsKey
}
