// Package validator provides implementations of gateway.TokenValidator,
// the Token Validator Gateway Adapter's external collaborator
// (spec.md §4.4).
package validator

import (
	"sync"

	"github.com/nsgate/nsgate/pkg/gateway"
)

// InMemory is a TokenValidator backed by a fixed map, for tests and for
// local development without a backing store.
type InMemory struct {
	mu     sync.RWMutex
	tokens map[string]gateway.ValidationResult
}

// NewInMemory returns an InMemory validator seeded with tokens.
func NewInMemory(tokens map[string]gateway.ValidationResult) *InMemory {
	copied := make(map[string]gateway.ValidationResult, len(tokens))
	for k, v := range tokens {
		copied[k] = v
	}
	return &InMemory{tokens: copied}
}

// Validate implements gateway.TokenValidator.
func (v *InMemory) Validate(userToken []byte) (gateway.ValidationResult, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	result, ok := v.tokens[string(userToken)]
	if !ok {
		return gateway.ValidationResult{}, gateway.ErrTokenNotFound
	}
	return result, nil
}

// Put registers or replaces the result for userToken, for tests that
// need to add a tenant after construction.
func (v *InMemory) Put(userToken []byte, result gateway.ValidationResult) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tokens[string(userToken)] = result
}
