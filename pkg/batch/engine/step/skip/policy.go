// Package skip decides whether a failed item may be skipped instead of failing its step.
package skip

import (
	"errors"

	"github.com/formula1dl/ingest/pkg/batch/support/util/exception"
)

// Unlimited is the skip limit that never stops skipping.
const Unlimited = -1

// SkipPolicy decides whether an item-level error may be skipped.
type SkipPolicy interface {
	// ShouldSkip reports whether err is skippable and the limit still allows it.
	ShouldSkip(err error) bool
	// CanSkip reports whether the limit allows one more skip.
	CanSkip() bool
	IncrementSkipCount()
	GetSkipCount() int
	GetSkipLimit() int
}

// DefaultSkipPolicyFactory creates default skip policies.
type DefaultSkipPolicyFactory struct{}

func NewDefaultSkipPolicyFactory() *DefaultSkipPolicyFactory {
	return &DefaultSkipPolicyFactory{}
}

// Create builds a policy. skipLimit 0 disables skipping and Unlimited (any negative value) removes the limit.
// Every name in skippableExceptions must be registered with the exception package.
func (f *DefaultSkipPolicyFactory) Create(skipLimit int, skippableExceptions []string) (SkipPolicy, error) {
	for _, name := range skippableExceptions {
		if !exception.IsErrorTypeRegistered(name) {
			return nil, exception.NewBatchErrorf("skip", "unknown skippable exception '%s'", name)
		}
	}
	return &defaultSkipPolicy{
		skipLimit:           skipLimit,
		skippableExceptions: skippableExceptions,
	}, nil
}

type defaultSkipPolicy struct {
	skipLimit           int
	skippableExceptions []string
	currentSkipCount    int
}

// ShouldSkip checks, in order: the limit, the structural sentinels (never skippable),
// the BatchError skippable flag, then the configured exception names.
func (p *defaultSkipPolicy) ShouldSkip(err error) bool {
	if err == nil || !p.CanSkip() {
		return false
	}
	if errors.Is(err, exception.ErrSchemaMismatch) || errors.Is(err, exception.ErrMissingColumn) {
		return false
	}

	var be *exception.BatchError
	if errors.As(err, &be) && be.IsSkippable() {
		return true
	}
	for _, typeName := range p.skippableExceptions {
		if exception.IsErrorOfType(err, typeName) {
			return true
		}
	}
	return false
}

func (p *defaultSkipPolicy) CanSkip() bool {
	if p.skipLimit < 0 {
		return true
	}
	return p.currentSkipCount < p.skipLimit
}

func (p *defaultSkipPolicy) IncrementSkipCount() {
	p.currentSkipCount++
}

func (p *defaultSkipPolicy) GetSkipCount() int {
	return p.currentSkipCount
}

func (p *defaultSkipPolicy) GetSkipLimit() int {
	return p.skipLimit
}

var _ SkipPolicy = (*defaultSkipPolicy)(nil)
