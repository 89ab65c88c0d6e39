package refactor

import (
	"errors"
	"fmt"

	"github.com/gnolang/tinvert/internal/program"
)

var ErrDuplicateDelegate = errors.New("delegate registered twice")

// Registry is the ordered set of delegates. It is built once at startup and
// read-only afterwards.
type Registry struct {
	delegates []Delegate
}

// NewRegistry registers delegates in the given order.
func NewRegistry(delegates ...Delegate) (*Registry, error) {
	r := &Registry{}
	seen := make(map[string]bool, len(delegates))
	for i, d := range delegates {
		if d == nil {
			return nil, fmt.Errorf("delegate %d is nil", i)
		}
		if seen[d.Name()] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDelegate, d.Name())
		}
		seen[d.Name()] = true
		r.delegates = append(r.delegates, d)
	}
	return r, nil
}

// FindOwner returns the first delegate, in registration order, whose
// candidacy check accepts e. It returns nil when no delegate claims it.
func (r *Registry) FindOwner(e program.Element) Delegate {
	if e == nil {
		return nil
	}
	for _, d := range r.delegates {
		if d.IsVisibleOnElement(e) {
			return d
		}
	}
	return nil
}

// ForLanguage returns the first delegate accepting lang.
func (r *Registry) ForLanguage(lang program.Language) Delegate {
	for _, d := range r.delegates {
		if d.Accepts(lang) {
			return d
		}
	}
	return nil
}

// Delegates returns the registration order.
func (r *Registry) Delegates() []Delegate {
	out := make([]Delegate, len(r.delegates))
	copy(out, r.delegates)
	return out
}

// IsAvailable is the pre-check pair callers use to decide whether to offer
// the refactoring on e at all.
func (r *Registry) IsAvailable(e program.Element) bool {
	d := r.FindOwner(e)
	return d != nil && d.IsAvailableOnElement(e)
}
