// Package roster provides an in-memory validator directory. Production
// deployments sync it from the hospital identity service; tests seed it
// directly.
package roster

import (
	"context"
	"sort"
	"sync"

	"clinicore/pkg/domain"
)

// Compile-time contract assertion ensuring the directory satisfies the domain port.
var _ domain.ValidatorDirectory = (*Directory)(nil)

type entry struct {
	validator domain.Validator
	available bool
}

// Directory is a mutex-guarded availability-aware roster of validators.
type Directory struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewDirectory constructs an empty roster.
func NewDirectory() *Directory {
	return &Directory{entries: make(map[string]entry)}
}

// Upsert registers or replaces a validator along with its availability.
func (d *Directory) Upsert(validator domain.Validator, available bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[validator.ID] = entry{validator: cloneValidator(validator), available: available}
}

// SetAvailability flips a registered validator's availability. Unknown
// validators yield a NotFoundError.
func (d *Directory) SetAvailability(id string, available bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityValidator, ID: id}
	}
	e.available = available
	d.entries[id] = e
	return nil
}

// AvailableValidators lists validators that are currently available, hold at
// least minRole, and meet the experience floor. A validator without a
// recorded experience figure fails any positive floor. Results are ordered
// by id for deterministic selection downstream.
func (d *Directory) AvailableValidators(_ context.Context, minRole domain.ValidatorRole, minExperienceYears int) ([]domain.Validator, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []domain.Validator
	for _, e := range d.entries {
		if !e.available {
			continue
		}
		if e.validator.Role.Rank() < minRole.Rank() {
			continue
		}
		if minExperienceYears > 0 {
			if e.validator.ExperienceYears == nil || *e.validator.ExperienceYears < minExperienceYears {
				continue
			}
		}
		out = append(out, cloneValidator(e.validator))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func cloneValidator(v domain.Validator) domain.Validator {
	cp := v
	if v.ExperienceYears != nil {
		years := *v.ExperienceYears
		cp.ExperienceYears = &years
	}
	return cp
}
