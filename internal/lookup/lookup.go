// Package lookup resolves provider entities by name.
//
// Providers return unordered collections and do not always enforce name
// uniqueness, so a name that matches more than one entity is reported as
// ErrAmbiguous instead of silently picking the first match.
package lookup

import (
	"errors"
	"fmt"

	"nathanbeddoewebdev/vmstate/internal/domain"
)

// ErrAmbiguous is returned when more than one entity carries the name.
var ErrAmbiguous = errors.New("ambiguous name")

// Named is implemented by every entity that can be looked up by name.
type Named interface {
	GetName() string
}

// FindByName returns the single element of items whose name equals name.
// The boolean is false when nothing matches.
func FindByName[T Named](items []T, name string) (T, bool, error) {
	var (
		found T
		count int
	)
	for _, item := range items {
		if item.GetName() != name {
			continue
		}
		if count == 0 {
			found = item
		}
		count++
	}

	switch count {
	case 0:
		var zero T
		return zero, false, nil
	case 1:
		return found, true, nil
	default:
		var zero T
		return zero, false, fmt.Errorf("%w: %d entities named %q", ErrAmbiguous, count, name)
	}
}

// FindVM resolves a VM in a listing that may include soft-deleted
// machines. A single live VM wins over deleted ones with the same name,
// since providers keep deleted names around until they are purged.
func FindVM(vms []domain.VM, name string) (domain.VM, bool, error) {
	var live, deleted []domain.VM
	for _, vm := range vms {
		if vm.Name != name {
			continue
		}
		if vm.Deleted() {
			deleted = append(deleted, vm)
		} else {
			live = append(live, vm)
		}
	}

	if len(live) > 0 {
		return FindByName(live, name)
	}
	return FindByName(deleted, name)
}
