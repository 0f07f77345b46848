package ledger

import (
	"context"

	"github.com/appstract/appstract/internal/component"
)

// SharedStore is the host-wide store components are installed into.
// Removing a component that is not installed must succeed.
type SharedStore interface {
	Install(ctx context.Context, id component.ID, source string) error
	Remove(ctx context.Context, id component.ID) error
}

// Installation is a component together with the file that provides it.
type Installation struct {
	Component component.ID
	Source    string
}
