package orders

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidState    = errors.New("order is not in a payable state")
	ErrInvalidOrder    = errors.New("invalid order")
	// ErrCollaboratorUnavailable marks a remote dependency that stayed
	// unreachable after the client's bounded retries.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
)

// OrchestrationError wraps a collaborator failure that is neither a declined
// payment nor missing stock. The order keeps its last written state.
type OrchestrationError struct {
	Op      string
	OrderID string
	Err     error
}

func (e *OrchestrationError) Error() string {
	if e.OrderID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s for order %s: %v", e.Op, e.OrderID, e.Err)
}

func (e *OrchestrationError) Unwrap() error { return e.Err }
