package assistant

import (
	"context"
	"errors"

	"github.com/dukerupert/indivisible/internal/model"
)

// ErrCompletion wraps every failure of the completion service.
var ErrCompletion = errors.New("completion failed")

// Turn is one role-tagged entry of the conversation sent to the model.
type Turn struct {
	Role    model.Role
	Content string
}

// Completer produces a single text completion for a system instruction and
// a chronological list of turns.
type Completer interface {
	Complete(ctx context.Context, system string, turns []Turn) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, system string, turns []Turn) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, system string, turns []Turn) (string, error) {
	return f(ctx, system, turns)
}
