package recognizer

import (
	"context"
	"sync/atomic"

	"github.com/MrWong99/glyphcmd/pkg/command"
)

// Swap is a [Recognizer] that delegates to a replaceable recognizer. A
// request in flight keeps the recognizer it started with.
type Swap struct {
	current atomic.Pointer[Recognizer]
}

var _ Recognizer = (*Swap)(nil)

// NewSwap returns a Swap delegating to r.
func NewSwap(r Recognizer) *Swap {
	s := &Swap{}
	s.Store(r)
	return s
}

// Store replaces the delegate.
func (s *Swap) Store(r Recognizer) {
	s.current.Store(&r)
}

// Load returns the current delegate.
func (s *Swap) Load() Recognizer {
	return *s.current.Load()
}

// Recognize implements [Recognizer].
func (s *Swap) Recognize(ctx context.Context, text string, vocab command.Vocabulary) command.Result {
	return s.Load().Recognize(ctx, text, vocab)
}
