package chat

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/google/uuid"

	"github.com/JuneJin9655/ai-chat/internal/session"
)

// Stream is one in-flight streaming turn.
//
// Fragments is finite, single-pass and not restartable; abandoning it
// cancels nothing by itself, cancellation rides on the context passed to
// StreamMessage. Finalize must be called once, after Fragments is drained,
// with the concatenation of every fragment observed; it persists the
// assistant message and invalidates the session's cached pages. Until then
// no assistant message exists, so a consumer crash loses the reply.
type Stream struct {
	Fragments iter.Seq2[string, error]
	Finalize  func(ctx context.Context, fullText string) error
}

// StreamMessage runs one streaming conversation turn. The user message is
// persisted and the provider call opened before it returns; the reply
// arrives through the returned Stream.
func (s *Service) StreamMessage(ctx context.Context, sessionID uuid.UUID, text string) (*Stream, error) {
	_, window, err := s.beginTurn(ctx, sessionID, text)
	if err != nil {
		return nil, err
	}

	upstream := s.provider.Stream(ctx, window)
	fragments := func(yield func(string, error) bool) {
		for fragment, err := range upstream {
			if err != nil {
				yield("", fmt.Errorf("%w: %w", ErrUpstream, err))
				return
			}
			if !yield(fragment, nil) {
				return
			}
		}
	}

	// once makes a duplicate Finalize call a no-op instead of a second
	// assistant message.
	var once sync.Once
	finalize := func(ctx context.Context, fullText string) error {
		var ferr error
		once.Do(func() {
			if _, err := s.store.AppendMessage(ctx, sessionID, session.RoleAssistant, fullText); err != nil {
				ferr = err
				return
			}
			s.cache.Invalidate(ctx, sessionID)
			s.logger.Debug("finalized streaming turn",
				"session_id", sessionID,
				"reply_len", len(fullText),
			)
		})
		return ferr
	}

	return &Stream{Fragments: fragments, Finalize: finalize}, nil
}
