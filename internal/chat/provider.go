package chat

import (
	"context"
	"iter"
)

// ProviderMessage is one role/content pair sent to the completion provider.
type ProviderMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider generates completions from an ordered list of role/content pairs.
// Implemented by the OpenAI client; tests substitute a scripted fake.
type Provider interface {
	// Complete returns the full assistant reply in one call.
	Complete(ctx context.Context, messages []ProviderMessage) (string, error)

	// Stream returns the assistant reply as a lazy sequence of content
	// fragments. The sequence is finite, single-pass and not restartable;
	// a non-nil error ends it. Stopping consumption early releases the
	// upstream call.
	Stream(ctx context.Context, messages []ProviderMessage) iter.Seq2[string, error]
}
