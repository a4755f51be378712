package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JuneJin9655/ai-chat/internal/session"
)

// frame is one decoded server-sent event.
type frame struct {
	kind    frameKind
	content string // frameContent
	errText string // frameError
}

type frameKind int

const (
	frameContent frameKind = iota
	frameDone
	frameError
)

// StreamMessage runs one streaming turn and returns the reply as a lazy
// sequence of content fragments. The sequence is finite and single-pass;
// cancel ctx to abandon it.
//
// When the stream cannot be established (connection failure, or a non-2xx
// status before any bytes arrive) the client falls back to the batch
// endpoint and yields the authoritative reply as a single fragment, so the
// caller still gets the turn's content. The session's local message copy is
// reconciled with the final content either way.
func (c *Client) StreamMessage(ctx context.Context, id uuid.UUID, text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		resp, err := c.openStream(ctx, id, text)
		if err != nil {
			c.logger.Warn("stream unavailable, falling back to batch",
				"chat_id", id, "error", err)
			turn, berr := c.SendMessage(ctx, id, text)
			if berr != nil {
				yield("", fmt.Errorf("stream fallback: %w", berr))
				return
			}
			if n := len(turn.Messages); n > 0 {
				yield(turn.Messages[n-1].Content, nil)
			}
			return
		}
		defer resp.Body.Close()

		var full strings.Builder
		sawFrame := false
		for fr, err := range decodeFrames(resp.Body) {
			if err != nil {
				// A drop before any frame still qualifies for the
				// batch fallback; after frames the partial output has
				// been handed out and a silent re-send would duplicate
				// the turn.
				if !sawFrame {
					c.logger.Warn("stream dropped before first frame, falling back to batch",
						"chat_id", id, "error", err)
					turn, berr := c.SendMessage(ctx, id, text)
					if berr != nil {
						yield("", fmt.Errorf("stream fallback: %w", berr))
						return
					}
					if n := len(turn.Messages); n > 0 {
						yield(turn.Messages[n-1].Content, nil)
					}
					return
				}
				yield("", fmt.Errorf("reading stream: %w", err))
				return
			}
			sawFrame = true

			switch fr.kind {
			case frameContent:
				full.WriteString(fr.content)
				if !yield(fr.content, nil) {
					return
				}
			case frameError:
				yield("", fmt.Errorf("stream error: %s", fr.errText))
				return
			case frameDone:
				c.appendLocal(id, text, full.String())
				return
			}
		}

		// Stream ended without a terminator; everything received still
		// counts as the reply.
		c.appendLocal(id, text, full.String())
	}
}

func (c *Client) openStream(ctx context.Context, id uuid.UUID, text string) (*http.Response, error) {
	raw, err := json.Marshal(map[string]string{"message": text})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/"+id.String()+"/stream", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("X-User-ID", c.userID)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opening stream: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := decodeAPIError(resp)
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// decodeFrames parses a data-only SSE byte stream into frames. Events are
// delimited by blank lines; multiple data lines within one event are joined
// with a newline per the SSE spec. The sequence ends at the [DONE]
// terminator, an error frame, or the end of the stream.
func decodeFrames(r io.Reader) iter.Seq2[frame, error] {
	return func(yield func(frame, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		var dataLines []string
		flush := func() (frame, bool) {
			if len(dataLines) == 0 {
				return frame{}, false
			}
			payload := strings.Join(dataLines, "\n")
			dataLines = nil
			return parseFrame(payload), true
		}

		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "data:"):
				dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			case line == "":
				if fr, ok := flush(); ok {
					if !yield(fr, nil) {
						return
					}
					if fr.kind != frameContent {
						return
					}
				}
			default:
				// Comment lines and foreign SSE fields are ignored.
			}
		}
		if err := scanner.Err(); err != nil {
			yield(frame{}, err)
			return
		}
		// Unterminated trailing event.
		if fr, ok := flush(); ok {
			yield(fr, nil)
		}
	}
}

// parseFrame classifies one event payload.
func parseFrame(payload string) frame {
	if payload == "[DONE]" {
		return frame{kind: frameDone}
	}

	var body struct {
		Content string `json:"content"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		return frame{kind: frameError, errText: fmt.Sprintf("malformed frame: %q", payload)}
	}
	if body.Error != "" {
		return frame{kind: frameError, errText: body.Error}
	}
	return frame{kind: frameContent, content: body.Content}
}

// appendLocal reconciles the session's local copy after a streamed turn.
func (c *Client) appendLocal(id uuid.UUID, userText, reply string) {
	now := time.Now()
	c.mu.Lock()
	c.local[id] = append(c.local[id],
		&session.Message{Role: session.RoleUser, Content: userText, CreatedAt: now},
		&session.Message{Role: session.RoleAssistant, Content: reply, CreatedAt: now},
	)
	c.mu.Unlock()
}
