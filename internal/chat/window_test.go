package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JuneJin9655/ai-chat/internal/session"
)

// makeHistory builds n chronologically ordered user messages whose content
// pads out to exactly tokensEach estimated tokens.
func makeHistory(n, tokensEach int) []*session.Message {
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	history := make([]*session.Message, n)
	for i := range history {
		history[i] = &session.Message{
			ID:        uuid.New(),
			Role:      session.RoleUser,
			Content:   strings.Repeat("a", tokensEach*4),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return history
}

func windowTokens(window []*session.Message) int {
	total := 0
	for _, msg := range window {
		total += EstimateTokens(msg.Content)
	}
	return total
}

func TestSelectWindow_ShortHistoryUnchanged(t *testing.T) {
	t.Parallel()

	if got := SelectWindow(nil, 100, nil); len(got) != 0 {
		t.Errorf("empty history returned %d messages", len(got))
	}

	one := makeHistory(1, 1000)
	got := SelectWindow(one, 1, nil)
	if len(got) != 1 || got[0] != one[0] {
		t.Errorf("single-message history was modified: %v", got)
	}
}

func TestSelectWindow_LatestAlwaysKept(t *testing.T) {
	t.Parallel()

	history := makeHistory(5, 100)
	// Budget smaller than even the latest message alone.
	got := SelectWindow(history, 10, nil)
	if len(got) != 1 {
		t.Fatalf("window has %d messages, want only the latest", len(got))
	}
	if got[0] != history[len(history)-1] {
		t.Error("window does not contain the latest message")
	}
}

func TestSelectWindow_NeverExceedsBudget(t *testing.T) {
	t.Parallel()

	history := makeHistory(30, 20)
	const budget = 200

	got := SelectWindow(history, budget, nil)
	if total := windowTokens(got); total > budget {
		t.Errorf("window totals %d tokens, budget is %d", total, budget)
	}
	if got[len(got)-1] != history[len(history)-1] {
		t.Error("latest message missing from window")
	}
}

func TestSelectWindow_ChronologicalOrder(t *testing.T) {
	t.Parallel()

	history := makeHistory(25, 10)
	got := SelectWindow(history, 120, nil)

	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt.Before(got[i-1].CreatedAt) {
			t.Fatalf("window out of chronological order at index %d", i)
		}
	}
}

func TestSelectWindow_ImportanceKeywordWins(t *testing.T) {
	t.Parallel()

	// Twelve messages of 20 tokens each with a budget fitting exactly five.
	// m5 carries an importance keyword; the rest are identical filler, so
	// the keyword is the only thing that can earn m5 its slot.
	history := makeHistory(12, 20)
	history[4].Content = "important " + strings.Repeat("a", 70)
	const budget = 100

	got := SelectWindow(history, budget, nil)

	found := false
	for _, msg := range got {
		if msg == history[4] {
			found = true
		}
	}
	if !found {
		t.Error("message with importance keyword was not selected")
	}
	if total := windowTokens(got); total > budget {
		t.Errorf("window totals %d tokens, budget is %d", total, budget)
	}
}

func TestSelectWindow_Deterministic(t *testing.T) {
	t.Parallel()

	history := makeHistory(20, 15)
	first := SelectWindow(history, 150, nil)
	second := SelectWindow(history, 150, nil)

	if len(first) != len(second) {
		t.Fatalf("window sizes differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("windows diverge at index %d", i)
		}
	}
}

func TestSelectWindow_CustomTokenizer(t *testing.T) {
	t.Parallel()

	history := makeHistory(3, 100)
	// A tokenizer that charges nothing admits everything.
	free := func(string) int { return 0 }

	got := SelectWindow(history, 1, free)
	if len(got) != 3 {
		t.Errorf("window has %d messages, want all 3", len(got))
	}
}

func TestScoreMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		msg    *session.Message
		tokens int
		want   int
	}{
		{
			name:   "plain assistant",
			msg:    &session.Message{Role: session.RoleAssistant, Content: "hello"},
			tokens: 2,
			want:   2,
		},
		{
			name:   "plain user",
			msg:    &session.Message{Role: session.RoleUser, Content: "hello"},
			tokens: 2,
			want:   3,
		},
		{
			name:   "long user message",
			msg:    &session.Message{Role: session.RoleUser, Content: "..."},
			tokens: 450,
			want:   3 + 2,
		},
		{
			name:   "length bonus capped",
			msg:    &session.Message{Role: session.RoleUser, Content: "..."},
			tokens: 5000,
			want:   3 + 5,
		},
		{
			name:   "importance keyword",
			msg:    &session.Message{Role: session.RoleUser, Content: "this is IMPORTANT"},
			tokens: 5,
			want:   3 + 3,
		},
		{
			name:   "chinese importance keyword",
			msg:    &session.Message{Role: session.RoleUser, Content: "这一点很重要"},
			tokens: 2,
			want:   3 + 3,
		},
		{
			name:   "code fence",
			msg:    &session.Message{Role: session.RoleAssistant, Content: "```go\nfunc main() {}\n```"},
			tokens: 6,
			want:   2 + 2,
		},
		{
			name:   "bullet list",
			msg:    &session.Message{Role: session.RoleAssistant, Content: "steps:\n- first\n- second"},
			tokens: 6,
			want:   2 + 2,
		},
		{
			name:   "numbered list",
			msg:    &session.Message{Role: session.RoleAssistant, Content: "1. first\n2. second"},
			tokens: 5,
			want:   2 + 2,
		},
		{
			name:   "important code fence",
			msg:    &session.Message{Role: session.RoleUser, Content: "critical:\n```\nrm -rf\n```"},
			tokens: 7,
			want:   3 + 3 + 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := scoreMessage(tt.msg, tt.tokens); got != tt.want {
				t.Errorf("scoreMessage() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEstimateTokens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want int
	}{
		{text: "", want: 0},
		{text: "abcd", want: 1},
		{text: "abcde", want: 2},
		{text: strings.Repeat("x", 400), want: 100},
		{text: "你好世界", want: 1}, // 4 runes, not 12 bytes
	}

	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
