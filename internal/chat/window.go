package chat

import (
	"sort"
	"strings"

	"github.com/JuneJin9655/ai-chat/internal/session"
)

// recentCount is how many messages before the latest are scored as "recent"
// and get first claim on the token budget.
const recentCount = 10

// importanceKeywords mark a message as worth keeping regardless of age.
// Matched case-insensitively; includes Chinese equivalents.
var importanceKeywords = []string{
	"important",
	"critical",
	"must remember",
	"重要",
	"关键",
	"必须记住",
}

// SelectWindow trims an ordered history to fit tokenBudget, always keeping
// the latest message even if it alone exceeds the budget.
//
// Messages before the latest compete on a score favoring user turns,
// longer content, importance keywords, and structured content (lists, code
// fences). The most recent ten are admitted first, then anything older with
// whatever budget remains. The result is in chronological order.
//
// SelectWindow is deterministic and side-effect-free; score ties keep their
// original relative order. A nil tokenizer falls back to EstimateTokens.
func SelectWindow(history []*session.Message, tokenBudget int, tokens Tokenizer) []*session.Message {
	if len(history) <= 1 {
		return history
	}
	if tokens == nil {
		tokens = EstimateTokens
	}

	latest := history[len(history)-1]
	rest := history[:len(history)-1]

	recentStart := len(rest) - recentCount
	if recentStart < 0 {
		recentStart = 0
	}

	total := tokens(latest.Content)
	admitted := make(map[int]bool, len(rest))

	// Recent messages first, then older ones with the remaining budget.
	total = admit(rest, recentStart, len(rest), tokenBudget, total, tokens, admitted)
	admit(rest, 0, recentStart, tokenBudget, total, tokens, admitted)

	// Collect in original order; history is already chronological.
	result := make([]*session.Message, 0, len(admitted)+1)
	for i, msg := range rest {
		if admitted[i] {
			result = append(result, msg)
		}
	}
	return append(result, latest)
}

// admit greedily selects messages from rest[start:end] in descending score
// order while the running token total stays within budget. It records picks
// in admitted and returns the updated total.
func admit(rest []*session.Message, start, end, budget, total int, tokens Tokenizer, admitted map[int]bool) int {
	type candidate struct {
		idx    int
		score  int
		tokens int
	}

	candidates := make([]candidate, 0, end-start)
	for i := start; i < end; i++ {
		n := tokens(rest[i].Content)
		candidates = append(candidates, candidate{
			idx:    i,
			score:  scoreMessage(rest[i], n),
			tokens: n,
		})
	}

	// Stable keeps equal-score messages in their original order.
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})

	for _, c := range candidates {
		if total+c.tokens > budget {
			continue
		}
		admitted[c.idx] = true
		total += c.tokens
	}
	return total
}

// scoreMessage weighs a message's claim on the context window.
func scoreMessage(msg *session.Message, tokenCount int) int {
	score := 2
	if msg.Role == session.RoleUser {
		score = 3
	}

	lengthBonus := tokenCount / 200
	if lengthBonus > 5 {
		lengthBonus = 5
	}
	score += lengthBonus

	if containsImportance(msg.Content) {
		score += 3
	}
	if hasStructuredContent(msg.Content) {
		score += 2
	}
	return score
}

func containsImportance(content string) bool {
	lower := strings.ToLower(content)
	for _, kw := range importanceKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// hasStructuredContent reports list markup or a code fence.
func hasStructuredContent(content string) bool {
	if strings.Contains(content, "```") {
		return true
	}
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
			return true
		}
		if isNumberedItem(trimmed) {
			return true
		}
	}
	return false
}

// isNumberedItem matches lines like "1. step" or "12. step".
func isNumberedItem(line string) bool {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	return i > 0 && i+1 < len(line) && line[i] == '.' && line[i+1] == ' '
}
