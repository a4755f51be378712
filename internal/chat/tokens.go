package chat

import "unicode/utf8"

// Tokenizer counts the tokens a piece of text will consume. Model-aware
// implementations can be plugged in; EstimateTokens is the fallback.
type Tokenizer func(text string) int

// DefaultTokenBudget is the context window limit applied per turn when no
// budget is configured.
const DefaultTokenBudget = 4000

// EstimateTokens provides a rough token count: ceil(runeCount/4), the common
// chars-per-token approximation for English text.
func EstimateTokens(text string) int {
	runeCount := utf8.RuneCountInString(text)
	return (runeCount + 3) / 4
}
