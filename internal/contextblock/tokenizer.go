package contextblock

import "strings"

// Tokenizer estimates the token count of a string. Pluggable per spec
// §4.8 ("token counting uses a pluggable tokenizer"); the default is a
// deterministic whitespace approximation that needs no model vocabulary.
type Tokenizer interface {
	Count(text string) int
}

// WhitespaceTokenizer approximates token count as word count scaled by a
// fixed factor, close enough to BPE tokenizers for budgeting purposes
// without depending on a model-specific vocabulary file.
type WhitespaceTokenizer struct{}

const wordsPerTokenInverse = 1.3 // ~0.75 words/token, the common BPE rule of thumb

func (WhitespaceTokenizer) Count(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	words := len(strings.Fields(text))
	return int(float64(words)*wordsPerTokenInverse) + 1
}
