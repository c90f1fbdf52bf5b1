package chunker

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// charsPerToken is the fallback heuristic when the tokenizer dictionary is
// unavailable (offline environments).
const charsPerToken = 4

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// EstimateTokens returns the token count of text under the cl100k_base
// encoding, or a chars/4 estimate when the encoding cannot be loaded. Used
// to budget how much retrieved context fits into a reasoning request.
func EstimateTokens(text string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		if err == nil {
			encoding = enc
		}
	})

	if encoding == nil {
		return len(text) / charsPerToken
	}
	return len(encoding.Encode(text, nil, nil))
}
