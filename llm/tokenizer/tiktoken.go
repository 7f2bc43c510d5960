package tokenizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Tiktoken counts with a tiktoken encoding, loaded on first use. When the
// encoding cannot be loaded every count is delegated to the estimator.
type Tiktoken struct {
	encoding string
	fallback *Estimator

	once sync.Once
	enc  *tiktoken.Tiktoken
}

func newTiktoken(encoding string) *Tiktoken {
	return &Tiktoken{encoding: encoding, fallback: NewEstimator()}
}

func (t *Tiktoken) load() *tiktoken.Tiktoken {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err == nil {
			t.enc = enc
		}
	})
	return t.enc
}

// Count returns the exact token count, or the estimate when the encoding is
// unavailable.
func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	enc := t.load()
	if enc == nil {
		return t.fallback.Count(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// Name reports the active encoding.
func (t *Tiktoken) Name() string {
	if t.load() == nil {
		return t.fallback.Name()
	}
	return "tiktoken[" + t.encoding + "]"
}
