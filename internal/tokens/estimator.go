// Package tokens estimates prompt sizes locally so the orchestrator can log
// an input-token budget before spending money on a remote call. The tiktoken
// encodings are not exact for Claude models, but they are close enough for
// budget logging.
package tokens

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Estimator counts tokens with a cached tiktoken codec.
type Estimator struct {
	once  sync.Once
	codec tokenizer.Codec
	err   error
}

// NewEstimator creates an Estimator. The codec is loaded lazily on first use.
func NewEstimator() *Estimator {
	return &Estimator{}
}

func (e *Estimator) load() (tokenizer.Codec, error) {
	e.once.Do(func() {
		e.codec, e.err = tokenizer.Get(tokenizer.Cl100kBase)
	})
	if e.err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", e.err)
	}
	return e.codec, nil
}

// Count returns the approximate token count of text.
func (e *Estimator) Count(text string) (int, error) {
	codec, err := e.load()
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("failed to encode text: %w", err)
	}
	return len(ids), nil
}
