package budget

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// Tokenizer counts the tokens a model would see for a piece of text.
type Tokenizer interface {
	CountTokens(model, text string) int
}

// fallbackEncoding is used for models tiktoken does not recognize.
const fallbackEncoding = "cl100k_base"

// TiktokenCounter counts tokens with the model's BPE encoding. Encoding
// tables are embedded, so no network access happens at run time.
type TiktokenCounter struct {
	mu        sync.Mutex
	encodings map[string]*tiktoken.Tiktoken
	fallback  Tokenizer
}

// NewTiktokenCounter creates a counter that uses fallback whenever no
// encoding can be loaded for a model.
func NewTiktokenCounter(fallback Tokenizer) *TiktokenCounter {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	if fallback == nil {
		fallback = HeuristicCounter{}
	}
	return &TiktokenCounter{
		encodings: make(map[string]*tiktoken.Tiktoken),
		fallback:  fallback,
	}
}

func (c *TiktokenCounter) CountTokens(model, text string) int {
	if text == "" {
		return 0
	}
	enc := c.encoding(model)
	if enc == nil {
		return c.fallback.CountTokens(model, text)
	}
	return len(enc.Encode(text, nil, nil))
}

func (c *TiktokenCounter) encoding(model string) *tiktoken.Tiktoken {
	c.mu.Lock()
	defer c.mu.Unlock()

	if enc, ok := c.encodings[model]; ok {
		return enc
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	if err != nil {
		enc = nil
	}
	c.encodings[model] = enc
	return enc
}

// HeuristicCounter approximates one token per four characters.
type HeuristicCounter struct{}

func (HeuristicCounter) CountTokens(_ string, text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		return 1
	}
	return n
}
