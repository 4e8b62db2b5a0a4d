package memory

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"nambo/internal/domain"
)

const fallbackEncoding = "cl100k_base"

//nolint:gochecknoglobals // The BPE loader is process-wide in tiktoken-go.
var useOfflineLoader sync.Once

// TiktokenCounter counts tokens with the BPE encoding of an OpenAI model.
// Encodings are embedded, so no download happens at runtime.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter picks the encoding for model, falling back to
// cl100k_base for models tiktoken doesn't know.
func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	useOfflineLoader.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("get encoding %s: %w", fallbackEncoding, err)
		}
	}

	return &TiktokenCounter{enc: enc}, nil
}

func (c *TiktokenCounter) CountText(s string) int {
	return len(c.enc.Encode(s, nil, nil))
}

func (c *TiktokenCounter) CountTurn(t domain.Turn) int {
	return c.CountText(t.Text) + turnOverhead
}
