package embed

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/zulandar/signalbox/internal/vector"
)

// Hash is a deterministic feature-hashing embedder. It needs no network and
// gives useful lexical similarity for fault codes and part names.
type Hash struct {
	dims int
}

// NewHash returns a Hash embedder producing dims-dimensional vectors.
func NewHash(dims int) *Hash {
	if dims <= 0 {
		dims = 256
	}
	return &Hash{dims: dims}
}

// Embed implements Embedder. Empty text yields a zero vector.
func (h *Hash) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v := make([]float32, h.dims)
	for _, tok := range Tokens(text) {
		f := fnv.New32a()
		f.Write([]byte(tok))
		sum := f.Sum32()
		sign := float32(1)
		if sum&(1<<31) != 0 {
			sign = -1
		}
		v[int(sum%uint32(h.dims))] += sign
	}
	return vector.Normalize(v), nil
}

// Tokens lower-cases text and splits it on anything that is not a letter or
// digit.
func Tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
