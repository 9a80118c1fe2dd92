// Package vector holds the embedding vector type persisted by the stores and
// the similarity functions used to rank atoms and cases.
package vector

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
)

// Vector is an embedding persisted as a JSON array in a text column so the
// same schema works on every storage provider.
type Vector []float32

// Value implements driver.Valuer.
func (v Vector) Value() (driver.Value, error) {
	if len(v) == 0 {
		return "", nil
	}
	data, err := json.Marshal([]float32(v))
	if err != nil {
		return nil, fmt.Errorf("vector: marshal: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (v *Vector) Scan(src any) error {
	var data []byte
	switch s := src.(type) {
	case nil:
		*v = nil
		return nil
	case string:
		data = []byte(s)
	case []byte:
		data = s
	default:
		return fmt.Errorf("vector: cannot scan %T", src)
	}
	if len(data) == 0 {
		*v = nil
		return nil
	}
	var out []float32
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("vector: unmarshal: %w", err)
	}
	*v = out
	return nil
}

// Cosine returns the cosine similarity of a and b. Vectors of different
// length or with zero magnitude score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Normalize scales v to unit length in place and returns it.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	n := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= n
	}
	return v
}
