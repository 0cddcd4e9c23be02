package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

const float32Size = 4

// EncodeEmbedding packs v as consecutive 4-byte native-endian float32 values.
func EncodeEmbedding(v []float32) []byte {
	buf := make([]byte, len(v)*float32Size)
	for i, f := range v {
		binary.NativeEndian.PutUint32(buf[i*float32Size:], math.Float32bits(f))
	}
	return buf
}

// DecodeEmbedding is the inverse of EncodeEmbedding. The round trip is
// bit-exact, NaN payloads included.
func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%float32Size != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of %d", len(b), float32Size)
	}
	v := make([]float32, len(b)/float32Size)
	for i := range v {
		v[i] = math.Float32frombits(binary.NativeEndian.Uint32(b[i*float32Size:]))
	}
	return v, nil
}

func encodeMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeMetadata(s string) (map[string]any, error) {
	m := make(map[string]any)
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// matchesFilters reports whether sourceFile contains any of the lowered
// filters. No filters matches everything.
func matchesFilters(sourceFile string, lowered []string) bool {
	if len(lowered) == 0 {
		return true
	}
	path := strings.ToLower(sourceFile)
	for _, f := range lowered {
		if strings.Contains(path, f) {
			return true
		}
	}
	return false
}

func lowerFilters(filters []string) []string {
	var out []string
	for _, f := range filters {
		if f == "" {
			continue
		}
		out = append(out, strings.ToLower(f))
	}
	return out
}
