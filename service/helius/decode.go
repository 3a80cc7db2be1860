package helius

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Int is an integer field that tolerates the shapes Helius emits for it:
// a JSON number, a numeric string, or null. Anything else, including values
// outside the int64 range, decodes to zero.
type Int int64

func (l *Int) UnmarshalJSON(data []byte) error {
	*l = 0
	f, ok := parseLooseNumber(data)
	if !ok {
		return nil
	}
	// float64(math.MaxInt64) rounds up to 2^63, which is already out of range.
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return nil
	}
	*l = Int(math.Trunc(f))
	return nil
}

// Number is a float field with the same tolerance as Int.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = 0
	if f, ok := parseLooseNumber(data); ok {
		*n = Number(f)
	}
	return nil
}

func parseLooseNumber(data []byte) (float64, bool) {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		return 0, false
	}
	if strings.HasPrefix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal(data, &unquoted); err != nil {
			return 0, false
		}
		s = strings.TrimSpace(unquoted)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Decode reads either a single enriched transaction or a JSON array of them.
func Decode(r io.Reader) ([]EnrichedTransaction, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return DecodeBytes(data)
}

// DecodeBytes is Decode over an in-memory payload.
func DecodeBytes(data []byte) ([]EnrichedTransaction, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty input")
	}

	if trimmed[0] == '[' {
		var txs []EnrichedTransaction
		if err := json.Unmarshal(trimmed, &txs); err != nil {
			return nil, fmt.Errorf("failed to decode transaction list: %w", err)
		}
		return txs, nil
	}

	var tx EnrichedTransaction
	if err := json.Unmarshal(trimmed, &tx); err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return []EnrichedTransaction{tx}, nil
}
