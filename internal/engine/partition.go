// This file implements the row partition record: the side value that
// splits the flat values of a repeated multi-value field back into rows.
package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"

	"github.com/elliotchance/phpserialize"

	"github.com/mesh-intelligence/metafields/pkg/types"
)

// RowPartition maps a multi-value field name to the number of values each row
// of its repeatable group holds, in row order. {"checkbox3": [1, 2]} means
// row 0 owns the first value and row 1 the next two.
type RowPartition map[string][]int

// DecodeRowPartition parses a persisted partition record. Both the JSON
// encoding written by this package and the PHP-serialized encoding of
// existing installations are accepted. Empty input decodes to nil.
func DecodeRowPartition(raw []byte) (RowPartition, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	if raw[0] == '{' {
		return decodeJSONPartition(raw)
	}
	if raw[0] == 'a' {
		return decodePHPPartition(raw)
	}
	return nil, fmt.Errorf("unrecognized encoding: %w", types.ErrInvalidPartition)
}

func decodeJSONPartition(raw []byte) (RowPartition, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string][]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding json partition: %v: %w", err, types.ErrInvalidPartition)
	}
	p := make(RowPartition, len(doc))
	for field, sizes := range doc {
		rows, err := toSizes(sizes)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		p[field] = rows
	}
	return p, nil
}

func decodePHPPartition(raw []byte) (p RowPartition, err error) {
	// The decoder slices by the length prefixes it reads and can panic on
	// corrupt ones.
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("decoding serialized partition: %v: %w", r, types.ErrInvalidPartition)
		}
	}()

	if err := checkLengthPrefixes(raw); err != nil {
		return nil, err
	}
	top, err := phpserialize.UnmarshalAssociativeArray(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding serialized partition: %v: %w", err, types.ErrInvalidPartition)
	}
	p = make(RowPartition, len(top))
	for k, v := range top {
		var sizes []int
		switch inner := v.(type) {
		case map[any]any:
			sizes, err = orderedSizes(inner)
		case []any:
			sizes, err = toSizes(inner)
		default:
			return nil, fmt.Errorf("field %v is not an array: %w", k, types.ErrInvalidPartition)
		}
		if err != nil {
			return nil, fmt.Errorf("field %v: %w", k, err)
		}
		p[fmt.Sprint(k)] = sizes
	}
	return p, nil
}

// lengthPrefix matches the element count of an array or the byte length of
// a string in PHP's serialize format.
var lengthPrefix = regexp.MustCompile(`[as]:(\d+):`)

// checkLengthPrefixes rejects records whose declared counts or lengths exceed
// the record itself.
func checkLengthPrefixes(raw []byte) error {
	for _, m := range lengthPrefix.FindAllSubmatch(raw, -1) {
		n, err := strconv.Atoi(string(m[1]))
		if err != nil || n > len(raw) {
			return fmt.Errorf("length prefix %s exceeds record size %d: %w", m[1], len(raw), types.ErrInvalidPartition)
		}
	}
	return nil
}

// orderedSizes returns the values of a PHP list in row order. Lists are
// written with sequential integer keys, so sorting the keys restores the
// rows.
func orderedSizes(list map[any]any) ([]int, error) {
	keys := make([]int64, 0, len(list))
	for k := range list {
		i, ok := k.(int64)
		if !ok {
			return nil, fmt.Errorf("row key %v: %w", k, types.ErrInvalidPartition)
		}
		keys = append(keys, i)
	}
	slices.Sort(keys)
	values := make([]any, len(keys))
	for i, k := range keys {
		values[i] = list[k]
	}
	return toSizes(values)
}

func toSizes(in []any) ([]int, error) {
	out := make([]int, 0, len(in))
	for _, v := range in {
		n, err := toInt(v)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("row size %v: %w", n, types.ErrInvalidPartition)
		}
		return int(n), nil
	case json.Number:
		i, err := strconv.Atoi(n.String())
		if err != nil {
			return 0, fmt.Errorf("row size %s: %w", n, types.ErrInvalidPartition)
		}
		return i, nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("row size %q: %w", n, types.ErrInvalidPartition)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("row size of type %T: %w", v, types.ErrInvalidPartition)
	}
}

// Encode returns the JSON encoding. Keys are sorted by encoding/json.
func (p RowPartition) Encode() ([]byte, error) {
	return json.Marshal(map[string][]int(p))
}

// Split cuts values into one slice per recorded row, preserving order. Rows
// of size zero (or negative) come back empty. When the record claims more
// values than exist, later rows are cut short; values beyond the recorded
// total are dropped. ok is false when field has no record.
func (p RowPartition) Split(field string, values []string) (rows [][]string, ok bool) {
	sizes, ok := p[field]
	if !ok {
		return nil, false
	}
	rows = make([][]string, 0, len(sizes))
	start := 0
	for _, size := range sizes {
		if size <= 0 || start >= len(values) {
			rows = append(rows, []string{})
			continue
		}
		end := min(start+size, len(values))
		row := make([]string, end-start)
		copy(row, values[start:end])
		rows = append(rows, row)
		start = end
	}
	return rows, true
}

// Unaccounted returns how far the recorded total for field is from n, the
// number of stored values. Positive means values were left over, negative
// means the record claims values that do not exist.
func (p RowPartition) Unaccounted(field string, n int) int {
	total := 0
	for _, size := range p[field] {
		if size > 0 {
			total += size
		}
	}
	return n - total
}
