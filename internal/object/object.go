// Package object defines the record and list model that flows between
// pipeline stages. A Record is a string-keyed map whose values are limited to
// strings, numbers, booleans, null, nested Records, ordered sequences, and
// blob references. A List is an ordered sequence of Records; ordering is
// significant and preserved end to end.
package object

import (
	"encoding/json"
	"fmt"
)

// blobKey marks a one-field JSON object as a blob reference.
const blobKey = "$blob"

// Record is one structured item of data (an email, a file, an attachment).
// Records are treated as immutable once emitted by a stage; downstream
// stages build new Records rather than mutating their input.
type Record map[string]any

// List is an ordered collection of Records produced by one pipeline stage.
// The empty List is valid and means zero records, not an error.
type List []Record

// BlobRef points at binary content by path instead of carrying the bytes
// inline, so channel size stays bounded. The path must stay resolvable for
// the lifetime of the consuming stage.
type BlobRef struct {
	Path string
}

// MarshalJSON encodes a BlobRef as {"$blob": path}.
func (b BlobRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{blobKey: b.Path})
}

// Normalize converts an arbitrary JSON-decoded value into the canonical
// record value space: map[string]any becomes Record (or BlobRef for
// single-key {"$blob": path} objects), slices are normalized element-wise,
// and numbers are expected as json.Number (the channel decoder guarantees
// this). It returns an error for values outside the supported space.
func Normalize(v any) (any, error) {
	switch val := v.(type) {
	case nil, string, bool, json.Number:
		return val, nil
	case float64:
		// Tolerate callers that decoded without UseNumber.
		return json.Number(fmt.Sprintf("%v", val)), nil
	case int:
		return json.Number(fmt.Sprintf("%d", val)), nil
	case int64:
		return json.Number(fmt.Sprintf("%d", val)), nil
	case BlobRef:
		return val, nil
	case map[string]any:
		if path, ok := blobRefPath(val); ok {
			return BlobRef{Path: path}, nil
		}
		rec := make(Record, len(val))
		for k, elem := range val {
			norm, err := Normalize(elem)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			rec[k] = norm
		}
		return rec, nil
	case Record:
		return Normalize(map[string]any(val))
	case []any:
		seq := make([]any, len(val))
		for i, elem := range val {
			norm, err := Normalize(elem)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			seq[i] = norm
		}
		return seq, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func blobRefPath(m map[string]any) (string, bool) {
	if len(m) != 1 {
		return "", false
	}
	path, ok := m[blobKey].(string)
	return path, ok
}

// NormalizeRecord normalizes every field of a raw map into a Record.
func NormalizeRecord(m map[string]any) (Record, error) {
	norm, err := Normalize(m)
	if err != nil {
		return nil, err
	}
	rec, ok := norm.(Record)
	if !ok {
		return nil, fmt.Errorf("value normalized to %T, not a record", norm)
	}
	return rec, nil
}

// Clone returns a deep copy of the Record so downstream stages can derive
// new Records without touching the original.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Record:
		return val.Clone()
	case map[string]any:
		return Record(val).Clone()
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	default:
		return val
	}
}

// identityKeys are the fields, in display order, that unambiguously identify
// a record to a human or script without the originating stage's state.
var identityKeys = []string{"id", "path", "name", "subject"}

// Identity returns the identifying fields present on the Record. Records
// with none of the known keys return an empty map; callers should then fall
// back to the record's position in its list.
func (r Record) Identity() map[string]string {
	out := make(map[string]string)
	for _, k := range identityKeys {
		if v, ok := r[k]; ok {
			out[k] = fmt.Sprintf("%v", v)
		}
	}
	return out
}

// IdentityString renders the identity fields as "k=v" pairs in stable order,
// or "record[i]" when the record carries no identifying fields.
func (r Record) IdentityString(index int) string {
	id := r.Identity()
	if len(id) == 0 {
		return fmt.Sprintf("record[%d]", index)
	}
	s := ""
	for _, k := range identityKeys {
		v, ok := id[k]
		if !ok {
			continue
		}
		if s != "" {
			s += " "
		}
		s += k + "=" + v
	}
	return s
}

// Equal reports structural equality of two values in the record value space.
func Equal(a, b any) bool {
	switch av := a.(type) {
	case Record:
		bv, ok := b.(Record)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, ok := bv[k]
			if !ok || !Equal(v, other) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case BlobRef:
		bv, ok := b.(BlobRef)
		return ok && av.Path == bv.Path
	default:
		return a == b
	}
}

// EqualList reports Record-by-Record, field-by-field equality of two Lists.
func EqualList(a, b List) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
