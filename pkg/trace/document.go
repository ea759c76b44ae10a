// Package trace reads recorded aircraft trace documents.
//
// A trace document is a JSON object of the form
//
//	{"icao": "...", "version": "...", "timestamp": <epoch seconds>,
//	 "trace": [[secondsOffset, lat, lon, alt, speed|null, heading|null, ...], ...]}
//
// Rows are loosely typed: any field may be missing, null or of the wrong
// type. The package keeps every element as raw JSON and lets callers ask
// whether a given field is a number, so the trajectory builder can apply
// its own defaulting rules.
package trace

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

// Row field positions. Only the first six fields carry meaning; anything
// after FieldHeading is kept but never interpreted.
const (
	FieldOffset = iota
	FieldLat
	FieldLon
	FieldAlt
	FieldSpeed
	FieldHeading
)

var (
	// ErrInvalidJSON is returned when the input is not parseable JSON.
	ErrInvalidJSON = errors.New("invalid JSON file")
	// ErrInvalidDocument is returned when the input is JSON but not an object.
	ErrInvalidDocument = errors.New("trace document must be a JSON object")
	// ErrTraceNotArray is returned when the "trace" member is missing or not an array.
	ErrTraceNotArray = errors.New("trace document has no trace array")
)

// Value is a single loosely-typed element of a trace row.
// The zero Value behaves like a missing field.
type Value struct {
	raw json.RawMessage
}

// UnmarshalJSON keeps the raw element.
func (v *Value) UnmarshalJSON(data []byte) error {
	v.raw = append(v.raw[:0], data...)
	return nil
}

// MarshalJSON writes the element back unchanged. Missing fields become null.
func (v Value) MarshalJSON() ([]byte, error) {
	if len(v.raw) == 0 {
		return []byte("null"), nil
	}
	return v.raw, nil
}

// Number returns the element as a float64 and true when it is a JSON number.
// Strings, booleans, null, arrays, objects and missing fields report false.
func (v Value) Number() (float64, bool) {
	raw := bytes.TrimSpace(v.raw)
	if len(raw) == 0 {
		return 0, false
	}
	if c := raw[0]; c != '-' && (c < '0' || c > '9') {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}

// String returns the element as a string and true when it is a JSON string.
func (v Value) String() (string, bool) {
	raw := bytes.TrimSpace(v.raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// IsNull reports whether the element is missing or JSON null.
func (v Value) IsNull() bool {
	raw := bytes.TrimSpace(v.raw)
	return len(raw) == 0 || string(raw) == "null"
}

// NumberOr returns the numeric value or def when the element is not a number.
func (v Value) NumberOr(def float64) float64 {
	if f, ok := v.Number(); ok {
		return f
	}
	return def
}

// NumberOrNaN returns the numeric value or NaN when the element is not a number.
// Used for fields that are passed through without validation.
func (v Value) NumberOrNaN() float64 {
	return v.NumberOr(math.NaN())
}

// NumberPtr returns a pointer to the numeric value, or nil when the element
// is not a number.
func (v Value) NumberPtr() *float64 {
	if f, ok := v.Number(); ok {
		return &f
	}
	return nil
}

// Row is one raw trace sample:
// [secondsOffset, lat, lon, alt, speed|null, heading|null, ...extra].
type Row []Value

// Field returns the element at index i, or a missing Value when the row is shorter.
func (r Row) Field(i int) Value {
	if i < 0 || i >= len(r) {
		return Value{}
	}
	return r[i]
}

// UnmarshalJSON decodes an array row. Rows that are not arrays decode as
// empty rows so that a single bad row never rejects the whole document.
func (r *Row) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || raw[0] != '[' {
		*r = Row{}
		return nil
	}
	var values []Value
	if err := json.Unmarshal(raw, &values); err != nil {
		return err
	}
	*r = values
	return nil
}

// RowOf builds a Row from Go values. nil becomes JSON null.
// Values that cannot be marshalled become null as well.
func RowOf(values ...any) Row {
	row := make(Row, len(values))
	for i, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			data = []byte("null")
		}
		row[i] = Value{raw: data}
	}
	return row
}

// Document is a recorded trace of a single aircraft.
type Document struct {
	// ICAO is the 24-bit ICAO aircraft address (e.g., "4ca7b5")
	ICAO string

	// Version is the producer's format version string
	Version string

	// BaseTimestamp is the epoch time in seconds that row offsets are relative to
	BaseTimestamp float64

	// Trace holds the raw rows in file order.
	// Rows are expected, but not verified, to be in non-decreasing offset order.
	// nil means the document had no usable trace array.
	Trace []Row
}

type documentJSON struct {
	ICAO      Value           `json:"icao"`
	Version   Value           `json:"version"`
	Timestamp Value           `json:"timestamp"`
	Trace     json.RawMessage `json:"trace"`
}

// UnmarshalJSON decodes a document leniently. A non-array trace leaves
// Trace nil; use Parse to get that reported as an error.
func (d *Document) UnmarshalJSON(data []byte) error {
	var aux documentJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	d.ICAO, _ = aux.ICAO.String()
	d.Version, _ = aux.Version.String()
	d.BaseTimestamp = aux.Timestamp.NumberOr(0)
	d.Trace = nil

	rawTrace := bytes.TrimSpace(aux.Trace)
	if len(rawTrace) > 0 && rawTrace[0] == '[' {
		rows := []Row{}
		if err := json.Unmarshal(rawTrace, &rows); err != nil {
			return err
		}
		d.Trace = rows
	}
	return nil
}

// MarshalJSON encodes the document in the on-disk format.
func (d Document) MarshalJSON() ([]byte, error) {
	rows := d.Trace
	if rows == nil {
		rows = []Row{}
	}
	return json.Marshal(struct {
		ICAO      string  `json:"icao"`
		Version   string  `json:"version"`
		Timestamp float64 `json:"timestamp"`
		Trace     []Row   `json:"trace"`
	}{d.ICAO, d.Version, d.BaseTimestamp, rows})
}

// HasTrace reports whether the document carried a trace array (possibly empty).
func (d *Document) HasTrace() bool {
	return d != nil && d.Trace != nil
}

// Digest identifies the document's content: a SHA-256 of its JSON encoding.
// It is computed on every call, so edits to the document's fields are
// reflected in the next digest.
func (d *Document) Digest() string {
	if d == nil {
		return ""
	}
	data, err := json.Marshal(d)
	if err != nil {
		return ""
	}
	return digestOf(data)
}

func digestOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Parse decodes a trace document from JSON text. Gzip-compressed input
// (as served by most trace archives) is detected and decompressed.
//
// Parse reports malformed structure as an error wrapping ErrInvalidJSON,
// ErrInvalidDocument or ErrTraceNotArray. Bad values inside rows are not
// errors.
func Parse(data []byte) (*Document, error) {
	if isGzip(data) {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}
		defer zr.Close()

		data, err = io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}
	}

	if !json.Valid(data) {
		return nil, ErrInvalidJSON
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrInvalidDocument
	}

	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if !doc.HasTrace() {
		return nil, ErrTraceNotArray
	}

	return &doc, nil
}

// Read parses a document from r.
func Read(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	return Parse(data)
}

func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}
