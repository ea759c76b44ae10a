package trace

import (
	_ "embed"
)

//go:embed sample.json
var sampleJSON []byte

// Sample returns the bundled fallback document: a short climb-and-descend
// flight over Paris, used when no trace has been loaded.
// Each call returns a fresh copy.
func Sample() *Document {
	doc, err := Parse(sampleJSON)
	if err != nil {
		panic("trace: bundled sample is invalid: " + err.Error())
	}
	return doc
}
