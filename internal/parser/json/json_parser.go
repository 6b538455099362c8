// Package json turns JSON documents into records.Row maps.
//
// Two layouts are accepted:
//
//   - a single top-level array of objects: [{"code":"a"}, {"code":"b"}]
//   - a stream of objects (NDJSON or concatenated objects)
//
// Numbers are decoded as json.Number so integer identifiers keep their exact
// digits when records are passed through to the platform unchanged.
package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gcload/internal/records"
)

// Options configures the JSON parser.
type Options struct {
	// RequireArray rejects anything but a single top-level array.
	RequireArray bool
}

// Parser parses JSON input according to Options.
type Parser struct{ opt Options }

// NewParser constructs a Parser.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// Parse reads every object in r. A syntax error, a non-object element, or a
// top-level primitive is a *records.FileError.
func (p *Parser) Parse(r io.Reader) ([]records.Row, error) {
	d := json.NewDecoder(r)
	d.UseNumber()

	var out []records.Row
	for doc := 1; ; doc++ {
		var root any
		if err := d.Decode(&root); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fileErr(fmt.Errorf("document %d: %w", doc, err))
		}

		switch v := root.(type) {
		case map[string]any:
			if p.opt.RequireArray {
				return nil, fileErr(errors.New("top-level object found but an array is required"))
			}
			out = append(out, records.Row(v))
		case []any:
			if doc > 1 {
				return nil, fileErr(fmt.Errorf("document %d: array after the first document", doc))
			}
			for i, elem := range v {
				obj, ok := elem.(map[string]any)
				if !ok {
					return nil, fileErr(fmt.Errorf("element %d is %s, not an object", i, typeName(elem)))
				}
				out = append(out, records.Row(obj))
			}
		default:
			return nil, fileErr(fmt.Errorf("document %d: unsupported top-level %s", doc, typeName(v)))
		}
	}
	return out, nil
}

func fileErr(err error) error {
	return &records.FileError{Format: "json", Op: "parse", Err: err}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
