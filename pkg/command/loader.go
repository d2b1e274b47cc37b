package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ErrMalformedFile is wrapped by Parse errors about the document shape.
var ErrMalformedFile = errors.New("malformed commands file")

// Load reads a commands file from fsys and returns its definitions in file
// order. Both JSON and YAML objects are accepted; a document whose first
// non-blank character is '{' is read as JSON.
func Load(fsys afero.Fs, path string) ([]Definition, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read commands file %s: %w", path, err)
	}
	defs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse commands file %s: %w", path, err)
	}
	return defs, nil
}

// Parse decodes a mapping of pattern to response. Key order is preserved
// and repeated keys are returned as they appear so that Compile can apply
// its duplicate policy.
func Parse(data []byte) ([]Definition, error) {
	body := bytes.TrimLeft(bytes.TrimPrefix(data, utf8BOM), " \t\r\n")
	if len(body) > 0 && body[0] == '{' {
		return parseJSON(body)
	}
	return parseYAML(data)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// parseJSON walks the token stream so that key order and repeated keys
// survive decoding.
func parseJSON(data []byte) ([]Definition, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	var defs []Definition
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)

		tok, err = dec.Token()
		if err != nil {
			return nil, err
		}
		var response string
		switch v := tok.(type) {
		case string:
			response = v
		case json.Number:
			response = v.String()
		case bool:
			response = fmt.Sprint(v)
		default:
			return nil, fmt.Errorf("%w: response for %q must be a string (offset %d)", ErrMalformedFile, key, dec.InputOffset())
		}
		defs = append(defs, Definition{Pattern: key, Response: response})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after the top-level object (offset %d)", ErrMalformedFile, dec.InputOffset())
	}
	return defs, nil
}

func parseYAML(data []byte) ([]Definition, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 {
		return nil, nil
	}

	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil, nil
		}
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be an object of pattern to response (line %d)", ErrMalformedFile, root.Line)
	}

	defs := make([]Definition, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%w: non-scalar key at line %d", ErrMalformedFile, k.Line)
		}
		if v.Kind != yaml.ScalarNode || v.Tag == "!!null" {
			return nil, fmt.Errorf("%w: response for %q must be a string (line %d)", ErrMalformedFile, k.Value, v.Line)
		}
		defs = append(defs, Definition{Pattern: k.Value, Response: v.Value})
	}
	return defs, nil
}
