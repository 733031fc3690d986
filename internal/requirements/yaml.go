package requirements

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// MarshalExportYAML renders an export snapshot as YAML with the same field
// names and order as its JSON form.
func MarshalExportYAML(exp Export) ([]byte, error) {
	data, err := json.Marshal(exp)
	if err != nil {
		return nil, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("converting export to yaml: %w", err)
	}
	plainStyle(&doc)
	return yaml.Marshal(&doc)
}

// plainStyle drops the flow and quoting styles inherited from JSON input.
func plainStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		plainStyle(c)
	}
}

// YAMLToJSON converts a YAML snapshot to JSON for ParseImport.
func YAMLToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: not valid YAML: %v", ErrInvalidImport, err)
	}
	js, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	return js, nil
}

// ParseImportYAML validates a YAML snapshot like ParseImport.
func ParseImportYAML(data []byte) (Export, error) {
	js, err := YAMLToJSON(data)
	if err != nil {
		return Export{}, err
	}
	return ParseImport(js)
}
