// Package contracts embeds the OpenAPI documents served by the API.
package contracts

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed certificates.yaml
var certificatesYAML []byte

var documents = map[string][]byte{
	"certificates": certificatesYAML,
}

// Names lists the embedded documents in stable order.
func Names() []string {
	names := make([]string, 0, len(documents))
	for name := range documents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load parses and validates the named document.
func Load(name string) (*openapi3.T, error) {
	raw, ok := documents[name]
	if !ok {
		return nil, fmt.Errorf("unknown contract %q", name)
	}
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("load contract %q: %w", name, err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate contract %q: %w", name, err)
	}
	return doc, nil
}
