package loader

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"

	xsd "github.com/jacoelho/xsd"

	"github.com/antaris-inc/go-xtce/xtce"
)

// Load reads an XTCE document from r, optionally validates it against
// schema, and builds an xtce.SpaceSystem from it. Passing a nil schema
// skips validation, matching the behavior callers want for documents
// that have already been validated upstream (e.g. in a CI step) or that
// deliberately use XTCE extension elements a strict schema would reject.
func Load(r io.Reader, schema *xsd.Schema) (*xtce.SpaceSystem, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("loader: reading document: %w", err)
	}

	if schema != nil {
		if err := schema.Validate(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("loader: schema validation failed: %w", err)
		}
	}

	var doc XMLSpaceSystem
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("loader: parsing document: %w", err)
	}

	return Build(&doc)
}

// LoadFile is a convenience wrapper around Load for a document on disk.
func LoadFile(path string, schema *xsd.Schema) (*xtce.SpaceSystem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: opening %s: %w", path, err)
	}
	defer f.Close()
	return Load(f, schema)
}
