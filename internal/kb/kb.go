// Package kb holds the curated fault-code catalog. The catalog is loaded once
// at startup and never mutated, so it is safe for concurrent readers.
package kb

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/masanjalab/doctor-mitambo/internal/model"
)

//go:embed codes.yaml
var embeddedCatalog []byte

// Base is the immutable fault-code lookup table.
type Base struct {
	entries map[string]model.FaultCode
}

type catalogFile struct {
	Codes []model.FaultCode `yaml:"codes"`
}

// Normalize canonicalizes a fault code for key comparison: trim surrounding
// whitespace, uppercase, and collapse internal whitespace runs to one space.
func Normalize(code string) string {
	return strings.Join(strings.Fields(strings.ToUpper(code)), " ")
}

// Load builds the catalog from the embedded seed data, overlaid with an
// optional operator-supplied YAML file. File entries win on key collision.
func Load(catalogPath string) (*Base, error) {
	entries := make(map[string]model.FaultCode)

	if err := mergeCatalog(entries, embeddedCatalog); err != nil {
		return nil, fmt.Errorf("embedded catalog: %w", err)
	}

	if catalogPath != "" {
		data, err := os.ReadFile(catalogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog %s: %w", catalogPath, err)
		}
		if err := mergeCatalog(entries, data); err != nil {
			return nil, fmt.Errorf("catalog %s: %w", catalogPath, err)
		}
	}

	return &Base{entries: entries}, nil
}

func mergeCatalog(entries map[string]model.FaultCode, data []byte) error {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse catalog: %w", err)
	}

	for _, entry := range file.Codes {
		if err := entry.Validate(); err != nil {
			return err
		}
		entry.Code = Normalize(entry.Code)
		entries[entry.Code] = entry
	}
	return nil
}

// Lookup returns the catalog entry for a code, if present. A miss is a valid
// negative result, not an error; it drives the AI fallback.
func (b *Base) Lookup(code string) (model.FaultCode, bool) {
	entry, ok := b.entries[Normalize(code)]
	return entry, ok
}

// Codes returns all catalog entries sorted by code.
func (b *Base) Codes() []model.FaultCode {
	codes := make([]model.FaultCode, 0, len(b.entries))
	for _, entry := range b.entries {
		codes = append(codes, entry)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i].Code < codes[j].Code })
	return codes
}

// Size returns the number of catalog entries.
func (b *Base) Size() int {
	return len(b.entries)
}
