// Package layout loads per-vendor field layouts and resolves them into the
// ordered, pixel-space field list the extraction pipeline consumes.
package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/fieldscan/internal/geometry"
	"github.com/platinummonkey/fieldscan/internal/logger"
)

// RawTextSection is the field name given to a section configured as a bare string.
const RawTextSection = "raw_text"

// Field is one configured field. It is either a RawTextField or a GeometricField.
type Field interface {
	isField()
}

// RawTextField carries a literal value and no geometry. It can never be routed.
type RawTextField struct {
	Value string
}

// GeometricField locates a field on the page, by physical position and size,
// by an explicit pixel box, or both. Position and size win over Box when both are set.
type GeometricField struct {
	Position  *geometry.Inches
	Size      *geometry.Inches
	Box       *geometry.Box
	Color     string
	LineWidth float64
}

func (RawTextField) isField()   {}
func (GeometricField) isField() {}

// NamedField pairs a field with its key inside a section.
type NamedField struct {
	Name  string
	Field Field
}

// Section groups fields under one top-level YAML key.
type Section struct {
	Name   string
	Fields []NamedField
}

// Layout is one vendor's parsed configuration, in document order.
type Layout struct {
	Vendor   string
	Path     string
	Sections []Section
}

// ResolvedField is the normalized form handed to the pipeline. Box is nil when
// the field has no usable geometry.
type ResolvedField struct {
	Name      string
	Box       *geometry.Box
	Color     string
	LineWidth float64

	HasPosition bool
	HasSize     bool
	HasBox      bool
}

// ShortName is the field key without its section prefix.
func (f ResolvedField) ShortName() string {
	return ShortName(f.Name)
}

// ShortName strips the section prefix from a fully-qualified field name.
func ShortName(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

type geometricYAML struct {
	PositionInches []float64 `yaml:"position_inches"`
	SizeInches     []float64 `yaml:"size_inches"`
	Box            []float64 `yaml:"box"`
	Color          string    `yaml:"color"`
	LineWidth      float64   `yaml:"line_width"`
}

// Load reads and parses a vendor layout file.
func Load(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout %s: %w", path, err)
	}
	vendor := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	l, err := Parse(data, vendor)
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout %s: %w", path, err)
	}
	l.Path = path
	return l, nil
}

// Parse decodes layout YAML. Top-level keys are sections; a section is either
// a mapping of fields or a bare string, which becomes a single raw_text field.
// Sections of any other shape are skipped with a warning.
func Parse(data []byte, vendor string) (*Layout, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.New("layout is empty")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("layout root must be a mapping, got %s", kindName(root.Kind))
	}

	log := logger.Get().WithVendor(vendor)
	l := &Layout{Vendor: vendor}

	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value
		node := root.Content[i+1]

		switch node.Kind {
		case yaml.ScalarNode:
			log.Warnw("converted flat string section to raw_text field", "section", name)
			l.Sections = append(l.Sections, Section{
				Name:   name,
				Fields: []NamedField{{Name: RawTextSection, Field: RawTextField{Value: node.Value}}},
			})
		case yaml.MappingNode:
			section, err := parseSection(name, node)
			if err != nil {
				return nil, err
			}
			l.Sections = append(l.Sections, section)
		default:
			log.Warnw("skipping section with unexpected shape", "section", name, "kind", kindName(node.Kind))
		}
	}

	return l, nil
}

func parseSection(name string, node *yaml.Node) (Section, error) {
	section := Section{Name: name}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		value := node.Content[i+1]

		if value.Kind != yaml.MappingNode {
			section.Fields = append(section.Fields, NamedField{Name: key, Field: RawTextField{Value: value.Value}})
			continue
		}

		var raw geometricYAML
		if err := value.Decode(&raw); err != nil {
			return Section{}, fmt.Errorf("field %s.%s: %w", name, key, err)
		}
		field, err := raw.toField()
		if err != nil {
			return Section{}, fmt.Errorf("field %s.%s: %w", name, key, err)
		}
		section.Fields = append(section.Fields, NamedField{Name: key, Field: field})
	}
	return section, nil
}

func (g geometricYAML) toField() (GeometricField, error) {
	f := GeometricField{Color: g.Color, LineWidth: g.LineWidth}
	if g.PositionInches != nil {
		if len(g.PositionInches) != 2 {
			return f, fmt.Errorf("position_inches needs 2 values, got %d", len(g.PositionInches))
		}
		f.Position = &geometry.Inches{X: g.PositionInches[0], Y: g.PositionInches[1]}
	}
	if g.SizeInches != nil {
		if len(g.SizeInches) != 2 {
			return f, fmt.Errorf("size_inches needs 2 values, got %d", len(g.SizeInches))
		}
		f.Size = &geometry.Inches{X: g.SizeInches[0], Y: g.SizeInches[1]}
	}
	if g.Box != nil {
		if len(g.Box) != 4 {
			return f, fmt.Errorf("box needs 4 values, got %d", len(g.Box))
		}
		f.Box = &geometry.Box{X1: g.Box[0], Y1: g.Box[1], X2: g.Box[2], Y2: g.Box[3]}
	}
	return f, nil
}

// Resolve flattens the layout into "section.field" entries in document order,
// deriving pixel boxes from physical geometry at the given dpi.
func (l *Layout) Resolve(dpi float64) []ResolvedField {
	var out []ResolvedField
	for _, s := range l.Sections {
		for _, nf := range s.Fields {
			out = append(out, resolve(s.Name+"."+nf.Name, nf.Field, dpi))
		}
	}
	return out
}

func resolve(name string, f Field, dpi float64) ResolvedField {
	rf := ResolvedField{Name: name}
	g, ok := f.(GeometricField)
	if !ok {
		return rf
	}

	rf.Color = g.Color
	rf.LineWidth = g.LineWidth
	rf.HasPosition = g.Position != nil
	rf.HasSize = g.Size != nil
	rf.HasBox = g.Box != nil

	switch {
	case g.Position != nil && g.Size != nil:
		box := geometry.ToPixelBox(*g.Position, *g.Size, dpi)
		rf.Box = &box
	case g.Box != nil:
		box := *g.Box
		rf.Box = &box
	}
	return rf
}

// LogFields reports, per field, which pieces of geometry were configured.
func LogFields(log *logger.Logger, fields []ResolvedField) {
	if log == nil {
		log = logger.Get()
	}
	for _, f := range fields {
		log.Infow("layout field",
			"field", f.Name,
			"pos", f.HasPosition,
			"size", f.HasSize,
			"box", f.Box != nil,
		)
	}
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}
