package ensemble

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	apperrors "go-eye-inspector/internal/errors"
)

const metadataSchemaURL = "schema://model-metadata.json"

const metadataSchema = `{
  "type": "object",
  "properties": {
    "classes": {"type": "array", "items": {"type": "string", "minLength": 1}, "minItems": 1},
    "img_size": {"type": "integer", "minimum": 8},
    "input_name": {"type": "string"},
    "output_name": {"type": "string"},
    "mean": {"type": "array", "items": {"type": "number"}, "minItems": 3, "maxItems": 3},
    "std": {"type": "array", "items": {"type": "number", "exclusiveMinimum": 0}, "minItems": 3, "maxItems": 3}
  }
}`

var schemaCache sync.Map // map[string]*jsonschema.Schema

// Metadata is the optional sidecar document stored next to a model.
type Metadata struct {
	Classes    []string  `json:"classes"`
	ImgSize    int       `json:"img_size"`
	InputName  string    `json:"input_name"`
	OutputName string    `json:"output_name"`
	Mean       []float64 `json:"mean"`
	Std        []float64 `json:"std"`
}

// MetadataLocation returns where the sidecar for a model location lives:
// the location with its extension replaced by .json.
func MetadataLocation(location string) string {
	ext := filepath.Ext(location)
	if ext == "" || strings.Contains(ext, "/") {
		return location + ".json"
	}
	return strings.TrimSuffix(location, ext) + ".json"
}

// LoadMetadata resolves and validates the sidecar of a model. A missing
// sidecar yields (nil, nil).
func LoadMetadata(ctx context.Context, resolver ArtifactResolver, location string) (*Metadata, error) {
	if resolver == nil {
		return nil, nil
	}
	path, err := resolver.Resolve(ctx, MetadataLocation(location))
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata %s: %w", path, err)
	}
	return ParseMetadata(raw)
}

// ParseMetadata validates raw sidecar JSON against the metadata schema.
func ParseMetadata(raw []byte) (*Metadata, error) {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("invalid metadata JSON: %w", err)
	}
	compiled, err := compiledMetadataSchema()
	if err != nil {
		return nil, err
	}
	if err := compiled.Validate(parsed); err != nil {
		return nil, fmt.Errorf("metadata schema validation failed: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &meta, nil
}

// Apply fills the spec fields the configuration left empty.
func (m *Metadata) Apply(spec *ModelSpec) {
	if m == nil {
		return
	}
	if len(spec.Classes) == 0 {
		spec.Classes = append([]string(nil), m.Classes...)
	}
	// sidecar img_size wins over the configured size
	if m.ImgSize > 0 {
		spec.InputSize = m.ImgSize
	}
	if spec.InputName == "" {
		spec.InputName = m.InputName
	}
	if spec.OutputName == "" {
		spec.OutputName = m.OutputName
	}
	if len(m.Mean) == 3 && spec.Mean == DefaultMean {
		spec.Mean = toFloat32x3(m.Mean, DefaultMean)
	}
	if len(m.Std) == 3 && spec.Std == DefaultStd {
		spec.Std = toFloat32x3(m.Std, DefaultStd)
	}
}

func compiledMetadataSchema() (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(metadataSchemaURL); ok {
		return cached.(*jsonschema.Schema), nil
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(metadataSchema))
	if err != nil {
		return nil, fmt.Errorf("parse metadata schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(metadataSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	compiled, err := c.Compile(metadataSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile metadata schema: %w", err)
	}
	schemaCache.Store(metadataSchemaURL, compiled)
	return compiled, nil
}
