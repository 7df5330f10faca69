package onnx

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/seu-repo/voz-visible/internal/domain"
)

// Descriptor describes an exported sign classifier: where the graph lives,
// the tensor names, the vocabulary in output order and the standard scaler
// fitted during training.
type Descriptor struct {
	ModelPath   string   `yaml:"model_path"`
	InputName   string   `yaml:"input_name"`
	OutputName  string   `yaml:"output_name"`
	NumFeatures int      `yaml:"num_features"`
	Classes     []string `yaml:"classes"`
	Scaler      *Scaler  `yaml:"scaler,omitempty"`
}

// Scaler applies (x - mean) / scale per feature.
type Scaler struct {
	Mean  []float32 `yaml:"mean"`
	Scale []float32 `yaml:"scale"`
}

// LoadDescriptor reads a YAML descriptor. A relative model_path is resolved
// against the descriptor's directory.
func LoadDescriptor(path string) (*Descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model descriptor: %w", err)
	}

	var d Descriptor
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("failed to parse model descriptor: %w", err)
	}

	if d.InputName == "" {
		d.InputName = "input"
	}
	if d.OutputName == "" {
		d.OutputName = "output"
	}
	if d.NumFeatures == 0 {
		d.NumFeatures = domain.FeatureCount
	}
	if d.ModelPath != "" && !filepath.IsAbs(d.ModelPath) {
		d.ModelPath = filepath.Join(filepath.Dir(path), d.ModelPath)
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks the descriptor against the feature layout.
func (d *Descriptor) Validate() error {
	if d.ModelPath == "" {
		return fmt.Errorf("model descriptor: model_path is required")
	}
	if len(d.Classes) == 0 {
		return fmt.Errorf("model descriptor: classes must not be empty")
	}
	if d.NumFeatures != domain.FeatureCount {
		return fmt.Errorf("model descriptor: expected %d features, got %d", domain.FeatureCount, d.NumFeatures)
	}
	if d.Scaler != nil {
		if len(d.Scaler.Mean) != d.NumFeatures || len(d.Scaler.Scale) != d.NumFeatures {
			return fmt.Errorf("model descriptor: scaler needs %d mean and scale values, got %d and %d",
				d.NumFeatures, len(d.Scaler.Mean), len(d.Scaler.Scale))
		}
	}
	return nil
}

// Normalize writes the scaled vector into dst. Zero scale entries leave the
// centered value unscaled.
func (d *Descriptor) Normalize(dst []float32, vec *domain.FeatureVector) {
	copy(dst, vec[:])
	if d.Scaler == nil {
		return
	}
	for i := range dst {
		dst[i] -= d.Scaler.Mean[i]
		if s := d.Scaler.Scale[i]; s != 0 {
			dst[i] /= s
		}
	}
}
