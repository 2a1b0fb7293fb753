// Package batch runs many compose jobs from a YAML manifest.
package batch

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/local/pdfnotes/internal/compose"
	"github.com/local/pdfnotes/internal/layout"
)

// Manifest lists the jobs of one batch run.
type Manifest struct {
	Jobs []Job `yaml:"jobs"`
}

// Job is one compose operation. Pairing and Order apply to twoup jobs only.
type Job struct {
	Name    string `yaml:"name"`
	Mode    string `yaml:"mode"`
	Main    string `yaml:"main"`
	Insert  string `yaml:"insert"`
	Output  string `yaml:"output"`
	Pairing string `yaml:"pairing,omitempty"`
	Order   string `yaml:"order,omitempty"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates manifest YAML. Unknown keys are errors.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks every job and reports all problems at once.
func (m *Manifest) Validate() error {
	if len(m.Jobs) == 0 {
		return errors.New("manifest has no jobs")
	}
	var errs []error
	names := make(map[string]bool, len(m.Jobs))
	outputs := make(map[string]string, len(m.Jobs))
	for i, j := range m.Jobs {
		id := j.Name
		if id == "" {
			id = fmt.Sprintf("#%d", i+1)
			errs = append(errs, fmt.Errorf("job %s: name is required", id))
		} else if names[j.Name] {
			errs = append(errs, fmt.Errorf("job %s: duplicate name", id))
		}
		names[j.Name] = true

		switch j.Mode {
		case compose.ModeInterleave, compose.ModeTwoUp, compose.ModeMergeThenTwoUp:
		default:
			errs = append(errs, fmt.Errorf("job %s: unknown mode %q", id, j.Mode))
		}
		if j.Main == "" {
			errs = append(errs, fmt.Errorf("job %s: main is required", id))
		}
		if j.Insert == "" {
			errs = append(errs, fmt.Errorf("job %s: insert is required", id))
		}
		if j.Output == "" {
			errs = append(errs, fmt.Errorf("job %s: output is required", id))
		} else if prev, ok := outputs[j.Output]; ok {
			errs = append(errs, fmt.Errorf("job %s: output %s already written by job %s", id, j.Output, prev))
		} else {
			outputs[j.Output] = id
		}
		if j.Mode != compose.ModeTwoUp && (j.Pairing != "" || j.Order != "") {
			errs = append(errs, fmt.Errorf("job %s: pairing and order apply to twoup jobs only", id))
		}
		if _, err := layout.ParsePairing(j.Pairing); err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", id, err))
		}
		if _, err := layout.ParseOrder(j.Order); err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
