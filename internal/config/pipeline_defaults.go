package config

import (
	_ "embed"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed pipeline_defaults.yaml
var pipelineDefaultsYAML []byte

// SaintForm is one "St." -> "Saint" style abbreviation expansion.
type SaintForm struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// PipelineDefaults is the operator-tunable title/suffix data the Stage 1
// acquirer and Stage 2 validator are built from.
type PipelineDefaults struct {
	TargetTitles          []string    `yaml:"target_titles"`
	NegativeTitleKeywords []string    `yaml:"negative_title_keywords"`
	LegalSuffixes         []string    `yaml:"legal_suffixes"`
	SaintForms            []SaintForm `yaml:"saint_forms"`
}

// LoadPipelineDefaults parses the embedded defaults file. An operator
// wanting a different title list passes its own path to
// LoadPipelineDefaultsFile rather than rebuilding the binary.
func LoadPipelineDefaults() (*PipelineDefaults, error) {
	var d PipelineDefaults
	if err := yaml.Unmarshal(pipelineDefaultsYAML, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// LoadPipelineDefaultsFile parses an operator-supplied override file in the
// same shape as the embedded defaults.
func LoadPipelineDefaultsFile(path string) (*PipelineDefaults, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d PipelineDefaults
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
