package scoring

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// LoadWeightsFile reads a weight table from a YAML file. Missing file is not
// an error: callers get the defaults so a bare checkout still scores.
func LoadWeightsFile(path string) (Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultWeights(), nil
		}
		return Weights{}, fmt.Errorf("failed to read weights file: %w", err)
	}

	w := DefaultWeights()
	if err := yaml.Unmarshal(data, &w); err != nil {
		return Weights{}, fmt.Errorf("failed to parse weights file: %w", err)
	}
	if err := w.Validate(); err != nil {
		return Weights{}, fmt.Errorf("weights file %s: %w", path, err)
	}
	return w, nil
}
