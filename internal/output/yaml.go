package output

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/burrowvm/burrow/internal/vm"
)

// YAMLFormatter formats instances as YAML.
type YAMLFormatter struct{}

// FormatInstances formats a list of instances as a YAML document.
func (f *YAMLFormatter) FormatInstances(instances []vm.Instance) (string, error) {
	if len(instances) == 0 {
		return "", nil
	}

	data, err := yaml.Marshal(instances)
	if err != nil {
		return "", fmt.Errorf("failed to marshal instances to YAML: %w", err)
	}

	return string(data), nil
}
