package output

import (
	"encoding/json"
	"fmt"

	"github.com/burrowvm/burrow/internal/vm"
)

// JSONFormatter formats instances as JSON.
type JSONFormatter struct{}

// FormatInstances formats a list of instances as a JSON array.
func (f *JSONFormatter) FormatInstances(instances []vm.Instance) (string, error) {
	if len(instances) == 0 {
		return "[]\n", nil
	}

	data, err := json.MarshalIndent(instances, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal instances to JSON: %w", err)
	}

	return string(data) + "\n", nil
}
