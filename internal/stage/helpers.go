package stage

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"tractus/internal/services"
)

// RequirePaths verifies the named inputs exist on disk. On failure it returns
// a services.ErrValidation suitable for stage Execute methods, naming every
// missing input.
func RequirePaths(stageName string, inputs map[string]string) error {
	var missing []string
	for name, path := range inputs {
		if strings.TrimSpace(path) == "" {
			missing = append(missing, name+" not set")
			continue
		}
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, fmt.Sprintf("%s (%s)", name, path))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return services.Wrap(
		services.ErrValidation, stageName, "inputs",
		"missing required inputs: "+strings.Join(missing, ", "), nil)
}
