package transit

import (
	"fmt"
	"strings"
)

// FormatTime converts an upstream HHmm time value ("1432", "0932", "932")
// into the canonical HHhMM display form ("14h32", "09h32").
func FormatTime(value string) (string, error) {
	value = strings.TrimSpace(value)

	if len(value) < 3 || len(value) > 4 {
		return "", fmt.Errorf("unexpected time value %q", value)
	}

	if len(value) == 3 {
		value = "0" + value
	}

	for _, c := range value {
		if c < '0' || c > '9' {
			return "", fmt.Errorf("unexpected time value %q", value)
		}
	}

	return value[0:2] + "h" + value[2:4], nil
}
