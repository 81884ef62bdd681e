// Package display holds output helpers shared by CLI commands.
package display

import (
	"encoding/json"
)

// MarshalJSON marshals v with pretty formatting for terminal output.
func MarshalJSON(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
