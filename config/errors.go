package config

import "fmt"

// Error represents an invalid configuration value.
type Error struct {
	Field   string // flag name
	Value   any    // the invalid value (nil if missing)
	Message string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	return msg + ": " + e.Message
}
