// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// ValidationError reports a raw record that cannot become a valid Paper.
// Field names the offending canonical field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid paper: %s %s", e.Field, e.Reason)
}
