package reward

import "fmt"

// InvalidInputError indicates a malformed execution record. It is returned
// before any state is touched, so a rejected input is never partially
// applied.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}
