package pricing

import (
	"fmt"
	"strings"
)

// OrderLevel is the Issue index used for problems not tied to one item.
const OrderLevel = -1

// Issue describes one validation problem. Index is the offending item
// position, or OrderLevel.
type Issue struct {
	Index   int    `json:"index"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Index == OrderLevel {
		return i.Message
	}
	return fmt.Sprintf("item %d: %s", i.Index, i.Message)
}

// ValidationError collects every invalid item of an order request.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.String()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends an issue.
func (e *ValidationError) Add(index int, field, format string, args ...any) {
	e.Issues = append(e.Issues, Issue{Index: index, Field: field, Message: fmt.Sprintf(format, args...)})
}

// Err returns e when it holds at least one issue, nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Issues) == 0 {
		return nil
	}
	return e
}
