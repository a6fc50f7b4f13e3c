package deck

import (
	"fmt"

	"github.com/rotisserie/eris"
)

var (
	// ErrInvalidResponse reports model output that could not be parsed as JSON.
	ErrInvalidResponse = eris.New("invalid JSON response")
	// ErrEmptyResponse reports an empty or whitespace-only completion from the assembly step.
	ErrEmptyResponse = eris.New("empty response from model")
)

// StructureError names the slide and field that broke the slide schema.
// Index is -1 when the top-level value itself is wrong.
type StructureError struct {
	Index  int
	Field  string
	Reason string
}

func (e *StructureError) Error() string {
	if e.Index < 0 {
		return "presentation structure: " + e.Reason
	}
	return fmt.Sprintf("slide %d: %s", e.Index, e.Reason)
}
