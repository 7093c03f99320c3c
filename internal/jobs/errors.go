package jobs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/buemura/scanhub/pkg/types"
)

// ErrClosed is returned by Submit once the manager has been closed.
var ErrClosed = errors.New("job manager is closed")

// ValidationError is returned synchronously by Submit when the request is
// malformed. No job is created when it is returned.
type ValidationError struct {
	Fields []types.FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "invalid scan request: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, types.FieldError{Field: field, Message: msg})
}

// FieldErrors returns the rejected fields.
func (e *ValidationError) FieldErrors() []types.FieldError { return e.Fields }
