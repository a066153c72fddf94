package bundle

import (
	"fmt"
	"strings"
)

// MalformedError means the bundle cannot be ingested at all: the table is
// unreadable or lacks required columns. Nothing has been written when it is
// returned.
type MalformedError struct {
	Source  string
	Missing []string
	Err     error
}

func (e *MalformedError) Error() string {
	switch {
	case len(e.Missing) > 0:
		return fmt.Sprintf("malformed bundle %s: missing columns %s", e.Source, strings.Join(e.Missing, ", "))
	case e.Err != nil:
		return fmt.Sprintf("malformed bundle %s: %v", e.Source, e.Err)
	default:
		return fmt.Sprintf("malformed bundle %s", e.Source)
	}
}

func (e *MalformedError) Unwrap() error { return e.Err }
