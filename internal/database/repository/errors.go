package repository

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports task content that cannot be stored.
type ValidationError struct {
	YearID   int64
	Exercise int
	Missing  []string // parts lacking both text and image
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("task year_id=%d exercise=%d: no text or image for %s", e.YearID, e.Exercise, strings.Join(e.Missing, ", "))
}

// Validate checks that task, hint and answer each carry text or an image.
func (f TaskFields) Validate() []string {
	var missing []string
	if f.TaskText == "" && f.TaskImage == "" {
		missing = append(missing, "task")
	}
	if f.HintText == "" && f.HintImage == "" {
		missing = append(missing, "hint")
	}
	if f.AnswerText == "" && f.AnswerImage == "" {
		missing = append(missing, "answer")
	}
	return missing
}
