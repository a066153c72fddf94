package navigation

import (
	"strings"

	"github.com/jask/olympiadbot/internal/database/repository"
)

// State is the closed set of positions a caller can be in.
type State string

const (
	StateChoosingYear     State = "choosing_year"
	StateChoosingExercise State = "choosing_exercise"
	StateViewingTask      State = "viewing_task"
	StateViewingHint      State = "viewing_hint"
	StateViewingAnswer    State = "viewing_answer"
	StateBrowsingRelated  State = "browsing_related"
)

// holdsTask reports whether sessions in s carry a current task that must
// still exist before any command is applied.
func (s State) holdsTask() bool {
	switch s {
	case StateViewingTask, StateViewingHint, StateViewingAnswer, StateBrowsingRelated:
		return true
	default:
		return false
	}
}

// Session is one caller's navigation position. It is stored by value and
// never mutated in place: transitions build a new Session.
type Session struct {
	State State
	Year  int

	// Exercises is the year's exercise list shown in StateChoosingExercise.
	Exercises []int

	// Task is the snapshot taken when the task was opened.
	Task repository.Task

	// Related lists the exercises offered in StateBrowsingRelated and
	// Return is the state browsing was started from.
	Related []int
	Return  State
}

// Kind names a navigation command.
type Kind string

const (
	KindStart   Kind = "start"
	KindSelect  Kind = "select"
	KindHint    Kind = "hint"
	KindAnswer  Kind = "answer"
	KindRelated Kind = "related"
	KindNext    Kind = "next"
	KindBack    Kind = "back"
	KindCancel  Kind = "cancel"
)

// Action labels offered to callers. They parse back into their command.
const (
	ActionHint    = "Hint"
	ActionAnswer  = "Answer"
	ActionRelated = "Related"
	ActionNext    = "Next"
	ActionBack    = "Back"
	ActionCancel  = "Cancel"
)

type Command struct {
	Kind  Kind
	Value string
}

var keywords = map[string]Kind{
	"start":   KindStart,
	"hint":    KindHint,
	"answer":  KindAnswer,
	"related": KindRelated,
	"similar": KindRelated,
	"next":    KindNext,
	"back":    KindBack,
	"cancel":  KindCancel,
	"stop":    KindCancel,
}

// ParseCommand maps raw caller input to a command. Slash commands, bare
// keywords and action labels are matched case-insensitively; anything else
// is a selection carrying the trimmed input.
func ParseCommand(raw string) Command {
	text := strings.TrimSpace(raw)
	word := strings.ToLower(strings.TrimPrefix(text, "/"))
	if kind, ok := keywords[word]; ok {
		return Command{Kind: kind}
	}
	return Command{Kind: KindSelect, Value: text}
}
