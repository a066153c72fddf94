package navigation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jask/olympiadbot/internal/database/repository"
)

// Display is what a front end renders after a command: text, an optional
// picture filename relative to the asset directory, and the actions that
// are valid next, in order.
type Display struct {
	State    State
	Text     string
	ImageRef string
	Actions  []string
}

func numbers(values []int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Itoa(v)
	}
	return out
}

func withNotice(notice, text string) string {
	if notice == "" {
		return text
	}
	return notice + "\n\n" + text
}

func yearPrompt(years []int, notice string) Display {
	if len(years) == 0 {
		return Display{
			State:   StateChoosingYear,
			Text:    withNotice(notice, "No content yet. Ask an operator to load a bundle."),
			Actions: []string{ActionCancel},
		}
	}
	return Display{
		State:   StateChoosingYear,
		Text:    withNotice(notice, "Choose a year:"),
		Actions: append(numbers(years), ActionCancel),
	}
}

func exercisePrompt(year int, exercises []int, notice string) Display {
	return Display{
		State:   StateChoosingExercise,
		Text:    withNotice(notice, fmt.Sprintf("Year %d. Choose an exercise:", year)),
		Actions: append(numbers(exercises), ActionBack, ActionCancel),
	}
}

func header(t repository.Task) string {
	return fmt.Sprintf("%d, exercise %d\nTopics: %s", t.Year, t.Exercise, strings.Join(t.Topics, ", "))
}

func body(label, text, image string) string {
	switch {
	case text != "":
		return label + ":\n" + text
	case image != "":
		return label + ": see picture"
	default:
		return label + ": (empty)"
	}
}

func taskView(t repository.Task, notice string) Display {
	return Display{
		State:    StateViewingTask,
		Text:     withNotice(notice, header(t)+"\n\n"+body("Task", t.TaskText, t.TaskImage)),
		ImageRef: t.TaskImage,
		Actions:  []string{ActionHint, ActionAnswer, ActionRelated, ActionNext, ActionBack, ActionCancel},
	}
}

func hintView(t repository.Task, notice string) Display {
	return Display{
		State:    StateViewingHint,
		Text:     withNotice(notice, header(t)+"\n\n"+body("Hint", t.HintText, t.HintImage)),
		ImageRef: t.HintImage,
		Actions:  []string{ActionAnswer, ActionRelated, ActionNext, ActionBack, ActionCancel},
	}
}

func answerView(t repository.Task, notice string) Display {
	return Display{
		State:    StateViewingAnswer,
		Text:     withNotice(notice, header(t)+"\n\n"+body("Answer", t.AnswerText, t.AnswerImage)),
		ImageRef: t.AnswerImage,
		Actions:  []string{ActionRelated, ActionNext, ActionBack, ActionCancel},
	}
}

func relatedView(t repository.Task, related []int, notice string) Display {
	text := fmt.Sprintf("Exercises of %d sharing a topic with exercise %d (%s):",
		t.Year, t.Exercise, strings.Join(t.Topics, ", "))
	return Display{
		State:   StateBrowsingRelated,
		Text:    withNotice(notice, text),
		Actions: append(numbers(related), ActionBack, ActionCancel),
	}
}

func endedView() Display {
	return Display{Text: "Session ended. Send /start to begin again."}
}
