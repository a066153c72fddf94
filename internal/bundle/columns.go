package bundle

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Column names as they appear in the content spreadsheet. The exercise
// header has always been spelled "Excercise" in the bundles we receive.
const (
	ColYear          = "Year"
	ColExercise      = "Excercise"
	ColTopic         = "Topic"
	ColTask          = "Task"
	ColHint          = "Hint"
	ColAnswer        = "Answer"
	ColTaskPicture   = "Task_picture"
	ColHintPicture   = "Hint_picture"
	ColAnswerPicture = "Answer_picture"
)

var requiredColumns = []string{ColYear, ColExercise, ColTopic, ColTask, ColHint, ColAnswer}

var columnAliases = map[string][]string{
	ColExercise: {"Exercise"},
}

const maxHeaderDistance = 2

// Columns maps each known field to its index in the header row. Optional
// picture columns are -1 when absent.
type Columns struct {
	Year          int
	Exercise      int
	Topic         int
	Task          int
	Hint          int
	Answer        int
	TaskPicture   int
	HintPicture   int
	AnswerPicture int
}

// ResolveColumns locates every required and optional column in headers.
// Exact (normalized) matches win over fuzzy ones.
func ResolveColumns(source string, headers []string) (Columns, error) {
	norm := make([]string, len(headers))
	for i, h := range headers {
		norm[i] = normalizeHeader(h)
	}
	used := make(map[int]bool, len(headers))

	find := func(name string) int {
		candidates := append([]string{name}, columnAliases[name]...)
		for _, c := range candidates {
			want := normalizeHeader(c)
			for i, h := range norm {
				if !used[i] && h == want {
					used[i] = true
					return i
				}
			}
		}
		best, bestDist := -1, maxHeaderDistance+1
		for _, c := range candidates {
			want := normalizeHeader(c)
			if len(want) <= 4 {
				continue
			}
			for i, h := range norm {
				if used[i] || h == "" {
					continue
				}
				if d := levenshtein.ComputeDistance(h, want); d < bestDist {
					best, bestDist = i, d
				}
			}
		}
		if best >= 0 {
			used[best] = true
		}
		return best
	}

	// pictures first so "Task_picture" never fuzzily claims a plain column
	cols := Columns{
		TaskPicture:   find(ColTaskPicture),
		HintPicture:   find(ColHintPicture),
		AnswerPicture: find(ColAnswerPicture),
	}
	cols.Year = find(ColYear)
	cols.Exercise = find(ColExercise)
	cols.Topic = find(ColTopic)
	cols.Task = find(ColTask)
	cols.Hint = find(ColHint)
	cols.Answer = find(ColAnswer)

	var missing []string
	for _, r := range []struct {
		name string
		idx  int
	}{
		{ColYear, cols.Year},
		{ColExercise, cols.Exercise},
		{ColTopic, cols.Topic},
		{ColTask, cols.Task},
		{ColHint, cols.Hint},
		{ColAnswer, cols.Answer},
	} {
		if r.idx < 0 {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return Columns{}, &MalformedError{Source: source, Missing: missing}
	}
	return cols, nil
}

// Cell returns the trimmed value at idx, or "" when idx is absent.
func Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, "_", " ")
	return strings.Join(strings.Fields(h), " ")
}
