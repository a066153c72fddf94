package testdata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/jask/olympiadbot/internal/database/repository"
)

// Header is the column layout of a well-formed content bundle.
var Header = []string{"Year", "Excercise", "Topic", "Task", "Hint", "Answer", "Task_picture", "Hint_picture", "Answer_picture"}

// Row is one spreadsheet line in Header order.
type Row struct {
	Year, Exercise, Topic    string
	Task, Hint, Answer       string
	TaskPic, HintPic, AnsPic string
}

func (r Row) cells() []string {
	return []string{r.Year, r.Exercise, r.Topic, r.Task, r.Hint, r.Answer, r.TaskPic, r.HintPic, r.AnsPic}
}

// SampleRows is a small two-year bundle with overlapping topics.
func SampleRows() []Row {
	return []Row{
		{Year: "2021", Exercise: "1", Topic: "Algebra", Task: "Solve x+1=2", Hint: "Subtract 1", Answer: "x=1"},
		{Year: "2021", Exercise: "2", Topic: "Geometry, Algebra", Task: "Area of a unit square", Hint: "Side squared", Answer: "1", AnsPic: "sq.png"},
		{Year: "2021", Exercise: "3", Topic: "Combinatorics", Task: "How many subsets has a 3-set?", Hint: "Each element in or out", Answer: "8"},
		{Year: "2022", Exercise: "1", Topic: "Geometry", TaskPic: "tri.png", Hint: "Pythagoras", Answer: "5"},
	}
}

// WriteWorkbook writes header and rows to a new xlsx file at path.
func WriteWorkbook(path string, header []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := writeRow(f, sheet, 1, header); err != nil {
		return err
	}
	for i, row := range rows {
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return f.SaveAs(path)
}

// WriteRows writes a bundle workbook in the standard Header layout.
func WriteRows(path string, rows []Row) error {
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = r.cells()
	}
	return WriteWorkbook(path, Header, cells)
}

func writeRow(f *excelize.File, sheet string, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &row); err != nil {
		return fmt.Errorf("write row %d: %w", n, err)
	}
	return nil
}

// Seed loads SampleRows straight into the store, bypassing the spreadsheet.
func Seed(ctx context.Context, content *repository.Content) error {
	type task struct {
		year, exercise int
		topics         []string
		fields         repository.TaskFields
	}
	tasks := []task{
		{2021, 1, []string{"Algebra"}, repository.TaskFields{TaskText: "Solve x+1=2", HintText: "Subtract 1", AnswerText: "x=1"}},
		{2021, 2, []string{"Geometry", "Algebra"}, repository.TaskFields{TaskText: "Area of a unit square", HintText: "Side squared", AnswerText: "1", AnswerImage: "sq.png"}},
		{2021, 3, []string{"Combinatorics"}, repository.TaskFields{TaskText: "How many subsets has a 3-set?", HintText: "Each element in or out", AnswerText: "8"}},
		{2022, 1, []string{"Geometry"}, repository.TaskFields{TaskImage: "tri.png", HintText: "Pythagoras", AnswerText: "5"}},
	}
	for _, tk := range tasks {
		yearID, err := content.UpsertYear(ctx, tk.year)
		if err != nil {
			return err
		}
		var topicIDs []int64
		for _, name := range tk.topics {
			id, err := content.UpsertTopic(ctx, name)
			if err != nil {
				return err
			}
			topicIDs = append(topicIDs, id)
		}
		if _, err := content.UpsertTask(ctx, yearID, tk.exercise, tk.fields, topicIDs); err != nil {
			return err
		}
	}
	return nil
}
