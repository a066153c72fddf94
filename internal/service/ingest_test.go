package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/olympiadbot/internal/bundle"
	"github.com/jask/olympiadbot/internal/database/dbtest"
	"github.com/jask/olympiadbot/internal/database/repository"
	"github.com/jask/olympiadbot/internal/testdata"
)

func setupIngest(t *testing.T) (*IngestService, *repository.Content, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	db := dbtest.Open(t)
	svc := &IngestService{DB: db, AssetsDir: filepath.Join(t.TempDir(), "images")}
	return svc, repository.NewContent(db), ctx
}

func table(rows ...testdata.Row) bundle.Bundle {
	tbl := bundle.Table{Source: "test", Headers: testdata.Header}
	for _, r := range rows {
		tbl.Rows = append(tbl.Rows, []string{r.Year, r.Exercise, r.Topic, r.Task, r.Hint, r.Answer, r.TaskPic, r.HintPic, r.AnsPic})
	}
	return bundle.Bundle{Table: tbl}
}

func taskCount(t *testing.T, ctx context.Context, c *repository.Content) int {
	t.Helper()
	n, err := c.Tasks.Count(ctx)
	require.NoError(t, err)
	return n
}

func TestIngestBundleDirectory(t *testing.T) {
	t.Parallel()
	svc, content, ctx := setupIngest(t)

	dir := t.TempDir()
	require.NoError(t, testdata.WriteRows(filepath.Join(dir, "olympiad.xlsx"), testdata.SampleRows()))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "images"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "images", "sq.png"), []byte("png"), 0o600))

	res, err := svc.IngestPath(ctx, dir, ModeReplace)
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)
	require.Equal(t, 4, res.Inserted)
	require.Zero(t, res.Skipped)
	require.Equal(t, []int{2021, 2022}, res.Years)
	require.Equal(t, []string{"Algebra", "Geometry", "Combinatorics"}, res.Topics)
	require.Equal(t, []string{"tri.png"}, res.MissingAssets)

	task, err := content.GetTask(ctx, 2022, 1)
	require.NoError(t, err)
	require.Equal(t, "tri.png", task.TaskImage, "missing pictures are still referenced")

	task, err = content.GetTask(ctx, 2021, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"Algebra", "Geometry"}, task.Topics)

	_, err = os.Stat(filepath.Join(svc.AssetsDir, "sq.png"))
	require.NoError(t, err, "bundle pictures are copied into the asset dir")
}

func TestAppendTwiceKeepsLatest(t *testing.T) {
	t.Parallel()
	svc, content, ctx := setupIngest(t)

	_, err := svc.Ingest(ctx, table(testdata.Row{Year: "2021", Exercise: "1", Topic: "A", Task: "first", Hint: "h1", Answer: "a1"}), ModeAppend)
	require.NoError(t, err)
	res, err := svc.Ingest(ctx, table(testdata.Row{Year: "2021", Exercise: "1", Topic: "B", Task: "second", Hint: "h2", Answer: "a2"}), ModeAppend)
	require.NoError(t, err)
	require.Equal(t, 1, res.Inserted)

	require.Equal(t, 1, taskCount(t, ctx, content))
	task, err := content.GetTask(ctx, 2021, 1)
	require.NoError(t, err)
	require.Equal(t, "second", task.TaskText)
	require.Equal(t, "a2", task.AnswerText)
	require.Equal(t, []string{"B"}, task.Topics)
}

func TestRepeatedExerciseInOneBundleCountsOnce(t *testing.T) {
	t.Parallel()
	svc, content, ctx := setupIngest(t)

	res, err := svc.Ingest(ctx, table(
		testdata.Row{Year: "2021", Exercise: "1", Topic: "A", Task: "first", Hint: "h", Answer: "a"},
		testdata.Row{Year: "2021", Exercise: "2", Topic: "A", Task: "other", Hint: "h", Answer: "a"},
		testdata.Row{Year: "2021", Exercise: "1", Topic: "B", Task: "second", Hint: "h", Answer: "a"},
	), ModeReplace)
	require.NoError(t, err)
	require.Equal(t, 2, res.Inserted)
	require.Equal(t, 2, taskCount(t, ctx, content))

	task, err := content.GetTask(ctx, 2021, 1)
	require.NoError(t, err)
	require.Equal(t, "second", task.TaskText)
}

func TestPictureCopyFailureIsAWarning(t *testing.T) {
	t.Parallel()
	svc, content, ctx := setupIngest(t)
	require.NoError(t, os.WriteFile(svc.AssetsDir, []byte("not a dir"), 0o600))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sq.png"), []byte("png"), 0o600))
	b := table(testdata.Row{Year: "2021", Exercise: "1", Topic: "A", Task: "t", Hint: "h", Answer: "a", AnsPic: "sq.png"})
	b.Assets = bundle.Assets{Dir: dir}

	res, err := svc.Ingest(ctx, b, ModeAppend)
	require.NoError(t, err)
	require.Equal(t, 1, res.Inserted)
	require.Zero(t, res.Skipped)
	require.Len(t, res.Warnings, 1)
	require.Contains(t, res.Warnings[0].Error(), "create asset dir")
	require.Equal(t, 1, taskCount(t, ctx, content))
}

func TestAppendKeepsUnrelatedContent(t *testing.T) {
	t.Parallel()
	svc, content, ctx := setupIngest(t)

	_, err := svc.Ingest(ctx, table(testdata.SampleRows()...), ModeReplace)
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, table(testdata.Row{Year: "2023", Exercise: "1", Topic: "Algebra", Task: "t", Hint: "h", Answer: "a"}), ModeAppend)
	require.NoError(t, err)

	require.Equal(t, 5, taskCount(t, ctx, content))
	years, err := content.ListYears(ctx)
	require.NoError(t, err)
	require.Equal(t, []int{2021, 2022, 2023}, years)
}

func TestReplaceWithEmptyBundleClears(t *testing.T) {
	t.Parallel()
	svc, content, ctx := setupIngest(t)

	_, err := svc.Ingest(ctx, table(testdata.SampleRows()...), ModeReplace)
	require.NoError(t, err)
	require.Equal(t, 4, taskCount(t, ctx, content))

	res, err := svc.Ingest(ctx, table(), ModeReplace)
	require.NoError(t, err)
	require.Zero(t, res.Inserted)

	stats, err := content.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, repository.Stats{}, stats)
}

func TestInvalidRowIsSkipped(t *testing.T) {
	t.Parallel()
	svc, content, ctx := setupIngest(t)

	res, err := svc.Ingest(ctx, table(
		testdata.Row{Year: "abc", Exercise: "1", Topic: "A", Task: "t", Hint: "h", Answer: "a"},
		testdata.Row{Year: "2021", Exercise: "2", Topic: "A", Task: "t", Hint: "h", Answer: "a"},
		testdata.Row{Year: "2021", Exercise: "3", Topic: " , ", Task: "t", Hint: "h", Answer: "a"},
		testdata.Row{Year: "2021", Exercise: "4", Topic: "A", Task: "t", Hint: "h", Answer: "NaN"},
	), ModeReplace)
	require.NoError(t, err)
	require.Equal(t, 1, res.Inserted)
	require.Equal(t, 3, res.Skipped)
	require.Len(t, res.Warnings, 3)

	var rerr *RowError
	require.True(t, errors.As(res.Warnings[0], &rerr))
	require.Equal(t, 2, rerr.Row)
	require.True(t, errors.As(res.Warnings[2], &rerr))
	require.Equal(t, 5, rerr.Row)
	require.Contains(t, rerr.Reason, "answer")

	exercises, err := content.ListExercises(ctx, 2021)
	require.NoError(t, err)
	require.Equal(t, []int{2}, exercises)
}

func TestRowNormalization(t *testing.T) {
	t.Parallel()
	svc, content, ctx := setupIngest(t)

	b := table(
		testdata.Row{},
		testdata.Row{Year: "2021.0", Exercise: " 3 ", Topic: "Graphs, ,Trees,Graphs", Task: " walk ", Hint: "None", HintPic: "pics/h.png", Answer: "null", AnsPic: "a.png"},
		testdata.Row{Year: "2021.5", Exercise: "1", Topic: "A", Task: "t", Hint: "h", Answer: "a"},
	)
	res, err := svc.Ingest(ctx, b, ModeAppend)
	require.NoError(t, err)
	require.Equal(t, 1, res.Inserted)
	require.Equal(t, 1, res.Skipped, "blank rows are not counted")
	require.Equal(t, []string{"Graphs", "Trees"}, res.Topics)
	require.Equal(t, []string{"h.png", "a.png"}, res.MissingAssets)

	task, err := content.GetTask(ctx, 2021, 3)
	require.NoError(t, err)
	require.Equal(t, "walk", task.TaskText)
	require.Equal(t, "", task.HintText)
	require.Equal(t, "h.png", task.HintImage)
	require.Equal(t, "", task.AnswerText)
	require.Equal(t, "a.png", task.AnswerImage)
	require.Equal(t, []string{"Graphs", "Trees"}, task.Topics)
}

func TestMalformedBundleLeavesStoreUntouched(t *testing.T) {
	t.Parallel()
	svc, content, ctx := setupIngest(t)

	_, err := svc.Ingest(ctx, table(testdata.SampleRows()...), ModeReplace)
	require.NoError(t, err)

	b := bundle.Bundle{Table: bundle.Table{
		Source:  "broken.csv",
		Headers: []string{"Year", "Excercise", "Topic", "Task", "Answer"},
		Rows:    [][]string{{"2030", "1", "A", "t", "a"}},
	}}
	_, err = svc.Ingest(ctx, b, ModeReplace)
	var merr *bundle.MalformedError
	require.True(t, errors.As(err, &merr))
	require.Equal(t, []string{bundle.ColHint}, merr.Missing)

	require.Equal(t, 4, taskCount(t, ctx, content))
}

func TestStoreErrorRollsBackReplace(t *testing.T) {
	t.Parallel()
	svc, content, ctx := setupIngest(t)

	_, err := svc.Ingest(ctx, table(testdata.SampleRows()...), ModeReplace)
	require.NoError(t, err)

	// a trigger stands in for a failing store on the second task insert
	_, err = svc.DB.ExecContext(ctx, `CREATE TRIGGER fail_ex2 BEFORE INSERT ON tasks
		WHEN NEW.exercise = 2 BEGIN SELECT RAISE(ABORT, 'boom'); END`)
	require.NoError(t, err)

	_, err = svc.Ingest(ctx, table(
		testdata.Row{Year: "2030", Exercise: "1", Topic: "A", Task: "t", Hint: "h", Answer: "a"},
		testdata.Row{Year: "2030", Exercise: "2", Topic: "A", Task: "t", Hint: "h", Answer: "a"},
	), ModeReplace)
	require.Error(t, err)

	require.Equal(t, 4, taskCount(t, ctx, content))
	_, err = content.GetTask(ctx, 2030, 1)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	m, err := ParseMode(" Replace ")
	require.NoError(t, err)
	require.Equal(t, ModeReplace, m)
	m, err = ParseMode("append")
	require.NoError(t, err)
	require.Equal(t, ModeAppend, m)
	_, err = ParseMode("merge")
	require.Error(t, err)
}

func TestIngestRequiresDB(t *testing.T) {
	t.Parallel()

	_, err := (&IngestService{}).Ingest(context.Background(), table(), ModeAppend)
	require.Error(t, err)

	svc, _, ctx := setupIngest(t)
	_, err = svc.IngestPath(ctx, filepath.Join(t.TempDir(), "nope.xlsx"), ModeAppend)
	var merr *bundle.MalformedError
	require.True(t, errors.As(err, &merr))
}
