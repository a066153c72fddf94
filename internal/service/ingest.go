package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jask/olympiadbot/internal/bundle"
	"github.com/jask/olympiadbot/internal/database"
	"github.com/jask/olympiadbot/internal/database/repository"
	"github.com/jask/olympiadbot/internal/logger"
	"github.com/jask/olympiadbot/internal/metrics"
)

// Mode selects whether a run wipes existing content first.
type Mode string

const (
	ModeReplace Mode = "replace"
	ModeAppend  Mode = "append"
)

// ParseMode accepts "replace" or "append" in any case.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeReplace:
		return ModeReplace, nil
	case ModeAppend:
		return ModeAppend, nil
	default:
		return "", fmt.Errorf("unknown ingest mode %q (want replace or append)", s)
	}
}

// RowError describes a spreadsheet row that was skipped.
type RowError struct {
	Row    int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// IngestResult summarizes one run. Years, Topics and MissingAssets are
// distinct and in first-seen order.
type IngestResult struct {
	RunID         string
	Mode          Mode
	Inserted      int
	Skipped       int
	Years         []int
	Topics        []string
	MissingAssets []string
	Warnings      []error
}

// Summary is the operator-facing one-paragraph report.
func (r IngestResult) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s load finished: %d inserted, %d skipped", r.Mode, r.Inserted, r.Skipped)
	fmt.Fprintf(&b, "\nyears: %d, topics: %d", len(r.Years), len(r.Topics))
	if len(r.MissingAssets) > 0 {
		fmt.Fprintf(&b, "\nmissing pictures: %s", strings.Join(r.MissingAssets, ", "))
	}
	for i, w := range r.Warnings {
		if i == 5 {
			fmt.Fprintf(&b, "\n... %d more warnings", len(r.Warnings)-i)
			break
		}
		fmt.Fprintf(&b, "\n%v", w)
	}
	return b.String()
}

// IngestService loads content bundles into the store. Runs are serialized
// with each other and with MaintenanceService through Lock.
type IngestService struct {
	DB        *sql.DB
	AssetsDir string
	Log       *logger.Logger
	Metrics   *metrics.Metrics
	Lock      *sync.Mutex

	mu sync.Mutex
}

func (s *IngestService) writeLock() *sync.Mutex {
	if s.Lock != nil {
		return s.Lock
	}
	return &s.mu
}

// IngestPath opens a spreadsheet or bundle directory and ingests it.
func (s *IngestService) IngestPath(ctx context.Context, path string, mode Mode) (IngestResult, error) {
	b, err := bundle.Open(path, s.AssetsDir)
	if err != nil {
		s.Metrics.RecordMalformed()
		return IngestResult{Mode: mode}, err
	}
	return s.Ingest(ctx, b, mode)
}

// Ingest validates the bundle header, then applies every row inside one
// transaction. A *bundle.MalformedError or a store error leaves the content
// exactly as it was.
func (s *IngestService) Ingest(ctx context.Context, b bundle.Bundle, mode Mode) (IngestResult, error) {
	if s.DB == nil {
		return IngestResult{}, errors.New("ingest: db not configured")
	}
	res := IngestResult{RunID: uuid.NewString(), Mode: mode}
	log := logger.OrNop(s.Log).With("run_id", res.RunID, "mode", string(mode), "source", b.Table.Source)

	if mode != ModeReplace && mode != ModeAppend {
		return res, fmt.Errorf("ingest: invalid mode %q", mode)
	}
	cols, err := bundle.ResolveColumns(b.Table.Source, b.Table.Headers)
	if err != nil {
		s.Metrics.RecordMalformed()
		log.Warn("bundle rejected", "err", err)
		return res, err
	}

	lock := s.writeLock()
	lock.Lock()
	defer lock.Unlock()

	started := time.Now()
	log.Info("ingest started", "rows", len(b.Table.Rows))

	var assets []string
	run := func(tx *sql.Tx) error {
		content := repository.NewContent(tx)
		if mode == ModeReplace {
			if err := content.ClearAll(ctx); err != nil {
				return fmt.Errorf("clear content: %w", err)
			}
		}
		acc := newAccumulator()
		for i, cells := range b.Table.Rows {
			row, rerr := parseRow(i+2, cells, cols)
			if row == nil && rerr == nil {
				continue
			}
			if rerr != nil {
				acc.skip(rerr)
				continue
			}
			for _, name := range row.images() {
				if !b.Assets.Exists(name) && !(bundle.Assets{Dir: s.AssetsDir}).Exists(name) {
					acc.missing(name)
					continue
				}
				assets = append(assets, name)
			}
			if err := applyRow(ctx, content, row); err != nil {
				var verr *repository.ValidationError
				if errors.As(err, &verr) {
					acc.skip(&RowError{Row: row.line, Reason: err.Error()})
					continue
				}
				return fmt.Errorf("row %d: %w", row.line, err)
			}
			acc.insert(row)
		}
		acc.fill(&res)
		return nil
	}

	if err := database.WithTx(ctx, s.DB, run); err != nil {
		s.Metrics.RecordIngest(string(mode), "error", time.Since(started).Seconds())
		log.Error("ingest rolled back", "err", err)
		return IngestResult{RunID: res.RunID, Mode: mode}, err
	}

	for _, w := range res.Warnings {
		log.Warn("row skipped", "warning", w.Error())
	}
	if err := s.importAssets(b.Assets, assets); err != nil {
		log.Warn("copy pictures failed", "err", err)
		res.Warnings = append(res.Warnings, err)
	}
	for _, name := range res.MissingAssets {
		log.Warn("picture missing", "file", name)
	}
	s.Metrics.RecordRows(res.Inserted, res.Skipped, len(res.MissingAssets))
	s.Metrics.RecordIngest(string(mode), "ok", time.Since(started).Seconds())
	log.Info("ingest committed",
		"inserted", res.Inserted,
		"skipped", res.Skipped,
		"years", len(res.Years),
		"topics", len(res.Topics),
		"missing_assets", len(res.MissingAssets),
		"took", time.Since(started).String(),
	)
	return res, nil
}

// importAssets copies pictures shipped inside a bundle directory into the
// served asset directory. Nothing to do when they already live there.
func (s *IngestService) importAssets(src bundle.Assets, names []string) error {
	if s.AssetsDir == "" || src.Dir == "" || len(names) == 0 {
		return nil
	}
	from, _ := filepath.Abs(src.Dir)
	to, _ := filepath.Abs(s.AssetsDir)
	if from == to {
		return nil
	}
	if err := os.MkdirAll(to, 0o755); err != nil {
		return fmt.Errorf("create asset dir: %w", err)
	}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] || !src.Exists(name) {
			continue
		}
		seen[name] = true
		if err := copyFile(filepath.Join(from, name), filepath.Join(to, name)); err != nil {
			return fmt.Errorf("copy %s: %w", name, err)
		}
	}
	return nil
}

func copyFile(from, to string) error {
	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(to)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

type parsedRow struct {
	line     int
	year     int
	exercise int
	topics   []string
	fields   repository.TaskFields
}

func (r *parsedRow) images() []string {
	var out []string
	for _, name := range []string{r.fields.TaskImage, r.fields.HintImage, r.fields.AnswerImage} {
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// parseRow returns (nil, nil) for a blank row.
func parseRow(line int, cells []string, cols bundle.Columns) (*parsedRow, *RowError) {
	blank := true
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			blank = false
			break
		}
	}
	if blank {
		return nil, nil
	}

	year, err := parseInt(bundle.Cell(cells, cols.Year))
	if err != nil {
		return nil, &RowError{Row: line, Reason: fmt.Sprintf("invalid year %q", bundle.Cell(cells, cols.Year))}
	}
	exercise, err := parseInt(bundle.Cell(cells, cols.Exercise))
	if err != nil {
		return nil, &RowError{Row: line, Reason: fmt.Sprintf("invalid exercise %q", bundle.Cell(cells, cols.Exercise))}
	}

	topics := splitTopics(normalizeText(bundle.Cell(cells, cols.Topic)))
	if len(topics) == 0 {
		return nil, &RowError{Row: line, Reason: "no topic"}
	}

	f := repository.TaskFields{
		TaskText:    normalizeText(bundle.Cell(cells, cols.Task)),
		TaskImage:   normalizeImage(bundle.Cell(cells, cols.TaskPicture)),
		HintText:    normalizeText(bundle.Cell(cells, cols.Hint)),
		HintImage:   normalizeImage(bundle.Cell(cells, cols.HintPicture)),
		AnswerText:  normalizeText(bundle.Cell(cells, cols.Answer)),
		AnswerImage: normalizeImage(bundle.Cell(cells, cols.AnswerPicture)),
	}
	if missing := f.Validate(); len(missing) > 0 {
		return nil, &RowError{Row: line, Reason: "missing " + strings.Join(missing, ", ")}
	}
	return &parsedRow{line: line, year: year, exercise: exercise, topics: topics, fields: f}, nil
}

func applyRow(ctx context.Context, content *repository.Content, row *parsedRow) error {
	yearID, err := content.UpsertYear(ctx, row.year)
	if err != nil {
		return fmt.Errorf("year %d: %w", row.year, err)
	}
	topicIDs := make([]int64, 0, len(row.topics))
	for _, name := range row.topics {
		id, err := content.UpsertTopic(ctx, name)
		if err != nil {
			return fmt.Errorf("topic %q: %w", name, err)
		}
		topicIDs = append(topicIDs, id)
	}
	if _, err := content.UpsertTask(ctx, yearID, row.exercise, row.fields, topicIDs); err != nil {
		return err
	}
	return nil
}

// parseInt accepts "2021" as well as the "2021.0" spreadsheets produce for
// numeric cells.
func parseInt(s string) (int, error) {
	s = normalizeText(s)
	if s == "" {
		return 0, errors.New("empty")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("not an integer: %s", s)
	}
	return int(f), nil
}

func normalizeText(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "none", "null", "nan":
		return ""
	}
	return s
}

func normalizeImage(s string) string {
	s = normalizeText(s)
	if s == "" {
		return ""
	}
	return filepath.Base(filepath.FromSlash(strings.ReplaceAll(s, `\`, "/")))
}

func splitTopics(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	return out
}

type accumulator struct {
	inserted, skipped int
	years             []int
	topics            []string
	missingAssets     []string
	warnings          []error

	seenYear   map[int]bool
	seenTopic  map[string]bool
	seenAssets map[string]bool
	seenTask   map[[2]int]bool
}

func newAccumulator() *accumulator {
	return &accumulator{
		seenYear:   make(map[int]bool),
		seenTopic:  make(map[string]bool),
		seenAssets: make(map[string]bool),
		seenTask:   make(map[[2]int]bool),
	}
}

func (a *accumulator) skip(err *RowError) {
	a.skipped++
	a.warnings = append(a.warnings, err)
}

func (a *accumulator) missing(name string) {
	if a.seenAssets[name] {
		return
	}
	a.seenAssets[name] = true
	a.missingAssets = append(a.missingAssets, name)
}

// insert counts each (year, exercise) once; a later row for the same pair
// overwrote the earlier one.
func (a *accumulator) insert(row *parsedRow) {
	key := [2]int{row.year, row.exercise}
	if !a.seenTask[key] {
		a.seenTask[key] = true
		a.inserted++
	}
	if !a.seenYear[row.year] {
		a.seenYear[row.year] = true
		a.years = append(a.years, row.year)
	}
	for _, t := range row.topics {
		if !a.seenTopic[t] {
			a.seenTopic[t] = true
			a.topics = append(a.topics, t)
		}
	}
}

func (a *accumulator) fill(res *IngestResult) {
	res.Inserted = a.inserted
	res.Skipped = a.skipped
	res.Years = a.years
	res.Topics = a.topics
	res.MissingAssets = a.missingAssets
	res.Warnings = a.warnings
}
