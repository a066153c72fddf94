// Package navigation implements the per-caller year → exercise → task →
// hint/answer dialogue.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jask/olympiadbot/internal/database/repository"
	"github.com/jask/olympiadbot/internal/logger"
	"github.com/jask/olympiadbot/internal/metrics"
)

// Catalog is the read side of the content store.
type Catalog interface {
	ListYears(ctx context.Context) ([]int, error)
	ListExercises(ctx context.Context, year int) ([]int, error)
	GetTask(ctx context.Context, year, exercise int) (repository.Task, error)
	ListTasksSharingTopics(ctx context.Context, year int, topics []string) ([]int, error)
}

// Sessions stores one Session per caller and serializes work per caller.
type Sessions interface {
	Get(callerID int64) (Session, bool)
	Put(callerID int64, s Session)
	Remove(callerID int64)
	Lock(callerID int64) (unlock func())
}

const (
	noticeInvalid     = "Sorry, I did not understand that."
	noticeStale       = "That exercise is no longer available. Please choose a year again."
	noticeNoRelated   = "No other exercise of this year shares a topic with this one."
	noticeEndOfYear   = "No more exercises in this year."
	noticeEmptyYear   = "Year %d has no exercises yet."
	noticeUnknownYear = "Please choose one of the listed years."
)

// Engine applies navigation commands to caller sessions.
type Engine struct {
	Catalog  Catalog
	Sessions Sessions
	Log      *logger.Logger
	Metrics  *metrics.Metrics
}

// Handle parses raw input and applies it for callerID.
func (e *Engine) Handle(ctx context.Context, callerID int64, raw string) (Display, error) {
	return e.Do(ctx, callerID, ParseCommand(raw))
}

// Do applies cmd while holding the caller's lock. A caller without a session
// starts in StateChoosingYear and cmd is applied there. On error the stored
// session is left as it was.
func (e *Engine) Do(ctx context.Context, callerID int64, cmd Command) (Display, error) {
	unlock := e.Sessions.Lock(callerID)
	defer unlock()

	e.Metrics.RecordCommand(string(cmd.Kind))
	log := logger.OrNop(e.Log).With("caller_id", callerID)

	if cmd.Kind == KindCancel {
		e.Sessions.Remove(callerID)
		log.Debug("session removed")
		return endedView(), nil
	}

	sess, ok := e.Sessions.Get(callerID)
	if !ok {
		sess = Session{State: StateChoosingYear}
	}
	var (
		next Session
		d    Display
		err  error
	)
	if cmd.Kind == KindStart {
		next, d, err = e.chooseYear(ctx, "")
	} else {
		next, d, err = e.step(ctx, sess, cmd)
	}
	if err != nil {
		log.Error("navigation failed", "state", string(sess.State), "kind", string(cmd.Kind), "err", err)
		return Display{}, err
	}
	e.Sessions.Put(callerID, next)
	log.Debug("navigation", "from", string(sess.State), "to", string(next.State), "kind", string(cmd.Kind))
	return d, nil
}

// step is the transition function. It never writes to the registry.
func (e *Engine) step(ctx context.Context, s Session, cmd Command) (Session, Display, error) {
	if s.State.holdsTask() {
		if _, err := e.Catalog.GetTask(ctx, s.Year, s.Task.Exercise); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return e.staleReset(ctx)
			}
			return s, Display{}, err
		}
	}

	switch s.State {
	case StateChoosingYear:
		if cmd.Kind == KindSelect {
			return e.selectYear(ctx, s, cmd.Value)
		}
	case StateChoosingExercise:
		switch cmd.Kind {
		case KindSelect:
			if n, ok := pick(cmd.Value, s.Exercises); ok {
				return e.openTask(ctx, s.Year, n, "")
			}
		case KindBack:
			return e.chooseYear(ctx, "")
		}
	case StateViewingTask:
		switch cmd.Kind {
		case KindHint:
			return withState(s, StateViewingHint), hintView(s.Task, ""), nil
		case KindAnswer:
			return withState(s, StateViewingAnswer), answerView(s.Task, ""), nil
		case KindRelated:
			return e.related(ctx, s)
		case KindNext:
			return e.next(ctx, s)
		case KindBack:
			return e.chooseExercise(ctx, s.Year, "")
		}
	case StateViewingHint:
		switch cmd.Kind {
		case KindAnswer:
			return withState(s, StateViewingAnswer), answerView(s.Task, ""), nil
		case KindRelated:
			return e.related(ctx, s)
		case KindNext:
			return e.next(ctx, s)
		case KindBack:
			return withState(s, StateViewingTask), taskView(s.Task, ""), nil
		}
	case StateViewingAnswer:
		switch cmd.Kind {
		case KindRelated:
			return e.related(ctx, s)
		case KindNext:
			return e.next(ctx, s)
		case KindBack:
			return withState(s, StateViewingTask), taskView(s.Task, ""), nil
		}
	case StateBrowsingRelated:
		switch cmd.Kind {
		case KindSelect:
			if n, ok := pick(cmd.Value, s.Related); ok {
				return e.openTask(ctx, s.Year, n, "")
			}
		case KindBack:
			back := withState(s, s.Return)
			back.Related, back.Return = nil, ""
			return back, render(back, ""), nil
		}
	default:
		return e.chooseYear(ctx, "")
	}
	return e.invalid(ctx, s)
}

func withState(s Session, st State) Session {
	s.State = st
	return s
}

// render redraws a task-bearing session without touching the store.
func render(s Session, notice string) Display {
	switch s.State {
	case StateViewingHint:
		return hintView(s.Task, notice)
	case StateViewingAnswer:
		return answerView(s.Task, notice)
	case StateBrowsingRelated:
		return relatedView(s.Task, s.Related, notice)
	default:
		return taskView(s.Task, notice)
	}
}

func pick(value string, options []int) (int, bool) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	for _, o := range options {
		if o == n {
			return n, true
		}
	}
	return 0, false
}

func (e *Engine) chooseYear(ctx context.Context, notice string) (Session, Display, error) {
	years, err := e.Catalog.ListYears(ctx)
	if err != nil {
		return Session{}, Display{}, fmt.Errorf("list years: %w", err)
	}
	return Session{State: StateChoosingYear}, yearPrompt(years, notice), nil
}

func (e *Engine) selectYear(ctx context.Context, s Session, value string) (Session, Display, error) {
	years, err := e.Catalog.ListYears(ctx)
	if err != nil {
		return s, Display{}, fmt.Errorf("list years: %w", err)
	}
	year, ok := pick(value, years)
	if !ok {
		if len(years) == 0 {
			return Session{State: StateChoosingYear}, yearPrompt(years, ""), nil
		}
		e.Metrics.RecordInvalid(string(s.State))
		return Session{State: StateChoosingYear}, yearPrompt(years, noticeUnknownYear), nil
	}
	exercises, err := e.Catalog.ListExercises(ctx, year)
	if err != nil {
		return s, Display{}, fmt.Errorf("list exercises: %w", err)
	}
	if len(exercises) == 0 {
		return Session{State: StateChoosingYear}, yearPrompt(years, fmt.Sprintf(noticeEmptyYear, year)), nil
	}
	return Session{State: StateChoosingExercise, Year: year, Exercises: exercises},
		exercisePrompt(year, exercises, ""), nil
}

// chooseExercise re-reads the year's exercise list. A year that has lost
// every exercise falls back to year selection.
func (e *Engine) chooseExercise(ctx context.Context, year int, notice string) (Session, Display, error) {
	exercises, err := e.Catalog.ListExercises(ctx, year)
	if err != nil {
		return Session{}, Display{}, fmt.Errorf("list exercises: %w", err)
	}
	if len(exercises) == 0 {
		return e.staleReset(ctx)
	}
	return Session{State: StateChoosingExercise, Year: year, Exercises: exercises},
		exercisePrompt(year, exercises, notice), nil
}

func (e *Engine) openTask(ctx context.Context, year, exercise int, notice string) (Session, Display, error) {
	task, err := e.Catalog.GetTask(ctx, year, exercise)
	if errors.Is(err, repository.ErrNotFound) {
		return e.staleReset(ctx)
	}
	if err != nil {
		return Session{}, Display{}, fmt.Errorf("get task %d/%d: %w", year, exercise, err)
	}
	return Session{State: StateViewingTask, Year: year, Task: task}, taskView(task, notice), nil
}

func (e *Engine) related(ctx context.Context, s Session) (Session, Display, error) {
	all, err := e.Catalog.ListTasksSharingTopics(ctx, s.Year, s.Task.Topics)
	if err != nil {
		return s, Display{}, fmt.Errorf("list related: %w", err)
	}
	others := make([]int, 0, len(all))
	for _, n := range all {
		if n != s.Task.Exercise {
			others = append(others, n)
		}
	}
	if len(others) == 0 {
		return s, render(s, noticeNoRelated), nil
	}
	next := withState(s, StateBrowsingRelated)
	next.Related = others
	next.Return = s.State
	return next, relatedView(s.Task, others, ""), nil
}

func (e *Engine) next(ctx context.Context, s Session) (Session, Display, error) {
	exercises, err := e.Catalog.ListExercises(ctx, s.Year)
	if err != nil {
		return s, Display{}, fmt.Errorf("list exercises: %w", err)
	}
	for _, n := range exercises {
		if n > s.Task.Exercise {
			return e.openTask(ctx, s.Year, n, "")
		}
	}
	return e.chooseExercise(ctx, s.Year, noticeEndOfYear)
}

func (e *Engine) staleReset(ctx context.Context) (Session, Display, error) {
	e.Metrics.RecordStaleReset()
	return e.chooseYear(ctx, noticeStale)
}

// invalid re-prompts without changing state.
func (e *Engine) invalid(ctx context.Context, s Session) (Session, Display, error) {
	e.Metrics.RecordInvalid(string(s.State))
	switch s.State {
	case StateChoosingYear:
		years, err := e.Catalog.ListYears(ctx)
		if err != nil {
			return s, Display{}, fmt.Errorf("list years: %w", err)
		}
		return s, yearPrompt(years, noticeInvalid), nil
	case StateChoosingExercise:
		return s, exercisePrompt(s.Year, s.Exercises, noticeInvalid), nil
	default:
		return s, render(s, noticeInvalid), nil
	}
}
