// Package bot routes caller input to navigation or operator commands.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jask/olympiadbot/internal/bundle"
	"github.com/jask/olympiadbot/internal/database/repository"
	"github.com/jask/olympiadbot/internal/logger"
	"github.com/jask/olympiadbot/internal/metrics"
	"github.com/jask/olympiadbot/internal/navigation"
	"github.com/jask/olympiadbot/internal/service"
)

// Caller is the transport identity attached to every message.
type Caller struct {
	ID          int64
	DisplayName string
	Username    string
}

const (
	cmdStart       = "/start"
	cmdAdmin       = "/admin"
	cmdLoad        = "/load"
	cmdClear       = "/clear"
	cmdClearAssets = "/clear_assets"
	cmdStats       = "/stats"

	confirmWord = "yes"
)

const adminMenu = `Operator commands:
/load replace <path>  replace all content with a bundle
/load append <path>   merge a bundle into existing content
/clear                delete all years, topics and exercises
/clear_assets         delete every stored picture
/stats                content and caller counts`

const accessDenied = "Access denied: you are not an administrator."

// Dispatcher is the single entry point for caller messages.
type Dispatcher struct {
	Engine      *navigation.Engine
	Content     *repository.Content
	Callers     *repository.CallerRepo
	Ingest      *service.IngestService
	Maintenance *service.MaintenanceService
	IsAdmin     func(callerID int64) bool
	Log         *logger.Logger
	Metrics     *metrics.Metrics
}

// Handle answers one message. Operator failures are reported in the
// returned Display; an error means the message could not be answered.
func (d *Dispatcher) Handle(ctx context.Context, c Caller, text string) (navigation.Display, error) {
	if err := d.register(ctx, c); err != nil {
		return navigation.Display{}, err
	}
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return d.Engine.Handle(ctx, c.ID, text)
	}
	name := strings.ToLower(fields[0])
	args := fields[1:]

	switch name {
	case cmdStart:
		return d.start(ctx, c)
	case cmdAdmin, cmdLoad, cmdClear, cmdClearAssets, cmdStats:
		if d.IsAdmin == nil || !d.IsAdmin(c.ID) {
			d.Metrics.RecordAdmin(name, "denied")
			logger.OrNop(d.Log).Warn("operator command denied", "caller_id", c.ID, "command", name)
			return reply(accessDenied), nil
		}
		return d.operator(ctx, c, name, args)
	default:
		return d.Engine.Handle(ctx, c.ID, text)
	}
}

func reply(text string) navigation.Display {
	return navigation.Display{Text: text}
}

// register records c on its first message. Later messages leave the stored
// row as it is.
func (d *Dispatcher) register(ctx context.Context, c Caller) error {
	if d.Callers == nil {
		return nil
	}
	created, err := d.Callers.Register(ctx, repository.Caller{ID: c.ID, DisplayName: c.DisplayName, Username: c.Username})
	if err != nil {
		return fmt.Errorf("register caller: %w", err)
	}
	if created {
		logger.OrNop(d.Log).Info("new caller", "caller_id", c.ID, "username", c.Username)
	}
	return nil
}

func (d *Dispatcher) start(ctx context.Context, c Caller) (navigation.Display, error) {
	view, err := d.Engine.Do(ctx, c.ID, navigation.Command{Kind: navigation.KindStart})
	if err != nil {
		return navigation.Display{}, err
	}
	name := c.DisplayName
	if name == "" {
		name = "there"
	}
	view.Text = fmt.Sprintf("Hello, %s! Let's practise olympiad problems.\n\n%s", name, view.Text)
	return view, nil
}

func (d *Dispatcher) operator(ctx context.Context, c Caller, name string, args []string) (navigation.Display, error) {
	log := logger.OrNop(d.Log).With("caller_id", c.ID, "command", name)
	confirmed := len(args) == 1 && strings.EqualFold(args[0], confirmWord)

	switch name {
	case cmdAdmin:
		d.Metrics.RecordAdmin(name, "ok")
		return reply(adminMenu), nil

	case cmdLoad:
		if len(args) < 2 {
			return reply("Usage: /load replace|append <path>"), nil
		}
		mode, err := service.ParseMode(args[0])
		if err != nil {
			return reply("Usage: /load replace|append <path>"), nil
		}
		path := strings.Join(args[1:], " ")
		res, err := d.Ingest.IngestPath(ctx, path, mode)
		if err != nil {
			d.Metrics.RecordAdmin(name, "error")
			log.Error("load failed", "path", path, "err", err)
			var merr *bundle.MalformedError
			if errors.As(err, &merr) {
				return reply("Bundle rejected, nothing was changed: " + merr.Error()), nil
			}
			return reply("Load failed, nothing was changed: " + err.Error()), nil
		}
		d.Metrics.RecordAdmin(name, "ok")
		return reply(res.Summary()), nil

	case cmdClear:
		if !confirmed {
			return reply("This deletes every year, topic and exercise. Send /clear yes to confirm."), nil
		}
		if err := d.Maintenance.ClearAll(ctx); err != nil {
			d.Metrics.RecordAdmin(name, "error")
			log.Error("clear failed", "err", err)
			return reply("Clear failed: " + err.Error()), nil
		}
		d.Metrics.RecordAdmin(name, "ok")
		return reply("All content deleted."), nil

	case cmdClearAssets:
		if !confirmed {
			return reply("This deletes every stored picture. Send /clear_assets yes to confirm."), nil
		}
		n, err := d.Maintenance.ClearAssets(ctx)
		if err != nil {
			d.Metrics.RecordAdmin(name, "error")
			log.Error("clear assets failed", "err", err)
			return reply("Clearing pictures failed: " + err.Error()), nil
		}
		d.Metrics.RecordAdmin(name, "ok")
		return reply(fmt.Sprintf("Deleted %d pictures.", n)), nil

	case cmdStats:
		stats, err := d.Content.Stats(ctx)
		if err != nil {
			return navigation.Display{}, fmt.Errorf("stats: %w", err)
		}
		callers := 0
		if d.Callers != nil {
			if callers, err = d.Callers.Count(ctx); err != nil {
				return navigation.Display{}, fmt.Errorf("count callers: %w", err)
			}
		}
		d.Metrics.RecordAdmin(name, "ok")
		return reply(fmt.Sprintf("Years: %d\nTopics: %d\nExercises: %d\nKnown users: %d",
			stats.Years, stats.Topics, stats.Tasks, callers)), nil
	}
	return reply(adminMenu), nil
}
