// Package bot turns chat command lines into panel requests and formatted
// replies.
package bot

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/panelbot/panelbot/internal/panel"
	"github.com/panelbot/panelbot/internal/report"
)

// PanelAPI is the subset of *panel.Client used by the command handlers.
type PanelAPI interface {
	Configured() bool
	CurrentStatus(ctx context.Context, withNetSpeed bool) (*panel.Status, error)
	DashboardBase(ctx context.Context) (*panel.BaseInfo, error)
	Containers(ctx context.Context, page, pageSize int) (*panel.Page[panel.Container], error)
	OperateContainer(ctx context.Context, name, operation string) error
	InstalledApps(ctx context.Context, page, pageSize int) (*panel.Page[panel.App], error)
	SSHLogs(ctx context.Context, page, pageSize int, status string) (*panel.SSHLogPage, error)
	CronJobs(ctx context.Context, page, pageSize int) (*panel.Page[panel.CronJob], error)
	FirewallRules(ctx context.Context, ruleType string, page, pageSize int) (*panel.Page[panel.FirewallRule], error)
	Raw(ctx context.Context, target string) (json.RawMessage, error)
}

// Bot dispatches command lines to the handler registry.
type Bot struct {
	panel    PanelAPI
	registry *HandlerRegistry
}

// New creates a Bot serving the default commands.
func New(api PanelAPI) *Bot {
	return &Bot{
		panel:    api,
		registry: NewHandlerRegistry(),
	}
}

// Registry exposes the handler registry so callers can add commands.
func (b *Bot) Registry() *HandlerRegistry {
	return b.registry
}

// Handle runs one command line and returns its replies as a lazy sequence.
// Nothing is requested from the panel until the sequence is iterated. Every
// failure is rendered as a reply; the sequence never panics.
func (b *Bot) Handle(ctx context.Context, line string) iter.Seq[string] {
	return func(yield func(string) bool) {
		command, args := parseLine(line)
		logger := slog.With("invocation", uuid.NewString(), "command", command)

		if b.panel == nil || !b.panel.Configured() {
			yield(report.NotConfigured)
			return
		}
		if command == "" {
			yield(report.Help)
			return
		}

		var stopped, yielding bool
		reply := func(msg string) bool {
			if stopped {
				return false
			}
			yielding = true
			ok := yield(msg)
			yielding = false
			stopped = !ok
			return ok
		}

		defer func() {
			r := recover()
			if r == nil {
				return
			}
			// panics from the consumer's loop body must propagate
			if yielding {
				panic(r)
			}
			logger.Error("Handler panic", "panic", r)
			reply(report.Crashed(command))
		}()

		hctx := &HandlerContext{
			Ctx:     ctx,
			Panel:   b.panel,
			Logger:  logger,
			Command: command,
			Args:    args,
			Reply:   reply,
		}
		if err := b.registry.Handle(hctx); err != nil {
			reply(render(logger, command, err))
		}
	}
}

// Reply collects all replies of a command line.
func (b *Bot) Reply(ctx context.Context, line string) []string {
	var replies []string
	for msg := range b.Handle(ctx, line) {
		replies = append(replies, msg)
	}
	return replies
}

// parseLine splits a command line into the lowercased command word and its
// arguments, dropping an optional leading "panel" or "/panel".
func parseLine(line string) (string, []string) {
	fields := strings.Fields(line)
	if len(fields) > 0 && (strings.EqualFold(fields[0], "panel") || strings.EqualFold(fields[0], "/panel")) {
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}

////////////////////////////////////////////////////////////////////////////
////////////////////////////////////////////////////////////////////////////

// usageError is a malformed command. Its text is the reply.
type usageError string

func (e usageError) Error() string {
	return string(e)
}

// actionError attaches the user facing action label to a panel error.
type actionError struct {
	action string
	err    error
}

func (e *actionError) Error() string {
	return fmt.Sprintf("%s: %v", e.action, e.err)
}

func (e *actionError) Unwrap() error {
	return e.err
}

func failure(action string, err error) error {
	return &actionError{action: action, err: err}
}

// render converts a handler error into a reply and logs what the reply hides.
func render(logger *slog.Logger, command string, err error) string {
	var usage usageError
	if errors.As(err, &usage) {
		return string(usage)
	}
	if errors.Is(err, ErrUnknownCommand) {
		return report.UnknownCommand(command)
	}
	if errors.Is(err, panel.ErrNotConfigured) {
		return report.NotConfigured
	}

	action, cause := command, err
	var ae *actionError
	if errors.As(err, &ae) {
		action, cause = ae.action, ae.err
	}

	if remote, ok := panel.IsRemote(err); ok {
		logger.Warn("Panel rejected request", "code", remote.Code, "message", remote.Message)
		return report.Rejected(action, remote.Code, remote.Message)
	}
	if errors.Is(err, panel.ErrInvalidArgument) {
		return report.Rejected(action, 0, cause.Error())
	}
	if panel.IsTransport(err) {
		logger.Error("Panel unreachable", "err", err)
		return report.Failed(action)
	}
	logger.Error("Command failed", "err", err)
	return report.Failed(action)
}
