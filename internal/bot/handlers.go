package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/panelbot/panelbot/internal/panel"
	"github.com/panelbot/panelbot/internal/report"
)

const (
	sshPageSize      = 10
	firewallPageSize = 50
)

// ErrUnknownCommand is returned by HandlerRegistry.Handle for unregistered commands.
var ErrUnknownCommand = errors.New("unknown command")

// HandlerContext provides context for command handlers
type HandlerContext struct {
	Ctx     context.Context
	Panel   PanelAPI
	Logger  *slog.Logger
	Command string                // lowercased command word
	Args    []string              // tokens after the command word
	Reply   func(msg string) bool // sends one message, false once the caller stopped reading
}

// arg returns the i-th argument or def when it is missing.
func (hctx *HandlerContext) arg(i int, def string) string {
	if i < len(hctx.Args) {
		return hctx.Args[i]
	}
	return def
}

// RequestHandler handles one command word
type RequestHandler interface {
	// Handle replies through hctx.Reply and returns an error if unsuccessful
	Handle(hctx *HandlerContext) error
}

// HandlerFunc adapts a function to RequestHandler
type HandlerFunc func(hctx *HandlerContext) error

func (f HandlerFunc) Handle(hctx *HandlerContext) error {
	return f(hctx)
}

// HandlerRegistry manages the mapping between command words and their handlers
type HandlerRegistry struct {
	handlers map[string]RequestHandler
}

// NewHandlerRegistry creates a new handler registry with the panel commands
func NewHandlerRegistry() *HandlerRegistry {
	registry := &HandlerRegistry{
		handlers: make(map[string]RequestHandler),
	}

	registry.Register("help", HandlerFunc(handleHelp))
	registry.Register("status", &StatusHandler{})
	registry.Register("info", &InfoHandler{})
	registry.Register("all", &OverviewHandler{})
	registry.Register("docker", &DockerHandler{})
	registry.Register("apps", &AppsHandler{})
	registry.Register("ssh", &SSHHandler{})
	registry.Register("firewall", &FirewallHandler{})
	registry.Register("cron", &CronHandler{})
	registry.Register("debug", &DebugHandler{})

	return registry
}

// Register registers a handler for a command word
func (hr *HandlerRegistry) Register(command string, handler RequestHandler) {
	hr.handlers[strings.ToLower(command)] = handler
}

// Handle routes the request to the handler of hctx.Command
func (hr *HandlerRegistry) Handle(hctx *HandlerContext) error {
	handler, exists := hr.GetHandler(hctx.Command)
	if !exists {
		hctx.Logger.Debug("Unknown command", "commands", hr.Commands())
		return fmt.Errorf("%w: %s", ErrUnknownCommand, hctx.Command)
	}
	hctx.Logger.Debug("Executing handler", "args", hctx.Args)
	return handler.Handle(hctx)
}

// GetHandler returns the handler for a command word
func (hr *HandlerRegistry) GetHandler(command string) (RequestHandler, bool) {
	handler, exists := hr.handlers[strings.ToLower(command)]
	return handler, exists
}

// Commands returns the registered command words in sorted order.
func (hr *HandlerRegistry) Commands() []string {
	commands := make([]string, 0, len(hr.handlers))
	for command := range hr.handlers {
		commands = append(commands, command)
	}
	slices.Sort(commands)
	return commands
}

////////////////////////////////////////////////////////////////////////////
////////////////////////////////////////////////////////////////////////////

func handleHelp(hctx *HandlerContext) error {
	hctx.Reply(report.Help)
	return nil
}

////////////////////////////////////////////////////////////////////////////
////////////////////////////////////////////////////////////////////////////

// StatusHandler replies with live metrics including network speed
type StatusHandler struct{}

func (h *StatusHandler) Handle(hctx *HandlerContext) error {
	status, err := hctx.Panel.CurrentStatus(hctx.Ctx, true)
	if err != nil {
		return failure("获取系统状态/Fetching system status", err)
	}
	hctx.Reply(report.Status(status))
	return nil
}

// InfoHandler replies with host information
type InfoHandler struct{}

func (h *InfoHandler) Handle(hctx *HandlerContext) error {
	info, err := hctx.Panel.DashboardBase(hctx.Ctx)
	if err != nil {
		return failure("获取系统信息/Fetching system info", err)
	}
	hctx.Reply(report.Info(info))
	return nil
}

// OverviewHandler combines host information and metrics. A failure of one
// request still renders the other half.
type OverviewHandler struct{}

func (h *OverviewHandler) Handle(hctx *HandlerContext) error {
	status, statusErr := hctx.Panel.CurrentStatus(hctx.Ctx, true)
	if statusErr != nil {
		hctx.Logger.Warn("Overview without status", "err", statusErr)
		status = nil
	}
	info, infoErr := hctx.Panel.DashboardBase(hctx.Ctx)
	if infoErr != nil {
		hctx.Logger.Warn("Overview without host info", "err", infoErr)
		info = nil
	}
	if status == nil && info == nil {
		return failure("获取服务器信息/Fetching server overview", errors.Join(statusErr, infoErr))
	}
	hctx.Reply(report.Overview(status, info))
	return nil
}

////////////////////////////////////////////////////////////////////////////
////////////////////////////////////////////////////////////////////////////

// DockerHandler lists containers or applies a lifecycle operation
type DockerHandler struct{}

func (h *DockerHandler) Handle(hctx *HandlerContext) error {
	sub := strings.ToLower(hctx.arg(0, "list"))
	if panel.IsContainerOperation(sub) {
		return h.operate(hctx, sub)
	}

	page, err := hctx.Panel.Containers(hctx.Ctx, 1, 0)
	if err != nil {
		return failure("获取容器列表/Listing containers", err)
	}
	hctx.Reply(report.Containers(page))
	return nil
}

func (h *DockerHandler) operate(hctx *HandlerContext, op string) error {
	name := hctx.arg(1, "")
	if name == "" {
		return usageError(report.ContainerUsage(op))
	}
	if !hctx.Reply(report.ContainerOperating(name, op)) {
		return nil
	}
	if err := hctx.Panel.OperateContainer(hctx.Ctx, name, op); err != nil {
		return failure("操作容器/Container operation", err)
	}
	hctx.Logger.Info("Container operated", "container", name, "operation", op)
	hctx.Reply(report.ContainerOperated(name, op))
	return nil
}

// AppsHandler lists installed apps
type AppsHandler struct{}

func (h *AppsHandler) Handle(hctx *HandlerContext) error {
	page, err := hctx.Panel.InstalledApps(hctx.Ctx, 1, 0)
	if err != nil {
		return failure("获取应用列表/Listing apps", err)
	}
	hctx.Reply(report.Apps(page))
	return nil
}

// SSHHandler pages through SSH login attempts: ssh [page] [status]
type SSHHandler struct{}

func (h *SSHHandler) Handle(hctx *HandlerContext) error {
	page, status, err := parseSSHArgs(hctx.Args)
	if err != nil {
		return err
	}
	logs, err := hctx.Panel.SSHLogs(hctx.Ctx, page, sshPageSize, status)
	if err != nil {
		return failure("获取 SSH 日志/Fetching SSH logs", err)
	}
	hctx.Reply(report.SSHLogs(logs, page))
	return nil
}

// parseSSHArgs accepts "[page] [status]" as well as a lone "[status]".
func parseSSHArgs(args []string) (page int, status string, err error) {
	page, status = 1, "All"
	if len(args) == 0 {
		return page, status, nil
	}

	rest := args
	if n, convErr := strconv.Atoi(args[0]); convErr == nil {
		page = max(n, 1)
		rest = args[1:]
	} else if _, ok := panel.NormalizeSSHStatus(args[0]); !ok {
		return 0, "", usageError(report.SSHUsage(args[0]))
	}

	if len(rest) > 0 {
		normalized, ok := panel.NormalizeSSHStatus(rest[0])
		if !ok {
			return 0, "", usageError(report.SSHUsage(rest[0]))
		}
		status = normalized
	}
	return page, status, nil
}

// FirewallHandler lists port (default) or address rules
type FirewallHandler struct{}

func (h *FirewallHandler) Handle(hctx *HandlerContext) error {
	ruleType := strings.ToLower(hctx.arg(0, "port"))
	if !slices.Contains(panel.FirewallTypes, ruleType) {
		return usageError(report.FirewallUsage(hctx.arg(0, "")))
	}
	rules, err := hctx.Panel.FirewallRules(hctx.Ctx, ruleType, 1, firewallPageSize)
	if err != nil {
		return failure("获取防火墙规则/Fetching firewall rules", err)
	}
	hctx.Reply(report.Firewall(rules, ruleType))
	return nil
}

// CronHandler lists scheduled tasks
type CronHandler struct{}

func (h *CronHandler) Handle(hctx *HandlerContext) error {
	jobs, err := hctx.Panel.CronJobs(hctx.Ctx, 1, 0)
	if err != nil {
		return failure("获取定时任务/Fetching scheduled tasks", err)
	}
	hctx.Reply(report.CronJobs(jobs))
	return nil
}

// DebugHandler dumps a raw API payload: debug [base|status|info]
type DebugHandler struct{}

func (h *DebugHandler) Handle(hctx *HandlerContext) error {
	target := strings.ToLower(hctx.arg(0, "base"))
	if !slices.Contains(panel.DebugTargets, target) {
		return usageError(report.DebugUsage(hctx.arg(0, "")))
	}
	raw, err := hctx.Panel.Raw(hctx.Ctx, target)
	if err != nil {
		return failure("获取/Fetching "+target, err)
	}
	hctx.Reply(report.Debug(target, raw))
	return nil
}
