package panel

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/panelbot/panelbot/internal/deltatracker"
)

const (
	endpointCurrentStatus = "dashboard/current/all/all"
	endpointDashboardBase = "dashboard/base/all/all"
	endpointDeviceBase    = "toolbox/device/base"
	endpointContainers    = "containers/search"
	endpointContainerOp   = "containers/operate"
	endpointInstalledApps = "apps/installed/search"
	endpointSSHLogs       = "hosts/ssh/log"
	endpointCronJobs      = "cronjobs/search"
	endpointFirewallRules = "hosts/firewall/search"
	defaultPageSize       = 20
	netRecvCounter        = "recv"
	netSentCounter        = "sent"
)

// netSampleInterval separates the two status polls used to derive network speed.
var netSampleInterval = time.Second

// ContainerOperations lists the lifecycle operations accepted by OperateContainer.
var ContainerOperations = []string{"start", "stop", "restart", "pause", "unpause"}

// SSHStatuses lists the login status filters accepted by SSHLogs.
var SSHStatuses = []string{"All", "Success", "Failed"}

// FirewallTypes lists the rule types accepted by FirewallRules.
var FirewallTypes = []string{"port", "address"}

// NormalizeSSHStatus maps a case-insensitive status filter to the value the
// panel expects.
func NormalizeSSHStatus(s string) (string, bool) {
	for _, status := range SSHStatuses {
		if strings.EqualFold(s, status) {
			return status, true
		}
	}
	return "", false
}

// IsContainerOperation reports whether op is a supported lifecycle operation.
func IsContainerOperation(op string) bool {
	return slices.Contains(ContainerOperations, op)
}

// PageRequest is the pagination part of every search body.
type PageRequest struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

func newPageRequest(page, pageSize int) PageRequest {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	return PageRequest{Page: page, PageSize: pageSize}
}

// CurrentStatus returns the live system metrics.
//
// With withNetSpeed the status is polled a second time after netSampleInterval
// and the byte counter deltas are stored as per-second speeds. If the second
// poll fails the first snapshot is returned with NetSpeedMeasured unset.
func (c *Client) CurrentStatus(ctx context.Context, withNetSpeed bool) (*Status, error) {
	status, err := call[Status](ctx, c, http.MethodGet, endpointCurrentStatus, nil, readTimeout)
	if err != nil || !withNetSpeed {
		return status, err
	}

	tracker := deltatracker.New[string, float64]()
	tracker.Record(netCounters(status))
	tracker.Cycle()

	timer := time.NewTimer(netSampleInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		slog.Warn("Network speed sample cancelled", "err", ctx.Err())
		return status, nil
	case <-timer.C:
	}

	second, err := call[Status](ctx, c, http.MethodGet, endpointCurrentStatus, nil, readTimeout)
	if err != nil {
		slog.Warn("Second status poll failed, network speed unavailable", "err", err)
		return status, nil
	}
	tracker.Record(netCounters(second))

	recv, recvOk := tracker.Delta(netRecvCounter)
	sent, sentOk := tracker.Delta(netSentCounter)
	status.NetRecvSpeed = recv
	status.NetSentSpeed = sent
	status.NetSpeedMeasured = recvOk && sentOk
	// totals come from the latest sample
	status.NetBytesRecv = second.NetBytesRecv
	status.NetBytesSent = second.NetBytesSent
	return status, nil
}

func netCounters(s *Status) map[string]float64 {
	return map[string]float64{
		netRecvCounter: s.NetBytesRecv.Float(),
		netSentCounter: s.NetBytesSent.Float(),
	}
}

// DashboardBase returns host information (hostname, distro, kernel, uptime).
func (c *Client) DashboardBase(ctx context.Context) (*BaseInfo, error) {
	return call[BaseInfo](ctx, c, http.MethodGet, endpointDashboardBase, nil, readTimeout)
}

// DeviceBase returns the toolbox device information as raw JSON.
func (c *Client) DeviceBase(ctx context.Context) (json.RawMessage, error) {
	return c.request(ctx, http.MethodPost, endpointDeviceBase, nil, readTimeout)
}

// Containers lists containers in every state.
func (c *Client) Containers(ctx context.Context, page, pageSize int) (*Page[Container], error) {
	body := struct {
		PageRequest
		Filters string `json:"filters"`
		Name    string `json:"name"`
		State   string `json:"state"`
		OrderBy string `json:"orderBy"`
		Order   string `json:"order"`
	}{
		PageRequest: newPageRequest(page, pageSize),
		State:       "all",
		OrderBy:     "name",
		Order:       "null",
	}
	return call[Page[Container]](ctx, c, http.MethodPost, endpointContainers, body, readTimeout)
}

// OperateContainer applies a lifecycle operation to the named container.
func (c *Client) OperateContainer(ctx context.Context, name, operation string) error {
	if name == "" {
		return fmt.Errorf("%w: container name required", ErrInvalidArgument)
	}
	if !IsContainerOperation(operation) {
		return fmt.Errorf("%w: container operation %q", ErrInvalidArgument, operation)
	}
	body := struct {
		Names     []string `json:"names"`
		Operation string   `json:"operation"`
	}{
		Names:     []string{name},
		Operation: operation,
	}
	_, err := c.request(ctx, http.MethodPost, endpointContainerOp, body, operateTimeout)
	return err
}

// InstalledApps lists apps installed from the panel's app store.
func (c *Client) InstalledApps(ctx context.Context, page, pageSize int) (*Page[App], error) {
	body := struct {
		PageRequest
		Name   string   `json:"name"`
		Tags   []string `json:"tags"`
		Update bool     `json:"update"`
	}{
		PageRequest: newPageRequest(page, pageSize),
		Tags:        []string{},
	}
	return call[Page[App]](ctx, c, http.MethodPost, endpointInstalledApps, body, readTimeout)
}

// SSHLogs returns a page of SSH login attempts filtered by status.
func (c *Client) SSHLogs(ctx context.Context, page, pageSize int, status string) (*SSHLogPage, error) {
	normalized, ok := NormalizeSSHStatus(status)
	if !ok {
		return nil, fmt.Errorf("%w: ssh status %q", ErrInvalidArgument, status)
	}
	body := struct {
		PageRequest
		Status string `json:"status"`
	}{
		PageRequest: newPageRequest(page, pageSize),
		Status:      normalized,
	}
	return call[SSHLogPage](ctx, c, http.MethodPost, endpointSSHLogs, body, readTimeout)
}

// CronJobs lists scheduled tasks.
func (c *Client) CronJobs(ctx context.Context, page, pageSize int) (*Page[CronJob], error) {
	body := struct {
		PageRequest
		OrderBy string `json:"orderBy"`
		Order   string `json:"order"`
	}{
		PageRequest: newPageRequest(page, pageSize),
		OrderBy:     "name",
		Order:       "null",
	}
	return call[Page[CronJob]](ctx, c, http.MethodPost, endpointCronJobs, body, readTimeout)
}

// FirewallRules lists port or address rules.
func (c *Client) FirewallRules(ctx context.Context, ruleType string, page, pageSize int) (*Page[FirewallRule], error) {
	if !slices.Contains(FirewallTypes, ruleType) {
		return nil, fmt.Errorf("%w: firewall rule type %q", ErrInvalidArgument, ruleType)
	}
	body := struct {
		PageRequest
		Type string `json:"type"`
	}{
		PageRequest: newPageRequest(page, pageSize),
		Type:        ruleType,
	}
	return call[Page[FirewallRule]](ctx, c, http.MethodPost, endpointFirewallRules, body, readTimeout)
}

// DebugTargets lists the payloads Raw can dump.
var DebugTargets = []string{"base", "status", "info"}

// Raw returns the undecoded data of a debug target: "base" for dashboard/base,
// "status" for dashboard/current and "info" for the toolbox device info.
func (c *Client) Raw(ctx context.Context, target string) (json.RawMessage, error) {
	switch target {
	case "base":
		return c.request(ctx, http.MethodGet, endpointDashboardBase, nil, readTimeout)
	case "status":
		return c.request(ctx, http.MethodGet, endpointCurrentStatus, nil, readTimeout)
	case "info":
		return c.DeviceBase(ctx)
	default:
		return nil, fmt.Errorf("%w: debug target %q", ErrInvalidArgument, target)
	}
}
