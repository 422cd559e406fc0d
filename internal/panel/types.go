package panel

import (
	"bytes"

	"github.com/goccy/go-json"
	"github.com/spf13/cast"
)

// Response is the envelope of every panel API response.
type Response[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// Number decodes JSON numbers as well as numeric strings.
// Values that are neither decode to zero instead of failing the payload.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		*n = 0
		return nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		f = 0
	}
	*n = Number(f)
	return nil
}

// Float returns n as a float64.
func (n Number) Float() float64 {
	return float64(n)
}

// Int returns n truncated to an int64.
func (n Number) Int() int64 {
	return int64(n)
}

// Status is the payload of dashboard/current.
type Status struct {
	CPUUsedPercent    Number      `json:"cpuUsedPercent"`
	CPUCores          Number      `json:"cpuCores"`
	MemoryUsedPercent Number      `json:"memoryUsedPercent"`
	MemoryTotal       Number      `json:"memoryTotal"`
	MemoryUsed        Number      `json:"memoryUsed"`
	Load1             Number      `json:"load1"`
	Load5             Number      `json:"load5"`
	Load15            Number      `json:"load15"`
	DiskData          []DiskUsage `json:"diskData"`
	NetBytesRecv      Number      `json:"netBytesRecv"`
	NetBytesSent      Number      `json:"netBytesSent"`

	// Derived from two polls, see Client.CurrentStatus
	NetRecvSpeed     float64 `json:"-"`
	NetSentSpeed     float64 `json:"-"`
	NetSpeedMeasured bool    `json:"-"`
}

// DiskUsage is one mount point in Status.DiskData.
type DiskUsage struct {
	Path        string `json:"path"`
	UsedPercent Number `json:"usedPercent"`
	Total       Number `json:"total"`
	Used        Number `json:"used"`
}

// BaseInfo is the payload of dashboard/base.
type BaseInfo struct {
	Hostname        string `json:"hostname"`
	PrettyDistro    string `json:"prettyDistro"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platformVersion"`
	KernelVersion   string `json:"kernelVersion"`
	KernelArch      string `json:"kernelArch"`
	IPv4Addr        string `json:"ipV4Addr"`
	CPUCores        Number `json:"cpuCores"`
	// JSON document (usually embedded as a string) holding uptime and bootTime
	VirtualizationSystem json.RawMessage `json:"virtualizationSystem"`
}

// Distro returns the pretty distribution name, or "platform version" when the
// panel does not report one.
func (b *BaseInfo) Distro() string {
	if b.PrettyDistro != "" {
		return b.PrettyDistro
	}
	return b.Platform + " " + b.PlatformVersion
}

// Runtime extracts uptime seconds and boot unix time from VirtualizationSystem.
// Both are zero when the field is missing or malformed.
func (b *BaseInfo) Runtime() (uptime, bootTime int64) {
	raw := bytes.TrimSpace(b.VirtualizationSystem)
	if len(raw) == 0 {
		return 0, 0
	}
	if raw[0] == '"' {
		var embedded string
		if err := json.Unmarshal(raw, &embedded); err != nil || embedded == "" {
			return 0, 0
		}
		raw = []byte(embedded)
	}
	var rt struct {
		Uptime   Number `json:"uptime"`
		BootTime Number `json:"bootTime"`
	}
	if err := json.Unmarshal(raw, &rt); err != nil {
		return 0, 0
	}
	return rt.Uptime.Int(), rt.BootTime.Int()
}

// Page is a paginated search result.
type Page[T any] struct {
	Total Number `json:"total"`
	Items []T    `json:"items"`
}

// Container is an item of containers/search.
type Container struct {
	ContainerID string `json:"containerID"`
	Name        string `json:"name"`
	State       string `json:"state"`
	ImageName   string `json:"imageName"`
}

// App is an item of apps/installed/search.
type App struct {
	Name    string `json:"name"`
	AppName string `json:"appName"`
	App     struct {
		Name string `json:"name"`
	} `json:"app"`
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Product returns the catalog app name of an installation.
func (a *App) Product() string {
	if a.App.Name != "" {
		return a.App.Name
	}
	return a.AppName
}

// SSHLog is one login attempt from hosts/ssh/log.
type SSHLog struct {
	Date    string `json:"date"`
	Address string `json:"address"`
	User    string `json:"user"`
	Status  string `json:"status"`
}

// SSHLogPage is the payload of hosts/ssh/log. Depending on the panel version
// entries are reported under logs or items.
type SSHLogPage struct {
	Total Number   `json:"total"`
	Logs  []SSHLog `json:"logs"`
	Items []SSHLog `json:"items"`
}

// Entries returns the log entries regardless of the field they came in.
func (p *SSHLogPage) Entries() []SSHLog {
	if len(p.Logs) > 0 {
		return p.Logs
	}
	return p.Items
}

// FirewallRule is an item of hosts/firewall/search.
type FirewallRule struct {
	Port        string `json:"port"`
	Protocol    string `json:"protocol"`
	Strategy    string `json:"strategy"`
	Description string `json:"description"`
	Address     string `json:"address"`
}

// CronJob is an item of cronjobs/search.
type CronJob struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status string `json:"status"`
	Spec   string `json:"spec"`
}
