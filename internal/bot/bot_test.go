//go:build testing

package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/panelbot/panelbot/internal/panel"
	"github.com/panelbot/panelbot/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// route answers one endpoint with (code, message, data)
type route func(body map[string]any) (int, string, any)

type recordedCall struct {
	Path   string
	Header http.Header
	Body   map[string]any
}

// fakePanel is an httptest server speaking the panel envelope.
type fakePanel struct {
	mu     sync.Mutex
	routes map[string]route
	calls  []recordedCall
}

func (f *fakePanel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	path := strings.TrimPrefix(r.URL.Path, "/api/v2/")

	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{Path: path, Header: r.Header.Clone(), Body: body})
	handler, ok := f.routes[path]
	f.mu.Unlock()

	code, message, data := 404, "not found", any(nil)
	if ok {
		code, message, data = handler(body)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "message": message, "data": data})
}

func (f *fakePanel) Calls() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

func ok(data any) route {
	return func(map[string]any) (int, string, any) { return 200, "", data }
}

func newTestBot(t *testing.T, apiKey string, routes map[string]route) (*Bot, *fakePanel) {
	t.Helper()
	t.Cleanup(panel.SetNetSampleInterval(10 * time.Millisecond))

	fake := &fakePanel{routes: routes}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client, err := panel.New(panel.Credentials{Host: server.URL, APIKey: apiKey})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return New(client), fake
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		command string
		args    []string
	}{
		{"", "", nil},
		{"   ", "", nil},
		{"panel", "", nil},
		{"/panel", "", nil},
		{"/PANEL Status", "status", []string{}},
		{"status", "status", []string{}},
		{"/panel  docker   restart web ", "docker", []string{"restart", "web"}},
		{"panel ssh 2 Failed", "ssh", []string{"2", "Failed"}},
	}
	for _, tt := range tests {
		command, args := parseLine(tt.line)
		assert.Equal(t, tt.command, command, tt.line)
		if tt.args == nil {
			assert.Empty(t, args, tt.line)
		} else {
			assert.Equal(t, tt.args, args, tt.line)
		}
	}
}

func TestHandlerRegistry(t *testing.T) {
	t.Run("default registration", func(t *testing.T) {
		registry := NewHandlerRegistry()
		assert.Equal(t, []string{"all", "apps", "cron", "debug", "docker", "firewall", "help", "info", "ssh", "status"}, registry.Commands())

		handler, exists := registry.GetHandler("STATUS")
		assert.True(t, exists)
		assert.IsType(t, &StatusHandler{}, handler)
	})

	t.Run("unknown command", func(t *testing.T) {
		registry := NewHandlerRegistry()
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		err := registry.Handle(&HandlerContext{Command: "nope", Logger: logger})
		assert.ErrorIs(t, err, ErrUnknownCommand)
		assert.Contains(t, buf.String(), "commands=")
		assert.Contains(t, buf.String(), "status")
	})

	t.Run("registered words are lowercased", func(t *testing.T) {
		registry := NewHandlerRegistry()
		registry.Register("Ping", HandlerFunc(func(hctx *HandlerContext) error {
			hctx.Reply("pong")
			return nil
		}))
		var got []string
		err := registry.Handle(&HandlerContext{
			Command: "ping",
			Logger:  discardLogger(),
			Reply:   func(msg string) bool { got = append(got, msg); return true },
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"pong"}, got)
		assert.Contains(t, registry.Commands(), "ping")
	})
}

func TestNotConfigured(t *testing.T) {
	b, fake := newTestBot(t, "", nil)

	for _, line := range []string{"", "/panel status", "panel docker restart web"} {
		assert.Equal(t, []string{report.NotConfigured}, b.Reply(context.Background(), line))
	}
	assert.Empty(t, fake.Calls())
}

func TestHelpAndUnknown(t *testing.T) {
	b, fake := newTestBot(t, "k", nil)

	assert.Equal(t, []string{report.Help}, b.Reply(context.Background(), "/panel"))
	assert.Equal(t, []string{report.Help}, b.Reply(context.Background(), "panel help"))
	assert.Equal(t, []string{report.UnknownCommand("reboot")}, b.Reply(context.Background(), "/panel REBOOT"))
	assert.Empty(t, fake.Calls())
}

func TestStatusEndToEnd(t *testing.T) {
	snapshots := []map[string]any{
		{"cpuUsedPercent": 12.34, "cpuCores": 4, "memoryUsedPercent": 55, "memoryTotal": 8 << 30, "memoryUsed": 4 << 30, "load1": 0.5, "netBytesRecv": 100, "netBytesSent": 50},
		{"cpuUsedPercent": 80, "cpuCores": 4, "memoryUsedPercent": 60, "load1": 0.6, "netBytesRecv": 150, "netBytesSent": 80},
	}
	var mu sync.Mutex
	polls := 0
	b, fake := newTestBot(t, "k", map[string]route{
		"dashboard/current/all/all": func(map[string]any) (int, string, any) {
			mu.Lock()
			defer mu.Unlock()
			s := snapshots[min(polls, 1)]
			polls++
			return 200, "", s
		},
	})

	replies := b.Reply(context.Background(), "/panel status")
	require.Len(t, replies, 1)
	out := replies[0]
	assert.Contains(t, out, "CPU: 12.34% (4 核/cores)")
	assert.Contains(t, out, "内存/Memory: 55.00% (4.00 GB / 8.00 GB)")
	assert.Contains(t, out, "上行/Up: 30.00 B/s | 总发送/Sent: 80.00 B")
	assert.Contains(t, out, "下行/Down: 50.00 B/s | 总接收/Received: 150.00 B")

	calls := fake.Calls()
	require.Len(t, calls, 2)
	for _, call := range calls {
		assert.Len(t, call.Header.Get("1Panel-Token"), 32)
		assert.NotEmpty(t, call.Header.Get("1Panel-Timestamp"))
	}
}

func TestSSHPagination(t *testing.T) {
	b, fake := newTestBot(t, "k", map[string]route{
		"hosts/ssh/log": func(body map[string]any) (int, string, any) {
			return 200, "", map[string]any{
				"total": 25,
				"logs":  []map[string]any{{"date": "2024-01-01", "address": "1.2.3.4", "status": body["status"]}},
			}
		},
	})

	tests := []struct {
		line   string
		page   int
		status string
	}{
		{"/panel ssh", 1, "All"},
		{"/panel ssh 2", 2, "All"},
		{"/panel ssh failed", 1, "Failed"},
		{"/panel ssh 3 success", 3, "Success"},
		{"/panel ssh 0", 1, "All"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			before := len(fake.Calls())
			replies := b.Reply(context.Background(), tt.line)
			require.Len(t, replies, 1)

			calls := fake.Calls()
			require.Len(t, calls, before+1)
			body := calls[before].Body
			assert.Equal(t, float64(tt.page), body["page"])
			assert.Equal(t, float64(sshPageSize), body["pageSize"])
			assert.Equal(t, tt.status, body["status"])
			assert.Contains(t, replies[0], fmt.Sprintf("第 %d 页/page %d", tt.page, tt.page))
		})
	}

	t.Run("invalid status", func(t *testing.T) {
		before := len(fake.Calls())
		replies := b.Reply(context.Background(), "/panel ssh 2 maybe")
		assert.Equal(t, []string{report.SSHUsage("maybe")}, replies)
		assert.Len(t, fake.Calls(), before)
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestDockerOperate(t *testing.T) {
	var operated map[string]any
	b, fake := newTestBot(t, "k", map[string]route{
		"containers/operate": func(body map[string]any) (int, string, any) {
			operated = body
			if body["names"].([]any)[0] == "ghost" {
				return 500, "no such container", nil
			}
			return 200, "", nil
		},
	})

	t.Run("success", func(t *testing.T) {
		replies := b.Reply(context.Background(), "/panel docker Restart web")
		assert.Equal(t, []string{report.ContainerOperating("web", "restart"), report.ContainerOperated("web", "restart")}, replies)
		assert.Equal(t, []any{"web"}, operated["names"])
		assert.Equal(t, "restart", operated["operation"])
	})

	t.Run("remote error", func(t *testing.T) {
		replies := b.Reply(context.Background(), "/panel docker stop ghost")
		require.Len(t, replies, 2)
		assert.Contains(t, replies[1], "no such container")
	})

	t.Run("missing name", func(t *testing.T) {
		before := len(fake.Calls())
		replies := b.Reply(context.Background(), "/panel docker start")
		assert.Equal(t, []string{report.ContainerUsage("start")}, replies)
		assert.Len(t, fake.Calls(), before)
	})

	t.Run("stop after progress", func(t *testing.T) {
		before := len(fake.Calls())
		for msg := range b.Handle(context.Background(), "/panel docker pause web") {
			assert.Equal(t, report.ContainerOperating("web", "pause"), msg)
			break
		}
		assert.Len(t, fake.Calls(), before)
	})
}

func TestHandleIsLazy(t *testing.T) {
	b, fake := newTestBot(t, "k", map[string]route{
		"containers/search": ok(map[string]any{"total": 0, "items": []any{}}),
	})

	seq := b.Handle(context.Background(), "/panel docker")
	assert.Empty(t, fake.Calls())

	var replies []string
	for msg := range seq {
		replies = append(replies, msg)
	}
	assert.Equal(t, []string{report.NoContainers}, replies)
	require.Len(t, fake.Calls(), 1)
	assert.Equal(t, "containers/search", fake.Calls()[0].Path)
}

func TestListCommands(t *testing.T) {
	b, fake := newTestBot(t, "k", map[string]route{
		"containers/search": ok(map[string]any{"total": 1, "items": []any{
			map[string]any{"name": "web", "state": "running", "imageName": "nginx:latest"},
		}}),
		"apps/installed/search": ok(map[string]any{"total": "1", "items": []any{
			map[string]any{"name": "mysql", "status": "Running", "version": "8.0"},
		}}),
		"cronjobs/search":       ok(map[string]any{"total": 0, "items": nil}),
		"hosts/firewall/search": ok(map[string]any{"total": 1, "items": []any{map[string]any{"address": "10.0.0.1", "strategy": "accept"}}}),
	})

	assert.Contains(t, b.Reply(context.Background(), "docker")[0], "🟢 web")
	apps := b.Reply(context.Background(), "apps")[0]
	assert.Contains(t, apps, "🟢 mysql v8.0")
	assert.Contains(t, apps, "共/total 1")
	assert.Equal(t, []string{report.NoCronJobs}, b.Reply(context.Background(), "cron"))
	assert.Contains(t, b.Reply(context.Background(), "firewall ADDRESS")[0], "✅ 10.0.0.1")

	calls := fake.Calls()
	last := calls[len(calls)-1]
	assert.Equal(t, "address", last.Body["type"])
	assert.Equal(t, float64(firewallPageSize), last.Body["pageSize"])

	before := len(calls)
	assert.Equal(t, []string{report.FirewallUsage("nat")}, b.Reply(context.Background(), "firewall nat"))
	assert.Len(t, fake.Calls(), before)
}

func TestErrorRendering(t *testing.T) {
	t.Run("remote", func(t *testing.T) {
		b, _ := newTestBot(t, "k", map[string]route{
			"dashboard/base/all/all": func(map[string]any) (int, string, any) { return 401, "token expired", nil },
		})
		replies := b.Reply(context.Background(), "info")
		require.Len(t, replies, 1)
		assert.Contains(t, replies[0], "token expired")
	})

	t.Run("transport", func(t *testing.T) {
		client, err := panel.New(panel.Credentials{Host: "http://127.0.0.1:1", APIKey: "k"})
		require.NoError(t, err)
		replies := New(client).Reply(context.Background(), "info")
		assert.Equal(t, []string{report.Failed("获取系统信息/Fetching system info")}, replies)
	})

	t.Run("partial overview", func(t *testing.T) {
		b, _ := newTestBot(t, "k", map[string]route{
			"dashboard/base/all/all": ok(map[string]any{"hostname": "web-1"}),
		})
		replies := b.Reply(context.Background(), "all")
		require.Len(t, replies, 1)
		assert.Contains(t, replies[0], "主机名称/Hostname: web-1")
		assert.NotContains(t, replies[0], "CPU")
	})

	t.Run("overview fails", func(t *testing.T) {
		b, _ := newTestBot(t, "k", nil)
		replies := b.Reply(context.Background(), "all")
		require.Len(t, replies, 1)
		assert.True(t, strings.HasPrefix(replies[0], "❌"))
	})
}

func TestPanicRecovery(t *testing.T) {
	b, _ := newTestBot(t, "k", nil)
	b.Registry().Register("boom", HandlerFunc(func(hctx *HandlerContext) error {
		hctx.Reply("first")
		panic("kaboom")
	}))

	replies := b.Reply(context.Background(), "boom")
	assert.Equal(t, []string{"first", report.Crashed("boom")}, replies)
}

func TestConsumerPanicPropagates(t *testing.T) {
	b, _ := newTestBot(t, "k", nil)
	assert.PanicsWithValue(t, "consumer", func() {
		for range b.Handle(context.Background(), "help") {
			panic("consumer")
		}
	})
}

func TestDebug(t *testing.T) {
	b, fake := newTestBot(t, "k", map[string]route{
		"toolbox/device/base": ok(map[string]any{"dns": []string{"1.1.1.1"}}),
	})

	replies := b.Reply(context.Background(), "debug info")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "(info)")
	assert.Contains(t, replies[0], "1.1.1.1")
	assert.Equal(t, "toolbox/device/base", fake.Calls()[0].Path)

	assert.Equal(t, []string{report.DebugUsage("disk")}, b.Reply(context.Background(), "debug disk"))
}

func TestRenderUnwrapped(t *testing.T) {
	msg := render(discardLogger(), "status", errors.New("boom"))
	assert.Equal(t, report.Failed("status"), msg)
}

func TestRenderTransport(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	err := failure("获取系统状态/Fetching system status", &panel.TransportError{
		Endpoint: "dashboard/current/all/all",
		Err:      context.DeadlineExceeded,
	})
	msg := render(logger, "status", err)
	assert.Equal(t, report.Failed("获取系统状态/Fetching system status"), msg)
	assert.Contains(t, buf.String(), "Panel unreachable")
	assert.Contains(t, buf.String(), "dashboard/current/all/all")

	buf.Reset()
	render(logger, "status", errors.New("boom"))
	assert.Contains(t, buf.String(), "Command failed")
	assert.NotContains(t, buf.String(), "Panel unreachable")
}
