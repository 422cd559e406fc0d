//go:build testing

package panel

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blang/semver"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient returns a client pointed at an httptest server running handler.
func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := New(Credentials{Host: server.URL, APIKey: "k"}, opts...)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func writeEnvelope(w http.ResponseWriter, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Response[any]{Code: code, Message: message, Data: data})
}

func TestGenerateAuth(t *testing.T) {
	auth := GenerateAuth("k", time.Unix(1700000000, 0))

	sum := md5.Sum([]byte("1panelk1700000000"))
	assert.Equal(t, hex.EncodeToString(sum[:]), auth.Token)
	assert.Equal(t, "1700000000", auth.Timestamp)

	header := http.Header{}
	auth.Apply(header)
	assert.Equal(t, auth.Token, header.Get("1Panel-Token"))
	assert.Equal(t, "1700000000", header.Get("1Panel-Timestamp"))
}

func TestRequestHeaders(t *testing.T) {
	fixed := time.Unix(1700000000, 0)
	var got http.Header
	var path string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		path = r.URL.Path
		writeEnvelope(w, 200, "", map[string]any{})
	}, WithClock(func() time.Time { return fixed }))

	_, err := client.Request(context.Background(), http.MethodGet, "dashboard/base/all/all", nil)
	require.NoError(t, err)

	want := GenerateAuth("k", fixed)
	assert.Equal(t, want.Token, got.Get(TokenHeader))
	assert.Equal(t, want.Timestamp, got.Get(TimestampHeader))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Contains(t, got.Get("User-Agent"), "panelbot/")
	assert.Equal(t, "/api/v2/dashboard/base/all/all", path)
}

func TestFreshTokenPerRequest(t *testing.T) {
	var tick atomic.Int64
	tick.Store(1700000000)
	var timestamps []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		timestamps = append(timestamps, r.Header.Get(TimestampHeader))
		writeEnvelope(w, 200, "", nil)
	}, WithClock(func() time.Time { return time.Unix(tick.Add(1), 0) }))

	for range 2 {
		_, err := client.Request(context.Background(), http.MethodGet, "dashboard/current/all/all", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"1700000001", "1700000002"}, timestamps)
}

func TestAPIVersionPrefix(t *testing.T) {
	var path string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		writeEnvelope(w, 200, "", nil)
	}, WithAPIVersion(semver.MustParse("1.10.0")))

	_, err := client.Request(context.Background(), http.MethodGet, "/dashboard/base/all/all", nil)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/dashboard/base/all/all", path)
}

func TestRequestErrors(t *testing.T) {
	t.Run("remote error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, 401, "API 接口密钥错误", nil)
		})
		_, err := client.Request(context.Background(), http.MethodGet, "dashboard/base/all/all", nil)
		remote, ok := IsRemote(err)
		require.True(t, ok, "expected RemoteError, got %v", err)
		assert.Equal(t, 401, remote.Code)
		assert.Equal(t, "API 接口密钥错误", remote.Message)
		assert.False(t, IsTransport(err))
	})

	t.Run("undecodable body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			io.WriteString(w, "<html>bad gateway</html>")
		})
		_, err := client.Request(context.Background(), http.MethodGet, "dashboard/base/all/all", nil)
		require.Error(t, err)
		assert.True(t, IsTransport(err))
		assert.Contains(t, err.Error(), "HTTP 502")
	})

	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		server.Close()
		client, err := New(Credentials{Host: server.URL, APIKey: "k"})
		require.NoError(t, err)
		_, err = client.Request(context.Background(), http.MethodGet, "dashboard/base/all/all", nil)
		assert.True(t, IsTransport(err))
	})

	t.Run("context cancelled", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		})
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := client.Request(ctx, http.MethodGet, "dashboard/base/all/all", nil)
		require.Error(t, err)
		assert.True(t, IsTransport(err))
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})

	t.Run("not configured", func(t *testing.T) {
		var called bool
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer server.Close()
		client, err := New(Credentials{Host: server.URL})
		require.NoError(t, err)
		assert.False(t, client.Configured())

		_, err = client.CurrentStatus(context.Background(), true)
		assert.ErrorIs(t, err, ErrNotConfigured)
		assert.False(t, called)
	})
}

func TestNewValidatesHost(t *testing.T) {
	tests := []struct {
		host    string
		want    string
		wantErr bool
	}{
		{host: "", want: DefaultHost},
		{host: "http://192.168.1.1:10086/", want: "http://192.168.1.1:10086"},
		{host: " https://panel.example.com ", want: "https://panel.example.com"},
		{host: "panel.example.com", wantErr: true},
		{host: "ftp://panel.example.com", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			client, err := New(Credentials{Host: tt.host, APIKey: "k"})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, client.Host())
		})
	}
}

func TestTLSVerification(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 200, "", map[string]any{})
	}))
	defer server.Close()

	t.Run("skipped by default", func(t *testing.T) {
		client, err := New(Credentials{Host: server.URL, APIKey: "k"})
		require.NoError(t, err)
		defer client.Close()
		_, err = client.Request(context.Background(), http.MethodGet, "dashboard/base/all/all", nil)
		assert.NoError(t, err)
	})

	t.Run("self-signed certificate rejected when verifying", func(t *testing.T) {
		client, err := New(Credentials{Host: server.URL, APIKey: "k", VerifySSL: true})
		require.NoError(t, err)
		defer client.Close()
		_, err = client.Request(context.Background(), http.MethodGet, "dashboard/base/all/all", nil)
		require.Error(t, err)
		var transportErr *TransportError
		assert.True(t, errors.As(err, &transportErr), "expected TransportError, got %v", err)
	})
}

func TestInsecureWarning(t *testing.T) {
	var buf bytes.Buffer
	original := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(original) })

	for _, host := range []string{"http://127.0.0.1:10086", "https://127.0.0.1:10086"} {
		buf.Reset()
		_, err := New(Credentials{Host: host, APIKey: "k"})
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "TLS certificate verification disabled", host)
	}

	buf.Reset()
	_, err := New(Credentials{Host: "https://127.0.0.1:10086", APIKey: "k", VerifySSL: true})
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "verification disabled")
}

func TestRequestTimeouts(t *testing.T) {
	defer SetTimeouts(50*time.Millisecond, 2*time.Second)()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(200 * time.Millisecond):
		case <-r.Context().Done():
			return
		}
		writeEnvelope(w, 200, "", map[string]any{})
	})

	t.Run("reads use the read timeout", func(t *testing.T) {
		_, err := client.DashboardBase(context.Background())
		require.Error(t, err)
		assert.True(t, IsTransport(err))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("container operations use the operate timeout", func(t *testing.T) {
		assert.NoError(t, client.OperateContainer(context.Background(), "web", "restart"))
	})
}
