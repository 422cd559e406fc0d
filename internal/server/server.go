// Package server exposes the panel commands over SSH.
//
// A session with a command (`ssh host status`) runs that one command line. A
// session without one reads command lines from stdin until EOF or "exit".
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gliderlabs/ssh"
	"github.com/panelbot/panelbot"
	"github.com/panelbot/panelbot/internal/config"
	gossh "golang.org/x/crypto/ssh"
)

// Restricted algorithm sets offered to clients
var (
	keyExchanges = []string{"curve25519-sha256"}
	macs         = []string{"hmac-sha2-256-etm@openssh.com"}
	ciphers      = []string{"chacha20-poly1305@openssh.com"}
)

const idleTimeout = 70 * time.Second

// Dispatcher runs one command line and yields its replies.
type Dispatcher interface {
	Handle(ctx context.Context, line string) iter.Seq[string]
}

// Options contains configuration options for starting the SSH server.
type Options struct {
	Addr    string            // Network address to listen on (e.g., ":45877" or "/path/to/socket")
	Network string            // Network type ("tcp" or "unix")
	Keys    []gossh.PublicKey // SSH public keys for authentication
}

// Server serves command sessions from holders of the configured keys.
type Server struct {
	mu         sync.Mutex
	dispatcher Dispatcher
	server     *ssh.Server
}

// New creates a server dispatching to d.
func New(d Dispatcher) *Server {
	return &Server{dispatcher: d}
}

// Start listens on opts.Addr and serves until Stop is called.
func (s *Server) Start(opts Options) error {
	slog.Info("Starting SSH server", "addr", opts.Addr, "network", opts.Network)

	if opts.Network == "unix" {
		// remove existing socket file if it exists
		if err := os.Remove(opts.Addr); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	ln, err := net.Listen(opts.Network, opts.Addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	return s.Serve(ln, opts.Keys)
}

// Serve accepts sessions on ln. It blocks until Stop is called.
func (s *Server) Serve(ln net.Listener, keys []gossh.PublicKey) error {
	if len(keys) == 0 {
		return errors.New("no public keys to authenticate with")
	}

	s.mu.Lock()
	if s.server != nil {
		s.mu.Unlock()
		return errors.New("server already started")
	}

	// base config (limit to allowed algorithms)
	cfg := &gossh.ServerConfig{
		ServerVersion: fmt.Sprintf("SSH-2.0-%s_%s", panelbot.AppName, panelbot.Version),
	}
	cfg.KeyExchanges = keyExchanges
	cfg.MACs = macs
	cfg.Ciphers = ciphers

	s.server = &ssh.Server{
		Handler: s.handleSession,
		ServerConfigCallback: func(ctx ssh.Context) *gossh.ServerConfig {
			return cfg
		},
		// check public key(s)
		PublicKeyHandler: func(ctx ssh.Context, key ssh.PublicKey) bool {
			remoteAddr := ctx.RemoteAddr()
			for _, pubKey := range keys {
				if ssh.KeysEqual(key, pubKey) {
					slog.Info("SSH connected", "addr", remoteAddr, "user", ctx.User())
					return true
				}
			}
			slog.Warn("Invalid SSH key", "addr", remoteAddr)
			return false
		},
		// disable pty
		PtyCallback: func(ctx ssh.Context, pty ssh.Pty) bool {
			return false
		},
		IdleTimeout: idleTimeout,
	}
	server := s.server
	s.mu.Unlock()

	err := server.Serve(ln)
	if errors.Is(err, ssh.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop closes the listener and all active sessions.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return errors.New("SSH server not running")
	}

	slog.Info("Stopping SSH server")
	_ = s.server.Close()
	s.server = nil
	return nil
}

// handleSession runs the session's command, or reads command lines from stdin
// when there is none.
func (s *Server) handleSession(sess ssh.Session) {
	logger := slog.With("addr", sess.RemoteAddr(), "user", sess.User())

	if cmd := sess.Command(); len(cmd) > 0 {
		line := strings.Join(cmd, " ")
		logger.Debug("SSH command", "line", line)
		if err := s.run(sess.Context(), sess, line); err != nil {
			logger.Debug("Write failed", "err", err)
			_ = sess.Exit(1)
			return
		}
		_ = sess.Exit(0)
		return
	}

	scanner := bufio.NewScanner(sess)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			_ = sess.Exit(0)
			return
		}
		logger.Debug("SSH command", "line", line)
		if err := s.run(sess.Context(), sess, line); err != nil {
			logger.Debug("Write failed", "err", err)
			_ = sess.Exit(1)
			return
		}
	}
	_ = sess.Exit(0)
}

// run writes every reply of line to w, one per block.
func (s *Server) run(ctx context.Context, w io.Writer, line string) error {
	for msg := range s.dispatcher.Handle(ctx, line) {
		if _, err := io.WriteString(w, strings.TrimRight(msg, "\n")+"\n\n"); err != nil {
			return err
		}
	}
	return nil
}

// ParseKeys parses a string containing SSH public keys in authorized_keys format.
// It returns a slice of ssh.PublicKey and an error if any key fails to parse.
func ParseKeys(input string) ([]gossh.PublicKey, error) {
	var parsedKeys []gossh.PublicKey
	for line := range strings.Lines(input) {
		line = strings.TrimSpace(line)
		// Skip empty lines or comments
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}
		parsedKey, _, _, _, err := gossh.ParseAuthorizedKey([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("failed to parse key: %s, error: %w", line, err)
		}
		parsedKeys = append(parsedKeys, parsedKey)
	}
	return parsedKeys, nil
}

// GetAddress normalizes the listen address, defaulting to config.DefaultListen
// and prefixing a bare port with ":".
func GetAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return config.DefaultListen
	}
	if GetNetwork(addr) != "unix" && !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	return addr
}

// GetNetwork determines the network type based on the address format.
// It checks the NETWORK environment variable first, then infers from
// the address format: addresses starting with "/" are "unix", others are "tcp".
func GetNetwork(addr string) string {
	if network, ok := config.GetEnv("NETWORK"); ok && network != "" {
		return network
	}
	if strings.HasPrefix(addr, "/") {
		return "unix"
	}
	return "tcp"
}
