package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/panelbot/panelbot"
	"github.com/panelbot/panelbot/internal/bot"
	"github.com/panelbot/panelbot/internal/config"
	"github.com/panelbot/panelbot/internal/health"
	"github.com/panelbot/panelbot/internal/notify"
	"github.com/panelbot/panelbot/internal/panel"
	"github.com/panelbot/panelbot/internal/server"
	"github.com/spf13/pflag"
)

// interval between health file updates while serving
const healthInterval = 30 * time.Second

// cli options
type cmdOptions struct {
	configPath string // configPath is the YAML config file.
	raw        bool   // raw prints replies without boxes.
	version    bool
	help       bool
	args       []string // args are the positional arguments after flag parsing.
}

// newFlagSet registers the flags. Setting values are bound to cfgFlags so that
// only flags given on the command line override the loaded config.
func newFlagSet(opts *cmdOptions, cfgFlags *config.Config, out io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(panelbot.AppName, pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file (env CONFIG)")
	fs.StringVar(&cfgFlags.PanelHost, "host", "", "Panel URL, e.g. http://192.168.1.1:10086")
	fs.StringVar(&cfgFlags.PanelAPIKey, "api-key", "", "Panel API key")
	fs.BoolVar(&cfgFlags.VerifySSL, "verify-ssl", false, "Verify the panel's TLS certificate")
	fs.StringVar(&cfgFlags.APIVersion, "api-version", "", "Panel API version (default 2)")
	fs.StringVar(&cfgFlags.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	fs.StringVarP(&cfgFlags.Listen, "listen", "l", "", "Address or port the SSH server listens on")
	fs.StringVarP(&cfgFlags.Keys, "keys", "k", "", "Public key(s) allowed to connect to the SSH server")
	fs.StringVar(&cfgFlags.NotifyURL, "notify", "", "Also send replies to this shoutrrr URL")
	fs.BoolVar(&opts.raw, "raw", false, "Print replies as plain text")
	fs.BoolVarP(&opts.version, "version", "v", false, "Show version information")
	fs.BoolVarP(&opts.help, "help", "h", false, "Show this help message")

	fs.Usage = func() {
		builder := strings.Builder{}
		builder.WriteString("Usage: ")
		builder.WriteString(panelbot.AppName)
		builder.WriteString(" [flags] <command...>\n")
		builder.WriteString("       ")
		builder.WriteString(panelbot.AppName)
		builder.WriteString(" [serve|health|version|help] [flags]\n")
		builder.WriteString("\nCommands:\n")
		builder.WriteString("  serve     Serve panel commands over SSH\n")
		builder.WriteString("  health    Check if the SSH server is running\n")
		builder.WriteString("  version   Show version information\n")
		builder.WriteString("  help      Display this help message\n")
		builder.WriteString("  <command> Run one panel command, e.g. status or docker restart web\n")
		builder.WriteString("\nFlags:\n")
		fmt.Fprint(out, builder.String())
		fs.PrintDefaults()
	}
	return fs
}

// mergeFlags copies the flags that were set onto cfg.
func mergeFlags(fs *pflag.FlagSet, cfgFlags, cfg *config.Config) {
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "host":
			cfg.PanelHost = cfgFlags.PanelHost
		case "api-key":
			cfg.PanelAPIKey = cfgFlags.PanelAPIKey
		case "verify-ssl":
			cfg.VerifySSL = cfgFlags.VerifySSL
		case "api-version":
			cfg.APIVersion = cfgFlags.APIVersion
		case "log-level":
			cfg.LogLevel = cfgFlags.LogLevel
		case "listen":
			cfg.Listen = cfgFlags.Listen
		case "keys":
			cfg.Keys = cfgFlags.Keys
		case "notify":
			cfg.NotifyURL = cfgFlags.NotifyURL
		}
	})
}

// loadConfig parses args and returns the merged, validated config.
func loadConfig(args []string, stdout io.Writer) (*cmdOptions, *config.Config, error) {
	var opts cmdOptions
	var cfgFlags config.Config
	fs := newFlagSet(&opts, &cfgFlags, stdout)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	opts.args = fs.Args()
	if opts.version || opts.help {
		return &opts, nil, nil
	}

	if opts.configPath == "" {
		opts.configPath, _ = config.GetEnv("CONFIG")
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	mergeFlags(fs, &cfgFlags, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return &opts, cfg, nil
}

func newClient(cfg *config.Config) (*panel.Client, error) {
	version, err := cfg.Version()
	if err != nil {
		return nil, err
	}
	return panel.New(panel.Credentials{
		Host:      cfg.PanelHost,
		APIKey:    cfg.PanelAPIKey,
		VerifySSL: cfg.VerifySSL,
	}, panel.WithAPIVersion(version))
}

func main() {
	// Subcommands that don't require any flag parsing
	if len(os.Args) > 1 && os.Args[1] == "health" {
		if err := health.Check(); err != nil {
			log.Fatal(err)
		}
		fmt.Print("ok")
		return
	}

	args := os.Args[1:]
	subcommand := ""
	if len(args) > 0 {
		switch args[0] {
		case "serve", "version", "help":
			subcommand, args = args[0], args[1:]
		}
	}

	opts, cfg, err := loadConfig(args, os.Stdout)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}

	// Must run before the config error check so that both work without a valid config
	switch {
	case subcommand == "version" || (opts != nil && opts.version):
		fmt.Println(panelbot.AppName, panelbot.Version)
		return
	case subcommand == "help" || (opts != nil && opts.help):
		var discard config.Config
		newFlagSet(&cmdOptions{}, &discard, os.Stdout).Usage()
		return
	}
	if err != nil {
		log.Fatal(err)
	}

	config.ApplyLogLevel(cfg.LogLevel)
	slog.Debug(panelbot.Version)

	client, err := newClient(cfg)
	if err != nil {
		log.Fatal("Failed to create panel client: ", err)
	}
	defer client.Close()
	slog.Debug("Panel client", "host", client.Host())
	if !client.Configured() {
		slog.Warn("Panel API key not configured, commands will reply with a configuration hint")
	}

	b := bot.New(client)

	if subcommand == "serve" {
		if err := serve(b, cfg); err != nil {
			client.Close()
			log.Fatal("Failed to start server: ", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := runOnce(ctx, b, cfg, strings.Join(opts.args, " "), opts.raw, os.Stdout); err != nil {
		stop()
		client.Close()
		log.Fatal(err)
	}
}

// runOnce prints the replies of one command line and forwards them when a
// notify URL is configured.
func runOnce(ctx context.Context, b *bot.Bot, cfg *config.Config, line string, raw bool, w io.Writer) error {
	var notifier *notify.Notifier
	if cfg.NotifyURL != "" {
		var err error
		if notifier, err = notify.New(cfg.NotifyURL); err != nil {
			return err
		}
	}

	var notifyErr error
	for msg := range b.Handle(ctx, line) {
		fmt.Fprintln(w, render(msg, raw))
		if notifier != nil {
			if err := notifier.Send(panelbot.AppName, msg); err != nil && notifyErr == nil {
				notifyErr = fmt.Errorf("failed to send notification: %w", err)
			}
		}
	}
	return notifyErr
}

// serve runs the SSH server until SIGINT or SIGTERM.
func serve(b *bot.Bot, cfg *config.Config) error {
	rawKeys, err := cfg.AuthorizedKeys()
	if err != nil {
		return err
	}
	keys, err := server.ParseKeys(rawKeys)
	if err != nil {
		return err
	}

	addr := server.GetAddress(cfg.Listen)
	srv := server.New(b)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go health.Run(ctx, healthInterval)
	go func() {
		<-ctx.Done()
		_ = srv.Stop()
	}()

	return srv.Start(server.Options{
		Addr:    addr,
		Network: server.GetNetwork(addr),
		Keys:    keys,
	})
}
