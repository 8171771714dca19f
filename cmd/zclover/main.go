package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/zarlcorp/core/pkg/zapp"
	"github.com/zarlcorp/core/pkg/zcrypto"
	"github.com/zarlcorp/zclover/internal/cli"
	"github.com/zarlcorp/zclover/internal/config"
	"github.com/zarlcorp/zclover/internal/tui"
	"github.com/zarlcorp/zclover/internal/vault"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	app := zapp.New(zapp.WithName("zclover"))

	ctx, cancel := zapp.SignalContext(context.Background())
	defer cancel()

	dataDir := cli.DataDir()
	cfg, err := config.Load(config.Path(dataDir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "zclover: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := newLogger(cfg, dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zclover: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	slog.SetDefault(logger)

	if len(os.Args) > 1 {
		if err := runCLI(ctx, cfg, dataDir, logger, os.Args[1], os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "zclover: %v\n", err)
			_ = app.Close()
			os.Exit(1)
		}
		_ = app.Close()
		return
	}

	if err := runTUI(ctx, cfg, dataDir, logger); err != nil {
		slog.Error("tui", "err", err)
		_ = app.Close()
		os.Exit(1)
	}

	if err := app.Close(); err != nil {
		slog.Error("shutdown", "err", err)
		os.Exit(1)
	}
}

// newLogger writes to the configured log file. Without one, logs go to
// stderr for commands and are discarded while the TUI owns the terminal.
func newLogger(cfg *config.Config, dataDir string) (*slog.Logger, func(), error) {
	opts := &slog.HandlerOptions{Level: cfg.Level()}
	if cfg.LogFile == "" {
		if len(os.Args) > 1 {
			return slog.New(slog.NewTextHandler(os.Stderr, opts)), func() {}, nil
		}
		return slog.New(slog.DiscardHandler), func() {}, nil
	}

	path := cfg.LogFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(dataDir, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(slog.NewJSONHandler(f, opts)), func() { f.Close() }, nil
}

func runCLI(ctx context.Context, cfg *config.Config, dataDir string, logger *slog.Logger, cmd string, args []string) error {
	env := cli.Env{Config: cfg, Out: os.Stdout, Err: os.Stderr, Logger: logger}

	switch cmd {
	case "version":
		fmt.Printf("zclover %s\n", version)
		return nil
	case "endpoints":
		return cli.CmdEndpoints(os.Stdout, cfg, args)
	}

	var usage string
	switch cmd {
	case "login":
		usage = "usage: zclover login <email>"
	case "avatar":
		usage = "usage: zclover avatar <file>"
	case "whoami", "logout":
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	if usage != "" && len(args) < 1 {
		return errors.New(usage)
	}

	v, err := cli.OpenVault(dataDir)
	if err != nil {
		return err
	}
	defer v.Close()
	env.Vault = v

	switch cmd {
	case "login":
		pass, err := cli.ReadPassword("clover password: ", os.Stderr)
		if err != nil {
			return err
		}
		defer zcrypto.Erase(pass)
		return cli.CmdLogin(ctx, env, args[0], pass)
	case "logout":
		return cli.CmdLogout(ctx, env)
	case "whoami":
		err := cli.CmdWhoami(ctx, env, args)
		if errors.Is(err, vault.ErrNoSession) {
			return errors.New("not logged in, run: zclover login <email>")
		}
		return err
	case "avatar":
		return cli.CmdAvatar(ctx, env, args[0])
	}
	return nil
}

func runTUI(ctx context.Context, cfg *config.Config, dataDir string, logger *slog.Logger) error {
	firstRun := vault.IsFirstRun(dataDir)

	m := tui.New(tui.Options{
		Version:  version,
		DataDir:  dataDir,
		Config:   cfg,
		Logger:   logger,
		FirstRun: firstRun,
		Context:  ctx,
	})
	p := tea.NewProgram(m)
	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	if fm, ok := finalModel.(tui.Model); ok {
		fm.Close()
	}

	return nil
}
