package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/ctagard/cdp-bridge/internal/config"
	"github.com/ctagard/cdp-bridge/internal/logging"
	"github.com/ctagard/cdp-bridge/internal/mcp"
	"github.com/ctagard/cdp-bridge/internal/version"
)

type cli struct {
	Config   string `short:"c" type:"path" help:"Path to the cdp-bridge.yaml configuration file."`
	Mode     string `help:"Capability mode override: 'readonly' or 'full'."`
	LogLevel string `name:"log-level" help:"Log level override: debug, info, warn or error."`
	Dev      bool   `help:"Development logging: console encoder on stderr."`

	Serve   serveCmd   `cmd:"" default:"1" help:"Serve MCP tools over stdio."`
	Version versionCmd `cmd:"" help:"Print version information and exit."`
}

type serveCmd struct{}

func (s *serveCmd) Run(c *cli) error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	switch c.Mode {
	case "":
	case "readonly":
		cfg.Mode = config.ModeReadOnly
	case "full":
		cfg.Mode = config.ModeFull
	default:
		return fmt.Errorf("unknown mode %q, expected 'readonly' or 'full'", c.Mode)
	}
	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
	}
	if c.Dev {
		cfg.Logging.Development = true
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	server := mcp.NewServer(cfg, log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		server.Close()
		os.Exit(0)
	}()

	log.Info("serving MCP over stdio",
		zap.String("version", version.Version), zap.String("mode", string(cfg.Mode)))
	if err := server.ServeStdio(); err != nil {
		server.Close()
		return err
	}
	server.Close()
	return nil
}

type versionCmd struct{}

func (v *versionCmd) Run() error {
	fmt.Println(version.Full())
	return nil
}

func main() {
	var c cli
	ctx := kong.Parse(&c,
		kong.Name(version.Name),
		kong.Description("Bridge Chrome DevTools Protocol targets (Node.js, Chrome, Deno) to MCP tools for AI-assisted debugging."),
		kong.UsageOnError(),
		kong.Vars{"version": version.Version},
	)
	ctx.FatalIfErrorf(ctx.Run(&c))
}
