// Package mcp exposes the bridge's control surface as MCP tools.
//
// Session tools (always available):
//   - cdp_attach: attach to a running CDP endpoint
//   - cdp_launch: launch a runtime from a profile and attach (full mode)
//   - cdp_detach: tear a session down
//   - cdp_sessions: list active sessions
//   - cdp_discover: list debuggable targets at an endpoint
//
// Inspection tools (always available):
//   - cdp_threads, cdp_pause_details, cdp_execution_contexts
//   - cdp_output, cdp_script_source, cdp_custom_breakpoints
//
// Control tools (full mode only):
//   - cdp_pause, cdp_resume, cdp_step, cdp_restart_frame
//   - cdp_set_exception_policy
//   - cdp_enable_custom_breakpoint, cdp_disable_custom_breakpoint
package mcp

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ctagard/cdp-bridge/internal/config"
	"github.com/ctagard/cdp-bridge/internal/session"
	"github.com/ctagard/cdp-bridge/internal/version"
)

// Server wraps the MCP server around a session manager.
type Server struct {
	mcpServer *server.MCPServer
	sessions  *session.Manager
	config    *config.Config
	log       *zap.Logger
}

// NewServer builds the MCP server and registers the tool set the
// configured mode allows.
func NewServer(cfg *config.Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	mcpServer := server.NewMCPServer(
		version.Name,
		version.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s := &Server{
		mcpServer: mcpServer,
		sessions:  session.NewManager(cfg, log),
		config:    cfg,
		log:       log.Named("mcp"),
	}
	s.registerTools()
	return s
}

// ServeStdio runs the server over stdin/stdout until the client hangs up.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// Close detaches every session.
func (s *Server) Close() {
	s.sessions.Close()
}

// Sessions returns the session manager.
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}
