package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// registerTools registers the tool set. Control tools are only visible in
// full mode; readonly clients cannot even see them.
func (s *Server) registerTools() {
	// Session tools
	s.registerAttach()
	s.registerDetach()
	s.registerSessions()
	s.registerDiscover()

	// Inspection tools
	s.registerThreads()
	s.registerPauseDetails()
	s.registerExecutionContexts()
	s.registerOutput()
	s.registerScriptSource()
	s.registerCustomBreakpoints()

	// Control tools
	if s.config.CanUseControlTools() {
		s.registerLaunch()
		s.registerPause()
		s.registerResume()
		s.registerStep()
		s.registerRestartFrame()
		s.registerSetExceptionPolicy()
		s.registerEnableCustomBreakpoint()
		s.registerDisableCustomBreakpoint()
	}
}

// Session tools

func (s *Server) registerAttach() {
	tool := mcp.NewTool("cdp_attach",
		mcp.WithDescription("Attach to a running CDP endpoint (Node.js --inspect, Chrome --remote-debugging-port, Deno). Provide wsUrl for a known target, or address to discover one. Returns sessionId used by all other tools."),
		mcp.WithString("address",
			mcp.Description("host:port of the inspector endpoint, e.g. 127.0.0.1:9229. Targets are discovered via /json/list."),
		),
		mcp.WithString("wsUrl",
			mcp.Description("Explicit WebSocket debugger URL (ws://...). Skips discovery."),
		),
		mcp.WithString("targetId",
			mcp.Description("Discovered target id to attach to."),
		),
		mcp.WithString("targetType",
			mcp.Description("Target type filter: 'page', 'node', 'worker'."),
		),
		mcp.WithString("urlPattern",
			mcp.Description("Substring match against target page URLs for tab selection."),
		),
		mcp.WithString("profile",
			mcp.Description("Name of an attach profile in the targets file. Profile fields fill in address and selection."),
		),
		mcp.WithString("profilesPath",
			mcp.Description("Path to the targets file. Auto-discovers cdp-bridge-targets.json from the working directory if omitted."),
		),
		mcp.WithString("inputValues",
			mcp.Description("JSON object with values for ${input:} variables in the profile."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleAttach)
}

func (s *Server) registerLaunch() {
	tool := mcp.NewTool("cdp_launch",
		mcp.WithDescription("Launch a runtime from a launch profile with its inspector open, then attach to it. The process is killed when the session detaches. Returns sessionId."),
		mcp.WithString("profile",
			mcp.Required(),
			mcp.Description("Name of a launch profile in the targets file."),
		),
		mcp.WithString("profilesPath",
			mcp.Description("Path to the targets file. Auto-discovers cdp-bridge-targets.json if omitted."),
		),
		mcp.WithString("inputValues",
			mcp.Description("JSON object with values for ${input:} variables in the profile."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleLaunch)
}

func (s *Server) registerDetach() {
	tool := mcp.NewTool("cdp_detach",
		mcp.WithDescription("Detach from a session. Launched processes are killed with their process group."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The session to detach from."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDetach)
}

func (s *Server) registerSessions() {
	tool := mcp.NewTool("cdp_sessions",
		mcp.WithDescription("List active debug sessions."),
	)
	s.mcpServer.AddTool(tool, s.handleSessions)
}

func (s *Server) registerDiscover() {
	tool := mcp.NewTool("cdp_discover",
		mcp.WithDescription("List the debuggable targets an inspector endpoint reports, without attaching."),
		mcp.WithString("address",
			mcp.Required(),
			mcp.Description("host:port of the inspector endpoint."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDiscover)
}

// Inspection tools

func (s *Server) registerThreads() {
	tool := mcp.NewTool("cdp_threads",
		mcp.WithDescription("List a session's threads with their paused state, plus the thread tree as indented labels."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The session ID."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleThreads)
}

func (s *Server) registerPauseDetails() {
	tool := mcp.NewTool("cdp_pause_details",
		mcp.WithDescription("Describe why a thread is paused: reason, description, exception and call frames. Errors if the thread is running."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The session ID."),
		),
		mcp.WithNumber("threadId",
			mcp.Required(),
			mcp.Description("The thread ID."),
		),
	)
	s.mcpServer.AddTool(tool, s.handlePauseDetails)
}

func (s *Server) registerExecutionContexts() {
	tool := mcp.NewTool("cdp_execution_contexts",
		mcp.WithDescription("Return the execution-context forest: one root per thread with its live contexts as children."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The session ID."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleExecutionContexts)
}

func (s *Server) registerOutput() {
	tool := mcp.NewTool("cdp_output",
		mcp.WithDescription("Return the most recent client-facing events (console output, stops, continues, thread starts/exits), oldest first."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The session ID."),
		),
		mcp.WithNumber("count",
			mcp.Description("Maximum number of events to return (default: 50)."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleOutput)
}

func (s *Server) registerScriptSource() {
	tool := mcp.NewTool("cdp_script_source",
		mcp.WithDescription("Fetch the source text of a parsed script by its id."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The session ID."),
		),
		mcp.WithNumber("threadId",
			mcp.Required(),
			mcp.Description("The thread that parsed the script."),
		),
		mcp.WithString("scriptId",
			mcp.Required(),
			mcp.Description("The script id from the target."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleScriptSource)
}

func (s *Server) registerCustomBreakpoints() {
	tool := mcp.NewTool("cdp_custom_breakpoints",
		mcp.WithDescription("List the custom breakpoint catalog (event listener and instrumentation triggers) with each entry's enabled state."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The session ID."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleCustomBreakpoints)
}

// Control tools

func (s *Server) registerPause() {
	tool := mcp.NewTool("cdp_pause",
		mcp.WithDescription("Ask a thread to suspend at the next opportunity. Poll cdp_output or cdp_pause_details for the stop."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The session ID."),
		),
		mcp.WithNumber("threadId",
			mcp.Required(),
			mcp.Description("The thread ID to pause."),
		),
	)
	s.mcpServer.AddTool(tool, s.handlePause)
}

func (s *Server) registerResume() {
	tool := mcp.NewTool("cdp_resume",
		mcp.WithDescription("Let a paused thread continue running."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The session ID."),
		),
		mcp.WithNumber("threadId",
			mcp.Required(),
			mcp.Description("The thread ID to resume."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleResume)
}

func (s *Server) registerStep() {
	tool := mcp.NewTool("cdp_step",
		mcp.WithDescription("Step a paused thread. type='over' for next statement, 'into' to enter calls, 'out' to finish the current frame."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The session ID."),
		),
		mcp.WithNumber("threadId",
			mcp.Required(),
			mcp.Description("The thread ID to step."),
		),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Description("Step kind: 'into', 'over' or 'out'."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleStep)
}

func (s *Server) registerRestartFrame() {
	tool := mcp.NewTool("cdp_restart_frame",
		mcp.WithDescription("Restart execution of one paused call frame. Use callFrameId from cdp_pause_details."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The session ID."),
		),
		mcp.WithNumber("threadId",
			mcp.Required(),
			mcp.Description("The paused thread ID."),
		),
		mcp.WithString("callFrameId",
			mcp.Required(),
			mcp.Description("The call frame to restart."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleRestartFrame)
}

func (s *Server) registerSetExceptionPolicy() {
	tool := mcp.NewTool("cdp_set_exception_policy",
		mcp.WithDescription("Select which thrown exceptions pause execution, across all threads of the session: 'none', 'uncaught' or 'all'. Threads created later inherit the policy."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The session ID."),
		),
		mcp.WithString("policy",
			mcp.Required(),
			mcp.Description("Exception policy: 'none', 'uncaught' or 'all'."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleSetExceptionPolicy)
}

func (s *Server) registerEnableCustomBreakpoint() {
	tool := mcp.NewTool("cdp_enable_custom_breakpoint",
		mcp.WithDescription("Enable a catalog breakpoint (e.g. 'listener:click', 'instrumentation:setTimeout') on every thread of the session. See cdp_custom_breakpoints for the catalog."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The session ID."),
		),
		mcp.WithString("breakpointId",
			mcp.Required(),
			mcp.Description("The catalog breakpoint id."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleEnableCustomBreakpoint)
}

func (s *Server) registerDisableCustomBreakpoint() {
	tool := mcp.NewTool("cdp_disable_custom_breakpoint",
		mcp.WithDescription("Disable a previously enabled catalog breakpoint on every thread of the session."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The session ID."),
		),
		mcp.WithString("breakpointId",
			mcp.Required(),
			mcp.Description("The catalog breakpoint id."),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDisableCustomBreakpoint)
}
