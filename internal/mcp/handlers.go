package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/samber/lo"

	"github.com/ctagard/cdp-bridge/internal/bridge"
	"github.com/ctagard/cdp-bridge/internal/errors"
	"github.com/ctagard/cdp-bridge/internal/profiles"
	"github.com/ctagard/cdp-bridge/internal/session"
	"github.com/ctagard/cdp-bridge/pkg/types"
)

// Session Handlers

func (s *Server) handleAttach(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := session.AttachOptions{}

	if name, err := request.RequireString("profile"); err == nil && name != "" {
		p, errResult := s.resolveProfile(request, name)
		if errResult != nil {
			return errResult, nil
		}
		if !p.IsAttach() {
			return mcp.NewToolResultError(fmt.Sprintf(
				"profile %q is a launch profile, use cdp_launch instead", name)), nil
		}
		opts.Profile = p
		opts.Address = p.Address
		opts.Selector.URLPattern = p.URLPattern
		if strings.HasPrefix(p.URL, "ws://") || strings.HasPrefix(p.URL, "wss://") {
			opts.WSURL = p.URL
		}
	}

	if wsURL, err := request.RequireString("wsUrl"); err == nil && wsURL != "" {
		opts.WSURL = wsURL
	}
	if address, err := request.RequireString("address"); err == nil && address != "" {
		opts.Address = address
	}
	if id, err := request.RequireString("targetId"); err == nil && id != "" {
		opts.Selector.ID = id
	}
	if typ, err := request.RequireString("targetType"); err == nil && typ != "" {
		opts.Selector.Type = typ
	}
	if pattern, err := request.RequireString("urlPattern"); err == nil && pattern != "" {
		opts.Selector.URLPattern = pattern
	}

	if opts.WSURL == "" && opts.Address == "" {
		return mcp.NewToolResultError(errors.MissingParameter("address",
			"Specify address (host:port, discovered via /json/list), wsUrl (explicit WebSocket debugger URL), or an attach profile.").Error()), nil
	}

	sess, err := s.sessions.Attach(ctx, opts)
	if err != nil {
		return toolError(err), nil
	}

	return jsonResult(map[string]interface{}{
		"sessionId":               sess.ID,
		"status":                  "attached",
		"endpoint":                sess.Endpoint,
		"threadId":                sess.RootThread().ID(),
		"supportsSourceMapPauses": sess.RootThread().SupportsSourceMapPauses(),
	})
}

func (s *Server) handleLaunch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.config.CanUseControlTools() {
		return toolError(errors.PermissionDenied("launch", string(s.config.Mode))), nil
	}

	name, err := request.RequireString("profile")
	if err != nil {
		return mcp.NewToolResultError(errors.MissingParameter("profile",
			"Name a launch profile from the targets file. Use cdp_attach for already-running targets.").Error()), nil
	}

	p, errResult := s.resolveProfile(request, name)
	if errResult != nil {
		return errResult, nil
	}
	if !p.IsLaunch() {
		return mcp.NewToolResultError(fmt.Sprintf(
			"profile %q is an attach profile, use cdp_attach instead", name)), nil
	}

	sess, err := s.sessions.Launch(ctx, p)
	if err != nil {
		return toolError(err), nil
	}

	info := sess.Info()
	return jsonResult(map[string]interface{}{
		"sessionId": sess.ID,
		"status":    "launched",
		"profile":   p.Name,
		"endpoint":  sess.Endpoint,
		"pid":       info.PID,
		"threadId":  sess.RootThread().ID(),
	})
}

func (s *Server) handleDetach(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("sessionId")
	if err != nil {
		return toolError(errors.MissingParameter("sessionId", "The session to detach from.")), nil
	}
	if err := s.sessions.Detach(sessionID); err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]interface{}{
		"sessionId": sessionID,
		"status":    "detached",
	})
}

func (s *Server) handleSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions := s.sessions.List()
	infos := lo.Map(sessions, func(sess *session.Session, _ int) types.SessionInfo {
		return sess.Info()
	})
	return jsonResult(map[string]interface{}{
		"sessions": infos,
		"count":    len(infos),
	})
}

func (s *Server) handleDiscover(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	address, err := request.RequireString("address")
	if err != nil {
		return toolError(errors.MissingParameter("address", "host:port of the inspector endpoint.")), nil
	}

	targets, err := s.sessions.Discoverer().ListTargets(ctx, address)
	if err != nil {
		return toolError(err), nil
	}

	result := map[string]interface{}{
		"address": address,
		"targets": targets,
	}
	if info, err := s.sessions.Discoverer().Version(ctx, address); err == nil {
		result["version"] = info
	}
	return jsonResult(result)
}

// Inspection Handlers

func (s *Server) handleThreads(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, errResult := s.session(request)
	if errResult != nil {
		return errResult, nil
	}

	threads := sess.Bridge().Threads()
	infos := lo.Map(threads, func(t *bridge.Thread, _ int) types.ThreadInfo {
		return types.ThreadInfo{ID: t.ID(), Name: t.Name(), Paused: t.Paused() != nil}
	})
	return jsonResult(map[string]interface{}{
		"threads": infos,
		"tree":    sess.Bridge().Labels(),
	})
}

func (s *Server) handlePauseDetails(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, thread, errResult := s.thread(request)
	if errResult != nil {
		return errResult, nil
	}

	details := thread.Paused()
	if details == nil {
		return toolError(errors.NotPaused(thread.ID())), nil
	}

	info := types.PauseInfo{
		ThreadID:    thread.ID(),
		Reason:      details.Reason,
		Description: details.Description,
		Text:        details.Text,
	}
	if details.Exception != nil {
		info.Exception = details.Exception.Description
	}
	for _, frame := range details.CallFrames {
		info.Frames = append(info.Frames, types.FrameInfo{
			CallFrameID:  frame.CallFrameID,
			FunctionName: frame.FunctionName,
			URL:          frame.URL,
			Line:         frame.Location.LineNumber + 1,
			Column:       frame.Location.ColumnNumber + 1,
		})
	}
	return jsonResult(info)
}

func (s *Server) handleExecutionContexts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, errResult := s.session(request)
	if errResult != nil {
		return errResult, nil
	}

	forest := sess.Bridge().ContextForest(nil)
	return jsonResult(map[string]interface{}{
		"contexts": lo.Map(forest, func(n *bridge.ContextNode, _ int) types.ContextTreeNode {
			return contextTree(n)
		}),
	})
}

func contextTree(n *bridge.ContextNode) types.ContextTreeNode {
	node := types.ContextTreeNode{ThreadID: n.ThreadID, Label: n.Label}
	if n.Context != nil {
		node.Context = &types.ContextInfo{
			ID:        n.Context.ID,
			Name:      n.Context.Name,
			IsDefault: n.Context.IsDefault,
		}
	}
	for _, child := range n.Children {
		node.Children = append(node.Children, contextTree(child))
	}
	return node
}

func (s *Server) handleOutput(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, errResult := s.session(request)
	if errResult != nil {
		return errResult, nil
	}

	count := request.GetInt("count", 50)
	events := sess.Buffer().Recent(count)
	return jsonResult(map[string]interface{}{
		"events":  events,
		"lastSeq": sess.Buffer().LastSeq(),
	})
}

func (s *Server) handleScriptSource(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, thread, errResult := s.thread(request)
	if errResult != nil {
		return errResult, nil
	}

	scriptID, err := request.RequireString("scriptId")
	if err != nil {
		return toolError(errors.MissingParameter("scriptId", "The script id from the target.")), nil
	}

	source, err := thread.ScriptSource(ctx, scriptID)
	if err != nil {
		return toolError(err), nil
	}

	result := map[string]interface{}{
		"scriptId": scriptID,
		"source":   source,
	}
	if script := thread.Script(scriptID); script != nil {
		result["url"] = script.URL
	}
	return jsonResult(result)
}

func (s *Server) handleCustomBreakpoints(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, errResult := s.session(request)
	if errResult != nil {
		return errResult, nil
	}

	enabled := sess.Bridge().EnabledCustomBreakpoints()
	infos := s.sessions.Catalog().Infos()
	out := make([]types.CustomBreakpointInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, types.CustomBreakpointInfo{
			ID:      info.ID,
			Title:   info.Title,
			Group:   info.Group,
			Enabled: lo.Contains(enabled, info.ID),
		})
	}
	return jsonResult(map[string]interface{}{
		"breakpoints": out,
	})
}

// Control Handlers

func (s *Server) handlePause(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, thread, errResult := s.thread(request)
	if errResult != nil {
		return errResult, nil
	}
	if err := thread.Pause(ctx); err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]interface{}{
		"threadId": thread.ID(),
		"status":   "pausing",
	})
}

func (s *Server) handleResume(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, thread, errResult := s.thread(request)
	if errResult != nil {
		return errResult, nil
	}
	if err := thread.Resume(ctx); err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]interface{}{
		"threadId": thread.ID(),
		"status":   "resumed",
	})
}

func (s *Server) handleStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, thread, errResult := s.thread(request)
	if errResult != nil {
		return errResult, nil
	}

	kindStr, err := request.RequireString("type")
	if err != nil {
		return toolError(errors.MissingParameter("type", "Step kind: 'into', 'over' or 'out'.")), nil
	}
	kind := types.StepKind(kindStr)
	if !types.ValidStepKind(kind) {
		return toolError(errors.InvalidParameter("type", kindStr, "'into', 'over' or 'out'")), nil
	}

	switch kind {
	case types.StepInto:
		err = thread.StepInto(ctx)
	case types.StepOver:
		err = thread.StepOver(ctx)
	case types.StepOut:
		err = thread.StepOut(ctx)
	}
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]interface{}{
		"threadId": thread.ID(),
		"step":     string(kind),
	})
}

func (s *Server) handleRestartFrame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, thread, errResult := s.thread(request)
	if errResult != nil {
		return errResult, nil
	}

	callFrameID, err := request.RequireString("callFrameId")
	if err != nil {
		return toolError(errors.MissingParameter("callFrameId",
			"The call frame to restart, from cdp_pause_details.")), nil
	}
	if thread.Paused() == nil {
		return toolError(errors.NotPaused(thread.ID())), nil
	}
	if err := thread.RestartFrame(ctx, callFrameID); err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]interface{}{
		"threadId":    thread.ID(),
		"callFrameId": callFrameID,
		"status":      "restarted",
	})
}

func (s *Server) handleSetExceptionPolicy(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, errResult := s.session(request)
	if errResult != nil {
		return errResult, nil
	}

	policyStr, err := request.RequireString("policy")
	if err != nil {
		return toolError(errors.MissingParameter("policy", "'none', 'uncaught' or 'all'.")), nil
	}
	policy := bridge.ExceptionPolicy(policyStr)
	if !bridge.ValidExceptionPolicy(policy) {
		return toolError(errors.InvalidParameter("policy", policyStr, "'none', 'uncaught' or 'all'")), nil
	}

	if err := sess.Bridge().SetExceptionPolicy(ctx, policy); err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]interface{}{
		"policy": string(policy),
	})
}

func (s *Server) handleEnableCustomBreakpoint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.handleCustomBreakpointToggle(ctx, request, true)
}

func (s *Server) handleDisableCustomBreakpoint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.handleCustomBreakpointToggle(ctx, request, false)
}

func (s *Server) handleCustomBreakpointToggle(ctx context.Context, request mcp.CallToolRequest, enable bool) (*mcp.CallToolResult, error) {
	sess, errResult := s.session(request)
	if errResult != nil {
		return errResult, nil
	}

	id, err := request.RequireString("breakpointId")
	if err != nil {
		return toolError(errors.MissingParameter("breakpointId",
			"A catalog breakpoint id, e.g. 'listener:click'. See cdp_custom_breakpoints.")), nil
	}

	if enable {
		err = sess.Bridge().EnableCustomBreakpoint(ctx, id)
	} else {
		err = sess.Bridge().DisableCustomBreakpoint(ctx, id)
	}
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]interface{}{
		"breakpointId": id,
		"enabled":      enable,
	})
}

// Helpers

// session resolves the sessionId argument and marks the session active.
func (s *Server) session(request mcp.CallToolRequest) (*session.Session, *mcp.CallToolResult) {
	sessionID, err := request.RequireString("sessionId")
	if err != nil {
		return nil, toolError(errors.MissingParameter("sessionId", "The session ID from cdp_attach or cdp_launch."))
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, toolError(err)
	}
	s.sessions.Touch(sess)
	return sess, nil
}

// thread resolves sessionId plus threadId.
func (s *Server) thread(request mcp.CallToolRequest) (*session.Session, *bridge.Thread, *mcp.CallToolResult) {
	sess, errResult := s.session(request)
	if errResult != nil {
		return nil, nil, errResult
	}
	threadID, err := request.RequireInt("threadId")
	if err != nil {
		return nil, nil, toolError(errors.MissingParameter("threadId", "The thread ID from cdp_threads."))
	}
	thread := sess.Bridge().Thread(threadID)
	if thread == nil {
		return nil, nil, toolError(errors.ThreadNotFound(threadID))
	}
	return sess, thread, nil
}

// resolveProfile loads the targets file, finds and validates the named
// profile, and resolves its variables against the file's directory and the
// caller-provided input values.
func (s *Server) resolveProfile(request mcp.CallToolRequest, name string) (*profiles.Profile, *mcp.CallToolResult) {
	path := s.config.ProfilesPath
	if p, err := request.RequireString("profilesPath"); err == nil && p != "" {
		path = p
	}

	tf, loadedPath, err := profiles.Load(path)
	if err != nil {
		return nil, toolError(err)
	}

	p, err := profiles.Find(tf, name)
	if err != nil {
		return nil, toolError(err)
	}
	if err := profiles.Validate(p); err != nil {
		return nil, toolError(err)
	}

	inputs := map[string]string{}
	if raw, err := request.RequireString("inputValues"); err == nil && raw != "" {
		if err := json.Unmarshal([]byte(raw), &inputs); err != nil {
			return nil, toolError(errors.InvalidParameter("inputValues", raw,
				"a JSON object of string values"))
		}
	}
	for _, input := range tf.Inputs {
		if _, ok := inputs[input.ID]; !ok && input.Default != "" {
			inputs[input.ID] = input.Default
		}
	}

	resolved, err := profiles.Resolve(p, &profiles.ResolutionContext{
		WorkspaceFolder: filepath.Dir(loadedPath),
		InputValues:     inputs,
	})
	if err != nil {
		return nil, toolError(err)
	}
	return resolved, nil
}

func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(errors.FromError(err).Error())
}

func jsonResult(data interface{}) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
