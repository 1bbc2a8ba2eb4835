package session

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"

	"go.uber.org/zap"

	"github.com/ctagard/cdp-bridge/internal/errors"
	"github.com/ctagard/cdp-bridge/internal/profiles"
)

// Launched is a runtime spawned from a launch profile, with the inspector
// address to discover against.
type Launched struct {
	Cmd     *exec.Cmd
	PID     int
	Address string
}

// Launcher spawns debuggable runtimes for launch profiles.
type Launcher struct {
	log *zap.Logger
}

// NewLauncher builds a launcher.
func NewLauncher(log *zap.Logger) *Launcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Launcher{log: log.Named("launch")}
}

// Launch spawns the runtime a profile describes with an inspector endpoint
// open. The returned process runs in its own process group so detach can
// take its children down with it.
func (l *Launcher) Launch(ctx context.Context, p *profiles.Profile) (*Launched, error) {
	port := p.Port
	if port == 0 {
		port = findAvailablePort()
	}
	address := fmt.Sprintf("127.0.0.1:%d", port)

	var name string
	var args []string
	switch p.Kind {
	case profiles.KindNode:
		name = executable(p, "node")
		inspect := "--inspect"
		if p.StopOnEntry {
			inspect = "--inspect-brk"
		}
		args = append(args, fmt.Sprintf("%s=%s", inspect, address))
		args = append(args, p.RuntimeArgs...)
		args = append(args, p.Program)
		args = append(args, p.Args...)

	case profiles.KindChrome:
		name = executable(p, "google-chrome")
		args = append(args,
			fmt.Sprintf("--remote-debugging-port=%d", port),
			"--no-first-run", "--no-default-browser-check")
		args = append(args, p.RuntimeArgs...)
		args = append(args, p.Args...)

	case profiles.KindDeno:
		name = executable(p, "deno")
		inspect := "--inspect"
		if p.StopOnEntry {
			inspect = "--inspect-brk"
		}
		args = append(args, "run", fmt.Sprintf("%s=%s", inspect, address))
		args = append(args, p.RuntimeArgs...)
		args = append(args, p.Program)
		args = append(args, p.Args...)

	default:
		return nil, errors.LaunchFailed(p.Name, fmt.Errorf("kind %q cannot be launched", p.Kind))
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = os.Environ()
	for k, v := range p.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	if p.Cwd != "" {
		cmd.Dir = p.Cwd
	}
	setProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, errors.LaunchFailed(p.Name, err)
	}

	l.log.Info("runtime launched",
		zap.String("profile", p.Name), zap.String("kind", p.Kind),
		zap.Int("pid", cmd.Process.Pid), zap.String("address", address))

	return &Launched{Cmd: cmd, PID: cmd.Process.Pid, Address: address}, nil
}

// executable picks the profile's own program for chrome (where Program is
// the browser binary), or the default runtime binary.
func executable(p *profiles.Profile, fallback string) string {
	if p.Kind == profiles.KindChrome && p.Program != "" {
		return p.Program
	}
	return fallback
}

// findAvailablePort binds to port 0 to get a free TCP port.
func findAvailablePort() int {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 9229
	}
	defer listener.Close()
	addr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		return 9229
	}
	return addr.Port
}
