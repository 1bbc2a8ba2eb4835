package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ctagard/cdp-bridge/internal/errors"
	"github.com/ctagard/cdp-bridge/internal/version"
	"github.com/ctagard/cdp-bridge/pkg/types"
)

// Discoverer queries the HTTP endpoint every CDP-speaking runtime exposes
// next to its WebSocket port (/json/list, /json/version).
type Discoverer struct {
	client *http.Client
	log    *zap.Logger
}

// NewDiscoverer builds a discoverer with the given per-request timeout.
func NewDiscoverer(timeout time.Duration, log *zap.Logger) *Discoverer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Discoverer{
		client: &http.Client{Timeout: timeout},
		log:    log.Named("discovery"),
	}
}

func (d *Discoverer) get(ctx context.Context, address, path string, out interface{}) error {
	url := fmt.Sprintf("http://%s%s", address, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ListTargets returns the debuggable targets at address (host:port).
func (d *Discoverer) ListTargets(ctx context.Context, address string) ([]types.TargetInfo, error) {
	var targets []types.TargetInfo
	if err := d.get(ctx, address, "/json/list", &targets); err != nil {
		return nil, errors.DiscoveryFailed(address, err)
	}
	d.log.Debug("targets discovered", zap.String("address", address), zap.Int("count", len(targets)))
	return targets, nil
}

// Version returns the endpoint identity at address.
func (d *Discoverer) Version(ctx context.Context, address string) (*types.VersionInfo, error) {
	var info types.VersionInfo
	if err := d.get(ctx, address, "/json/version", &info); err != nil {
		return nil, errors.DiscoveryFailed(address, err)
	}
	return &info, nil
}

// TargetSelector narrows the discovered target list. Empty fields match
// everything.
type TargetSelector struct {
	ID         string
	Type       string
	URLPattern string
}

func (sel TargetSelector) String() string {
	var parts []string
	if sel.ID != "" {
		parts = append(parts, "id="+sel.ID)
	}
	if sel.Type != "" {
		parts = append(parts, "type="+sel.Type)
	}
	if sel.URLPattern != "" {
		parts = append(parts, "url~="+sel.URLPattern)
	}
	if len(parts) == 0 {
		return "any"
	}
	return strings.Join(parts, " ")
}

func (sel TargetSelector) matches(t *types.TargetInfo) bool {
	if t.WebSocketDebuggerURL == "" {
		return false
	}
	if sel.ID != "" && t.ID != sel.ID {
		return false
	}
	if sel.Type != "" && t.Type != sel.Type {
		return false
	}
	if sel.URLPattern != "" && !strings.Contains(t.URL, sel.URLPattern) {
		return false
	}
	return true
}

// PickTarget returns the first target matching the selector.
func PickTarget(targets []types.TargetInfo, sel TargetSelector) (*types.TargetInfo, error) {
	for i := range targets {
		if sel.matches(&targets[i]) {
			return &targets[i], nil
		}
	}
	available := make([]string, 0, len(targets))
	for _, t := range targets {
		available = append(available, fmt.Sprintf("%s (%s)", t.ID, t.URL))
	}
	return nil, errors.TargetNotFound(sel.String(), available)
}
