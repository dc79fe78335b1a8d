// Package connectivity answers "can this terminal reach the backend right now".
package connectivity

import (
	"context"
	"net"
	"net/http"
	"time"
)

// Status mirrors the platform connectivity report.
type Status struct {
	IsConnected         bool
	IsInternetReachable bool
}

// Online is the combined signal the API client gates dispatch on.
func (s Status) Online() bool {
	return s.IsConnected && s.IsInternetReachable
}

type Probe interface {
	FetchStatus(ctx context.Context) Status
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) Status

func (f ProbeFunc) FetchStatus(ctx context.Context) Status { return f(ctx) }

// Static always reports the same status.
type Static Status

func (s Static) FetchStatus(context.Context) Status { return Status(s) }

type Options struct {
	// URL is probed with HEAD; any HTTP response counts as reachable.
	// Empty skips the reachability check and reports reachable when connected.
	URL     string
	Timeout time.Duration
}

// HTTPProbe reports connected when a non-loopback interface is up and
// reachable when a HEAD to the probe URL gets any response.
type HTTPProbe struct {
	client     *http.Client
	url        string
	interfaces func() ([]net.Interface, error)
}

var _ Probe = (*HTTPProbe)(nil)

func NewHTTPProbe(opts Options) *HTTPProbe {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return &HTTPProbe{
		client:     &http.Client{Timeout: timeout},
		url:        opts.URL,
		interfaces: net.Interfaces,
	}
}

func (p *HTTPProbe) FetchStatus(ctx context.Context) Status {
	status := Status{IsConnected: p.connected()}
	if !status.IsConnected {
		return status
	}
	status.IsInternetReachable = p.reachable(ctx)
	return status
}

func (p *HTTPProbe) connected() bool {
	ifaces, err := p.interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagLoopback == 0 {
			return true
		}
	}
	return false
}

func (p *HTTPProbe) reachable(ctx context.Context) bool {
	if p.url == "" {
		return true
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}
