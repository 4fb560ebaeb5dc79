package netlink

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// LinkMonitor probes reachability of the edge endpoint. Probe returns
// the local address the route binds, in dotted-decimal form.
type LinkMonitor interface {
	Probe(ctx context.Context) (string, error)
	Close() error
}

// httpLinkMonitor dials the endpoint host and checks the status route.
type httpLinkMonitor struct {
	endpointURL string
	hostPort    string
	client      *http.Client
}

func newHTTPLinkMonitor(endpointURL string, timeout time.Duration) (*httpLinkMonitor, error) {
	u, err := url.Parse(endpointURL)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint url: %v", err)
	}

	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("endpoint url has no host: %s", endpointURL)
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "wss", "https":
			port = "443"
		default:
			port = "80"
		}
	}

	statusURL := *u
	switch u.Scheme {
	case "ws":
		statusURL.Scheme = "http"
	case "wss":
		statusURL.Scheme = "https"
	}
	statusURL.Path = "/"

	return &httpLinkMonitor{
		endpointURL: statusURL.String(),
		hostPort:    net.JoinHostPort(host, port),
		client:      &http.Client{Timeout: timeout},
	}, nil
}

// Probe opens a TCP connection to learn the bound local address, then
// hits the status route to confirm the service answers.
func (m *httpLinkMonitor) Probe(ctx context.Context) (string, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", m.hostPort)
	if err != nil {
		return "", err
	}
	localAddr, _, _ := net.SplitHostPort(conn.LocalAddr().String())
	conn.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpointURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}

	return localAddr, nil
}

func (m *httpLinkMonitor) Close() error {
	m.client.CloseIdleConnections()
	return nil
}
