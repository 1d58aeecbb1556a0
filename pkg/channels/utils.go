package channels

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
)

// truncateString keeps at most maxLen runes of s.
func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen])
}

type cancelGuard struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (g *cancelGuard) set(cancel context.CancelFunc) {
	g.mu.Lock()
	g.cancel = cancel
	g.mu.Unlock()
}

func (g *cancelGuard) cancelAndClear() {
	g.mu.Lock()
	cancel := g.cancel
	g.cancel = nil
	g.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// ParseCallbackURL returns the port (80 when absent) and path the callback
// listener serves. An empty path becomes "/".
func ParseCallbackURL(raw string) (int, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return 0, "", fmt.Errorf("invalid callback url %q: %w", raw, err)
	}
	if u.Host == "" {
		return 0, "", fmt.Errorf("callback url %q has no host", raw)
	}

	port := 80
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return 0, "", fmt.Errorf("callback url %q has invalid port %q", raw, p)
		}
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	return port, path, nil
}

func listenAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
