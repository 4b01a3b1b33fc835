package proxy

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// ErrFormatInvalid marks a proxy server the browser cannot use. It is never
// fatal: the launch goes out without a proxy and reports a warning.
var ErrFormatInvalid = errors.New("unsupported proxy format")

var supportedSchemes = []string{"http", "https", "socks5"}

// Normalize trims the server string and defaults the scheme to http.
func Normalize(server string) string {
	server = strings.TrimSpace(server)
	if server == "" || strings.Contains(server, "://") {
		return server
	}
	return "http://" + server
}

// Check verifies the server has a supported scheme, a host and a port.
func Check(server string) error {
	u, err := url.Parse(server)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrFormatInvalid, server, err)
	}
	if !slices.Contains(supportedSchemes, strings.ToLower(u.Scheme)) {
		return fmt.Errorf("%w: scheme %q in %q", ErrFormatInvalid, u.Scheme, server)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: no host in %q", ErrFormatInvalid, server)
	}
	if err := checkPort(u.Port()); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrFormatInvalid, server, err)
	}
	return nil
}

// ParseShorthand reads the "host:port" and "host:port:user:pass" forms.
func ParseShorthand(s string) (server, username, password string, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 4 {
		return "", "", "", fmt.Errorf("%w: %q is not host:port[:user:pass]", ErrFormatInvalid, s)
	}
	if parts[0] == "" {
		return "", "", "", fmt.Errorf("%w: %q has no host", ErrFormatInvalid, s)
	}
	if err := checkPort(parts[1]); err != nil {
		return "", "", "", fmt.Errorf("%w: %q: %w", ErrFormatInvalid, s, err)
	}

	server = "http://" + net.JoinHostPort(parts[0], parts[1])
	if len(parts) == 4 {
		username, password = parts[2], parts[3]
	}
	return server, username, password, nil
}

func checkPort(p string) error {
	if p == "" {
		return errors.New("missing port")
	}
	n, err := strconv.Atoi(p)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("invalid port %q", p)
	}
	return nil
}
