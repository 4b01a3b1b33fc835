package geo

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const resolvConf = "/etc/resolv.conf"

// HostResolver turns the host of a proxy server URL into an IP address.
type HostResolver struct {
	server string
	client *dns.Client
}

// NewHostResolver queries server ("host:port") for hostnames. An empty server
// means the first nameserver of the system resolver configuration.
func NewHostResolver(server string, timeout time.Duration) *HostResolver {
	return &HostResolver{
		server: server,
		client: &dns.Client{Timeout: timeout},
	}
}

// HostOf extracts the host part of a proxy server string, with or without a
// scheme.
func HostOf(server string) string {
	server = strings.TrimSpace(server)
	if server == "" {
		return ""
	}
	if !strings.Contains(server, "://") {
		server = "//" + server
	}
	u, err := url.Parse(server)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// ProxyIP resolves the host of a proxy server URL. IP literals are returned
// as they are.
func (h *HostResolver) ProxyIP(ctx context.Context, server string) (string, error) {
	host := HostOf(server)
	if host == "" {
		return "", fmt.Errorf("%w: no host in %q", ErrResolutionFailed, server)
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.String(), nil
	}

	ns, err := h.nameserver()
	if err != nil {
		return "", err
	}

	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		ip, err := h.query(ctx, ns, host, qtype)
		if err != nil {
			return "", err
		}
		if ip != "" {
			return ip, nil
		}
	}
	return "", fmt.Errorf("%w: %s has no address records", ErrResolutionFailed, host)
}

func (h *HostResolver) nameserver() (string, error) {
	if h.server != "" {
		return h.server, nil
	}
	cfg, err := dns.ClientConfigFromFile(resolvConf)
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %w", ErrResolutionFailed, resolvConf, err)
	}
	if len(cfg.Servers) == 0 {
		return "", fmt.Errorf("%w: no nameserver in %s", ErrResolutionFailed, resolvConf)
	}
	return net.JoinHostPort(cfg.Servers[0], cfg.Port), nil
}

func (h *HostResolver) query(ctx context.Context, ns, host string, qtype uint16) (string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), qtype)
	m.RecursionDesired = true

	r, _, err := h.client.ExchangeContext(ctx, m, ns)
	if err != nil {
		return "", fmt.Errorf("%w: resolving %s via %s: %w", ErrResolutionFailed, host, ns, err)
	}
	if r.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("%w: resolving %s: %s", ErrResolutionFailed, host, dns.RcodeToString[r.Rcode])
	}

	for _, rr := range r.Answer {
		switch rec := rr.(type) {
		case *dns.A:
			return rec.A.String(), nil
		case *dns.AAAA:
			return rec.AAAA.String(), nil
		}
	}
	return "", nil
}
