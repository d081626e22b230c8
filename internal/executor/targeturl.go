package executor

import (
	"context"
	"net"
	"net/url"
	"strings"
)

// TargetValidator admits or rejects an outbound probe target.
type TargetValidator interface {
	Validate(ctx context.Context, rawURL string) (bool, string)
}

// TargetURLValidator rejects URLs that could reach internal infrastructure:
// non-HTTPS schemes, localhost and *.internal hosts, loopback, link-local
// (including the cloud metadata service at 169.254.169.254) and RFC1918
// ranges, applied both to IP literals and to every address a hostname
// resolves to. DNS failure is treated as invalid: fail closed.
type TargetURLValidator struct {
	lookupIP func(ctx context.Context, host string) ([]net.IP, error)
}

func NewTargetURLValidator() *TargetURLValidator {
	return &TargetURLValidator{
		lookupIP: func(ctx context.Context, host string) ([]net.IP, error) {
			addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
			if err != nil {
				return nil, err
			}
			ips := make([]net.IP, 0, len(addrs))
			for _, a := range addrs {
				ips = append(ips, a.IP)
			}
			return ips, nil
		},
	}
}

// Validate checks the target URL, short-circuiting on the first failure.
// Expected validation failures are reported as (false, reason), never as
// errors.
func (v *TargetURLValidator) Validate(ctx context.Context, rawURL string) (bool, string) {
	if strings.TrimSpace(rawURL) == "" {
		return false, "target URL is empty"
	}

	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false, "target URL is not an absolute URL"
	}

	if !strings.EqualFold(u.Scheme, "https") {
		return false, "target URL scheme must be https"
	}

	host := strings.ToLower(u.Hostname())
	if host == "localhost" || strings.HasSuffix(host, ".internal") {
		return false, "target host is internal"
	}

	if ip := net.ParseIP(host); ip != nil {
		if blockedIP(ip) {
			return false, "target IP is in a blocked range"
		}
		return true, ""
	}

	ips, err := v.lookupIP(ctx, host)
	if err != nil || len(ips) == 0 {
		return false, "target host did not resolve"
	}
	for _, ip := range ips {
		if blockedIP(ip) {
			return false, "target host resolves to a blocked IP range"
		}
	}

	return true, ""
}

// blockedIP covers loopback, link-local (IPv4 169.254.0.0/16 including the
// metadata service, and IPv6 fe80::/10) and the RFC1918 private ranges.
func blockedIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsPrivate()
}
