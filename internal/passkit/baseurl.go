package passkit

import (
	"net"
	"net/url"
	"strings"
)

// PubliclyResolvable classifies a base URL as reachable by the remote wallet
// provider. Loopback, RFC1918, link-local and mDNS-style hosts are private:
// advertising them as the pass web service makes the provider reject the
// whole pass, so callers omit the callback block entirely for those.
//
// Pure string/IP-pattern classification; never touches the network.
func PubliclyResolvable(baseURL string) bool {
	s := strings.TrimSpace(baseURL)
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "" {
		// Tolerate bare "host:port" without a scheme.
		host = s
		if h, _, err := net.SplitHostPort(s); err == nil {
			host = h
		}
	}
	host = strings.ToLower(strings.Trim(host, "[]"))
	if host == "" {
		return false
	}

	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
		return false
	}

	ip := net.ParseIP(host)
	if ip == nil {
		// A resolvable-looking DNS name; assume public.
		return true
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return false
	}
	return true
}
