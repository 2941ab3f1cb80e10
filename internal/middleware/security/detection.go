package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
)

var (
	suspiciousPatterns = []string{
		"../", "..\\", ".env", "wp-admin", "phpmyadmin",
		"admin.php", "config.php", ".git", ".ssh",
		"eval(", "javascript:", "<script", "union select",
		"etc/passwd", "cmd.exe",
	}
	suspiciousAgents = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan"}
	unusualMethods   = []string{"TRACE", "TRACK", "DEBUG", "CONNECT"}
)

const maxURLLength = 2048

// Detector flags requests that look like probes and resolves client
// addresses behind trusted proxies.
type Detector struct {
	suspicious     int64
	trustedProxies []*net.IPNet
}

// NewDetector trusts loopback and private networks to set forwarding headers.
func NewDetector() *Detector {
	return &Detector{
		trustedProxies: []*net.IPNet{
			parseCIDR("127.0.0.0/8"),
			parseCIDR("10.0.0.0/8"),
			parseCIDR("172.16.0.0/12"),
			parseCIDR("192.168.0.0/16"),
			parseCIDR("::1/128"),
		},
	}
}

func parseCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("failed to parse trusted proxy CIDR %s: %v", cidr, err))
	}
	return network
}

// AddTrustedProxy adds a trusted proxy network
func (d *Detector) AddTrustedProxy(cidr string) error {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.trustedProxies = append(d.trustedProxies, network)
	return nil
}

// IsSuspicious reports the first reason r looks like a probe, or "".
func (d *Detector) IsSuspicious(r *http.Request) string {
	path := strings.ToLower(r.URL.Path)
	query := strings.ToLower(r.URL.RawQuery)
	if unescaped, err := url.QueryUnescape(query); err == nil {
		query = unescaped
	}
	reason := ""
	for _, p := range suspiciousPatterns {
		if strings.Contains(path, p) || strings.Contains(query, p) {
			reason = "pattern " + p
			break
		}
	}
	if reason == "" {
		ua := strings.ToLower(r.Header.Get("User-Agent"))
		for _, a := range suspiciousAgents {
			if strings.Contains(ua, a) {
				reason = "user agent " + a
				break
			}
		}
	}
	if reason == "" {
		for _, m := range unusualMethods {
			if r.Method == m {
				reason = "method " + m
				break
			}
		}
	}
	if reason == "" && len(r.URL.String()) > maxURLLength {
		reason = "url too long"
	}
	if reason == "" && strings.Count(r.Header.Get("X-Forwarded-For"), ",") > 5 {
		reason = "too many proxy hops"
	}

	if reason != "" {
		atomic.AddInt64(&d.suspicious, 1)
	}
	return reason
}

// SuspiciousCount returns how many requests were flagged.
func (d *Detector) SuspiciousCount() int64 {
	return atomic.LoadInt64(&d.suspicious)
}

// ClientIP returns the direct peer address unless the peer is a trusted
// proxy, in which case X-Forwarded-For or X-Real-IP is honored.
func (d *Detector) ClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}
	parsed := net.ParseIP(directIP)
	if parsed == nil || !d.isTrustedProxy(parsed) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return directIP
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// Middleware reports suspicious requests to onSuspicious and always lets
// them through; blocking is left to the rate limiter.
func (d *Detector) Middleware(onSuspicious func(r *http.Request, reason string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if reason := d.IsSuspicious(r); reason != "" && onSuspicious != nil {
				onSuspicious(r, reason)
			}
			next.ServeHTTP(w, r)
		})
	}
}
