// Package security guards the pipeline's outbound surface: webhook URL
// validation against SSRF and secret resolution for the timing-token signer.
package security

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-leads/core"
)

// BlockedURLError is a terminal security rejection. It is never retried:
// a loopback address will not stop being a loopback address by waiting.
type BlockedURLError struct {
	URL    string
	Reason string
}

func (e BlockedURLError) Error() string {
	return fmt.Sprintf("security: blocked url %q: %s", e.URL, e.Reason)
}

func (e BlockedURLError) ToServiceError() *goerrors.Error {
	return goerrors.New(e.Error(), goerrors.CategoryAuthz).
		WithCode(http.StatusForbidden).
		WithTextCode(core.LeadErrorSSRFBlocked).
		WithMetadata(map[string]any{"reason": e.Reason})
}

// LookupFunc resolves a hostname to IP addresses. Injected so tests never
// touch real DNS.
type LookupFunc func(ctx context.Context, host string) ([]net.IP, error)

var metadataHosts = map[string]struct{}{
	"169.254.169.254":          {},
	"metadata.google.internal": {},
}

// URLGuard validates outbound webhook URLs before any HTTP call is made.
// The check runs after DNS resolution so a public name pointing at an
// internal address is still caught.
type URLGuard struct {
	Lookup LookupFunc
}

func NewURLGuard() *URLGuard {
	return &URLGuard{
		Lookup: func(ctx context.Context, host string) ([]net.IP, error) {
			addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
			if err != nil {
				return nil, err
			}
			ips := make([]net.IP, 0, len(addrs))
			for _, addr := range addrs {
				ips = append(ips, addr.IP)
			}
			return ips, nil
		},
	}
}

// Validate returns a BlockedURLError when the URL must not be called.
func (g *URLGuard) Validate(ctx context.Context, rawURL string) error {
	if g == nil {
		return fmt.Errorf("security: url guard is not configured")
	}
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return BlockedURLError{URL: rawURL, Reason: "url is empty"}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return BlockedURLError{URL: rawURL, Reason: "url does not parse"}
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return BlockedURLError{URL: rawURL, Reason: fmt.Sprintf("scheme %q is not allowed", parsed.Scheme)}
	}

	host := strings.ToLower(strings.TrimSpace(parsed.Hostname()))
	if host == "" {
		return BlockedURLError{URL: rawURL, Reason: "hostname is empty"}
	}
	if host == "localhost" {
		return BlockedURLError{URL: rawURL, Reason: "hostname is localhost"}
	}
	if _, blocked := metadataHosts[host]; blocked {
		return BlockedURLError{URL: rawURL, Reason: "hostname is a cloud metadata endpoint"}
	}

	ips, err := g.resolve(ctx, host)
	if err != nil {
		return BlockedURLError{URL: rawURL, Reason: fmt.Sprintf("hostname does not resolve: %v", err)}
	}
	for _, ip := range ips {
		if reason := classifyBlockedIP(ip); reason != "" {
			return BlockedURLError{URL: rawURL, Reason: reason}
		}
	}
	return nil
}

func (g *URLGuard) resolve(ctx context.Context, host string) ([]net.IP, error) {
	// Literal addresses skip DNS entirely.
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	if g.Lookup == nil {
		return nil, fmt.Errorf("security: resolver is not configured")
	}
	return g.Lookup(ctx, host)
}

func classifyBlockedIP(ip net.IP) string {
	switch {
	case ip.IsLoopback():
		return fmt.Sprintf("resolves to loopback address %s", ip)
	case ip.IsUnspecified():
		return fmt.Sprintf("resolves to unspecified address %s", ip)
	case ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast():
		return fmt.Sprintf("resolves to link-local address %s", ip)
	case ip.IsPrivate():
		return fmt.Sprintf("resolves to private address %s", ip)
	}
	return ""
}
