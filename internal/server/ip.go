package server

import (
	"net"
	"net/http"
	"strings"
)

// The agent usually runs behind a load balancer or CDN, so RemoteAddr
// alone does not identify the real client. clientIP walks the standard
// forwarding headers and picks the first public address.

// isPublicIP filters out private, loopback and link-local addresses so
// forwarding-chain hops never masquerade as the client.
func isPublicIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsPrivate() {
		return false
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return false
	}
	return true
}

// safeParseIP tolerates whitespace and garbage; bad input parses to nil.
func safeParseIP(s string) net.IP {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return net.ParseIP(s)
}

// clientIP extracts the originating client address. Priority:
//  1. X-Forwarded-For — first public IP in the chain
//  2. CloudFront-Viewer-Address — port stripped
//  3. RemoteAddr fallback
func clientIP(r *http.Request) string {

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// e.g. "203.0.113.1, 10.0.1.24"
		parts := strings.Split(xff, ",")
		for _, part := range parts {
			ip := safeParseIP(part)
			if isPublicIP(ip) {
				return ip.String()
			}
		}
	}

	// e.g. "203.0.113.55:44321", IPv6 keeps its last colon as the port
	// separator too.
	if cf := r.Header.Get("CloudFront-Viewer-Address"); cf != "" {
		host := cf
		if i := strings.LastIndex(cf, ":"); i != -1 {
			host = cf[:i]
		}
		ip := safeParseIP(host)
		if isPublicIP(ip) {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		ip := safeParseIP(host)
		if isPublicIP(ip) {
			return ip.String()
		}
	}

	return ""
}
