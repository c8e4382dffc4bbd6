// ABOUTME: Admin authentication: Bearer token or mTLS client certificate CN.
// ABOUTME: Guards the read-only record listing, separate from DynDNS2 Basic-Auth.

package dyndns53

import (
	"crypto/subtle"
	"crypto/tls"
	"net/http"
	"slices"
	"strings"
)

// AdminAuth holds the credentials accepted on the admin endpoints.
type AdminAuth struct {
	Token     string
	AllowedCN []string
}

func (a *AdminAuth) configured() bool {
	return a != nil && (a.Token != "" || len(a.AllowedCN) > 0)
}

// HTTPMiddleware rejects requests without a valid Bearer token or an allowed
// client certificate. Without configured credentials every request is refused.
func (a *AdminAuth) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.configured() {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if a.Token != "" {
			if token := extractBearer(r); token != "" {
				if constantTimeEqual(token, a.Token) {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		if cn := extractCN(r.TLS); cn != "" && slices.Contains(a.AllowedCN, cn) {
			next.ServeHTTP(w, r)
			return
		}

		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}

func extractCN(state *tls.ConnectionState) string {
	if state == nil || len(state.PeerCertificates) == 0 {
		return ""
	}
	return state.PeerCertificates[0].Subject.CommonName
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
