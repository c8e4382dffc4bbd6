// ABOUTME: Maps pipeline outcomes onto DynDNS2 status codes and response tokens.
// ABOUTME: Keeps the log diagnostic separate from the token sent to the client.

package dyndns53

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// DefaultRealm is the Basic-Auth realm announced on 401 responses.
const DefaultRealm = "dyndns53"

// Response is the externally visible result of one update.
type Response struct {
	Status int
	Body   string
	Header map[string]string
	// Additional is the diagnostic for logs; empty on success.
	Additional string
}

// ErrorPayload is the serialized failure of the Lambda adapter.
// Header carries the 401 challenge so the gateway can answer with it.
type ErrorPayload struct {
	Status     int               `json:"status"`
	Response   string            `json:"response"`
	Header     map[string]string `json:"header,omitempty"`
	Additional string            `json:"additional"`
}

// Payload returns the serialized form of a failed Response.
func (r Response) Payload() ErrorPayload {
	return ErrorPayload{Status: r.Status, Response: r.Body, Header: r.Header, Additional: r.Additional}
}

func (p ErrorPayload) Error() string {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Sprintf(`{"status":%d,"response":%q}`, p.Status, p.Response)
	}
	return string(raw)
}

// statusOf returns the HTTP status and DynDNS2 token for a failure kind.
func statusOf(k Kind) (int, string) {
	switch k {
	case KindAuthorizationMissing:
		return http.StatusUnauthorized, "badauth"
	case KindAuthorization:
		return http.StatusForbidden, "badauth"
	case KindHostname:
		return http.StatusNotFound, "nohost"
	case KindFQDN:
		return http.StatusBadRequest, "notfqdn"
	case KindBadAgent:
		return http.StatusBadRequest, "badagent"
	case KindAbuse:
		return http.StatusForbidden, "abuse"
	default:
		return http.StatusInternalServerError, "911"
	}
}

// Translate converts a reconcile result or a pipeline error into a Response.
func Translate(res Result, err error, realm string) Response {
	if err == nil {
		return Response{Status: http.StatusOK, Body: res.Token()}
	}

	kind := KindOf(err)
	status, token := statusOf(kind)
	resp := Response{Status: status, Body: token, Additional: err.Error()}
	if kind == KindAuthorizationMissing {
		if realm == "" {
			realm = DefaultRealm
		}
		resp.Header = map[string]string{"WWW-Authenticate": fmt.Sprintf("Basic realm=%q", realm)}
	}
	return resp
}
