// ABOUTME: HTTP Basic credential decoding for the update endpoint.
// ABOUTME: Distinguishes an absent Authorization header from a malformed one.

package dyndns53

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"
)

const basicPrefix = "Basic "

// authorizationHeader finds the Authorization header, ignoring the case of
// the header name. Adapters differ on canonicalization.
func authorizationHeader(header map[string]string) (string, error) {
	for k, v := range header {
		if strings.EqualFold(k, "Authorization") {
			return v, nil
		}
	}
	return "", newError(KindAuthorizationMissing, "authorization required but not provided")
}

// DecodeBasicAuth splits a "Basic <base64(user:pass)>" header value into its
// username and password. The split is on the first colon, so passwords may
// contain colons.
func DecodeBasicAuth(value string) (user, pass string, err error) {
	if !strings.HasPrefix(value, basicPrefix) {
		return "", "", newError(KindBadAgent, "malformed basic auth header: missing %q scheme", strings.TrimSpace(basicPrefix))
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value[len(basicPrefix):]))
	if err != nil {
		return "", "", &Error{Kind: KindBadAgent, Msg: "malformed basic auth header", Err: err}
	}
	if !utf8.Valid(raw) {
		return "", "", newError(KindBadAgent, "malformed basic auth header: credentials are not valid UTF-8")
	}

	user, pass, ok := strings.Cut(string(raw), ":")
	if !ok {
		return "", "", newError(KindBadAgent, "malformed basic auth header: no user:password separator")
	}
	return user, pass, nil
}

// EncodeBasicAuth builds the Authorization header value for user and pass.
func EncodeBasicAuth(user, pass string) string {
	return basicPrefix + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}
