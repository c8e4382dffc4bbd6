// ABOUTME: Update request validation: auth decoding, credential lookup, hostname and address checks.
// ABOUTME: Produces a fully validated UpdateRequest or the first classified failure.

package dyndns53

import (
	"context"
	"slices"
	"strings"

	"github.com/miekg/dns"
)

// Event is the structured request handed over by an adapter. The JSON shape
// matches the API Gateway mapping template used by the Lambda deployment.
type Event struct {
	Header      map[string]string `json:"header"`
	QueryString map[string]string `json:"querystring"`
	Context     map[string]string `json:"context"`
}

// UpdateRequest is a validated update, consumed once by the Reconciler.
type UpdateRequest struct {
	Account   *Account
	Hostnames []string // canonical FQDNs, sorted, unique
	IP        string
	Type      RecordType
}

// Validator turns Events into UpdateRequests.
type Validator struct {
	Credentials *Credentials
	// Limiter is optional; nil disables abuse detection.
	Limiter *AbuseLimiter
}

// NormalizeHostname lowercases name and appends the root label separator if
// it is missing. It is idempotent.
func NormalizeHostname(name string) string {
	return dns.CanonicalName(strings.TrimSpace(name))
}

// Validate runs the validation stages in order and stops at the first failure.
func (v *Validator) Validate(_ context.Context, ev Event) (*UpdateRequest, error) {
	if ev.Header == nil {
		return nil, newError(KindInternal, "headers not populated, check the request adapter")
	}
	if ev.QueryString == nil {
		return nil, newError(KindInternal, "query string not populated, check the request adapter")
	}

	value, err := authorizationHeader(ev.Header)
	if err != nil {
		return nil, err
	}
	user, pass, err := DecodeBasicAuth(value)
	if err != nil {
		return nil, err
	}

	acct, err := v.Credentials.Authorize(user, pass)
	if err != nil {
		return nil, err
	}

	if v.Limiter != nil {
		if err := v.Limiter.Allow(acct.Username); err != nil {
			return nil, err
		}
	}

	hosts, err := parseHostnames(ev.QueryString)
	if err != nil {
		return nil, err
	}

	var denied []string
	for _, h := range hosts {
		if _, ok := acct.Host(h); !ok {
			denied = append(denied, h)
		}
	}
	if len(denied) > 0 {
		return nil, newError(KindHostname, "user %q may not update %s", acct.Username, strings.Join(denied, ","))
	}

	ip, typ, err := resolveAddress(ev)
	if err != nil {
		return nil, err
	}

	return &UpdateRequest{Account: acct, Hostnames: hosts, IP: ip, Type: typ}, nil
}

// parseHostnames splits the comma separated hostname parameter into a sorted
// set of canonical FQDNs.
func parseHostnames(query map[string]string) ([]string, error) {
	param, ok := query["hostname"]
	if !ok || strings.TrimSpace(param) == "" {
		return nil, newError(KindBadAgent, "hostname(s) required but not provided")
	}

	seen := make(map[string]struct{})
	var hosts []string
	for _, entry := range strings.Split(param, ",") {
		if strings.TrimSpace(entry) == "" {
			return nil, newError(KindFQDN, "empty hostname in %q", param)
		}
		h := NormalizeHostname(entry)
		if _, ok := dns.IsDomainName(h); !ok || dns.CountLabel(h) < 2 {
			return nil, newError(KindFQDN, "hostname %q is not a fully qualified domain name", entry)
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		hosts = append(hosts, h)
	}
	slices.Sort(hosts)
	return hosts, nil
}

// resolveAddress prefers the myip parameter and falls back to the address
// the connection came from. The fallback is not checked for global reach.
func resolveAddress(ev Event) (string, RecordType, error) {
	myip, given := ev.QueryString["myip"]
	if given {
		ip, typ, err := ParseAddress(myip, true)
		if err == nil {
			return ip, typ, nil
		}
		log.Debugf("provided address %q is not usable (%v), falling back to source address", myip, err)
	}

	source, ok := ev.Context["source-ip"]
	if !ok {
		return "", "", newError(KindInternal, "source-ip missing from request context, check the request adapter")
	}
	ip, typ, err := ParseAddress(source, false)
	if err != nil {
		return "", "", err
	}
	if given {
		log.Infof("using source address %s instead of provided address %q", ip, myip)
	} else {
		log.Debugf("no address provided, using source address %s", ip)
	}
	return ip, typ, nil
}
