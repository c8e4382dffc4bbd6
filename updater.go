// ABOUTME: Update pipeline facade shared by the HTTP and Lambda adapters.
// ABOUTME: Runs validation and reconciliation, then translates and logs the outcome.

package dyndns53

import (
	"context"
	"strings"
)

// Updater wires a Validator and a Reconciler into one call.
type Updater struct {
	Validator  *Validator
	Reconciler *Reconciler
	Realm      string
}

// Update handles one DynDNS2 request. Every path yields a classified Response.
func (u *Updater) Update(ctx context.Context, ev Event) Response {
	var res Result
	req, err := u.Validator.Validate(ctx, ev)
	if err == nil {
		res, err = u.Reconciler.Reconcile(ctx, req)
	}

	resp := Translate(res, err, u.Realm)
	updateCount.WithLabelValues(strings.Fields(resp.Body)[0]).Inc()

	switch {
	case err == nil:
		log.Infof("update %s for %q: %s", strings.Join(req.Hostnames, ","), req.Account.Username, resp.Body)
	case resp.Status >= 500:
		log.Errorf("update failed (%d %s): %s", resp.Status, resp.Body, resp.Additional)
	default:
		log.Warningf("update rejected (%d %s): %s", resp.Status, resp.Body, resp.Additional)
	}
	return resp
}
