// ABOUTME: Record reconciliation: compare each host's current record and upsert only on change.
// ABOUTME: Hosts are reconciled concurrently; the batch reports good if any host changed.

package dyndns53

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultParallel bounds concurrent host reconciliation.
const DefaultParallel = 4

// RecordSet is a snapshot of one DNS record set as seen by a Backend.
type RecordSet struct {
	Name   string     `json:"name"`
	Type   RecordType `json:"type"`
	TTL    uint32     `json:"ttl"`
	Values []string   `json:"values"`
}

// Backend is the DNS record service the Reconciler writes to.
type Backend interface {
	// ListRecords returns up to max record sets starting at name and type,
	// in the backend's ordering. Callers must check that a returned set is
	// actually the requested one.
	ListRecords(ctx context.Context, zoneID, name string, typ RecordType, max int) ([]RecordSet, error)
	// UpsertRecord replaces the values of rs, creating it if needed.
	UpsertRecord(ctx context.Context, zoneID string, rs RecordSet) error
}

// HostResult is the outcome for one hostname.
type HostResult struct {
	Name    string
	OldIP   string // empty when no record existed
	Changed bool
}

// Result aggregates a reconciled batch.
type Result struct {
	IP      string
	Changed bool
	Hosts   []HostResult
}

// Token returns the DynDNS2 success token for the batch.
func (r Result) Token() string {
	if r.Changed {
		return "good " + r.IP
	}
	return "nochg " + r.IP
}

// Reconciler brings backend records in line with validated requests.
type Reconciler struct {
	backend  Backend
	parallel int
}

// NewReconciler creates a Reconciler. parallel <= 0 selects DefaultParallel.
func NewReconciler(backend Backend, parallel int) *Reconciler {
	if parallel <= 0 {
		parallel = DefaultParallel
	}
	return &Reconciler{backend: backend, parallel: parallel}
}

// Reconcile processes every host of req. All hosts run to completion; if any
// fail, their errors are joined and the batch fails.
func (r *Reconciler) Reconcile(ctx context.Context, req *UpdateRequest) (Result, error) {
	results := make([]HostResult, len(req.Hostnames))
	errs := make([]error, len(req.Hostnames))

	var g errgroup.Group
	g.SetLimit(r.parallel)
	for i, host := range req.Hostnames {
		g.Go(func() error {
			results[i], errs[i] = r.reconcileHost(ctx, req, host)
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		return Result{}, err
	}

	res := Result{IP: req.IP, Hosts: results}
	for _, hr := range results {
		if hr.Changed {
			res.Changed = true
		}
	}
	return res, nil
}

func (r *Reconciler) reconcileHost(ctx context.Context, req *UpdateRequest, host string) (HostResult, error) {
	hc, ok := req.Account.Host(host)
	if !ok {
		return HostResult{}, fmt.Errorf("host %s vanished from account %q", host, req.Account.Username)
	}

	sets, err := r.backend.ListRecords(ctx, hc.ZoneID, host, req.Type, 1)
	if err != nil {
		return HostResult{}, fmt.Errorf("listing %s %s in zone %s: %w", host, req.Type, hc.ZoneID, err)
	}

	hr := HostResult{Name: host}
	if len(sets) == 0 || sets[0].Name != host || sets[0].Type != req.Type {
		log.Infof("no existing %s record for %s in zone %s", req.Type, host, hc.ZoneID)
	} else {
		switch n := len(sets[0].Values); n {
		case 0:
		case 1:
			hr.OldIP = sets[0].Values[0]
		default:
			return HostResult{}, fmt.Errorf("%d existing %s values for %s in zone %s, refusing to overwrite", n, req.Type, host, hc.ZoneID)
		}
	}

	if hr.OldIP != "" && sameAddress(hr.OldIP, req.IP) {
		log.Debugf("%s %s unchanged at %s", host, req.Type, req.IP)
		return hr, nil
	}

	rs := RecordSet{Name: host, Type: req.Type, TTL: hc.Record.TTL, Values: []string{req.IP}}
	if err := r.backend.UpsertRecord(ctx, hc.ZoneID, rs); err != nil {
		backendWriteCount.WithLabelValues(string(req.Type), "error").Inc()
		return HostResult{}, fmt.Errorf("upserting %s %s in zone %s: %w", host, req.Type, hc.ZoneID, err)
	}
	backendWriteCount.WithLabelValues(string(req.Type), "ok").Inc()

	log.Infof("%s %s changed from %q to %s", host, req.Type, hr.OldIP, req.IP)
	hr.Changed = true
	return hr, nil
}
