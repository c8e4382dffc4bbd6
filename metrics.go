// ABOUTME: Prometheus metrics following the CoreDNS plugin convention.
// ABOUTME: Tracks DNS queries, update responses by token, backend writes, and stored record sets.

package dyndns53

import (
	"github.com/coredns/coredns/plugin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: plugin.Namespace,
	Subsystem: pluginName,
	Name:      "request_count_total",
	Help:      "Counter of DNS requests handled.",
}, []string{"server"})

var responseCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: plugin.Namespace,
	Subsystem: pluginName,
	Name:      "response_rcode_count_total",
	Help:      "Counter of DNS responses by rcode.",
}, []string{"server", "rcode"})

var updateCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: plugin.Namespace,
	Subsystem: pluginName,
	Name:      "update_count_total",
	Help:      "Counter of DynDNS2 update requests by response token.",
}, []string{"token"})

var backendWriteCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: plugin.Namespace,
	Subsystem: pluginName,
	Name:      "backend_write_count_total",
	Help:      "Counter of record upserts sent to the backend.",
}, []string{"type", "result"})

var storeRecordGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: plugin.Namespace,
	Subsystem: pluginName,
	Name:      "store_record_sets",
	Help:      "Current number of record sets in the local store.",
}, []string{"type"})
