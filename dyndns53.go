// ABOUTME: DNS handler implementing plugin.Handler for the dyndns53 plugin.
// ABOUTME: Answers A/AAAA queries from the local store with zone-aware fallthrough.

package dyndns53

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/coredns/coredns/plugin"
	"github.com/coredns/coredns/plugin/pkg/fall"
	clog "github.com/coredns/coredns/plugin/pkg/log"
	"github.com/coredns/coredns/request"
	"github.com/miekg/dns"
)

const pluginName = "dyndns53"

var log = clog.NewWithPlugin(pluginName)

// DynDNS implements plugin.Handler. Store is nil when updates go to a remote
// backend; queries are then passed down the chain.
type DynDNS struct {
	Next  plugin.Handler
	Zones []string
	Store *Store
	Fall  fall.F
}

// Name returns the plugin name.
func (d *DynDNS) Name() string { return pluginName }

// ServeDNS answers address queries for names held in the store.
func (d *DynDNS) ServeDNS(ctx context.Context, w dns.ResponseWriter, r *dns.Msg) (int, error) {
	state := request.Request{W: w, Req: r}
	qname := state.Name()

	zone := plugin.Zones(d.Zones).Matches(qname)
	if zone == "" || d.Store == nil {
		return plugin.NextOrFailure(d.Name(), d.Next, ctx, w, r)
	}

	requestCount.WithLabelValues(zone).Inc()

	var rcode int
	defer func() {
		responseCount.WithLabelValues(zone, dns.RcodeToString[rcode]).Inc()
	}()

	sets := d.Store.GetAll(qname)
	if len(sets) == 0 {
		if d.Fall.Through(qname) {
			var err error
			rcode, err = plugin.NextOrFailure(d.Name(), d.Next, ctx, w, r)
			return rcode, err
		}
		msg := new(dns.Msg)
		msg.SetRcode(r, dns.RcodeNameError)
		msg.Authoritative = true
		msg.Ns = []dns.RR{soa(zone)}
		rcode = dns.RcodeNameError
		return d.write(w, msg, rcode)
	}

	msg := new(dns.Msg)
	msg.SetReply(r)
	msg.Authoritative = true
	for _, rs := range sets {
		if dns.StringToType[string(rs.Type)] != state.QType() {
			continue
		}
		msg.Answer = append(msg.Answer, toRRs(rs)...)
	}
	if len(msg.Answer) == 0 {
		msg.Ns = []dns.RR{soa(zone)}
	}
	rcode = dns.RcodeSuccess
	return d.write(w, msg, rcode)
}

func (d *DynDNS) write(w dns.ResponseWriter, msg *dns.Msg, rcode int) (int, error) {
	if err := w.WriteMsg(msg); err != nil {
		return dns.RcodeServerFailure, fmt.Errorf("writing response: %w", err)
	}
	return rcode, nil
}

// toRRs converts a stored record set into answer RRs.
func toRRs(rs RecordSet) []dns.RR {
	hdr := dns.RR_Header{
		Name:   rs.Name,
		Rrtype: dns.StringToType[string(rs.Type)],
		Class:  dns.ClassINET,
		Ttl:    rs.TTL,
	}

	var rrs []dns.RR
	for _, v := range rs.Values {
		ip := net.ParseIP(v)
		if ip == nil {
			log.Errorf("stored value %q for %s is not an address", v, rs.Name)
			continue
		}
		switch rs.Type {
		case TypeA:
			rrs = append(rrs, &dns.A{Hdr: hdr, A: ip.To4()})
		case TypeAAAA:
			rrs = append(rrs, &dns.AAAA{Hdr: hdr, AAAA: ip})
		}
	}
	return rrs
}

func soa(zone string) dns.RR {
	return &dns.SOA{
		Hdr: dns.RR_Header{
			Name:   zone,
			Rrtype: dns.TypeSOA,
			Class:  dns.ClassINET,
			Ttl:    DefaultTTL,
		},
		Ns:      "ns1." + zone,
		Mbox:    "hostmaster." + zone,
		Serial:  uint32(time.Now().Unix()),
		Refresh: 7200,
		Retry:   1800,
		Expire:  86400,
		Minttl:  DefaultTTL,
	}
}
