// ABOUTME: Corefile parser and plugin registration for dyndns53.
// ABOUTME: Builds the credential store, backend and update listener, and wires their lifecycle.

package dyndns53

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/coredns/caddy"
	"github.com/coredns/coredns/core/dnsserver"
	"github.com/coredns/coredns/plugin"
	"github.com/miekg/dns"
)

const (
	backendStore   = "store"
	backendRoute53 = "route53"
	defaultListen  = ":8053"
)

func init() { plugin.Register(pluginName, setup) }

// pluginConfig holds parsed Corefile configuration.
type pluginConfig struct {
	zones       []string
	credentials string
	backend     string

	datafile   string
	reload     time.Duration
	maxRecords int

	region string

	listen         string
	tls            *tlsConfig
	realm          string
	trustForwarded bool
	parallel       int

	abuseRate  float64
	abuseBurst int

	adminToken     string
	adminAllowedCN []string

	fallArgs []string
}

func setup(c *caddy.Controller) error {
	cfg, err := parseConfig(c)
	if err != nil {
		return plugin.Error(pluginName, err)
	}

	creds, err := LoadCredentials(cfg.credentials)
	if err != nil {
		return plugin.Error(pluginName, err)
	}

	d := &DynDNS{Zones: cfg.zones}
	if cfg.fallArgs != nil {
		d.Fall.SetZonesFromArgs(cfg.fallArgs)
	}

	var backend Backend
	switch cfg.backend {
	case backendStore:
		if err := checkStoreZones(creds, cfg.zones); err != nil {
			return plugin.Error(pluginName, err)
		}
		var opts []StoreOption
		if cfg.maxRecords > 0 {
			opts = append(opts, WithMaxRecords(cfg.maxRecords))
		}
		store, err := NewStore(cfg.datafile, cfg.reload, opts...)
		if err != nil {
			return plugin.Error(pluginName, fmt.Errorf("creating store: %w", err))
		}
		d.Store = store
		backend = store
	case backendRoute53:
		r53, err := NewRoute53Backend(context.Background(), cfg.region)
		if err != nil {
			return plugin.Error(pluginName, err)
		}
		backend = r53
	}

	validator := &Validator{Credentials: creds}
	if cfg.abuseRate > 0 {
		validator.Limiter = NewAbuseLimiter(cfg.abuseRate, cfg.abuseBurst)
	}
	updater := &Updater{
		Validator:  validator,
		Reconciler: NewReconciler(backend, cfg.parallel),
		Realm:      cfg.realm,
	}

	admin := &AdminAuth{Token: cfg.adminToken, AllowedCN: cfg.adminAllowedCN}
	srv := NewHTTPServer(updater, d.Store, admin, cfg.listen, cfg.tls, cfg.trustForwarded)

	c.OnStartup(func() error {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("starting update server: %w", err)
		}
		log.Infof("DynDNS2 endpoint listening on %s (%d credentials, %s backend)", cfg.listen, creds.Len(), cfg.backend)
		return nil
	})

	c.OnShutdown(func() error {
		srv.Stop()
		if d.Store != nil {
			d.Store.Stop()
		}
		return nil
	})

	dnsserver.GetConfig(c).AddPlugin(func(next plugin.Handler) plugin.Handler {
		d.Next = next
		return d
	})

	return nil
}

func parseConfig(c *caddy.Controller) (*pluginConfig, error) {
	cfg := &pluginConfig{
		backend: backendStore,
		listen:  defaultListen,
		realm:   DefaultRealm,
	}

	c.Next() // skip "dyndns53"

	cfg.zones = c.RemainingArgs()
	if len(cfg.zones) == 0 {
		cfg.zones = make([]string, len(c.ServerBlockKeys))
		copy(cfg.zones, c.ServerBlockKeys)
	}

	var normalized []string
	for _, z := range cfg.zones {
		normalized = append(normalized, plugin.Host(z).NormalizeExact()...)
	}
	cfg.zones = normalized

	for c.NextBlock() {
		switch c.Val() {
		case "credentials":
			if !c.NextArg() {
				return nil, fmt.Errorf("credentials requires a path argument")
			}
			cfg.credentials = c.Val()

		case "backend":
			if !c.NextArg() {
				return nil, fmt.Errorf("backend requires an argument")
			}
			switch c.Val() {
			case backendStore, backendRoute53:
				cfg.backend = c.Val()
			default:
				return nil, fmt.Errorf("unknown backend %q: valid values are store, route53", c.Val())
			}

		case "datafile":
			if !c.NextArg() {
				return nil, fmt.Errorf("datafile requires a path argument")
			}
			cfg.datafile = c.Val()

		case "reload":
			if !c.NextArg() {
				return nil, fmt.Errorf("reload requires a duration argument")
			}
			d, err := time.ParseDuration(c.Val())
			if err != nil {
				return nil, fmt.Errorf("invalid reload duration %q: %w", c.Val(), err)
			}
			cfg.reload = d

		case "max_records":
			n, err := intArg(c, "max_records")
			if err != nil {
				return nil, err
			}
			cfg.maxRecords = n

		case "region":
			if !c.NextArg() {
				return nil, fmt.Errorf("region requires an argument")
			}
			cfg.region = c.Val()

		case "listen":
			if !c.NextArg() {
				return nil, fmt.Errorf("listen requires an address")
			}
			cfg.listen = c.Val()

		case "tls":
			args := c.RemainingArgs()
			if len(args) != 2 && len(args) != 3 {
				return nil, fmt.Errorf("tls requires CERT KEY [CA] arguments")
			}
			cfg.tls = &tlsConfig{cert: args[0], key: args[1]}
			if len(args) == 3 {
				cfg.tls.ca = args[2]
			}

		case "realm":
			if !c.NextArg() {
				return nil, fmt.Errorf("realm requires an argument")
			}
			cfg.realm = c.Val()

		case "parallel":
			n, err := intArg(c, "parallel")
			if err != nil {
				return nil, err
			}
			cfg.parallel = n

		case "abuse":
			args := c.RemainingArgs()
			if len(args) != 2 {
				return nil, fmt.Errorf("abuse requires RATE BURST arguments")
			}
			r, err := strconv.ParseFloat(args[0], 64)
			if err != nil || r <= 0 {
				return nil, fmt.Errorf("abuse rate must be a positive number of updates per minute: %q", args[0])
			}
			b, err := strconv.Atoi(args[1])
			if err != nil || b < 1 {
				return nil, fmt.Errorf("abuse burst must be a positive integer: %q", args[1])
			}
			cfg.abuseRate, cfg.abuseBurst = r, b

		case "trust_forwarded":
			cfg.trustForwarded = true

		case "admin":
			if err := parseNestedBlock(c, func(key string, c *caddy.Controller) error {
				return parseAdminDirective(key, c, cfg)
			}); err != nil {
				return nil, err
			}

		case "fallthrough":
			cfg.fallArgs = c.RemainingArgs()

		default:
			return nil, fmt.Errorf("unknown directive %q", c.Val())
		}
	}

	if cfg.credentials == "" {
		return nil, fmt.Errorf("credentials is required")
	}
	if cfg.backend == backendStore && cfg.datafile == "" {
		return nil, fmt.Errorf("datafile is required with the store backend")
	}
	if cfg.backend != backendStore && (cfg.datafile != "" || cfg.reload != 0 || cfg.maxRecords != 0) {
		return nil, fmt.Errorf("datafile, reload and max_records only apply to the store backend")
	}
	if cfg.backend != backendRoute53 && cfg.region != "" {
		return nil, fmt.Errorf("region only applies to the route53 backend")
	}

	return cfg, nil
}

// checkStoreZones verifies that, with the store backend, every host's zone_id
// is a zone origin this plugin serves and that the host lies inside it.
func checkStoreZones(creds *Credentials, zones []string) error {
	for _, accts := range creds.accounts {
		for _, acct := range accts {
			for host, hc := range acct.Hosts {
				zone := dns.CanonicalName(hc.ZoneID)
				if _, ok := dns.IsDomainName(zone); !ok || plugin.Zones(zones).Matches(zone) == "" {
					return fmt.Errorf("host %s: zone_id %q is not inside the served zones %v", host, hc.ZoneID, zones)
				}
				if err := checkZone(zone, host); err != nil {
					return fmt.Errorf("host %s: %w", host, err)
				}
			}
		}
	}
	return nil
}

func intArg(c *caddy.Controller, name string) (int, error) {
	if !c.NextArg() {
		return 0, fmt.Errorf("%s requires a numeric argument", name)
	}
	n, err := strconv.Atoi(c.Val())
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer: %q", name, c.Val())
	}
	return n, nil
}

// parseNestedBlock manually handles Caddy v1 nested block parsing.
// It consumes the opening `{`, iterates over directives, and stops at `}`.
func parseNestedBlock(c *caddy.Controller, handler func(string, *caddy.Controller) error) error {
	if !c.Next() {
		return nil
	}
	if c.Val() != "{" {
		return handler(c.Val(), c)
	}

	for c.Next() {
		if c.Val() == "}" {
			return nil
		}
		if err := handler(c.Val(), c); err != nil {
			return err
		}
	}
	return nil
}

func parseAdminDirective(key string, c *caddy.Controller, cfg *pluginConfig) error {
	switch key {
	case "token":
		if !c.NextArg() {
			return fmt.Errorf("admin token requires a value")
		}
		cfg.adminToken = c.Val()

	case "allowed_cn":
		cfg.adminAllowedCN = c.RemainingArgs()
		if len(cfg.adminAllowedCN) == 0 {
			return fmt.Errorf("allowed_cn requires at least one CN")
		}

	default:
		return fmt.Errorf("unknown admin directive %q", key)
	}
	return nil
}
