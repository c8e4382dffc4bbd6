// ABOUTME: Static credential-to-hostname mapping loaded once at startup.
// ABOUTME: Supports plaintext and bcrypt secrets, both compared without early exit.

package dyndns53

import (
	"crypto/subtle"
	"fmt"
	"os"
	"strings"

	"github.com/miekg/dns"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultTTL is used for hosts whose record TTL is not configured.
	DefaultTTL = 60
	MaxTTL     = 86400
)

// RecordConfig holds per-host record settings. Type is accepted for
// compatibility with older files and ignored: the record type always follows
// the address family.
type RecordConfig struct {
	TTL  uint32 `yaml:"ttl" json:"ttl"`
	Type string `yaml:"type,omitempty" json:"type,omitempty"`
}

// HostConfig authorizes one hostname and says where its record lives.
type HostConfig struct {
	ZoneID string       `yaml:"zone_id" json:"zone_id"`
	Record RecordConfig `yaml:"record" json:"record"`
}

type accountFile struct {
	Hosts map[string]HostConfig `yaml:"hosts"`
}

// Account is one (username, secret) credential and the hosts it may update.
type Account struct {
	Username string
	Hosts    map[string]HostConfig // key: canonical FQDN

	secret string
	hashed bool
}

// Host returns the configuration of an authorized hostname.
func (a *Account) Host(name string) (HostConfig, bool) {
	h, ok := a.Hosts[name]
	return h, ok
}

func (a *Account) checkPassword(pass string) bool {
	if a.hashed {
		return bcrypt.CompareHashAndPassword([]byte(a.secret), []byte(pass)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(a.secret), []byte(pass)) == 1
}

// Credentials is the immutable credential store. One username may carry
// several secrets, each with its own hosts.
type Credentials struct {
	accounts map[string][]*Account
	count    int

	// dummyHash is compared on unknown usernames when any secret is hashed.
	dummyHash []byte
}

// LoadCredentials reads a YAML (or JSON) credentials file.
func LoadCredentials(path string) (*Credentials, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials %s: %w", path, err)
	}
	c, err := ParseCredentials(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing credentials %s: %w", path, err)
	}
	return c, nil
}

// ParseCredentials decodes the credentials layout:
//
//	"user:secret":
//	  hosts:
//	    host.example.com.:
//	      zone_id: Z123
//	      record: {ttl: 60}
//
// A secret starting with a bcrypt prefix ($2a$, $2b$, $2y$) is treated as a
// hash. Hostnames are canonicalized and may belong to one credential only.
func ParseCredentials(raw []byte) (*Credentials, error) {
	var file map[string]accountFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, err
	}

	c := &Credentials{accounts: make(map[string][]*Account, len(file))}
	owners := make(map[string]string)
	maxCost := 0

	for key, af := range file {
		user, secret, ok := strings.Cut(key, ":")
		if !ok || user == "" || secret == "" {
			return nil, fmt.Errorf("credential key %q must have the form user:password", redactKey(key))
		}
		acct := &Account{
			Username: user,
			Hosts:    make(map[string]HostConfig, len(af.Hosts)),
			secret:   secret,
			hashed:   isBcryptHash(secret),
		}

		for name, hc := range af.Hosts {
			fqdn := NormalizeHostname(name)
			if _, ok := dns.IsDomainName(fqdn); !ok {
				return nil, fmt.Errorf("user %q: invalid hostname %q", user, name)
			}
			if owner, taken := owners[fqdn]; taken {
				return nil, fmt.Errorf("hostname %s is assigned to both %q and %q", fqdn, owner, user)
			}
			if hc.ZoneID == "" {
				return nil, fmt.Errorf("user %q: host %s has no zone_id", user, fqdn)
			}
			if hc.Record.TTL == 0 {
				hc.Record.TTL = DefaultTTL
			}
			if hc.Record.TTL > MaxTTL {
				return nil, fmt.Errorf("user %q: host %s TTL %d exceeds %d", user, fqdn, hc.Record.TTL, MaxTTL)
			}
			if hc.Record.Type != "" {
				log.Warningf("host %s: record type %q is ignored, the type follows the address family", fqdn, hc.Record.Type)
			}
			owners[fqdn] = user
			acct.Hosts[fqdn] = hc
		}

		if acct.hashed {
			cost, err := bcrypt.Cost([]byte(secret))
			if err != nil {
				return nil, fmt.Errorf("user %q: malformed bcrypt hash: %w", user, err)
			}
			maxCost = max(maxCost, cost)
		}

		c.accounts[user] = append(c.accounts[user], acct)
		c.count++
	}

	if maxCost > 0 {
		hash, err := bcrypt.GenerateFromPassword([]byte("dyndns53-unknown-user"), maxCost)
		if err != nil {
			return nil, fmt.Errorf("preparing dummy hash: %w", err)
		}
		c.dummyHash = hash
	}

	return c, nil
}

// Authorize returns the credential matching the (user, pass) pair. Every
// secret of the user is compared so the cost does not depend on which one
// matches.
func (c *Credentials) Authorize(user, pass string) (*Account, error) {
	candidates := c.accounts[user]
	if len(candidates) == 0 {
		if c.dummyHash != nil {
			_ = bcrypt.CompareHashAndPassword(c.dummyHash, []byte(pass))
		} else {
			subtle.ConstantTimeCompare([]byte(pass), []byte(pass))
		}
		return nil, newError(KindAuthorization, "bad username/password")
	}

	var match *Account
	for _, acct := range candidates {
		if acct.checkPassword(pass) && match == nil {
			match = acct
		}
	}
	if match == nil {
		return nil, newError(KindAuthorization, "bad username/password")
	}
	return match, nil
}

// Len returns the number of configured credentials.
func (c *Credentials) Len() int { return c.count }

func isBcryptHash(s string) bool {
	for _, p := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func redactKey(key string) string {
	user, _, _ := strings.Cut(key, ":")
	return user + ":***"
}
