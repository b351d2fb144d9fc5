package checker

import (
	"context"
	"net"
	"time"

	"github.com/miekg/dns"
	"github.com/pkg/errors"
)

// Resolver maps a domain to the address the prober should connect to.
type Resolver interface {
	Resolve(ctx context.Context, host string) (string, error)
}

// DNSResolver asks a single nameserver instead of the system resolver.
type DNSResolver struct {
	Nameserver string // host:port
	Timeout    time.Duration
}

func NewDNSResolver(nameserver string, timeout time.Duration) *DNSResolver {
	if _, _, err := net.SplitHostPort(nameserver); err != nil {
		nameserver = net.JoinHostPort(nameserver, "53")
	}
	return &DNSResolver{Nameserver: nameserver, Timeout: timeout}
}

// Resolve returns the first A record, falling back to AAAA.
func (r *DNSResolver) Resolve(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		addr, err := r.lookup(ctx, host, qtype)
		if err != nil {
			return "", err
		}
		if addr != "" {
			return addr, nil
		}
	}
	return "", errors.Errorf("no address records for %s at %s", host, r.Nameserver)
}

func (r *DNSResolver) lookup(ctx context.Context, host string, qtype uint16) (string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), qtype)
	m.RecursionDesired = true

	c := &dns.Client{Timeout: r.Timeout}
	in, _, err := c.ExchangeContext(ctx, m, r.Nameserver)
	if err != nil {
		return "", errors.Wrapf(err, "query %s %s", dns.TypeToString[qtype], host)
	}
	if in.Rcode != dns.RcodeSuccess {
		return "", errors.Errorf("query %s %s: %s", dns.TypeToString[qtype], host, dns.RcodeToString[in.Rcode])
	}
	for _, ans := range in.Answer {
		switch rr := ans.(type) {
		case *dns.A:
			return rr.A.String(), nil
		case *dns.AAAA:
			return rr.AAAA.String(), nil
		}
	}
	return "", nil
}

// StaticResolver answers from a fixed table and leaves other hosts untouched.
type StaticResolver map[string]string

func (s StaticResolver) Resolve(_ context.Context, host string) (string, error) {
	if addr, ok := s[host]; ok {
		return addr, nil
	}
	return host, nil
}
