package checker

import (
	"context"

	"domain-expiry/logging"
	"domain-expiry/model"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Prober checks one kind of expiry for a domain. Failures come back as an
// unavailable Expiry, never as an error.
type Prober interface {
	Probe(ctx context.Context, domain string) model.Expiry
}

type Aggregator struct {
	Cert    Prober
	Whois   Prober
	Workers int
	Log     logging.ErrLogger
}

// Aggregate probes every domain and returns the records in the given order.
// With more than one worker, domains are probed concurrently.
func (a *Aggregator) Aggregate(ctx context.Context, domains []string) *model.ResultSet {
	records := make([]model.DomainRecord, len(domains))

	if a.Workers <= 1 {
		for i, d := range domains {
			records[i] = a.checkDomain(ctx, d)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.Workers)
		for i, d := range domains {
			i, d := i, d
			g.Go(func() error {
				records[i] = a.checkDomain(gctx, d)
				return nil
			})
		}
		_ = g.Wait()
	}

	rs := model.NewResultSet()
	for _, r := range records {
		rs.Add(r)
	}
	return rs
}

func (a *Aggregator) checkDomain(ctx context.Context, domain string) model.DomainRecord {
	log.Debug().Str("domain", domain).Msg("checking")
	r := model.DomainRecord{
		Domain: domain,
		SSL:    a.Cert.Probe(ctx, domain),
		Whois:  a.Whois.Probe(ctx, domain),
	}
	a.logFailure(domain, "ssl", r.SSL)
	a.logFailure(domain, "whois", r.Whois)
	return r
}

func (a *Aggregator) logFailure(domain, probe string, e model.Expiry) {
	if e.OK() || a.Log == nil {
		return
	}
	tags := map[string]string{
		"domain": domain,
		"probe":  probe,
	}
	if kind, ok := model.KindOf(e.Err); ok {
		tags["kind"] = kind.String()
	}
	a.Log.Log(e.Err, logging.LogOptions{
		Tags: tags,
		Msg:  "expiry unavailable",
	})
}
