// Package checker probes domains for certificate and registration expiry.
//
// WHOIS answers are decoded leniently: invalid UTF-8 bytes, such as Latin-2
// text from older registries, become U+FFFD and the probe carries on.
package checker

import (
	"bufio"
	"context"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"domain-expiry/model"

	"github.com/pkg/errors"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const maxWhoisResponse = 1 << 20

// WhoisProber queries a WHOIS server over the raw port 43 protocol and reads
// the registration expiry out of the free-text answer.
type WhoisProber struct {
	Server  string
	Port    int
	Timeout time.Duration

	// Fields are matched case-insensitively against each response line.
	Fields  []string
	Layouts []string

	// RegistrableDomain queries example.pl instead of www.example.pl.
	RegistrableDomain bool

	// Referral asks IANAServer which server holds each TLD.
	Referral   bool
	IANAServer string

	Limiter *rate.Limiter
	Now     func() time.Time

	mu        sync.Mutex
	referrals map[string]string
}

func NewWhoisProber(server string, timeout time.Duration) *WhoisProber {
	return &WhoisProber{
		Server:     server,
		Port:       model.WhoisPort,
		Timeout:    timeout,
		Fields:     []string{"renewal date"},
		Layouts:    []string{model.WhoisLayout},
		IANAServer: model.DefaultIANAServer,
	}
}

func (p *WhoisProber) Probe(ctx context.Context, domain string) model.Expiry {
	op := "whois " + domain

	query := domain
	if p.RegistrableDomain {
		etld1, err := publicsuffix.EffectiveTLDPlusOne(domain)
		if err != nil {
			return model.Unavailable(model.NewProbeError(model.ParseError, op, err))
		}
		query = etld1
	}

	server, err := p.serverFor(ctx, query)
	if err != nil {
		return model.Unavailable(model.NewProbeError(model.NetworkError, op, err))
	}

	resp, err := p.Query(ctx, server, query)
	if errors.Is(err, model.ErrResponseTooLarge) {
		return model.Unavailable(model.NewProbeError(model.ProtocolError, op, err))
	}
	if err != nil {
		return model.Unavailable(model.NewProbeError(model.NetworkError, op, err))
	}

	text, expiry, err := ParseExpiry(resp, p.Fields, p.Layouts)
	if err != nil {
		return model.Unavailable(model.NewProbeError(model.ParseError, op, err))
	}
	return model.Available(expiry, text, model.DaysLeft(expiry, p.now()))
}

// Query sends one request line and returns everything the server writes
// before it closes the connection. Answers over 1 MiB fail with
// model.ErrResponseTooLarge. Bytes that are not valid UTF-8 are replaced
// with U+FFFD rather than failing the query.
func (p *WhoisProber) Query(ctx context.Context, server, query string) (string, error) {
	if p.Limiter != nil {
		if err := p.Limiter.Wait(ctx); err != nil {
			return "", errors.Wrap(err, "rate limit")
		}
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = model.Timeout
	}
	addr := server
	if _, _, err := net.SplitHostPort(server); err != nil {
		port := p.Port
		if port == 0 {
			port = model.WhoisPort
		}
		addr = net.JoinHostPort(server, strconv.Itoa(port))
	}

	d := &net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", errors.Wrapf(err, "dial %s", addr)
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return "", errors.Wrap(err, "set deadline")
	}

	if _, err := io.WriteString(conn, query+"\r\n"); err != nil {
		return "", errors.Wrapf(err, "write to %s", addr)
	}
	buf, err := io.ReadAll(io.LimitReader(conn, maxWhoisResponse+1))
	if err != nil {
		return "", errors.Wrapf(err, "read from %s", addr)
	}
	if len(buf) > maxWhoisResponse {
		return "", errors.Wrapf(model.ErrResponseTooLarge, "response from %s exceeds %d bytes", addr, maxWhoisResponse)
	}
	return strings.ToValidUTF8(string(buf), "\uFFFD"), nil
}

// ParseExpiry finds the first line containing one of fields and parses the
// value after its first colon. Dots in the value become hyphens so that
// "2026.03.15 10:00:00" reads as "2026-03-15 10:00:00".
func ParseExpiry(resp string, fields, layouts []string) (string, time.Time, error) {
	value, ok := findField(resp, fields)
	if !ok {
		return "", time.Time{}, model.ErrRenewalDateNotFound
	}
	value = strings.ReplaceAll(value, ".", "-")
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, value, time.UTC)
		if err == nil {
			return value, t, nil
		}
	}
	return "", time.Time{}, errors.Wrapf(model.ErrDateParse, "%q", value)
}

func findField(resp string, fields []string) (string, bool) {
	sc := bufio.NewScanner(strings.NewReader(resp))
	sc.Buffer(make([]byte, 0, 4096), maxWhoisResponse)
	for sc.Scan() {
		line := sc.Text()
		lower := strings.ToLower(line)
		for _, f := range fields {
			if !strings.Contains(lower, strings.ToLower(f)) {
				continue
			}
			_, value, found := strings.Cut(line, ":")
			if !found {
				value = line
			}
			return strings.TrimSpace(value), true
		}
	}
	return "", false
}

func (p *WhoisProber) serverFor(ctx context.Context, domain string) (string, error) {
	if !p.Referral {
		return p.Server, nil
	}
	tld := domain
	if i := strings.LastIndex(domain, "."); i >= 0 {
		tld = domain[i+1:]
	}
	tld = strings.ToLower(tld)

	p.mu.Lock()
	server, ok := p.referrals[tld]
	p.mu.Unlock()
	if ok {
		return server, nil
	}

	resp, err := p.Query(ctx, p.IANAServer, tld)
	if err != nil {
		return "", errors.Wrapf(err, "referral for .%s", tld)
	}
	server, ok = referral(resp)
	if !ok {
		return "", errors.Errorf("no whois server for .%s at %s", tld, p.IANAServer)
	}

	p.mu.Lock()
	if p.referrals == nil {
		p.referrals = make(map[string]string)
	}
	p.referrals[tld] = server
	p.mu.Unlock()
	return server, nil
}

// referral extracts the registry server from an IANA answer.
func referral(resp string) (string, bool) {
	for _, key := range []string{"refer", "whois"} {
		for _, line := range strings.Split(resp, "\n") {
			k, v, ok := strings.Cut(line, ":")
			if !ok || !strings.EqualFold(strings.TrimSpace(k), key) {
				continue
			}
			if v = strings.TrimSpace(v); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

func (p *WhoisProber) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
