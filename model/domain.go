package model

import (
	"math"
	"time"
)

const (
	RegionID             = "cn-shanghai" // domain service only answers in this region
	PageSize             = 100
	Timeout              = 10 * time.Second
	WarningThresholdDays = 7

	DefaultWhoisServer = "whois.dns.pl"
	DefaultIANAServer  = "whois.iana.org"
	WhoisPort          = 43
	HTTPSPort          = 443

	// NotAfterLayout is how certificate expiry is shown, e.g. "Jan  5 23:59:59 2025 GMT".
	NotAfterLayout = "Jan _2 15:04:05 2006 MST"
	// WhoisLayout is the renewal date format after dots are turned into hyphens.
	WhoisLayout = "2006-01-02 15:04:05"
)

// Expiry is the outcome of one probe: either an available expiry instant with
// its day count, or the reason it is unavailable.
type Expiry struct {
	ok       bool
	At       time.Time
	Text     string
	daysLeft int
	Err      error
}

func Available(at time.Time, text string, daysLeft int) Expiry {
	return Expiry{ok: true, At: at, Text: text, daysLeft: daysLeft}
}

func Unavailable(err error) Expiry {
	return Expiry{Err: err}
}

func (e Expiry) OK() bool { return e.ok }

// DaysLeft returns the day count and whether it is present.
func (e Expiry) DaysLeft() (int, bool) {
	if !e.ok {
		return 0, false
	}
	return e.daysLeft, true
}

// Within reports whether the expiry is present and at most threshold days away.
func (e Expiry) Within(threshold int) bool {
	d, ok := e.DaysLeft()
	return ok && d <= threshold
}

type DomainRecord struct {
	Domain string
	SSL    Expiry // TLS 证书到期
	Whois  Expiry // 域名注册到期
}

// DaysLeft is the whole number of days from now until expiry, rounded toward
// negative infinity so that anything already past is negative.
func DaysLeft(expiry, now time.Time) int {
	return int(math.Floor(expiry.Sub(now).Hours() / 24))
}

// ResultSet keeps domain records keyed by domain in insertion order.
type ResultSet struct {
	order   []string
	records map[string]DomainRecord
}

func NewResultSet() *ResultSet {
	return &ResultSet{records: make(map[string]DomainRecord)}
}

// Add inserts r. A domain that is already present keeps its first record.
func (rs *ResultSet) Add(r DomainRecord) bool {
	if _, ok := rs.records[r.Domain]; ok {
		return false
	}
	rs.order = append(rs.order, r.Domain)
	rs.records[r.Domain] = r
	return true
}

func (rs *ResultSet) Get(domain string) (DomainRecord, bool) {
	r, ok := rs.records[domain]
	return r, ok
}

func (rs *ResultSet) Len() int { return len(rs.order) }

// Records returns the records in insertion order.
func (rs *ResultSet) Records() []DomainRecord {
	out := make([]DomainRecord, 0, len(rs.order))
	for _, d := range rs.order {
		out = append(out, rs.records[d])
	}
	return out
}
