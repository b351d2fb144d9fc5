package report

import (
	"fmt"
	"strconv"

	"domain-expiry/model"
)

// NA marks a value that could not be determined.
const NA = "N/A"

type Options struct {
	// Threshold is used as given; 0 warns only on expired or same-day items.
	Threshold int
	RunID     string
}

type Report struct {
	Console string
	HTML    string
	Subject string
	Warning bool
	Rows    []Row
}

// Row is the rendered view of one DomainRecord.
type Row struct {
	Domain          string   `json:"domain"`
	SSLExpiration   string   `json:"ssl_expiration,omitempty"`
	SSLDaysLeft     *int     `json:"ssl_days_left"`
	SSLStatus       string   `json:"ssl_status"`
	WhoisExpiration string   `json:"whois_expiration,omitempty"`
	WhoisDaysLeft   *int     `json:"whois_days_left"`
	WhoisStatus     string   `json:"whois_status"`
	Notes           []string `json:"notes,omitempty"`
}

func (r Row) SSLDays() string   { return days(r.SSLDaysLeft) }
func (r Row) WhoisDays() string { return days(r.WhoisDaysLeft) }

func (r Row) SSLDate() string   { return orNA(r.SSLExpiration) }
func (r Row) WhoisDate() string { return orNA(r.WhoisExpiration) }

func days(d *int) string {
	if d == nil {
		return NA
	}
	return strconv.Itoa(*d)
}

func orNA(s string) string {
	if s == "" {
		return NA
	}
	return s
}

func Rows(rs *model.ResultSet, threshold int) []Row {
	records := rs.Records()
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		row := Row{Domain: rec.Domain}
		row.SSLExpiration, row.SSLDaysLeft, row.SSLStatus = view(rec.SSL, threshold)
		row.WhoisExpiration, row.WhoisDaysLeft, row.WhoisStatus = view(rec.Whois, threshold)
		if rec.SSL.Err != nil {
			row.Notes = append(row.Notes, fmt.Sprintf("ssl: %v", rec.SSL.Err))
		}
		if rec.Whois.Err != nil {
			row.Notes = append(row.Notes, fmt.Sprintf("whois: %v", rec.Whois.Err))
		}
		rows = append(rows, row)
	}
	return rows
}

func view(e model.Expiry, threshold int) (string, *int, string) {
	d, ok := e.DaysLeft()
	if !ok {
		return "", nil, StatusUnavailable
	}
	return e.Text, &d, GetStatus(d, threshold)
}

// FirstMatch returns the first domain, in result-set order, with an SSL or
// WHOIS day count at or below threshold.
func FirstMatch(rs *model.ResultSet, threshold int) (string, bool) {
	for _, rec := range rs.Records() {
		if rec.SSL.Within(threshold) || rec.Whois.Within(threshold) {
			return rec.Domain, true
		}
	}
	return "", false
}

func Subject(rs *model.ResultSet, threshold int) (string, bool) {
	if _, warn := FirstMatch(rs, threshold); warn {
		return fmt.Sprintf("WARNING! The expiration date of some SSL certificate or domain expires in %d days or less!", threshold), true
	}
	return fmt.Sprintf("All good! The expiration date of all SSL certificates and domains is longer than %d days!", threshold), false
}

// Format renders the result set for the console and for email.
func Format(rs *model.ResultSet, opts Options) (Report, error) {
	rows := Rows(rs, opts.Threshold)
	subject, warn := Subject(rs, opts.Threshold)

	html, err := renderHTML(rows, opts)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Console: renderConsole(rows),
		HTML:    html,
		Subject: subject,
		Warning: warn,
		Rows:    rows,
	}, nil
}
