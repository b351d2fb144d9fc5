package report

import (
	"fmt"
	"io"
	"strings"
)

const (
	StatusOK          = "ok"
	StatusExpiring    = "expiring"
	StatusExpired     = "expired"
	StatusUnavailable = "unavailable"
)

// 根据剩余天数生成状态
func GetStatus(daysLeft, threshold int) string {
	if daysLeft < 0 {
		return StatusExpired
	} else if daysLeft <= threshold {
		return StatusExpiring
	}
	return StatusOK
}

const rowFormat = "%-40s %-26s %-12s %-12s %-22s %-12s %-12s %s\n"

func renderConsole(rows []Row) string {
	var b strings.Builder
	PrintResults(&b, rows)
	return b.String()
}

// 打印结果
func PrintResults(w io.Writer, rows []Row) {
	fmt.Fprintf(w, rowFormat,
		"Domain", "SSL expires", "SSL status", "SSL days", "WHOIS expires", "WHOIS status", "WHOIS days", "Notes")
	fmt.Fprintln(w, strings.Repeat("-", 160))

	for _, r := range rows {
		note := "None"
		if len(r.Notes) > 0 {
			note = strings.Join(r.Notes, "; ")
		}
		fmt.Fprintf(w, rowFormat,
			r.Domain,
			r.SSLDate(),
			r.SSLStatus,
			r.SSLDays(),
			r.WhoisDate(),
			r.WhoisStatus,
			r.WhoisDays(),
			note)
	}
}
