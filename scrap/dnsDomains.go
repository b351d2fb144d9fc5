package scrap

import (
	"fmt"

	"github.com/aliyun/alibaba-cloud-sdk-go/sdk/requests"
	"github.com/aliyun/alibaba-cloud-sdk-go/services/alidns"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	dnsPageSize    = 50
	recordPageSize = 500
)

type record struct {
	RR   string
	Type string
}

// 扫描云解析 DNS 中的所有子域名
func ScanDNSRecords(client *alidns.Client) ([]string, error) {
	zones, err := paginate(dnsPageSize, func(page int) ([]string, error) {
		req := alidns.CreateDescribeDomainsRequest()
		req.PageSize = requests.NewInteger(dnsPageSize)
		req.PageNumber = requests.NewInteger(page)

		resp, err := client.DescribeDomains(req)
		if err != nil {
			return nil, errors.Wrapf(err, "describe dns domains page %d", page)
		}
		names := make([]string, 0, len(resp.Domains.Domain))
		for _, d := range resp.Domains.Domain {
			names = append(names, d.DomainName)
		}
		return names, nil
	})
	if err != nil {
		return nil, err
	}

	var all []string
	for _, zone := range zones {
		records, err := paginate(recordPageSize, func(page int) ([]record, error) {
			req := alidns.CreateDescribeDomainRecordsRequest()
			req.DomainName = zone
			req.PageSize = requests.NewInteger(recordPageSize)
			req.PageNumber = requests.NewInteger(page)

			resp, err := client.DescribeDomainRecords(req)
			if err != nil {
				return nil, err
			}
			out := make([]record, 0, len(resp.DomainRecords.Record))
			for _, r := range resp.DomainRecords.Record {
				out = append(out, record{RR: r.RR, Type: r.Type})
			}
			return out, nil
		})
		if err != nil {
			log.Warn().Err(err).Str("zone", zone).Msg("skipping zone")
			continue
		}
		for _, r := range records {
			if name, ok := subdomainName(r, zone); ok {
				all = append(all, name)
			}
		}
	}
	return all, nil
}

// subdomainName keeps A, AAAA and CNAME records that name a host below zone.
func subdomainName(r record, zone string) (string, bool) {
	switch r.Type {
	case "A", "AAAA", "CNAME":
	default:
		return "", false
	}
	if r.RR == "@" || r.RR == "*" || r.RR == "" { //根域名
		return "", false
	}
	return fmt.Sprintf("%s.%s", r.RR, zone), true
}
