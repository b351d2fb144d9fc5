package scrap

import (
	"domain-expiry/model"

	"github.com/aliyun/alibaba-cloud-sdk-go/sdk"
	"github.com/aliyun/alibaba-cloud-sdk-go/sdk/auth/credentials"
	"github.com/aliyun/alibaba-cloud-sdk-go/sdk/requests"
	"github.com/aliyun/alibaba-cloud-sdk-go/services/alidns"
	"github.com/aliyun/alibaba-cloud-sdk-go/services/domain"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Source lists the domains held in an Alibaba Cloud account.
type Source struct {
	domainClient *domain.Client
	dnsClient    *alidns.Client
	subdomains   bool
}

func NewSource(region, accessKeyID, accessKeySecret string, subdomains bool) (*Source, error) {
	config := sdk.NewConfig()
	credential := credentials.NewAccessKeyCredential(accessKeyID, accessKeySecret)

	domainClient, err := domain.NewClientWithOptions(region, config, credential)
	if err != nil {
		return nil, errors.Wrap(err, "create domain client")
	}
	dnsClient, err := alidns.NewClientWithOptions(region, config, credential)
	if err != nil {
		return nil, errors.Wrap(err, "create alidns client")
	}
	return &Source{
		domainClient: domainClient,
		dnsClient:    dnsClient,
		subdomains:   subdomains,
	}, nil
}

// Domains returns registered domains, followed by subdomains from cloud DNS
// when enabled.
func (s *Source) Domains() ([]string, error) {
	all, err := ScanRegisteredDomains(s.domainClient)
	if err != nil {
		return nil, err
	}
	if s.subdomains {
		subs, err := ScanDNSRecords(s.dnsClient)
		if err != nil {
			return all, err
		}
		all = append(all, subs...)
	}
	log.Info().Int("count", len(all)).Msg("domains discovered in alibaba cloud")
	return all, nil
}

// 扫描已注册的主域名
func ScanRegisteredDomains(client *domain.Client) ([]string, error) {
	return paginate(model.PageSize, func(page int) ([]string, error) {
		req := domain.CreateQueryDomainListRequest()
		req.PageSize = requests.NewInteger(model.PageSize)
		req.PageNum = requests.NewInteger(page)

		resp, err := client.QueryDomainList(req)
		if err != nil {
			return nil, errors.Wrapf(err, "query domain list page %d", page)
		}
		names := make([]string, 0, len(resp.Data.Domain))
		for _, d := range resp.Data.Domain {
			names = append(names, d.DomainName)
		}
		return names, nil
	})
}

// paginate calls fetch with page numbers from 1 until a page comes back
// shorter than pageSize.
func paginate[T any](pageSize int, fetch func(page int) ([]T, error)) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		items, err := fetch(page)
		if err != nil {
			return all, err
		}
		all = append(all, items...)
		if len(items) < pageSize {
			return all, nil
		}
	}
}
