package prometheus

import (
	"domain-expiry/model"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	//域名注册剩余时间
	DomainRegDaysLeft = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "domain_registration_days_left",
			Help: "Days until the domain registration expires, -1 when unknown.",
		},
		[]string{"domain", "type"}, //domain：域名，type：registration/tls_cert
	)

	DomainCertDaysLeft = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "domain_tls_cert_days_left",
			Help: "Days until the TLS certificate expires, -1 when unknown.",
		},
		[]string{"domain", "type"},
	)

	ProbeSuccess = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "domain_expiry_probe_success",
			Help: "1 if the probe produced an expiry date.",
		},
		[]string{"domain", "probe"},
	)

	LastRun = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "domain_expiry_last_run_timestamp_seconds",
			Help: "Unix time of the last completed check.",
		},
	)
)

func init() {
	prometheus.MustRegister(DomainRegDaysLeft, DomainCertDaysLeft, ProbeSuccess, LastRun)
}

// Record replaces the gauges with the values of rs.
func Record(rs *model.ResultSet) {
	//清理指标
	DomainCertDaysLeft.Reset()
	DomainRegDaysLeft.Reset()
	ProbeSuccess.Reset()

	for _, r := range rs.Records() {
		DomainRegDaysLeft.WithLabelValues(r.Domain, "registration").Set(daysOrUnknown(r.Whois))
		DomainCertDaysLeft.WithLabelValues(r.Domain, "tls_cert").Set(daysOrUnknown(r.SSL))
		ProbeSuccess.WithLabelValues(r.Domain, "whois").Set(success(r.Whois))
		ProbeSuccess.WithLabelValues(r.Domain, "ssl").Set(success(r.SSL))
	}
	LastRun.SetToCurrentTime()
}

func daysOrUnknown(e model.Expiry) float64 {
	d, ok := e.DaysLeft()
	if !ok {
		return -1
	}
	return float64(d)
}

func success(e model.Expiry) float64 {
	if e.OK() {
		return 1
	}
	return 0
}

// Push sends the gauges to a Pushgateway, the usual sink for batch jobs.
func Push(url, job string) error {
	err := push.New(url, job).
		Collector(DomainRegDaysLeft).
		Collector(DomainCertDaysLeft).
		Collector(ProbeSuccess).
		Collector(LastRun).
		Push()
	return errors.Wrapf(err, "push metrics to %s", url)
}
