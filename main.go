package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"domain-expiry/checker"
	"domain-expiry/config"
	"domain-expiry/logging"
	"domain-expiry/notify"
	prom "domain-expiry/prometheus"
	"domain-expiry/report"
	"domain-expiry/scrap"
	"domain-expiry/server"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

func main() {
	confFile := flag.String("config", "config.yml", "location of configuration file")
	flag.Parse()

	conf, err := config.ReadConfig(*confFile)
	if err != nil {
		log.Fatal().Msgf("error while reading configuration: %s", err)
	}
	if err := conf.Validate(); err != nil {
		log.Fatal().Msgf("invalid configuration: %s", err)
	}

	runID := uuid.New().String()
	tags := map[string]string{"run": runID}
	if _, err := logging.Setup(conf.Log.Level, os.Stderr, tags); err != nil {
		log.Fatal().Msgf("error while setting up logging: %s", err)
	}
	errLog, closeLog := errLogger(conf, tags)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//从阿里云读取域名
	if conf.Aliyun.Enabled {
		if err := discoverDomains(&conf); err != nil {
			errLog.Log(err, logging.LogOptions{Msg: "alibaba cloud discovery failed"})
		}
	}

	agg := &checker.Aggregator{
		Cert:    certProber(conf),
		Whois:   whoisProber(conf),
		Workers: conf.Workers,
		Log:     errLog,
	}
	log.Info().Int("domains", len(conf.Domains)).Int("workers", conf.Workers).Msg("checking expiry")
	rs := agg.Aggregate(ctx, conf.Domains)

	rep, err := report.Format(rs, report.Options{Threshold: conf.ThresholdDays, RunID: runID})
	if err != nil {
		log.Fatal().Msgf("error while formatting report: %s", err)
	}
	fmt.Print(rep.Console)

	prom.Record(rs)
	if conf.Metrics.Pushgateway != "" {
		if err := prom.Push(conf.Metrics.Pushgateway, conf.Metrics.Job); err != nil {
			errLog.Log(err, logging.LogOptions{Msg: "metrics push failed"})
		}
	}

	deliver(ctx, conf, rep, errLog)

	if conf.Serve.Listen != "" {
		serve(ctx, conf.Serve.Listen, rep)
	}
}

func errLogger(conf config.Config, tags map[string]string) (logging.ErrLogger, func()) {
	level, err := zerolog.ParseLevel(conf.Log.Level)
	if err != nil {
		level = zerolog.ErrorLevel
	}
	chain := logging.NewErrLogChain()
	closers := []func(){}

	f, err := logging.OpenErrorLog(conf.Log.File)
	if err != nil {
		log.Error().Err(err).Msg("error log unavailable, logging errors to stderr")
		chain.Add(logging.NewZeroLogger(os.Stderr, tags, level))
	} else {
		chain.Add(logging.NewZeroLogger(f, tags, level))
		closers = append(closers, func() { f.Close() })
	}

	if conf.Sentry.Enabled {
		hub, err := logging.NewSentryHub(conf.Sentry.Dsn)
		if err != nil {
			log.Error().Err(err).Msg("sentry unavailable")
		} else {
			chain.Add(hub.GetLogger(tags))
		}
	}

	return chain, func() {
		for _, c := range closers {
			c()
		}
	}
}

func discoverDomains(conf *config.Config) error {
	src, err := scrap.NewSource(conf.Aliyun.Region, conf.Aliyun.AccessKeyID, conf.Aliyun.AccessKeySecret, conf.Aliyun.Subdomains)
	if err != nil {
		return err
	}
	domains, err := src.Domains()
	conf.MergeDomains(domains)
	return err
}

func certProber(conf config.Config) *checker.CertProber {
	p := checker.NewCertProber(conf.TLS.CAFile, conf.TLS.Timeout.Std())
	p.Port = conf.TLS.Port
	if conf.TLS.Nameserver != "" {
		p.Resolver = checker.NewDNSResolver(conf.TLS.Nameserver, conf.TLS.Timeout.Std())
	}
	return p
}

func whoisProber(conf config.Config) *checker.WhoisProber {
	p := checker.NewWhoisProber(conf.Whois.Server, conf.Whois.Timeout.Std())
	p.Port = conf.Whois.Port
	p.Fields = conf.Whois.Fields
	p.Layouts = conf.Whois.Layouts
	p.RegistrableDomain = conf.Whois.RegistrableDomain
	p.Referral = conf.Whois.Referral
	p.IANAServer = conf.Whois.IANAServer
	if conf.Whois.Rate > 0 {
		p.Limiter = rate.NewLimiter(rate.Limit(conf.Whois.Rate), conf.Whois.Burst)
	}
	return p
}

func deliver(ctx context.Context, conf config.Config, rep report.Report, errLog logging.ErrLogger) {
	if !conf.Mail.Enabled {
		log.Warn().Str("subject", rep.Subject).Msg("mail disabled, report not sent")
		return
	}
	sendReport(ctx, conf, rep, errLog)
}

func sendReport(ctx context.Context, conf config.Config, rep report.Report, errLog logging.ErrLogger) {
	m := &notify.Mailer{
		Host:     conf.Mail.Host,
		Port:     conf.Mail.Port,
		Username: conf.Mail.Username,
		Password: conf.Mail.Password,
		Timeout:  conf.Mail.Timeout.Std(),
	}
	err := func() error {
		if conf.Mail.CAFile != "" {
			pool, err := checker.LoadCertPool(conf.Mail.CAFile)
			if err != nil {
				return &notify.Error{Stage: notify.StageConnect, Err: err}
			}
			m.RootCAs = pool
		}
		return m.Send(ctx, notify.Message{
			From:    conf.Mail.Sender,
			To:      conf.Mail.Recipient,
			Subject: rep.Subject,
			Text:    rep.Console,
			HTML:    rep.HTML,
		})
	}()
	if err == nil {
		log.Info().Str("to", conf.Mail.Recipient).Str("subject", rep.Subject).Msg("email sent")
		return
	}

	stage := "unknown"
	var mailErr *notify.Error
	if errors.As(err, &mailErr) {
		stage = mailErr.Stage.String()
	}
	log.Error().Err(err).Str("stage", stage).Msg("failed to send email")
	errLog.Log(err, logging.LogOptions{
		Tags: map[string]string{"stage": stage},
		Msg:  "failed to send email",
	})
}

func serve(ctx context.Context, addr string, rep report.Report) {
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    addr,
		Handler: server.New(rep),
	}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("serving report")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		log.Error().Err(err).Msg("report server stopped")
		return
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
