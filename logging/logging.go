package logging

import (
	"io"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type LogOptions struct {
	Tags map[string]string
	Msg  string
}

// ErrLogger records errors that were handled and did not stop the run.
type ErrLogger interface {
	Log(error, LogOptions)
}

type zeroLogger struct {
	l zerolog.Logger
}

func (l *zeroLogger) Log(err error, opts LogOptions) {
	ev := l.l.Err(err)
	for k, v := range opts.Tags {
		ev = ev.Str(k, v)
	}
	ev.Msg(opts.Msg)
}

func NewZeroLogger(w io.Writer, tags map[string]string, level zerolog.Level) ErrLogger {
	ctx := zerolog.New(w).With().Timestamp()
	for k, v := range tags {
		ctx = ctx.Str(k, v)
	}
	l := ctx.Logger().Level(level)
	return &zeroLogger{
		l: l,
	}
}

// OpenErrorLog opens path for appending, creating it when missing.
func OpenErrorLog(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "open error log %s", path)
	}
	return f, nil
}

type SentryHub struct {
	client *sentry.Client
}

func NewSentryHub(dsn string) (*SentryHub, error) {
	c, err := sentry.NewClient(sentry.ClientOptions{
		Dsn: dsn,
	})
	if err != nil {
		return nil, errors.Wrap(err, "sentry client")
	}
	return &SentryHub{client: c}, nil
}

func (hub *SentryHub) GetLogger(tags map[string]string) ErrLogger {
	scope := sentry.NewScope()
	for k, v := range tags {
		scope.SetTag(k, v)
	}
	return &sentryLogger{
		h: sentry.NewHub(hub.client, scope),
	}
}

type sentryLogger struct {
	h *sentry.Hub
}

func (l *sentryLogger) Log(err error, opts LogOptions) {
	scope := l.h.PushScope()
	defer l.h.PopScope()
	for k, v := range opts.Tags {
		scope.SetTag(k, v)
	}
	if opts.Msg != "" {
		scope.SetExtra("msg", opts.Msg)
	}
	l.h.CaptureException(err)
	l.h.Flush(100 * time.Millisecond)
}

type errLogChain struct {
	loggers []ErrLogger
}

func (chain *errLogChain) Log(err error, opts LogOptions) {
	for _, l := range chain.loggers {
		l.Log(err, opts)
	}
}

func (chain *errLogChain) Add(el ErrLogger) {
	chain.loggers = append(chain.loggers, el)
}

func NewErrLogChain(loggers ...ErrLogger) *errLogChain {
	return &errLogChain{
		loggers: loggers,
	}
}

// Nop drops everything.
var Nop ErrLogger = nopLogger{}

type nopLogger struct{}

func (nopLogger) Log(error, LogOptions) {}

// Setup points the global logger at the console and returns it for callers
// that need a handle.
func Setup(level string, console io.Writer, tags map[string]string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return log.Logger, errors.Wrapf(err, "log level %q", level)
	}
	ctx := zerolog.New(zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}).With().Timestamp()
	for k, v := range tags {
		ctx = ctx.Str(k, v)
	}
	log.Logger = ctx.Logger().Level(lvl)
	return log.Logger, nil
}
