package checker

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"os"
	"strconv"
	"time"

	"domain-expiry/model"

	"github.com/pkg/errors"
)

// CertProber reads the leaf certificate expiry of a domain over TLS.
type CertProber struct {
	Port     int
	Timeout  time.Duration
	RootCAs  *x509.CertPool // nil means the system pool
	Resolver Resolver       // optional
	Now      func() time.Time

	trustErr error
}

// NewCertProber builds a prober that validates against caFile, or the system
// pool when caFile is empty. An unreadable bundle does not stop construction:
// every probe then reports the trust store error.
func NewCertProber(caFile string, timeout time.Duration) *CertProber {
	p := &CertProber{Port: model.HTTPSPort, Timeout: timeout}
	if caFile != "" {
		p.RootCAs, p.trustErr = LoadCertPool(caFile)
	}
	return p
}

// LoadCertPool reads a PEM bundle.
func LoadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(model.ErrTrustStore, "read %s: %v", path, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.Wrapf(model.ErrTrustStore, "no certificates in %s", path)
	}
	return pool, nil
}

func (p *CertProber) Probe(ctx context.Context, domain string) model.Expiry {
	notAfter, err := p.getCertExpiry(ctx, domain)
	if err != nil {
		return model.Unavailable(err)
	}
	text := notAfter.In(time.FixedZone("GMT", 0)).Format(model.NotAfterLayout)
	return model.Available(notAfter, text, model.DaysLeft(notAfter, p.now()))
}

func (p *CertProber) getCertExpiry(ctx context.Context, domain string) (time.Time, error) {
	op := "tls " + domain
	if p.trustErr != nil {
		return time.Time{}, model.NewProbeError(model.ProtocolError, op, p.trustErr)
	}

	host := domain
	if p.Resolver != nil {
		addr, err := p.Resolver.Resolve(ctx, domain)
		if err != nil {
			return time.Time{}, model.NewProbeError(model.NetworkError, op, err)
		}
		host = addr
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = model.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		},
		Config: &tls.Config{
			ServerName: domain,
			RootCAs:    p.RootCAs,
			Time:       p.now,
		},
	}
	port := p.Port
	if port == 0 {
		port = model.HTTPSPort
	}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return time.Time{}, model.NewProbeError(classifyTLSError(err), op, err)
	}
	defer conn.Close()

	certs := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(certs) == 0 || certs[0].NotAfter.IsZero() {
		return time.Time{}, model.NewProbeError(model.ProtocolError, op, model.ErrCertificateFieldMissing)
	}
	return certs[0].NotAfter, nil
}

func (p *CertProber) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// classifyTLSError separates handshake and verification failures from
// transport failures.
func classifyTLSError(err error) model.Kind {
	var (
		verifyErr  *tls.CertificateVerificationError
		hostErr    x509.HostnameError
		authErr    x509.UnknownAuthorityError
		invalidErr x509.CertificateInvalidError
		recordErr  tls.RecordHeaderError
		alertErr   tls.AlertError
		netErr     net.Error
	)
	switch {
	case errors.As(err, &verifyErr), errors.As(err, &hostErr), errors.As(err, &authErr),
		errors.As(err, &invalidErr), errors.As(err, &recordErr), errors.As(err, &alertErr):
		return model.ProtocolError
	case errors.As(err, &netErr), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return model.NetworkError
	}
	return model.ProtocolError
}
