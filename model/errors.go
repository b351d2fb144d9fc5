package model

import (
	"fmt"

	"github.com/pkg/errors"
)

type Kind int

const (
	NetworkError Kind = iota
	ProtocolError
	ParseError
	MailError
)

func (k Kind) String() string {
	switch k {
	case NetworkError:
		return "network"
	case ProtocolError:
		return "protocol"
	case ParseError:
		return "parse"
	case MailError:
		return "mail"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

var (
	ErrCertificateFieldMissing = errors.New("certificate has no not-after field")
	ErrRenewalDateNotFound     = errors.New("renewal date not found in whois response")
	ErrDateParse               = errors.New("unexpected date format")
	ErrTrustStore              = errors.New("trust store unavailable")
	ErrResponseTooLarge        = errors.New("whois response too large")
	ErrMail                    = errors.New("mail delivery failed")
)

// ProbeError carries the failing operation and its kind.
type ProbeError struct {
	Kind Kind
	Op   string
	Err  error
}

func NewProbeError(kind Kind, op string, err error) *ProbeError {
	return &ProbeError{Kind: kind, Op: op, Err: err}
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// KindOf returns the kind of the first ProbeError in err's chain.
func KindOf(err error) (Kind, bool) {
	var pe *ProbeError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}
