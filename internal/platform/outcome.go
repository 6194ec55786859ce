// Package platform holds the outbound publish clients and the classification
// of their results into success, transient failure and permanent failure.
package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/maheshrc27/postqueue/internal/models"
)

// ErrRateLimited is returned when the local limiter cannot grant a request
// before the call deadline.
var ErrRateLimited = errors.New("local rate limit exceeded")

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeTransient
	OutcomePermanent
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransient:
		return "transient"
	default:
		return "permanent"
	}
}

// Outcome is the result of one platform call. ID is set on success, Cause otherwise.
type Outcome struct {
	Kind       OutcomeKind
	ID         string
	StatusCode int
	Cause      error
}

func Success(id string) Outcome {
	return Outcome{Kind: OutcomeSuccess, ID: id}
}

func Permanent(cause error) Outcome {
	return Outcome{Kind: OutcomePermanent, Cause: cause}
}

func (o Outcome) OK() bool { return o.Kind == OutcomeSuccess }

func (o Outcome) Error() string {
	if o.Cause == nil {
		return ""
	}
	return o.Cause.Error()
}

// StatusError is a non-2xx platform response.
type StatusError struct {
	Platform   models.Platform
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api returned %d %s: %s", e.Platform, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// ClassifyStatus maps an HTTP status to an outcome kind. Rate limiting and
// server errors are worth retrying; everything else is not.
func ClassifyStatus(code int) OutcomeKind {
	switch {
	case code >= 200 && code < 300:
		return OutcomeSuccess
	case code == http.StatusTooManyRequests, code >= 500 && code < 600:
		return OutcomeTransient
	default:
		return OutcomePermanent
	}
}

// ClassifyError decides whether a transport-level error is transient.
// Unrecognised errors are permanent.
func ClassifyError(err error) OutcomeKind {
	if err == nil {
		return OutcomeSuccess
	}

	var se *StatusError
	if errors.As(err, &se) {
		return ClassifyStatus(se.StatusCode)
	}

	if errors.Is(err, ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return OutcomeTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeTransient
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return OutcomeTransient
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return OutcomeTransient
	}

	return OutcomePermanent
}

// FromError builds a failed outcome from err.
func FromError(err error) Outcome {
	o := Outcome{Kind: ClassifyError(err), Cause: err}
	var se *StatusError
	if errors.As(err, &se) {
		o.StatusCode = se.StatusCode
	}
	return o
}
