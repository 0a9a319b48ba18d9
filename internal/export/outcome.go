package export

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"auditexport/internal/document"
	"auditexport/internal/services"
	"auditexport/internal/services/helpdesk"
)

// outcomeKind classifies one attempt.
type outcomeKind int

const (
	outcomeSaved outcomeKind = iota
	outcomeMissing
	outcomeServerFault
	outcomeConnectionFault
	outcomeClientFault
	outcomeNoResponse
	outcomeFatal
	outcomeCanceled
)

func (k outcomeKind) String() string {
	switch k {
	case outcomeSaved:
		return "saved"
	case outcomeMissing:
		return "missing"
	case outcomeServerFault:
		return "server_error"
	case outcomeConnectionFault:
		return "connection_error"
	case outcomeClientFault:
		return "client_error"
	case outcomeNoResponse:
		return "no_response"
	case outcomeFatal:
		return "fatal"
	case outcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// retriable reports whether another attempt may succeed.
func (k outcomeKind) retriable() bool {
	return k == outcomeServerFault || k == outcomeConnectionFault
}

type job struct {
	id      int64
	attempt int
}

// outcome is what a worker reports for one job.
type outcome struct {
	job     job
	kind    outcomeKind
	status  int
	err     error
	record  *document.Record
	elapsed time.Duration
	// called is false when the run was canceled before the request was sent.
	called bool
}

// classifyStatus maps a non-200 response status to an outcome.
func classifyStatus(status int) outcomeKind {
	switch {
	case status == http.StatusNotFound:
		return outcomeMissing
	case status >= 500:
		return outcomeServerFault
	default:
		return outcomeClientFault
	}
}

// classifyTransport maps a call that produced no response.
func classifyTransport(ctx context.Context, err error) outcomeKind {
	if ctx.Err() != nil {
		return outcomeCanceled
	}
	if helpdesk.IsRetriable(err) {
		return outcomeConnectionFault
	}
	return outcomeNoResponse
}

// failureError builds the error recorded for a non-fatal reported failure.
func failureError(o outcome) error {
	switch o.kind {
	case outcomeClientFault:
		return services.Wrap(services.ErrClientFault, "export", fmt.Sprintf("record %d", o.job.id), fmt.Sprintf("http %d", o.status), nil)
	case outcomeNoResponse:
		return services.Wrap(services.ErrNoResponse, "export", fmt.Sprintf("record %d", o.job.id), "", o.err)
	case outcomeServerFault:
		return services.Wrap(services.ErrTransient, "export", fmt.Sprintf("record %d", o.job.id),
			fmt.Sprintf("http %d after %d attempts", o.status, o.job.attempt), nil)
	case outcomeConnectionFault:
		return services.Wrap(services.ErrTransient, "export", fmt.Sprintf("record %d", o.job.id),
			fmt.Sprintf("no response after %d attempts", o.job.attempt), o.err)
	default:
		if o.err != nil {
			return o.err
		}
		return errors.New(o.kind.String())
	}
}
