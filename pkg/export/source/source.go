// Package source contains the upstream data fetchers. Each source delivers a
// sparse set of raw points for a period; reconciliation against the full
// calendar is the caller's concern.
package source

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/kvdm-lab/finexport/internal/types"
	pkgerrors "github.com/kvdm-lab/finexport/pkg/errors"
)

// Source fetches raw points for a period from one upstream system.
//
// Fetch returns zero or more points; a date with no published data is simply
// not present in the result, never an error. Errors carry one of the
// upstream error codes: source-unavailable, transport-timeout, or
// malformed-upstream-data.
type Source interface {
	// Schema returns the closed field set this source produces.
	Schema() types.Schema
	// Fetch retrieves the raw points for the period. The context bounds the
	// request; on deadline expiry the transport-timeout class is returned.
	Fetch(ctx context.Context, period types.Period) ([]types.RawPoint, error)
}

// Type selects a concrete source implementation.
type Type string

const (
	TypeCBR  Type = "cbr"
	TypeMoex Type = "moex"
)

// DefaultTimeout bounds a single upstream request when no timeout is
// configured.
const DefaultTimeout = 15 * time.Second

// New returns a source of the given type with the given request timeout.
func New(t Type, timeout time.Duration) (Source, error) {
	switch t {
	case TypeCBR:
		config := DefaultCBRConfig()
		config.Timeout = timeout

		return NewCBRSource(config), nil
	case TypeMoex:
		config := DefaultMoexConfig()
		config.Timeout = timeout

		return NewMoexSource(config), nil
	default:
		return nil, pkgerrors.Newf(pkgerrors.ErrCodeUnsupportedSource, "unsupported source type: %s", t)
	}
}

// classifyTransportError maps an HTTP client error to the taxonomy: timeouts
// and deadline expiry are the transport class, everything else means the
// source is unreachable.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.ErrCodeTransportTimeout, "no response within the configured bound", err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return pkgerrors.Wrap(pkgerrors.ErrCodeTransportTimeout, "no response within the configured bound", err)
	}

	return pkgerrors.Wrap(pkgerrors.ErrCodeSourceUnavailable, "unable to reach upstream", err)
}

// checkStatus converts a non-2xx response into a source-unavailable error.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return pkgerrors.Newf(pkgerrors.ErrCodeSourceUnavailable, "upstream returned HTTP %d", resp.StatusCode)
	}

	return nil
}
