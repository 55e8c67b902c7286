// SPDX-License-Identifier: MIT

package daemon

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"
)

var (
	ErrMissingLogger     = errors.New("daemon: logger is required")
	ErrMissingAPIHandler = errors.New("daemon: root handler is required")
	ErrMissingManager    = errors.New("daemon: manager is required")
	ErrManagerNotStarted = errors.New("daemon: manager not started")
)

// Deps is what the Manager needs from Bootstrap. A disabled logger counts as
// missing: the relay must never serve without access logs.
type Deps struct {
	Logger     zerolog.Logger
	APIHandler http.Handler
}

func (d *Deps) Validate() error {
	var errs []error
	if d.Logger.GetLevel() == zerolog.Disabled {
		errs = append(errs, ErrMissingLogger)
	}
	if d.APIHandler == nil {
		errs = append(errs, ErrMissingAPIHandler)
	}
	return errors.Join(errs...)
}
