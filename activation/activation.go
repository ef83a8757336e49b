// Package activation provisions the module's directory number over the air.
package activation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/warthog618/modem/info"

	"i4.energy/across/fwril/modem"
	"i4.energy/across/fwril/poll"
	"i4.energy/across/fwril/session"
)

var (
	// ErrInconclusive is returned when an activation call ended without the
	// success message. A later run may try again.
	ErrInconclusive = errors.New("activation inconclusive")

	// ErrRetriesExhausted is returned once the retry budget is spent. The
	// module stays Failed for the lifetime of the process.
	ErrRetriesExhausted = errors.New("activation retries exhausted")

	// ErrNotProvisionable is returned for a carrier that does not support
	// over the air provisioning, or when automatic activation is disabled.
	ErrNotProvisionable = errors.New("carrier not provisionable over the air")
)

const (
	otaDial    = "AT+CDV=*22899"
	otaSuccess = "MSG:8"
)

// Persister rewrites the status file.
type Persister interface {
	Persist() error
}

type Config struct {
	// Wait bounds the wait for activation messages after the OTA call
	Wait poll.Config
	// Messages is how many activation messages end the wait early
	Messages int
}

func (c *Config) setDefaults() {
	if c.Wait.MaxAttempts == 0 {
		c.Wait = poll.Config{Interval: time.Second, MaxAttempts: 30}
	}
	if c.Messages == 0 {
		c.Messages = 5
	}
}

// Workflow runs one activation check per call to Run.
type Workflow struct {
	config  Config
	cmd     modem.Commander
	session *session.Session
	status  Persister
	logger  *slog.Logger
}

func New(config Config, cmd modem.Commander, s *session.Session, status Persister, logger *slog.Logger) *Workflow {
	config.setDefaults()
	return &Workflow{config: config, cmd: cmd, session: s, status: status, logger: logger}
}

// Run reads the hardware identifier and directory number and, when the
// module is not yet provisioned, places the activation call if the carrier
// needs one and the retry budget allows it. The status file is rewritten
// whatever the outcome.
//
// A nil error means the module is activated.
func (w *Workflow) Run(ctx context.Context) (err error) {
	defer func() {
		meid, mdn := w.session.Identity()
		w.logger.Info("Activation check",
			"activation", w.session.Activation(),
			"auto", w.session.AutoActivate(),
			"retries", w.session.ActivationRetries(),
			"meid", meid, "mdn", mdn, "error", err)
		w.persist()
	}()

	meid, err := w.meid(ctx)
	if err != nil {
		return err
	}
	w.session.SetMEID(meid)

	mdn, err := w.mdn(ctx)
	if err != nil {
		return err
	}
	if provisioned(mdn) {
		w.session.SetMDN(mdn)
		w.session.SetActivated()
		return nil
	}

	resp, err := w.cmd.SingleLine(ctx, "AT$QCMIPGETP=0", "")
	if err != nil {
		return fmt.Errorf("mobile IP profile: %w", err)
	}
	profile := resp.Line()
	switch {
	case strings.Contains(profile, "sprint"):
		// provisioned by the network, never activated over the air
		w.session.SetActivated()
		return nil
	case strings.Contains(profile, "vzw"):
		return w.activate(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrNotProvisionable, profile)
	}
}

func (w *Workflow) activate(ctx context.Context) error {
	if !w.session.AutoActivate() {
		return fmt.Errorf("%w: automatic activation disabled", ErrNotProvisionable)
	}
	if !w.session.ConsumeActivationRetry() {
		return ErrRetriesExhausted
	}

	w.session.ResetOTA()
	if _, err := w.cmd.Command(ctx, otaDial); err != nil {
		// the call usually reports nothing useful
		w.logger.Debug("Activation call returned an error", "error", err)
	}

	err := poll.Until(ctx, w.config.Wait, func(context.Context) (bool, error) {
		count, _ := w.session.OTA()
		return count >= w.config.Messages, nil
	})
	if err != nil && !errors.Is(err, poll.ErrExhausted) {
		return err
	}

	_, last := w.session.OTA()
	if !strings.Contains(last, otaSuccess) {
		return fmt.Errorf("%w: last message %q", ErrInconclusive, last)
	}
	w.session.SetActivated()

	mdn, err := w.mdn(ctx)
	if err != nil {
		return fmt.Errorf("confirm directory number: %w", err)
	}
	w.session.SetMDN(mdn)
	return nil
}

// meid reads ^MEID:<id> and returns the identifier in upper case.
func (w *Workflow) meid(ctx context.Context) (string, error) {
	resp, err := w.cmd.SingleLine(ctx, "AT^MEID", "^MEID:")
	if err != nil {
		return "", fmt.Errorf("MEID: %w", err)
	}
	return strings.ToUpper(info.TrimPrefix(resp.Line(), "^MEID")), nil
}

// mdn reads +VMDN:<number>.
func (w *Workflow) mdn(ctx context.Context) (string, error) {
	resp, err := w.cmd.SingleLine(ctx, "AT+VMDN?", "+VMDN:")
	if err != nil {
		return "", fmt.Errorf("MDN: %w", err)
	}
	return info.TrimPrefix(resp.Line(), "+VMDN"), nil
}

// provisioned reports whether a directory number was assigned. Unassigned
// numbers start with 000.
func provisioned(mdn string) bool {
	return !strings.HasPrefix(mdn, "000")
}

func (w *Workflow) persist() {
	if w.status == nil {
		return
	}
	if err := w.status.Persist(); err != nil {
		w.logger.Warn("Failed to write status", "error", err)
	}
}
