package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"i4.energy/across/fwril/host"
	"i4.energy/across/fwril/modem"
	"i4.energy/across/fwril/session"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// sequenceDialer fails its first failures dials, then hands out a fresh
// TestTransport on every dial.
type sequenceDialer struct {
	mu         sync.Mutex
	failures   int
	dials      int
	transports []*modem.TestTransport
}

func (d *sequenceDialer) Dial(context.Context) (modem.Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.dials <= d.failures {
		return nil, errors.New("no such device")
	}
	t := modem.NewTestTransport()
	t.Script("AT", "OK")
	d.transports = append(d.transports, t)
	return t, nil
}

func (d *sequenceDialer) transport(i int) *modem.TestTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.transports) {
		return nil
	}
	return d.transports[i]
}

func (d *sequenceDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.transports)
}

type fakeRadio struct {
	initialized atomic.Int32
	ticks       atomic.Int32
	channel     *Channel
}

func (r *fakeRadio) Initialize(ctx context.Context) {
	r.initialized.Add(1)
	// the channel is usable from the scheduled callback
	r.channel.Command(ctx, "AT")
}

func (r *fakeRadio) Tick(context.Context) { r.ticks.Add(1) }

type fakeActivation struct {
	runs    atomic.Int32
	session *session.Session
}

func (a *fakeActivation) Run(context.Context) error {
	if a.runs.Add(1) >= 2 {
		a.session.SetActivated()
		return nil
	}
	return errors.New("inconclusive")
}

type countingObserver struct{ attached, detached atomic.Int32 }

func (o *countingObserver) Attached() { o.attached.Add(1) }
func (o *countingObserver) Detached() { o.detached.Add(1) }

// immediateHost runs scheduled callbacks on their own goroutine at once.
func immediateHost(t *testing.T) *host.MockHost {
	h := host.NewMockHost(gomock.NewController(t))
	h.EXPECT().Notify(gomock.Any(), gomock.Any()).AnyTimes()
	h.EXPECT().Schedule(gomock.Any(), gomock.Any()).
		Do(func(_ time.Duration, fn func()) { go fn() }).AnyTimes()
	return h
}

func TestSupervisor(t *testing.T) {
	t.Run("It should retry, attach, serve and re-attach after the channel closes", func(t *testing.T) {
		dialer := &sequenceDialer{failures: 2}
		s := session.New()
		s.SetScreen(session.ScreenOn)
		channel := &Channel{}
		radio := &fakeRadio{channel: channel}
		activation := &fakeActivation{session: s}
		observer := &countingObserver{}

		sup := New(Config{
			Modem:   modem.Config{Dialer: dialer, Logger: discard, ATTimeout: time.Second},
			Backoff: time.Millisecond,
			Period:  5 * time.Millisecond,
		}, channel, s, immediateHost(t), radio, activation, discard, WithObserver(observer))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- sup.Run(ctx) }()

		require.Eventually(t, func() bool {
			return radio.ticks.Load() >= 2 && activation.runs.Load() >= 2
		}, 5*time.Second, time.Millisecond)
		assert.Equal(t, 1, dialer.count())
		assert.True(t, channel.Attached())
		assert.Equal(t, int32(1), radio.initialized.Load())
		assert.Equal(t, session.Activated, s.Activation())

		// the modem hangs up
		require.NoError(t, dialer.transport(0).Close())
		require.Eventually(t, func() bool { return dialer.count() == 2 && radio.initialized.Load() == 2 },
			5*time.Second, time.Millisecond)
		assert.False(t, s.Closed())
		assert.Equal(t, int32(2), activation.runs.Load(), "an activated module is not checked again")

		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(5 * time.Second):
			t.Fatal("supervisor did not stop")
		}
		assert.False(t, channel.Attached())
		assert.True(t, s.Closed())
		assert.Equal(t, session.RadioUnavailable, s.RadioState())
		assert.Equal(t, int32(2), observer.attached.Load())
		assert.Equal(t, int32(2), observer.detached.Load())
	})

	t.Run("It should not tick while the screen is off", func(t *testing.T) {
		s := session.New()
		s.SetActivated()
		channel := &Channel{}
		radio := &fakeRadio{channel: channel}

		sup := New(Config{
			Modem:  modem.Config{Dialer: &sequenceDialer{}, Logger: discard},
			Period: time.Millisecond,
		}, channel, s, immediateHost(t), radio, &fakeActivation{session: s}, discard)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, sup.Run(ctx), context.DeadlineExceeded)
		assert.Zero(t, radio.ticks.Load())
	})

	t.Run("It should not run a failed activation again", func(t *testing.T) {
		s := session.New()
		for s.ConsumeActivationRetry() {
		}
		require.Equal(t, session.ActivationFailed, s.Activation())
		channel := &Channel{}
		activation := &fakeActivation{session: s}

		sup := New(Config{
			Modem:  modem.Config{Dialer: &sequenceDialer{}, Logger: discard},
			Period: time.Millisecond,
		}, channel, s, immediateHost(t), &fakeRadio{channel: channel}, activation, discard)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, sup.Run(ctx), context.DeadlineExceeded)
		assert.Zero(t, activation.runs.Load())
		assert.Equal(t, session.ActivationFailed, s.Activation())
	})

	t.Run("It should stop retrying when the context is done", func(t *testing.T) {
		s := session.New()
		sup := New(Config{
			Modem:   modem.Config{Dialer: modem.TestDialer{Err: errors.New("no such device")}, Logger: discard},
			Backoff: time.Hour,
		}, &Channel{}, s, immediateHost(t), &fakeRadio{}, &fakeActivation{session: s}, discard)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, sup.Run(ctx), context.DeadlineExceeded)
	})
}

func TestChannel(t *testing.T) {
	t.Run("It should fail every exchange while detached", func(t *testing.T) {
		var c Channel
		ctx := context.Background()
		_, err := c.Command(ctx, "AT")
		assert.ErrorIs(t, err, modem.ErrClosed)
		_, err = c.SingleLine(ctx, "AT+CSQ", "+CSQ:")
		assert.ErrorIs(t, err, modem.ErrClosed)
		_, err = c.Multiline(ctx, "AT+CLCC", "+CLCC:")
		assert.ErrorIs(t, err, modem.ErrClosed)
		_, err = c.Numeric(ctx, "AT+CUSD=2")
		assert.ErrorIs(t, err, modem.ErrClosed)
		_, err = c.SMS(ctx, "AT+CMGW=1,1", "00", "+CMGW:")
		assert.ErrorIs(t, err, modem.ErrClosed)
	})

	t.Run("It should forward to the attached commander", func(t *testing.T) {
		cmd := modem.NewMockCommander(gomock.NewController(t))
		resp := &modem.Response{Lines: []string{"+CSQ: 20,99"}, Final: "OK"}
		cmd.EXPECT().SingleLine(gomock.Any(), "AT+CSQ", "+CSQ:").Return(resp, nil)

		var c Channel
		c.Attach(cmd)
		got, err := c.SingleLine(context.Background(), "AT+CSQ", "+CSQ:")
		require.NoError(t, err)
		assert.Same(t, resp, got)

		c.Detach()
		assert.False(t, c.Attached())
	})
}

func TestEndpointDialer(t *testing.T) {
	tests := []struct {
		name     string
		endpoint Endpoint
		want     modem.Dialer
	}{
		{"loopback port wins", Endpoint{Port: 5000, Socket: "/tmp/x", Device: "/dev/ttyUSB0"}, modem.TCPDialer{Port: 5000}},
		{"emulator multiplexer", Endpoint{Socket: modem.QemudSocket}, modem.QemudDialer{Path: modem.QemudSocket}},
		{"local socket", Endpoint{Socket: "/run/modem.sock", Device: "/dev/ttyUSB0"}, modem.UnixDialer{Path: "/run/modem.sock"}},
		{"termios device", Endpoint{Device: "/dev/ttyACM0", Driver: DriverTerm, BaudRate: 9600}, modem.TermDialer{PortName: "/dev/ttyACM0", BaudRate: 9600}},
		{"serial device", Endpoint{Device: "/dev/ttyUSB0"}, modem.SerialDialer{PortName: "/dev/ttyUSB0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := tt.endpoint.Dialer(discard)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}

	t.Run("It should apply the baud rate to serial devices", func(t *testing.T) {
		d, err := Endpoint{Device: "/dev/ttyUSB0", BaudRate: 57600}.Dialer(discard)
		require.NoError(t, err)
		require.NotNil(t, d.(modem.SerialDialer).Mode)
		assert.Equal(t, 57600, d.(modem.SerialDialer).Mode.BaudRate)
	})

	t.Run("It should wrap the dialer for tracing", func(t *testing.T) {
		d, err := Endpoint{Port: 5000, Trace: true}.Dialer(discard)
		require.NoError(t, err)
		tracing, ok := d.(modem.TracingDialer)
		require.True(t, ok)
		assert.Equal(t, modem.TCPDialer{Port: 5000}, tracing.Dialer)
	})

	t.Run("It should require an endpoint", func(t *testing.T) {
		_, err := Endpoint{}.Dialer(discard)
		assert.ErrorIs(t, err, ErrNoEndpoint)
	})
}
