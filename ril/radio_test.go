package ril

import (
	"context"
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
	"i4.energy/across/fwril/poll"
	"i4.energy/across/fwril/session"
)

// scheduler captures the callbacks handed to Host.Schedule.
type scheduler struct {
	mu     sync.Mutex
	delays []time.Duration
	fns    []func()
}

func (s *scheduler) capture(h *host.MockHost) {
	h.EXPECT().Schedule(gomock.Any(), gomock.Any()).
		Do(func(delay time.Duration, fn func()) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.delays = append(s.delays, delay)
			s.fns = append(s.fns, fn)
		}).AnyTimes()
}

// run pops and runs the oldest captured callback.
func (s *scheduler) run(t *testing.T) {
	s.mu.Lock()
	require.NotEmpty(t, s.fns)
	fn := s.fns[0]
	s.fns = s.fns[1:]
	s.mu.Unlock()
	fn()
}

func TestInitialize(t *testing.T) {
	t.Run("It should profile the modem and follow the radio to ready", func(t *testing.T) {
		h := newHarness(t, session.RadioOff)
		h.dispatcher.config.GPS = true
		h.dispatcher.config.ReadinessDelay = 2 * time.Second

		var sent []string
		h.cmd.EXPECT().Command(gomock.Any(), gomock.Any()).
			Do(func(_ context.Context, cmd string) { sent = append(sent, cmd) }).
			Return(ok(), nil).AnyTimes()
		h.cmd.EXPECT().SingleLine(gomock.Any(), "AT+VPON?", "+VPON:").Return(ok("+VPON: 1,1"), nil)

		var events []host.Event
		h.host.EXPECT().Notify(gomock.Any(), nil).
			Do(func(e host.Event, _ any) { events = append(events, e) }).AnyTimes()
		sched := &scheduler{}
		sched.capture(h.host)

		h.dispatcher.Initialize(context.Background())

		assert.Equal(t, session.RadioAwaitingReadiness, h.session.RadioState())
		assert.Equal(t, handshakeCommand, sent[0])
		assert.Equal(t, profile, sent[1:len(profile)+1])
		assert.Equal(t, gpsProfile, sent[len(profile)+1:])
		assert.Equal(t, []host.Event{host.RadioStateChanged, host.NetworkStateChanged}, events)
		assert.Equal(t, []time.Duration{2 * time.Second}, sched.delays)

		sched.run(t)
		assert.Equal(t, session.RadioReady, h.session.RadioState())
		assert.Equal(t, time.Duration(0), sched.delays[1])

		sent = nil
		sched.run(t)
		assert.Equal(t, []string{"AT+CNMI=1,2,2,1,1"}, sent)
	})

	t.Run("It should leave the radio off when the modem reports it off", func(t *testing.T) {
		h := newHarness(t, session.RadioOff)
		h.cmd.EXPECT().Command(gomock.Any(), gomock.Any()).Return(ok(), nil).Times(len(profile) + 1)
		h.cmd.EXPECT().SingleLine(gomock.Any(), "AT+VPON?", "+VPON:").Return(ok("+VPON: 0,1"), nil)

		h.dispatcher.Initialize(context.Background())
		assert.Equal(t, session.RadioOff, h.session.RadioState())
	})

	t.Run("It should retry the handshake until the modem answers", func(t *testing.T) {
		h := newHarness(t, session.RadioOff)
		gomock.InOrder(
			h.cmd.EXPECT().Command(gomock.Any(), handshakeCommand).Return(nil, modem.ErrTimeout).Times(2),
			h.cmd.EXPECT().Command(gomock.Any(), handshakeCommand).Return(ok(), nil),
		)
		require.NoError(t, h.dispatcher.handshake(context.Background()))
	})

	t.Run("It should retry a slow handshake without faulting the channel", func(t *testing.T) {
		h := newHarness(t, session.RadioOff)
		transport := modem.NewTestTransport()
		var timeouts atomic.Int32
		config, err := modem.NewConfigBuilder().
			WithDialer(modem.TestDialer{Transport: transport}).
			WithATTimeout(time.Second).
			WithOnTimeout(func() { timeouts.Add(1) }).
			WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
			Build()
		require.NoError(t, err)
		m, err := modem.New(context.Background(), config)
		require.NoError(t, err)
		go m.Loop(context.Background())
		t.Cleanup(func() { m.Close() })

		// the first attempt goes unanswered, the second is answered
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, ok := transport.WaitWrite(ctx); ok {
				transport.Script(handshakeCommand, "OK")
			}
		}()

		h.dispatcher.cmd = m
		h.dispatcher.config.Handshake = poll.Config{Interval: 50 * time.Millisecond, MaxAttempts: 8}
		require.NoError(t, h.dispatcher.handshake(context.Background()))
		assert.Zero(t, timeouts.Load())
		assert.False(t, m.Closed())
		assert.GreaterOrEqual(t, len(transport.Writes()), 2)
	})

	t.Run("It should stop the handshake on a closed channel", func(t *testing.T) {
		h := newHarness(t, session.RadioOff)
		h.cmd.EXPECT().Command(gomock.Any(), handshakeCommand).Return(nil, modem.ErrClosed).Times(1)
		assert.ErrorIs(t, h.dispatcher.handshake(context.Background()), modem.ErrClosed)
	})

	t.Run("It should give up the handshake after the configured attempts", func(t *testing.T) {
		h := newHarness(t, session.RadioOff)
		h.cmd.EXPECT().Command(gomock.Any(), handshakeCommand).Return(nil, modem.ErrTimeout).Times(3)
		assert.ErrorIs(t, h.dispatcher.handshake(context.Background()), poll.ErrExhausted)
	})
}

func TestPollReadiness(t *testing.T) {
	t.Run("It should do nothing once the radio left the awaiting state", func(t *testing.T) {
		h := newHarness(t, session.RadioOff)
		h.dispatcher.pollReadiness(context.Background())
		assert.Equal(t, session.RadioOff, h.session.RadioState())
	})

	t.Run("It should report ready on the first check", func(t *testing.T) {
		h := newHarness(t, session.RadioAwaitingReadiness)
		h.host.EXPECT().Notify(host.RadioStateChanged, nil)
		h.host.EXPECT().Schedule(time.Duration(0), gomock.Any())

		h.dispatcher.pollReadiness(context.Background())
		assert.Equal(t, session.RadioReady, h.session.RadioState())
	})
}

func TestTick(t *testing.T) {
	t.Run("It should only ask for a network refresh while the radio is off", func(t *testing.T) {
		h := newHarness(t, session.RadioOff)
		h.host.EXPECT().Notify(host.NetworkStateChanged, nil)

		h.dispatcher.Tick(context.Background())
		assert.Zero(t, h.data.checks)
	})

	t.Run("It should refresh the signal and check the data call", func(t *testing.T) {
		h := newHarness(t, session.RadioReady)
		automatic := true
		h.session.ApplyControl(session.Control{DataCallIsAutomatic: &automatic})
		h.host.EXPECT().Notify(host.NetworkStateChanged, nil)
		h.cmd.EXPECT().SingleLine(gomock.Any(), "AT+CSQ", "+CSQ:").Return(nil, modem.ErrTimeout)

		h.dispatcher.Tick(context.Background())
		assert.Equal(t, 1, h.data.checks)
		assert.Len(t, h.signal.readings, 1)
	})

	t.Run("It should leave the data call alone when it is not automatic", func(t *testing.T) {
		h := newHarness(t, session.RadioReady)
		h.host.EXPECT().Notify(host.NetworkStateChanged, nil)
		h.cmd.EXPECT().SingleLine(gomock.Any(), "AT+CSQ", "+CSQ:").Return(nil, modem.ErrTimeout)

		h.dispatcher.Tick(context.Background())
		assert.Zero(t, h.data.checks)
	})
}

func TestNewRegistersTransitionHook(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := session.New()
	hst := host.NewMockHost(ctrl)
	New(Config{}, modem.NewMockCommander(ctrl), hst, s, &fakeData{}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	hst.EXPECT().Notify(host.RadioStateChanged, nil)
	s.Close()
	assert.Equal(t, session.RadioUnavailable, s.RadioState())
}
