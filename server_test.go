package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"i4.energy/across/fwril/host"
	"i4.energy/across/fwril/ril"
	"i4.energy/across/fwril/session"
)

func newTestServer(t *testing.T) (*Server, *host.Bridge, *host.MockHandler) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := host.NewBridge(logger)
	t.Cleanup(b.Close)
	handler := host.NewMockHandler(gomock.NewController(t))
	b.SetHandler(handler)
	return &Server{Logger: logger, Bridge: b, Session: session.New()}, b, handler
}

func TestServerRequests(t *testing.T) {
	t.Run("It should submit the named request with its payload", func(t *testing.T) {
		s, b, handler := newTestServer(t)
		handler.EXPECT().
			OnRequest(gomock.Any(), host.RadioPower, host.Payload{"1"}, gomock.Any()).
			Do(func(_ context.Context, _ host.Request, _ host.Payload, token host.Token) {
				b.Complete(token, host.Success, nil)
			})

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/requests/radio_power", strings.NewReader(`["1"]`)))

		require.Equal(t, http.StatusOK, rec.Code)
		var got map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Equal(t, "radio_power", got["request"])
		assert.Equal(t, "success", got["status"])
		assert.NotEmpty(t, got["token"])
	})

	t.Run("It should accept an empty body", func(t *testing.T) {
		s, b, handler := newTestServer(t)
		handler.EXPECT().
			OnRequest(gomock.Any(), host.SignalStrength, gomock.Nil(), gomock.Any()).
			Do(func(_ context.Context, _ host.Request, _ host.Payload, token host.Token) {
				b.Complete(token, host.RadioNotAvailable, nil)
			})

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/requests/signal_strength", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"radio_not_available"`)
	})

	t.Run("It should hand unknown names to the dispatcher", func(t *testing.T) {
		s, b, handler := newTestServer(t)
		handler.EXPECT().
			OnRequest(gomock.Any(), host.RequestUnknown, gomock.Any(), gomock.Any()).
			Do(func(_ context.Context, _ host.Request, _ host.Payload, token host.Token) {
				b.Complete(token, host.RadioNotAvailable, nil)
			})

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/requests/bogus", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("It should reject a malformed payload", func(t *testing.T) {
		s, _, _ := newTestServer(t)

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/requests/dial", strings.NewReader(`{"to":1}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "message")
	})

	t.Run("It should only accept POST", func(t *testing.T) {
		s, _, _ := newTestServer(t)

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/requests/dial", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("It should report a closed bridge as unavailable", func(t *testing.T) {
		s, b, _ := newTestServer(t)
		b.Close()

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/requests/answer", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestServerViews(t *testing.T) {
	t.Run("It should list recent notifications with their time", func(t *testing.T) {
		s, b, _ := newTestServer(t)
		b.Notify(host.RadioStateChanged, nil)
		b.Notify(host.NetworkStateChanged, nil)

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications?limit=1", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var got []map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		require.Len(t, got, 1)
		assert.Equal(t, "network_state_changed", got[0]["event"])
		assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}$`, got[0]["time"])
	})

	t.Run("It should reject a bad limit", func(t *testing.T) {
		s, _, _ := newTestServer(t)

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications?limit=x", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("It should render the session snapshot", func(t *testing.T) {
		s, _, _ := newTestServer(t)
		s.Session.SetGPSPort("/dev/pts/3")

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var got map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Equal(t, session.RadioOff.String(), got["radio"])
		assert.Equal(t, "/dev/pts/3", got["gps_port"])
		assert.Equal(t, ril.Version, got["version"])
		assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}$`, got["updated"])
	})

	t.Run("It should fail the health check once the channel closed", func(t *testing.T) {
		s, _, _ := newTestServer(t)

		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		s.Session.Close()
		rec = httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
