package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	charm "github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"i4.energy/across/fwril/activation"
	"i4.energy/across/fwril/datacall"
	"i4.energy/across/fwril/gps"
	"i4.energy/across/fwril/host"
	"i4.energy/across/fwril/metrics"
	"i4.energy/across/fwril/modem"
	"i4.energy/across/fwril/ril"
	"i4.energy/across/fwril/session"
	"i4.energy/across/fwril/supervisor"
	"i4.energy/across/fwril/urc"
)

func newLogger(config *Config) *slog.Logger {
	logLevel := slog.LevelInfo
	switch config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	if config.LogFormat == "text" {
		return slog.New(charm.NewWithOptions(os.Stderr, charm.Options{
			Level:           charm.Level(logLevel),
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

func main() {
	Flags(pflag.CommandLine)
	pflag.Parse()
	configPath, _ := pflag.CommandLine.GetString("config")

	config, err := LoadConfig(WithDefaults(), WithFile(configPath), WithEnv(), WithFlags(pflag.CommandLine))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(config)
	logger.Info("Starting "+ril.Version, "endpoint", config.Endpoint(), "data_device", config.DataDevice)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := session.New()
	if control, err := session.ReadControl(config.ControlPath); err != nil {
		logger.Warn("Failed to read control file, keeping defaults", "path", config.ControlPath, "error", err)
	} else {
		s.ApplyControl(control)
	}
	status := &session.StatusWriter{Session: s, Path: config.StatusPath}
	if err := status.Persist(); err != nil {
		logger.Warn("Failed to write status file", "path", config.StatusPath, "error", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	metrics.RegisterSession(prometheus.DefaultRegisterer, s)
	s.OnRadioTransition(m.RadioTransition)

	bridge := host.NewBridge(logger.With("component", "host"), host.WithObserver(m))
	channel := &supervisor.Channel{}

	data := datacall.NewManager(datacall.Config{
		Peer:      filepath.Base(config.DataDevice),
		Interface: config.Interface,
		DNS1:      config.DNS1,
		DNS2:      config.DNS2,
	}, channel, bridge, s, status, logger.With("component", "datacall"),
		datacall.WithLauncher(datacall.PppdLauncher{Path: config.PppdPath}))

	dispatcher := ril.New(ril.Config{GPS: config.GPSTTY || config.GPSFifo},
		channel, bridge, s, data, status, logger.With("component", "ril"),
		ril.WithContext(ctx), ril.WithSignalObserver(m))
	bridge.SetHandler(dispatcher)

	workflow := activation.New(activation.Config{}, channel, s, status, logger.With("component", "activation"))

	var sinks []urc.FixSink
	if config.GPSTTY {
		pty, err := gps.OpenPty(s, logger.With("component", "gps"))
		if err != nil {
			logger.Error("Failed to open GPS pseudo-terminal", "error", err)
		} else {
			defer pty.Close()
			sinks = append(sinks, pty)
		}
	}
	if config.GPSFifo {
		fifo := gps.NewFifoSink(config.GPSFifoPath, logger.With("component", "gps"))
		defer fifo.Close()
		sinks = append(sinks, fifo)
	}
	router := urc.NewRouter(bridge, s, logger.With("component", "urc"), sinks...)

	dialer, err := config.Endpoint().Dialer(logger)
	if err != nil {
		logger.Error("Failed to select AT channel", "error", err)
		os.Exit(1)
	}

	modemConfig, err := modem.NewConfigBuilder().
		WithDialer(dialer).
		WithATTimeout(config.ATTimeout).
		WithInitTimeout(30*time.Second).
		WithProbe(config.LivenessAttempts, config.LivenessTimeout).
		WithUnsolicited(router.Handle).
		WithLogger(logger.With("component", "modem")).
		Build()
	if err != nil {
		logger.Error("Failed to create modem config", "error", err)
		os.Exit(1)
	}

	sup := supervisor.New(supervisor.Config{
		Modem:   modemConfig,
		Backoff: config.Backoff,
		Period:  config.Period,
	}, channel, s, bridge, dispatcher, workflow, logger.With("component", "supervisor"),
		supervisor.WithObserver(m))

	supervisorDone := make(chan error, 1)
	go func() {
		supervisorDone <- sup.Run(ctx)
	}()

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger:         logger.With("component", "server"),
			Bridge:         bridge,
			Session:        s,
			RequestTimeout: 2 * time.Minute,
		},
	}
	servers := []*http.Server{httpServer}

	if config.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		servers = append(servers, &http.Server{Addr: config.MetricsAddress, Handler: mux})
	}

	for _, srv := range servers {
		go func() {
			logger.Info("Starting HTTP server", "address", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server failed", "address", srv.Addr, "error", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to gracefully shutdown server", "address", srv.Addr, "error", err)
		}
	}

	logger.Info("Closing modem connection")
	select {
	case <-supervisorDone:
	case <-shutdownCtx.Done():
		logger.Warn("Supervisor did not stop in time")
	}
	bridge.Close()
}
