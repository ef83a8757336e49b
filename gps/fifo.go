package gps

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultFifoPath is where fixes are written when the named pipe sink is
// enabled.
const DefaultFifoPath = "/opt/fusion/gpsfifo"

const fifoWriteTimeout = 100 * time.Millisecond

// ErrNoReader is returned when a fix is dropped because nobody is reading.
var ErrNoReader = errors.New("no GPS reader")

// FifoSink writes fixes to a named pipe. The pipe is created on first use
// and opened without blocking, so fixes are dropped while no reader has it
// open. Any write error closes the pipe and the next fix reopens it.
type FifoSink struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	logger *slog.Logger
}

func NewFifoSink(path string, logger *slog.Logger) *FifoSink {
	if path == "" {
		path = DefaultFifoPath
	}
	return &FifoSink{path: path, logger: logger}
}

func (s *FifoSink) Path() string { return s.path }

func (s *FifoSink) WriteFix(sentence string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		if err := s.open(); err != nil {
			return err
		}
	}
	if err := s.file.SetWriteDeadline(time.Now().Add(fifoWriteTimeout)); err != nil {
		s.logger.Debug("GPS fifo has no write deadline", "error", err)
	}
	_, err := s.file.WriteString(sentence + "\n")
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrDeadlineExceeded):
		// the reader is not keeping up
		return fmt.Errorf("%w: %s", ErrNoReader, s.path)
	}
	s.file.Close()
	s.file = nil
	if errors.Is(err, unix.EPIPE) {
		return fmt.Errorf("%w: %s", ErrNoReader, s.path)
	}
	return fmt.Errorf("write %s: %w", s.path, err)
}

func (s *FifoSink) open() error {
	err := unix.Mkfifo(s.path, 0o666)
	switch {
	case err == nil:
		s.logger.Info("Created GPS fifo", "path", s.path)
		if err := os.Chmod(s.path, 0o666); err != nil {
			s.logger.Warn("Failed to open up GPS fifo permissions", "path", s.path, "error", err)
		}
	case errors.Is(err, unix.EEXIST):
	default:
		return fmt.Errorf("mkfifo %s: %w", s.path, err)
	}

	fd, err := unix.Open(s.path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if errors.Is(err, unix.ENXIO) {
		return fmt.Errorf("%w: %s", ErrNoReader, s.path)
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	s.file = os.NewFile(uintptr(fd), s.path)
	return nil
}

func (s *FifoSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
