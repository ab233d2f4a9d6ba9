package telemetry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// TurnLogConfig controls the NDJSON turn log.
type TurnLogConfig struct {
	Dir       string
	QueueSize int
}

// TurnLogger appends events to <dir>/<session>.ndjson from a background
// writer. Events are dropped with a warning when the queue is full.
type TurnLogger struct {
	dir    string
	queue  chan Event
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewTurnLogger creates dir and starts the writer goroutine.
func NewTurnLogger(cfg TurnLogConfig, logger *slog.Logger) (*TurnLogger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create turn log directory: %w", err)
	}
	l := &TurnLogger{
		dir:    cfg.Dir,
		queue:  make(chan Event, cfg.QueueSize),
		logger: logger,
		done:   make(chan struct{}),
	}
	go l.run()
	return l, nil
}

// Record implements Recorder.
func (l *TurnLogger) Record(e Event) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		l.logger.Warn("turn log closed, dropping event", "session_id", e.SessionID)
		return
	}
	select {
	case l.queue <- e:
	default:
		l.logger.Warn("turn log queue full, dropping event", "session_id", e.SessionID)
	}
}

// Close flushes queued events and stops the writer.
func (l *TurnLogger) Close() error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()
	<-l.done
	return nil
}

func (l *TurnLogger) run() {
	defer close(l.done)
	for e := range l.queue {
		if err := l.write(e); err != nil {
			l.logger.Warn("failed to write turn log", "session_id", e.SessionID, "error", err)
		}
	}
}

func (l *TurnLogger) write(e Event) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	path := filepath.Join(l.dir, fileName(e.SessionID)+".ndjson")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("append %s: %w", path, err)
	}
	return f.Close()
}

// fileName maps a session id onto a safe single path element.
func fileName(sessionID string) string {
	if sessionID == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, sessionID)
}
