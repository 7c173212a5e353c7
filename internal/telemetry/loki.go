package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	pushPath  = "/loki/api/v1/push"
	maxBuffer = 1024 // entries held between flushes; oldest dropped beyond this
)

// LokiWriter ships log lines to a Grafana Loki push endpoint. Lines are
// buffered in memory and flushed in batches so a slow or dead Loki never
// stalls the logger. Implements zapcore.WriteSyncer.
type LokiWriter struct {
	pushURL string
	labels  map[string]string
	http    *http.Client
	log     *zap.Logger // console logger, reports push failures

	mu      sync.Mutex
	entries [][2]string // [unix-nano, line]
	dropped int

	flushEvery time.Duration
	kick       chan struct{}
	done       chan struct{}
	stopped    sync.Once
	wg         sync.WaitGroup
}

// NewLokiWriter wires a background flusher against the given Loki base URL.
// The job label identifies this process in queries.
func NewLokiWriter(rawURL, job string, log *zap.Logger) (*LokiWriter, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse loki url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("loki url %q: scheme must be http or https", rawURL)
	}
	if !strings.HasSuffix(u.Path, pushPath) {
		u = u.JoinPath(pushPath)
	}

	w := &LokiWriter{
		pushURL:    u.String(),
		labels:     map[string]string{"job": job},
		http:       &http.Client{Timeout: 5 * time.Second},
		log:        log.Named("loki"),
		flushEvery: 2 * time.Second,
		kick:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Write buffers one encoded log line. Never blocks on the network.
func (w *LokiWriter) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	ts := strconv.FormatInt(time.Now().UnixNano(), 10)

	w.mu.Lock()
	if len(w.entries) >= maxBuffer {
		w.entries = w.entries[1:]
		w.dropped++
	}
	w.entries = append(w.entries, [2]string{ts, line})
	full := len(w.entries) >= maxBuffer/2
	w.mu.Unlock()

	if full {
		select {
		case w.kick <- struct{}{}:
		default:
		}
	}
	return len(p), nil
}

// Sync flushes the buffer now. Called by zap on logger.Sync().
func (w *LokiWriter) Sync() error {
	return w.flush()
}

// Close stops the background flusher after a final flush.
func (w *LokiWriter) Close() error {
	var err error
	w.stopped.Do(func() {
		close(w.done)
		w.wg.Wait()
		err = w.flush()
	})
	return err
}

func (w *LokiWriter) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.flushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-w.kick:
		case <-ticker.C:
		}
		if err := w.flush(); err != nil {
			w.log.Warn("log push failed", zap.Error(err))
		}
	}
}

// flush swaps the buffer out under the lock and pushes it in one request.
func (w *LokiWriter) flush() error {
	w.mu.Lock()
	entries := w.entries
	dropped := w.dropped
	w.entries = nil
	w.dropped = 0
	w.mu.Unlock()

	if dropped > 0 {
		w.log.Warn("log buffer overflowed, oldest entries dropped", zap.Int("dropped", dropped))
	}
	if len(entries) == 0 {
		return nil
	}

	payload := pushRequest{Streams: []stream{{Stream: w.labels, Values: entries}}}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode push payload: %w", err)
	}

	resp, err := w.http.Post(w.pushURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("push to loki: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("push to loki: unexpected status %s", resp.Status)
	}
	return nil
}

type pushRequest struct {
	Streams []stream `json:"streams"`
}

type stream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

// Attach tees every entry at or above the level into the writer as JSON.
// The returned logger still writes to its original core.
func Attach(log *zap.Logger, w *LokiWriter, level zapcore.LevelEnabler) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	lokiCore := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(w), level)
	return log.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, lokiCore)
	}))
}
