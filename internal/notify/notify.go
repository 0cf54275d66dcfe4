// Package notify pushes run events to a socket.io endpoint so dashboards
// can follow an experiment while it runs.
package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/scalegrid/internal/config"
	"github.com/vk/scalegrid/internal/ctxlog"
	"github.com/vk/scalegrid/internal/experiment"
)

// DefaultEvent is emitted when the definition names no event.
const DefaultEvent = "run_finished"

const connectTimeout = 15 * time.Second

// Notifier emits one event per engine run. It implements
// experiment.Recorder.
type Notifier struct {
	io    *socket.Socket
	event string
}

// Connect opens the socket and waits for the connection to be
// acknowledged.
func Connect(ctx context.Context, cfg *config.Notify) (*Notifier, error) {
	logger := ctxlog.FromContext(ctx).With("url", cfg.URL)

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse notify URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("notify URL %q must include a scheme and host", cfg.URL)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification.")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))
	opts.SetReconnection(false)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(cfg.Namespace, opts)

	connected := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		connected <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err, ok := firstError(errs)
		if !ok {
			err = errors.New("connection refused")
		}
		connected <- err
	})

	logger.Debug("Connecting to notify endpoint.")
	io.Connect()

	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(connectTimeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", connectTimeout)
	}

	event := cfg.Event
	if event == "" {
		event = DefaultEvent
	}
	logger.Info("Connected to notify endpoint.", "sid", io.Id(), "event", event)
	return &Notifier{io: io, event: event}, nil
}

// RecordRun emits rec as the configured event.
func (n *Notifier) RecordRun(ctx context.Context, rec experiment.RunRecord) error {
	ctxlog.FromContext(ctx).Debug("Emitting run event.", "event", n.event, "scale", rec.Scale.String())
	if err := n.io.Emit(n.event, Payload(rec)); err != nil {
		return fmt.Errorf("emit %s: %w", n.event, err)
	}
	return nil
}

// Close disconnects the socket.
func (n *Notifier) Close() {
	n.io.Disconnect()
}

// Payload is the event body for one run record.
func Payload(rec experiment.RunRecord) map[string]any {
	p := map[string]any{
		"experiment":      rec.Experiment,
		"scale":           int(rec.Scale),
		"started_at":      rec.StartedAt.UTC().Format(time.RFC3339Nano),
		"wall_ms":         rec.Outcome.Wall.Milliseconds(),
		"exit_code":       rec.Outcome.ExitCode,
		"timed_out":       rec.Outcome.TimedOut,
		"elapsed_seconds": rec.Outcome.ElapsedSeconds,
		"succeeded":       rec.Err == nil && !rec.Outcome.Failed(),
	}
	if rec.Err != nil {
		p["error"] = rec.Err.Error()
	}
	return p
}

func firstError(args []any) (error, bool) {
	if len(args) == 0 {
		return nil, false
	}
	err, ok := args[0].(error)
	return err, ok
}
