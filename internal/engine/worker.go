package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/edgemeet/huddle/internal/core"
	"github.com/edgemeet/huddle/internal/domain"
)

const closeTimeout = 3 * time.Second

// Config holds engine-level settings shared by every worker process.
type Config struct {
	BinPath     string
	LogLevel    string
	ListenIP    string
	AnnouncedIP string
	MinPort     int
	MaxPort     int
}

// Worker wraps one media-engine process and its RPC channel.
type Worker struct {
	id     int
	cfg    Config
	cmd    *exec.Cmd
	conn   *jsonrpc2.Conn
	logger zerolog.Logger
	onExit func(error)

	mu     sync.Mutex
	closed bool
}

// Spawn starts one worker process. onExit fires when the process dies without
// Close having been called first.
func Spawn(ctx context.Context, id int, cfg Config, logger zerolog.Logger, onExit func(error)) (*Worker, error) {
	cmd := exec.Command(cfg.BinPath,
		fmt.Sprintf("--logLevel=%s", cfg.LogLevel),
		fmt.Sprintf("--rtcMinPort=%d", cfg.MinPort),
		fmt.Sprintf("--rtcMaxPort=%d", cfg.MaxPort),
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker %d stdin: %w", id, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker %d stdout: %w", id, err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn media worker %d (%s): %w", id, cfg.BinPath, err)
	}

	w := &Worker{
		id:     id,
		cfg:    cfg,
		cmd:    cmd,
		logger: logger,
		onExit: onExit,
	}
	w.conn = newChannel(ctx, stdioConn{in: stdin, out: stdout}, logger)
	go w.wait()

	logger.Info().Str("module", "engine.worker").Int("worker", id).Int("pid", cmd.Process.Pid).Msg("media worker started")
	return w, nil
}

func (w *Worker) wait() {
	err := w.cmd.Wait()

	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return
	}
	if err == nil {
		err = errors.New("media worker exited")
	}
	w.logger.Error().Str("module", "engine.worker").Int("worker", w.id).Err(err).Msg("media worker died")
	if w.onExit != nil {
		w.onExit(err)
	}
}

func (w *Worker) ID() int { return w.id }

// CreateRouter asks the worker to create a routing context for a room.
func (w *Worker) CreateRouter(ctx context.Context, roomID domain.RoomID) (core.Router, error) {
	routerID := uuid.NewString()
	var res createRouterResponse
	if err := w.conn.Call(ctx, methodCreateRouter, createRouterRequest{RouterID: routerID}, &res); err != nil {
		return nil, fmt.Errorf("create router for room %q: %w", roomID, err)
	}
	w.logger.Info().Str("module", "engine.worker").Int("worker", w.id).Str("router", routerID).Str("room", string(roomID)).Msg("router created")
	return &router{
		id:              routerID,
		worker:          w,
		rtpCapabilities: res.RtpCapabilities,
		transports:      make(map[string]*transport),
	}, nil
}

// Close shuts the worker process down. Idempotent.
func (w *Worker) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := w.conn.Call(ctx, methodCloseWorker, nil, nil); err != nil {
		w.logger.Warn().Str("module", "engine.worker").Int("worker", w.id).Err(err).Msg("graceful worker close failed, killing")
		if w.cmd.Process != nil {
			_ = w.cmd.Process.Kill()
		}
	}
	return w.conn.Close()
}
