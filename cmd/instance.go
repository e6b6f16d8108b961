package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/cloudmusic/internal/client"
	"github.com/jfmyers9/cloudmusic/internal/config"
	"github.com/jfmyers9/cloudmusic/internal/ipc"
	"github.com/jfmyers9/cloudmusic/internal/queue"
	"github.com/jfmyers9/cloudmusic/internal/state"
	"github.com/jfmyers9/cloudmusic/internal/storage"
	"github.com/jfmyers9/cloudmusic/internal/ui"
)

const (
	dialTimeout = 2 * time.Second
	syncTimeout = 10 * time.Second
)

// session is a client instance running for the duration of one command.
type session struct {
	inst   *client.Instance
	kv     *storage.KV
	cancel context.CancelFunc
	done   chan error
}

// openSession starts a client instance and waits for its first sync. With
// spawn set, a background process is started when none is listening.
func openSession(ctx context.Context, cfg *config.Config, u ui.UI, spawn bool, logger zerolog.Logger) (*session, error) {
	inst, kv, err := newInstance(ctx, cfg, u, spawn, logger)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &session{inst: inst, kv: kv, cancel: cancel, done: make(chan error, 1)}
	go func() { s.done <- inst.Run(runCtx) }()

	waitCtx, waitCancel := context.WithTimeout(ctx, syncTimeout)
	defer waitCancel()
	synced := make(chan error, 1)
	go func() { synced <- inst.WaitSynced(waitCtx) }()

	select {
	case err := <-s.done:
		cancel()
		_ = kv.Close()
		if err == nil {
			err = errors.New("instance stopped before syncing")
		}
		return nil, err
	case err := <-synced:
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("waiting for background process: %w", err)
		}
	}
	return s, nil
}

// newInstance builds a client instance from configuration without starting
// it.
func newInstance(ctx context.Context, cfg *config.Config, u ui.UI, spawn bool, logger zerolog.Logger) (*client.Instance, *storage.KV, error) {
	if err := os.MkdirAll(cfg.SettingDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create setting directory: %w", err)
	}
	kv, err := storage.Open(cfg.StatePath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open state: %w", err)
	}

	c := client.Config{
		Dial:      ipc.UnixDialer(cfg.SocketPath(), dialTimeout),
		ShiftMode: queue.ParseShiftMode(cfg.ShiftMode),
		State: state.Options{
			Wasm:      cfg.Wasm,
			QueueInit: cfg.QueueInit,
		},
		KV: kv,
		UI: u,
	}
	if spawn {
		sp, err := newSpawner(ctx, cfg, kv, logger)
		if err != nil {
			_ = kv.Close()
			return nil, nil, err
		}
		c.Spawner = sp
	}
	return client.New(c, logger), kv, nil
}

// newSpawner starts this executable's daemon command, handing it the saved
// volume and speed.
func newSpawner(ctx context.Context, cfg *config.Config, kv *storage.KV, logger zerolog.Logger) (*ipc.Spawner, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate executable: %w", err)
	}

	volume, speed := 85, 1.0
	if _, err := kv.Get(ctx, storage.KeyVolume, &volume); err != nil {
		logger.Warn().Err(err).Msg("Failed to read saved volume")
	}
	if _, err := kv.Get(ctx, storage.KeySpeed, &speed); err != nil {
		logger.Warn().Err(err).Msg("Failed to read saved speed")
	}

	env := cfg.Spawn(volume, speed).Env()
	return ipc.NewSpawner(exe, []string{"daemon"}, env, cfg.SettingDir, logger), nil
}

// Close stops the instance and releases durable state.
func (s *session) Close() error {
	s.cancel()
	err := <-s.done
	if cerr := s.kv.Close(); err == nil {
		err = cerr
	}
	return err
}

// oneShot runs fn against a synced instance and shuts it down.
func oneShot(fn func(ctx context.Context, inst *client.Instance) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := setupLogger(logFile, levelOr(cfg.LogLevel))

	ctx := context.Background()
	s, err := openSession(ctx, cfg, nil, true, logger)
	if err != nil {
		return err
	}
	if err := fn(ctx, s.inst); err != nil {
		_ = s.Close()
		return err
	}
	return s.Close()
}
