package ipc

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// logPrefix names the background process's error logs: err-YYYY-MM-DD.log.
const logPrefix = "err-"

// LogFileName returns the error-log name for the day containing t.
func LogFileName(t time.Time) string {
	return logPrefix + t.Format("2006-01-02") + ".log"
}

// Spawner starts a detached background process.
type Spawner struct {
	Path string   // executable
	Args []string // arguments after the executable
	Env  []string // KEY=value pairs appended to the current environment
	Dir  string   // directory holding the error log

	logger zerolog.Logger
	now    func() time.Time
	start  func(*exec.Cmd) error
}

func NewSpawner(path string, args, env []string, dir string, logger zerolog.Logger) *Spawner {
	return &Spawner{
		Path:   path,
		Args:   args,
		Env:    env,
		Dir:    dir,
		logger: logger.With().Str("component", "spawner").Logger(),
		now:    time.Now,
		start:  startDetached,
	}
}

// LogPath is the error log today's spawn appends to.
func (s *Spawner) LogPath() string {
	return filepath.Join(s.Dir, LogFileName(s.now()))
}

// Spawn starts the background process with its stderr appended to LogPath,
// then sweeps older logs.
func (s *Spawner) Spawn() error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	logPath := s.LogPath()
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open error log: %w", err)
	}
	// The child holds its own descriptor once started.
	defer func() { _ = f.Close() }()

	cmd := exec.Command(s.Path, s.Args...)
	cmd.Env = append(os.Environ(), s.Env...)
	cmd.Stderr = f
	if err := s.start(cmd); err != nil {
		return fmt.Errorf("start background process: %w", err)
	}
	s.logger.Info().Str("log", logPath).Msg("spawned background process")

	SweepStaleLogs(s.Dir, filepath.Base(logPath), s.logger)
	return nil
}

// SweepStaleLogs removes every error log in dir except keep. Failures are
// logged and otherwise ignored.
func SweepStaleLogs(dir, keep string, logger zerolog.Logger) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("failed to list error logs")
		return 0
	}

	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == keep || !strings.HasPrefix(name, logPrefix) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			logger.Warn().Err(err).Str("file", name).Msg("failed to remove stale error log")
			continue
		}
		removed++
	}
	return removed
}
