package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"resumerank/internal/errors"
	"resumerank/internal/scoring"

	"github.com/fsnotify/fsnotify"
)

const defaultProfileDebounce = time.Second

// ProfileWatcher watches the scoring profile file and calls its reload
// function once writes have settled.
type ProfileWatcher struct {
	mu sync.RWMutex

	path string

	// Last observed file state
	lastModTime time.Time
	lastSize    int64
	exists      bool

	// Watcher components
	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	// Control channels
	stopChan   chan struct{}
	reloadChan chan struct{}
	done       chan struct{}

	reload func() error
	logger *errors.Logger

	// State
	running        bool
	reloadCount    int64
	failureCount   int64
	lastReloadTime time.Time
	lastError      string
}

// NewProfileWatcher creates a watcher for path. reload runs on the watcher's
// goroutine.
func NewProfileWatcher(path string, debounceDelay time.Duration, reload func() error, logger *errors.Logger) *ProfileWatcher {
	if debounceDelay <= 0 {
		debounceDelay = defaultProfileDebounce
	}
	if logger == nil {
		logger = errors.NewNopLogger()
	}

	return &ProfileWatcher{
		path:          path,
		debounceDelay: debounceDelay,
		reload:        reload,
		logger:        logger,
	}
}

// Start begins watching the profile file for changes
func (pw *ProfileWatcher) Start() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if pw.running {
		return fmt.Errorf("profile watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory so that atomic writes (rename over the file) and
	// delete-then-create editors are both seen.
	dir := filepath.Dir(pw.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	pw.fsWatcher = watcher
	pw.updateFileState()
	pw.stopChan = make(chan struct{})
	pw.reloadChan = make(chan struct{}, 1)
	pw.done = make(chan struct{})
	pw.running = true

	go pw.watchLoop(watcher, pw.stopChan, pw.reloadChan, pw.done)

	pw.logger.Info("Scoring profile watcher started",
		"file", pw.path,
		"debounce_delay", pw.debounceDelay)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (pw *ProfileWatcher) Stop() error {
	pw.mu.Lock()
	if !pw.running {
		pw.mu.Unlock()
		return nil
	}

	close(pw.stopChan)
	if pw.debounceTimer != nil {
		pw.debounceTimer.Stop()
	}
	pw.running = false
	watcher, done := pw.fsWatcher, pw.done
	pw.mu.Unlock()

	err := watcher.Close()
	<-done

	if err != nil {
		pw.logger.LogError(err, "Failed to close file system watcher")
		return err
	}
	pw.logger.Info("Scoring profile watcher stopped")
	return nil
}

// watchLoop is the main event loop for file watching
func (pw *ProfileWatcher) watchLoop(watcher *fsnotify.Watcher, stop, reload <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if pw.shouldProcessEvent(event) {
				pw.scheduleReload()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			pw.logger.LogError(err, "Profile watcher error")

		case <-reload:
			if pw.hasFileChanged() {
				pw.logger.Info("Scoring profile changed, reloading", "file", pw.path)
				pw.runReload()
			}

		case <-stop:
			return
		}
	}
}

// shouldProcessEvent reports whether event concerns the profile file
func (pw *ProfileWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(pw.path) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0
}

// scheduleReload schedules a debounced reload
func (pw *ProfileWatcher) scheduleReload() {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if !pw.running {
		return
	}
	if pw.debounceTimer != nil {
		pw.debounceTimer.Stop()
	}

	reloadChan := pw.reloadChan
	pw.debounceTimer = time.AfterFunc(pw.debounceDelay, func() {
		select {
		case reloadChan <- struct{}{}:
		default:
			// A reload is already pending
		}
	})
}

// updateFileState records the current size and modification time of the file.
func (pw *ProfileWatcher) updateFileState() {
	stat, err := os.Stat(pw.path)
	if err != nil {
		pw.exists = false
		return
	}
	pw.exists = true
	pw.lastModTime = stat.ModTime()
	pw.lastSize = stat.Size()
}

// hasFileChanged checks if the file has been modified since last check
func (pw *ProfileWatcher) hasFileChanged() bool {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	stat, err := os.Stat(pw.path)
	if err != nil {
		if pw.exists {
			pw.exists = false
			return true
		}
		return false
	}

	changed := !pw.exists || !stat.ModTime().Equal(pw.lastModTime) || stat.Size() != pw.lastSize
	pw.exists = true
	pw.lastModTime = stat.ModTime()
	pw.lastSize = stat.Size()
	return changed
}

func (pw *ProfileWatcher) runReload() {
	err := pw.reload()

	pw.mu.Lock()
	defer pw.mu.Unlock()
	pw.reloadCount++
	pw.lastReloadTime = time.Now()
	if err != nil {
		pw.failureCount++
		pw.lastError = err.Error()
		pw.logger.LogError(err, "Scoring profile reload failed, keeping the previous profile", "file", pw.path)
		return
	}
	pw.lastError = ""
}

// IsRunning returns whether the watcher is currently running
func (pw *ProfileWatcher) IsRunning() bool {
	pw.mu.RLock()
	defer pw.mu.RUnlock()
	return pw.running
}

// Stats reports reload counters for the health endpoint.
func (pw *ProfileWatcher) Stats() map[string]any {
	pw.mu.RLock()
	defer pw.mu.RUnlock()

	stats := map[string]any{
		"enabled":       true,
		"running":       pw.running,
		"file":          pw.path,
		"reload_count":  pw.reloadCount,
		"failure_count": pw.failureCount,
	}
	if !pw.lastReloadTime.IsZero() {
		stats["last_reload_time"] = pw.lastReloadTime
	}
	if pw.lastError != "" {
		stats["last_error"] = pw.lastError
	}
	return stats
}

// reloadProfile rebuilds the scorer from the configured profile file and
// swaps it into the ranker. Rankings already running keep their scorer.
func (s *Server) reloadProfile() error {
	ctx := context.Background()

	profile, err := scoring.ProfileFromConfig(s.AppConfig.Scoring)
	if err == nil {
		var scorer *scoring.Scorer
		scorer, err = scoring.NewScorer(profile, s.Engine)
		if err == nil {
			s.Ranker.SetScorer(scorer)
		}
	}
	if err != nil {
		s.metrics().RecordProfileReload(ctx, false)
		return errors.NewConfigError(errors.ErrCodeInvalidProfile, "failed to reload scoring profile", err)
	}

	s.metrics().RecordProfileReload(ctx, true)
	s.Logger.Info("Scoring profile reloaded",
		"version", profile.Vocabulary.Version(),
		"skills", profile.Vocabulary.Len(),
		"degree_tiers", len(profile.DegreeTiers))
	return nil
}

// startProfileWatcher starts hot reload when the configuration asks for it.
func (s *Server) startProfileWatcher() error {
	if s.AppConfig == nil || !s.AppConfig.Scoring.WatchProfile || s.AppConfig.Scoring.ProfileFile == "" {
		return nil
	}

	watcher := NewProfileWatcher(s.AppConfig.Scoring.ProfileFile, s.AppConfig.Scoring.WatchDebounce,
		s.reloadProfile, s.Logger)
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("failed to start profile watcher: %w", err)
	}
	s.ProfileWatcher = watcher
	return nil
}

// stopProfileWatcher stops the profile watcher if it's running
func (s *Server) stopProfileWatcher() error {
	if s.ProfileWatcher != nil {
		return s.ProfileWatcher.Stop()
	}
	return nil
}
