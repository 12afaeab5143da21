package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Getter provides access to the current config, hot-reloaded or not.
type Getter interface {
	Config() *Config
}

// Static wraps a config for use without hot-reloading (e.g., in tests
// or one-shot CLI invocations).
type Static struct {
	cfg *Config
}

// NewStatic creates a Getter that always returns the same config.
func NewStatic(cfg *Config) *Static {
	return &Static{cfg: cfg}
}

func (s *Static) Config() *Config { return s.cfg }

// Watcher watches config.toml for changes and reloads configuration.
//
// Hot-reloadable settings take effect immediately: consensus_threshold,
// max_parallel_reviews, and each provider's enabled flag.
//
// Settings requiring restart: provider endpoint/type/model, and
// rate_gate_interval_minutes (the Rate Gate's cooldown map keys are
// already in flight; changing the interval mid-run would let a
// request that was rejected under the old interval silently become
// allowed). On reload, Config() keeps serving the interval the
// Watcher was created with; a changed value is only logged.
//
// Watcher is not restart-safe. Once Stop() is called, Start() will
// return an error. Create a new Watcher instance if restart is needed.
type Watcher struct {
	configPath     string
	cfg            *Config
	cfgMu          sync.RWMutex
	watcher        *fsnotify.Watcher
	stopCh         chan struct{}
	stopOnce       sync.Once
	stopped        bool
	lastReloadedAt time.Time
	reloadCounter  uint64
}

// NewWatcher creates a new config watcher.
func NewWatcher(configPath string, cfg *Config) *Watcher {
	return &Watcher{
		configPath: configPath,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
	}
}

// Start begins watching the config file for changes. Returns an error
// if the watcher has already been stopped.
func (w *Watcher) Start(ctx context.Context) error {
	w.cfgMu.RLock()
	stopped := w.stopped
	w.cfgMu.RUnlock()
	if stopped {
		return fmt.Errorf("config watcher already stopped; create a new instance to restart")
	}

	if w.configPath == "" {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fw

	configDir := filepath.Dir(w.configPath)
	configFile := filepath.Base(w.configPath)

	if err := fw.Add(configDir); err != nil {
		fw.Close()
		w.watcher = nil
		return err
	}

	go w.watchLoop(ctx, configFile)
	return nil
}

// Stop stops the config watcher. Safe to call multiple times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.cfgMu.Lock()
		w.stopped = true
		w.cfgMu.Unlock()
		close(w.stopCh)
		if w.watcher != nil {
			w.watcher.Close()
		}
	})
}

// Config returns the current config under a read lock.
func (w *Watcher) Config() *Config {
	w.cfgMu.RLock()
	defer w.cfgMu.RUnlock()
	return w.cfg
}

// ReloadCounter returns a monotonic counter incremented on each
// successful reload, for tests to detect that a reload happened
// without racing on timestamp precision.
func (w *Watcher) ReloadCounter() uint64 {
	w.cfgMu.RLock()
	defer w.cfgMu.RUnlock()
	return w.reloadCounter
}

func (w *Watcher) watchLoop(ctx context.Context, configFile string) {
	var debounceTimer *time.Timer
	debounceDelay := 200 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("config watcher error: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	newCfg, err := LoadGlobalFrom(w.configPath)
	if err != nil {
		log.Printf("failed to reload config: %v", err)
		return
	}

	w.cfgMu.Lock()
	old := w.cfg
	logChanges(old, newCfg)
	// rate_gate_interval_minutes requires a restart: keep the old value.
	newCfg.RateGateIntervalMinutes = old.RateGateIntervalMinutes
	w.cfg = newCfg
	w.lastReloadedAt = time.Now()
	w.reloadCounter++
	w.cfgMu.Unlock()

	log.Printf("config reloaded successfully")
}

func logChanges(old, new *Config) {
	if old.ConsensusThreshold != new.ConsensusThreshold {
		log.Printf("config change: consensus_threshold %d -> %d", old.ConsensusThreshold, new.ConsensusThreshold)
	}
	if old.MaxParallelReviews != new.MaxParallelReviews {
		log.Printf("config change: max_parallel_reviews %d -> %d", old.MaxParallelReviews, new.MaxParallelReviews)
	}
	if old.RateGateIntervalMinutes != new.RateGateIntervalMinutes {
		log.Printf("config change: rate_gate_interval_minutes %d -> %d (requires restart to take effect)", old.RateGateIntervalMinutes, new.RateGateIntervalMinutes)
	}
}
