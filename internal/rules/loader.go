package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/upb/case-orchestrator/services"
)

// Loader reads a YAML rules file and watches it for changes
type Loader struct {
	path     string
	logger   *zap.Logger
	mu       sync.RWMutex
	current  Rules
	onChange []func(Rules)
}

// NewLoader creates a Loader and performs the initial load
func NewLoader(path string, logger *zap.Logger) (*Loader, error) {
	l := &Loader{path: path, logger: logger}
	r, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = r
	return l, nil
}

// Rules returns the latest successfully loaded rules
func (l *Loader) Rules() Rules {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked after every successful reload
func (l *Loader) OnChange(fn func(Rules)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts a background goroutine that reloads the rules whenever the
// file is written or replaced. Invalid files are logged and ignored.
// Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("rules watcher: %w", err)
	}
	// Watch the directory so editors that rename over the file are seen.
	dir := filepath.Dir(l.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("rules watcher add %s: %w", dir, err)
	}
	target := filepath.Clean(l.path)

	done := make(chan struct{})
	var once sync.Once
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if _, err := l.Reload(); err != nil {
						l.logger.Warn("rules reload rejected, keeping previous rules",
							zap.String("path", l.path),
							zap.Error(err),
						)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.logger.Warn("rules watcher error", zap.Error(err))
			case <-done:
				return
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }, nil
}

// Reload forces an immediate re-read of the rules file
func (l *Loader) Reload() (Rules, error) {
	r, err := l.load()
	if err != nil {
		return Rules{}, err
	}
	l.mu.Lock()
	l.current = r
	callbacks := make([]func(Rules), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()

	l.logger.Info("rules loaded",
		zap.String("path", l.path),
		zap.Float64("risk_threshold", r.RiskThreshold),
		zap.Float64("high_value_threshold", r.HighValueThreshold),
		zap.Float64("multisig_risk_threshold", r.MultisigRiskThreshold),
	)
	for _, fn := range callbacks {
		fn(r)
	}
	return r, nil
}

func (l *Loader) load() (Rules, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules %s: %w", l.path, err)
	}
	return Parse(data)
}

// Parse decodes a rules document. Keys that are absent keep their
// default values.
func Parse(data []byte) (Rules, error) {
	r := Default()
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("%w: parse rules: %w", services.ErrInvalidRules, err)
	}
	if err := r.Validate(); err != nil {
		return Rules{}, fmt.Errorf("%w: %w", services.ErrInvalidRules, err)
	}
	return r, nil
}
