package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const reloadDebounce = 100 * time.Millisecond

// Loader loads a configuration file and reloads it when the file changes.
type Loader struct {
	path     string
	mu       sync.RWMutex
	config   *Config
	onChange []func(*Config)
	watcher  *fsnotify.Watcher
	ctx      context.Context
	cancel   context.CancelFunc
	errChan  chan error
}

// NewLoader creates a loader for path. An empty path selects Path().
func NewLoader(path string) *Loader {
	if path == "" {
		path = Path()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		path:    path,
		errChan: make(chan error, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Path returns the file the loader reads.
func (l *Loader) Path() string {
	return l.path
}

// Load reads, overrides and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	cfg, err := Load(l.path)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.config = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Config returns the current configuration.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// OnChange registers a callback invoked after each successful reload.
func (l *Loader) OnChange(cb func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, cb)
}

// Errors returns reload errors. Errors are dropped while one is unread.
func (l *Loader) Errors() <-chan error {
	return l.errChan
}

// Watch starts watching the configuration file. The directory is watched
// so editors that replace the file are followed.
func (l *Loader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}
	l.watcher = watcher

	go l.watchLoop()
	return nil
}

func (l *Loader) watchLoop() {
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	name := filepath.Base(l.path)
	for {
		select {
		case <-l.ctx.Done():
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, l.reload)

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.report(err)
		}
	}
}

func (l *Loader) reload() {
	if l.ctx.Err() != nil {
		return
	}
	cfg, err := Load(l.path)
	if err != nil {
		l.report(fmt.Errorf("reload config: %w", err))
		return
	}

	l.mu.Lock()
	l.config = cfg
	callbacks := append([]func(*Config){}, l.onChange...)
	l.mu.Unlock()

	for _, cb := range callbacks {
		cb(cfg)
	}
}

func (l *Loader) report(err error) {
	select {
	case l.errChan <- err:
	default:
	}
}

// Close stops watching.
func (l *Loader) Close() error {
	l.cancel()
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

// loadConfigFromFile decodes path over the defaults by extension. A missing
// file yields the defaults.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	switch filepath.Ext(path) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		return autoDetectAndParse(data)
	}
	return cfg, nil
}

// autoDetectAndParse tries TOML, JSON and then YAML, each over fresh
// defaults.
func autoDetectAndParse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.Decode(string(data), cfg); err == nil {
		return cfg, nil
	}
	cfg = DefaultConfig()
	if err := json.Unmarshal(data, cfg); err == nil {
		return cfg, nil
	}
	cfg = DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err == nil {
		return cfg, nil
	}
	return nil, fmt.Errorf("parse config: unable to parse config file (tried TOML, JSON, YAML)")
}

func marshal(cfg *Config, ext string) ([]byte, error) {
	switch ext {
	case ".json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode JSON: %w", err)
		}
		return append(data, '\n'), nil
	case ".yaml", ".yml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("encode YAML: %w", err)
		}
		return data, nil
	default:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, fmt.Errorf("encode TOML: %w", err)
		}
		return buf.Bytes(), nil
	}
}

// LoadOrCreate loads path, writing the defaults there first when the file
// does not exist. created reports whether the file was written.
func LoadOrCreate(path string) (cfg *Config, created bool, err error) {
	if path == "" {
		path = Path()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := Save(DefaultConfig(), path); err != nil {
			return nil, false, fmt.Errorf("create default config: %w", err)
		}
		created = true
	}
	cfg, err = Load(path)
	if err != nil {
		return nil, false, err
	}
	return cfg, created, nil
}
