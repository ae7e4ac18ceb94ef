package config

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/yanun0323/logs"
)

// Loader owns one viper instance so the file can be watched after the first
// load.
type Loader struct {
	path string

	mu sync.Mutex
	v  *viper.Viper
}

// NewLoader prepares a loader for path. An empty path reads only the environment.
func NewLoader(path string) *Loader {
	return &Loader{path: path, v: newViper(path)}
}

// Load reads the file and environment and resolves the result.
func (l *Loader) Load() (Loaded, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := read(l.v); err != nil {
		return Loaded{}, err
	}
	return decode(l.v)
}

// Watch calls update with every valid revision of the file until ctx is done.
// Invalid revisions are logged and skipped. It is a no-op without a file.
func (l *Loader) Watch(ctx context.Context, update func(Loaded)) {
	if l.path == "" || update == nil {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if ctx.Err() != nil {
			return
		}
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		l.mu.Lock()
		loaded, err := decode(l.v)
		l.mu.Unlock()
		if err != nil {
			logs.Warnf("config reload %s rejected, err: %+v", e.Name, err)
			return
		}
		logs.Infof("config reloaded from %s", e.Name)
		update(loaded)
	})
	l.v.WatchConfig()
}

// Runtime holds the latest resolved configuration.
type Runtime struct {
	v atomic.Pointer[Loaded]
}

// NewRuntime holds loaded until the first Update.
func NewRuntime(loaded Loaded) *Runtime {
	var rc Runtime
	rc.v.Store(&loaded)
	return &rc
}

// Load returns the latest configuration.
func (r *Runtime) Load() Loaded {
	return *r.v.Load()
}

// Update swaps in a new configuration.
func (r *Runtime) Update(loaded Loaded) {
	r.v.Store(&loaded)
}
