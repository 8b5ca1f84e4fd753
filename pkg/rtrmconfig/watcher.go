/*
Copyright 2022 The Koordinator Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package rtrmconfig

import (
	"path/filepath"
	"reflect"
	"sync"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"
)

// Watcher reloads a Config file on write and invokes OnChange with the new
// value, mirroring the teacher's ConfigMap-diff-then-enqueue pattern
// (EnqueueRequestForConfigMap) against a plain file instead of an apiserver
// watch.
type Watcher struct {
	mu      sync.Mutex
	path    string
	current Config
	fsw     *fsnotify.Watcher

	// OnChange is called with the newly-loaded Config whenever a reload
	// produces a value that differs from the last one observed. Errors
	// from a malformed reload are logged and the prior Config is kept.
	OnChange func(Config)
}

// NewWatcher loads path once, starts watching its containing directory (so
// atomic-rename-based editors are picked up), and returns the watcher
// already holding the initial Config.
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &Watcher{path: path, current: cfg, fsw: fsw}
	go w.run()
	return w, nil
}

// Current returns the most recently loaded Config.
func (w *Watcher) Current() Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			klog.Errorf("rtrmconfig: watch error: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		klog.Errorf("rtrmconfig: reload %s failed, keeping prior config: %v", w.path, err)
		return
	}
	w.mu.Lock()
	changed := !reflect.DeepEqual(cfg, w.current)
	w.current = cfg
	w.mu.Unlock()
	if changed {
		klog.Infof("rtrmconfig: reloaded %s", w.path)
		if w.OnChange != nil {
			w.OnChange(cfg)
		}
	}
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
