package config

import (
	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config file at path on every write/create event and
// invokes onChange with the reloaded Config. It returns a stop function
// that closes the underlying watcher. Parse errors are reported via
// onError rather than crashing the watch loop, so a config file left
// briefly invalid mid-edit does not tear down the watcher.
//
// Grounded on nuetzliches-hookaido's use of fsnotify for its own
// hot-reloadable config; wired into cmd/qakka's serve command so
// leaseSeconds/maxRedeliveries/etc. can be tuned without a restart.
func Watch(path string, onChange func(Config), onError func(error)) (stop func() error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					if onError != nil {
						onError(err)
					}
					continue
				}
				FromEnv(&cfg)
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if onError != nil {
					onError(err)
				}
			}
		}
	}()

	return watcher.Close, nil
}
