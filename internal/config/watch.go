package config

import (
	"log"

	"github.com/fsnotify/fsnotify"
)

// WatchTemplates watches a gm_projects templates file for changes and
// invokes onChange with the freshly parsed Templates each time it is
// rewritten. It runs until stop is closed. Parse errors are logged and
// skipped rather than propagated, so a transient partial write (an editor
// saving mid-keystroke) doesn't tear down a long-running `gm launch`.
func WatchTemplates(path string, onChange func(*Templates), stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-stop:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				tpl, err := LoadTemplates(path)
				if err != nil {
					log.Printf("[config] reload %s: %v", path, err)
					continue
				}
				onChange(tpl)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[config] watch %s: %v", path, err)
			}
		}
	}()

	return nil
}
