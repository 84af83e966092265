package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const debounceInterval = 2 * time.Second

// ChangeCallback receives the configuration after the file changed.
type ChangeCallback func(cfg *Config) error

// Watch re-reads the file at path whenever it is written and hands the new,
// validated configuration to callback. The file is read once writes have
// been quiet for a short while, so a burst of writes yields one reload of
// the final content.
func Watch(path string, log *logrus.Entry, callback ChangeCallback) error {
	return watch(path, log, debounceInterval, callback)
}

func watch(path string, log *logrus.Entry, quiet time.Duration, callback ChangeCallback) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, "resolve config path")
	}

	v := newViper()
	v.SetConfigFile(absPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "read config %s", absPath)
	}

	reload := func() {
		log.WithField("file", absPath).Info("config file changed")

		cfg, err := Load(absPath)
		if err != nil {
			log.WithError(err).Error("reloaded config rejected")
			return
		}
		if err := callback(cfg); err != nil {
			log.WithError(err).Error("applying reloaded config failed")
			return
		}
		log.Info("config reloaded")
	}

	var mu sync.Mutex
	var timer *time.Timer

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		mu.Lock()
		defer mu.Unlock()
		if timer == nil {
			timer = time.AfterFunc(quiet, reload)
			return
		}
		timer.Reset(quiet)
	})
	v.WatchConfig()
	return nil
}
