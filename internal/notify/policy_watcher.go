// Package notify watches the decision policy file and hands every valid
// revision to a callback, so long-running processes pick up threshold
// changes without a restart.
package notify

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/decision"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/logging"
)

// PolicyWatcher reloads a policy file when it changes on disk.
type PolicyWatcher struct {
	path     string
	onChange func(*decision.Policy)
	logger   logrus.FieldLogger
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewPolicyWatcher creates a watcher for path. onChange receives each
// revision that parses and validates; invalid revisions are logged and
// the previous policy stays in force.
func NewPolicyWatcher(path string, onChange func(*decision.Policy), logger logrus.FieldLogger) *PolicyWatcher {
	return &PolicyWatcher{
		path:     filepath.Clean(path),
		onChange: onChange,
		logger:   logging.OrDiscard(logger).WithField("component", "policy_watcher"),
		done:     make(chan struct{}),
	}
}

// Start begins watching. The parent directory is watched rather than the
// file, since editors often replace a file by renaming over it.
func (pw *PolicyWatcher) Start() error {
	if pw.path == "" || pw.path == "." {
		return errors.New("notify: policy path is required")
	}
	if _, err := os.Stat(pw.path); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(pw.path)); err != nil {
		_ = w.Close()
		return err
	}
	pw.watcher = w

	go pw.loop()
	pw.logger.WithField("path", pw.path).Info("watching decision policy")
	return nil
}

// Stop shuts the watcher down and waits for the loop to exit.
func (pw *PolicyWatcher) Stop() {
	if pw.watcher == nil {
		return
	}
	_ = pw.watcher.Close()
	<-pw.done
}

func (pw *PolicyWatcher) loop() {
	defer close(pw.done)
	for {
		select {
		case evt, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != pw.path {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				pw.reload()
			}
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			pw.logger.WithError(err).Warn("policy watcher error")
		}
	}
}

func (pw *PolicyWatcher) reload() {
	p, err := decision.LoadPolicy(pw.path)
	if err != nil {
		pw.logger.WithError(err).Warn("ignoring invalid policy revision")
		return
	}
	pw.logger.WithFields(logrus.Fields{
		"min_approval_score": p.MinApprovalScore,
		"max_reject_score":   p.MaxRejectScore,
		"namespaces":         len(p.Namespaces),
	}).Info("decision policy reloaded")
	if pw.onChange != nil {
		pw.onChange(p)
	}
}
