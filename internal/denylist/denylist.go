// Package denylist implements the static, syntactic screener that
// rejects submissions containing known-dangerous substrings before any
// compilation is attempted. It is intentionally weak: a lower-cased
// substring match, nothing more. It will flag matches inside comments or
// string literals — that is by design, not a defect.
package denylist

import (
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultPatterns is the built-in pattern set, unchanged from the source
// sandbox.
var DefaultPatterns = []string{
	"system(", "exec(", "popen(", "createprocess", "shellexecute",
	"winexec", "fork(", "chmod", "rm -rf", "format", "shutdown",
}

// Screener holds the active pattern set. It is safe for concurrent use;
// patterns may be hot-reloaded from a file via Watch.
type Screener struct {
	mu       sync.RWMutex
	patterns []string
	logger   *zap.Logger
}

// New builds a Screener over the given patterns, or DefaultPatterns if
// none are supplied.
func New(logger *zap.Logger, patterns ...string) *Screener {
	if len(patterns) == 0 {
		patterns = append([]string(nil), DefaultPatterns...)
	}
	return &Screener{patterns: patterns, logger: logger}
}

// IsDangerous reports whether the lower-cased source text contains any
// active pattern.
func (s *Screener) IsDangerous(code string) bool {
	low := strings.ToLower(code)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.patterns {
		if strings.Contains(low, p) {
			return true
		}
	}
	return false
}

// IsDangerousFiles applies IsDangerous to a multi-file submission: any one
// file's content triggering the predicate rejects the whole submission.
func (s *Screener) IsDangerousFiles(files map[string]string) bool {
	for _, content := range files {
		if s.IsDangerous(content) {
			return true
		}
	}
	return false
}

// LoadFile replaces the active pattern set with one newline-delimited
// pattern per line read from path, skipping blank lines.
func (s *Screener) LoadFile(path string) error {
	patterns, err := readPatternFile(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.patterns = patterns
	s.mu.Unlock()
	return nil
}

func readPatternFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, strings.ToLower(line))
	}
	return out, nil
}

// Watch hot-reloads the pattern file on every write event, logging and
// ignoring reload failures so a bad edit never brings down the screener.
// It runs until ctx-equivalent stop is requested by closing the returned
// watcher via Close(), or the process exits.
func (s *Screener) Watch(path string) (*fsnotify.Watcher, error) {
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
				if err := s.LoadFile(path); err != nil {
					s.logger.Warn("denylist reload failed", zap.String("path", path), zap.Error(err))
					continue
				}
				s.logger.Info("denylist reloaded", zap.String("path", path))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("denylist watcher error", zap.Error(err))
			}
		}
	}()

	return watcher, nil
}
