package store

import (
	"os"
	"strings"
)

// IgnoredSet remembers course links confirmed to have no extractable
// duration. Append-only, an entry is never retried automatically.
type IgnoredSet interface {
	Contains(ref string) bool
	Add(ref string) error
}

// FileIgnoredSet keeps one link per line. Every Add appends and syncs
// immediately so a crash never forgets a classification.
type FileIgnoredSet struct {
	path string
	refs map[string]struct{}
}

func OpenIgnored(path string) (*FileIgnoredSet, error) {
	refs := map[string]struct{}{}
	contents, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for _, line := range strings.Split(string(contents), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			refs[line] = struct{}{}
		}
	}
	return &FileIgnoredSet{path: path, refs: refs}, nil
}

func (s *FileIgnoredSet) Contains(ref string) bool {
	_, ok := s.refs[ref]
	return ok
}

func (s *FileIgnoredSet) Add(ref string) error {
	if s.Contains(ref) {
		return nil
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(ref + "\n"); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	s.refs[ref] = struct{}{}
	return nil
}
