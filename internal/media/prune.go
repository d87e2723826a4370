package media

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// keepSet tracks the derivative files a run produced or reused. Paths are
// stored in cleaned native form so membership checks match walk results.
type keepSet struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

func newKeepSet() *keepSet {
	return &keepSet{paths: make(map[string]struct{})}
}

func (k *keepSet) add(path string) {
	k.mu.Lock()
	k.paths[filepath.Clean(path)] = struct{}{}
	k.mu.Unlock()
}

func (k *keepSet) contains(path string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.paths[filepath.Clean(path)]
	return ok
}

// pruneArtifacts deletes every file under root that the keep set does not
// claim, then removes directories left empty, deepest first. It returns the
// number of files removed. Directory removal is best effort; a directory that
// gained a file mid-sweep is simply left in place.
func pruneArtifacts(root string, keep *keepSet) (int, error) {
	var (
		removed int
		dirs    []string
	)
	err := filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if entry.IsDir() {
			if path != root {
				dirs = append(dirs, path)
			}
			return nil
		}
		if keep.contains(path) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, err
	}

	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			continue
		}
		_ = os.Remove(dir)
	}
	return removed, nil
}
