package staging

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/immich-tools/discburn/fileutils"
)

// nameRegistry hands out unique target filenames within one staging
// directory. Workers claim names under a lock, so two assets resolving to
// the same initial filename can never silently overwrite each other.
type nameRegistry struct {
	mu      sync.Mutex
	dir     string
	claimed map[string]struct{}
}

func newNameRegistry(dir string) *nameRegistry {
	return &nameRegistry{
		dir:     dir,
		claimed: make(map[string]struct{}),
	}
}

// claim reserves name for assetID and returns the filename to write. A
// taken name is disambiguated by appending the asset identifier to the
// stem, then a counter if even that is taken (leftovers from an earlier
// interrupted run count as taken).
func (r *nameRegistry) claim(name string, assetID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.available(name) {
		r.claimed[name] = struct{}{}
		return name
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := fmt.Sprintf("%s_%s%s", stem, assetID, ext)
	for counter := 2; !r.available(candidate); counter++ {
		candidate = fmt.Sprintf("%s_%s_%d%s", stem, assetID, counter, ext)
	}

	r.claimed[candidate] = struct{}{}
	return candidate
}

func (r *nameRegistry) available(name string) bool {
	if _, taken := r.claimed[name]; taken {
		return false
	}
	return !fileutils.Exists(filepath.Join(r.dir, name))
}
