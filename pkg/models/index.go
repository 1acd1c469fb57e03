package models

import "sort"

// KeyMode selects how files from the two trees are matched
type KeyMode string

const (
	// KeyBasename matches files by base name; the last visited file wins on collision
	KeyBasename KeyMode = "basename"
	// KeyRelativePath matches files by their slash-separated path below the root
	KeyRelativePath KeyMode = "path"
)

// Collision records a key that more than one file mapped to within a single tree.
// Paths are in visit order; the last one is the one kept in the index.
type Collision struct {
	Key   string
	Paths []string
}

// FileIndex maps a match key to the file path it resolved to.
// It is built once by the indexer and only read afterwards.
type FileIndex struct {
	Root       string
	KeyMode    KeyMode
	Entries    map[string]string
	Collisions []Collision
}

// NewFileIndex creates an empty index for root
func NewFileIndex(root string, mode KeyMode) *FileIndex {
	return &FileIndex{
		Root:    root,
		KeyMode: mode,
		Entries: make(map[string]string),
	}
}

// Len returns the number of indexed keys
func (idx *FileIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.Entries)
}

// Path returns the path stored for key
func (idx *FileIndex) Path(key string) (string, bool) {
	if idx == nil {
		return "", false
	}
	p, ok := idx.Entries[key]
	return p, ok
}

// Keys returns the index keys in sorted order
func (idx *FileIndex) Keys() []string {
	if idx == nil {
		return nil
	}
	keys := make([]string, 0, len(idx.Entries))
	for k := range idx.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// KeySets splits the keys of two indexes into added (new only), removed (old only)
// and common (both). Each slice is sorted.
func KeySets(oldIdx, newIdx *FileIndex) (added, removed, common []string) {
	added = []string{}
	removed = []string{}
	common = []string{}

	for _, k := range newIdx.Keys() {
		if _, ok := oldIdx.Path(k); ok {
			common = append(common, k)
		} else {
			added = append(added, k)
		}
	}
	for _, k := range oldIdx.Keys() {
		if _, ok := newIdx.Path(k); !ok {
			removed = append(removed, k)
		}
	}
	return added, removed, common
}
