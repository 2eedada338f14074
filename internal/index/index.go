// Package index implements the identity index used to keep harvests
// incremental: the set of documents already materialized under the output
// root, keyed by normalized slug regardless of tag or bucket.
package index

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/tagfeed-harvester/internal/metrics"
)

// DocumentExt is the extension of materialized text documents.
const DocumentExt = ".md"

// Index is an append-only set of document identities.
type Index struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// New returns an empty Index.
func New() *Index {
	return &Index{ids: make(map[string]struct{})}
}

// Normalize turns a slug or file base name into a document identity.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Build walks root and records every document found below it. A missing root
// yields an empty index.
func Build(root string, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	idx := New()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}
		if !d.Type().IsRegular() || !strings.EqualFold(filepath.Ext(d.Name()), DocumentExt) {
			return nil
		}
		id := Normalize(strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())))
		if id == "" {
			return nil
		}
		logger.Debug("indexing document", zap.String("identity", id), zap.String("path", path))
		idx.ids[id] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk output root %s: %w", root, err)
	}
	metrics.SetIndexSize(idx.Len())
	logger.Info("identity index built", zap.String("root", root), zap.Int("documents", idx.Len()))
	return idx, nil
}

// Contains reports whether identity has been materialized.
func (x *Index) Contains(identity string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.ids[Normalize(identity)]
	return ok
}

// Record adds identity to the index. Call it only after the document is on
// disk.
func (x *Index) Record(identity string) {
	id := Normalize(identity)
	if id == "" {
		return
	}
	x.mu.Lock()
	x.ids[id] = struct{}{}
	n := len(x.ids)
	x.mu.Unlock()
	metrics.SetIndexSize(n)
}

// Len returns the number of identities in the index.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

// Exists reports whether root exists and is a directory.
func Exists(root string) bool {
	info, err := os.Stat(root)
	return err == nil && info.IsDir()
}
