package fetch

import (
	"fmt"
	"os"
	"path/filepath"

	"listing_spider/internal/logger"
)

const (
	rawFile      = "raw.html"
	renderedFile = "rendered.html"
)

// Workspace is a per-item scratch directory holding the fetched and the
// revealed HTML of one work item.
type Workspace struct {
	dir  string
	keep bool
	log  logger.Logger
}

// NewWorkspace creates a fresh directory under root (os.TempDir when empty).
// keepOnFailure retains it when the item fails so the HTML can be inspected.
func NewWorkspace(root string, keepOnFailure bool, log logger.Logger) (*Workspace, error) {
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("workspace root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(root, "item-*")
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	return &Workspace{dir: dir, keep: keepOnFailure, log: log}, nil
}

func (w *Workspace) Dir() string { return w.dir }

func (w *Workspace) RawPath() string      { return filepath.Join(w.dir, rawFile) }
func (w *Workspace) RenderedPath() string { return filepath.Join(w.dir, renderedFile) }

func (w *Workspace) WriteRaw(html string) error {
	return os.WriteFile(w.RawPath(), []byte(html), 0o644)
}

func (w *Workspace) WriteRendered(html string) error {
	return os.WriteFile(w.RenderedPath(), []byte(html), 0o644)
}

func (w *Workspace) ReadRaw() (string, error) {
	b, err := os.ReadFile(w.RawPath())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Close removes the directory unless the item failed and snapshots are kept.
func (w *Workspace) Close(failed bool) error {
	if failed && w.keep {
		w.log.Info("workspace: kept snapshot of failed item", logger.String("dir", w.dir))
		return nil
	}
	return os.RemoveAll(w.dir)
}
