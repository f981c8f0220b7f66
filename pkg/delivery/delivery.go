// Package delivery saves finished crops
package delivery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/menta2k/cropkit/internal/utils"
	"github.com/menta2k/cropkit/pkg/types"
)

// ErrEmptyName is returned for deliveries whose name sanitizes to nothing
var ErrEmptyName = errors.New("delivery has no usable file name")

// FileDeliverer writes deliveries into a directory
type FileDeliverer struct {
	Dir       string
	Overwrite bool

	last string
}

// NewFileDeliverer creates a deliverer for dir. An empty dir means the
// working directory.
func NewFileDeliverer(dir string, overwrite bool) *FileDeliverer {
	return &FileDeliverer{Dir: dir, Overwrite: overwrite}
}

// Deliver writes d.Data to Dir/d.Name. Existing files get a numbered sibling
// unless Overwrite is set.
func (f *FileDeliverer) Deliver(d types.Delivery) error {
	name := utils.SanitizeFilename(filepath.Base(d.Name))
	if name == "" {
		return ErrEmptyName
	}
	if err := utils.EnsureDir(f.Dir); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(f.Dir, name)
	if !f.Overwrite {
		path = utils.UniquePath(path)
	}
	if err := os.WriteFile(path, d.Data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	f.last = path
	return nil
}

// LastPath returns where the most recent delivery was written
func (f *FileDeliverer) LastPath() string {
	return f.last
}

// Memory keeps deliveries in memory, for headless runs
type Memory struct {
	Items []types.Delivery
}

func (m *Memory) Deliver(d types.Delivery) error {
	m.Items = append(m.Items, d)
	return nil
}

// Func adapts a plain function to a deliverer
type Func func(types.Delivery) error

func (f Func) Deliver(d types.Delivery) error {
	return f(d)
}
