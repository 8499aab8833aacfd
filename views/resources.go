// Package views loads the template resources the service renders and
// reloads them when they change.
package views

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

var ErrNotFound = errors.New("template resource not found")

// Resources is a store of named text resources. Names are slash
// separated paths relative to the store root, e.g.
// "stars/dead/cobain/default.html".
type Resources interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, name string) (string, error)
	Write(ctx context.Context, name string, text string) error
}

// FSResources keeps resources as files of an afero filesystem, rooted
// at its "/".
type FSResources struct {
	FS afero.Afero
}

// NewDirResources returns resources kept as files under root on disk.
func NewDirResources(root string) *FSResources {
	return NewFSResources(afero.NewBasePathFs(afero.NewOsFs(), root))
}

func NewFSResources(fs afero.Fs) *FSResources {
	return &FSResources{
		FS: afero.Afero{Fs: fs},
	}
}

func (r *FSResources) List(ctx context.Context) ([]string, error) {
	var names []string

	err := r.FS.Walk("/", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		names = append(names, strings.TrimPrefix(filepath.ToSlash(p), "/"))
		return nil
	})

	return names, err
}

func (r *FSResources) Read(ctx context.Context, name string) (string, error) {
	p, err := r.path(name)
	if err != nil {
		return "", err
	}

	b, err := r.FS.ReadFile(p)
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	return string(b), nil
}

func (r *FSResources) Write(ctx context.Context, name string, text string) error {
	p, err := r.path(name)
	if err != nil {
		return err
	}

	if err := r.FS.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}

	return r.FS.WriteFile(p, []byte(text), 0644)
}

// path keeps names under the filesystem root.
func (r *FSResources) path(name string) (string, error) {
	clean := path.Clean("/" + name)
	if clean == "/" || strings.Contains(name, "\\") {
		return "", ErrNotFound
	}

	return filepath.FromSlash(clean), nil
}
