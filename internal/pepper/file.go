package pepper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
)

const materialFile = "pepper.pem"

// FileBackend stores one pepper generation in a single 0600 PEM file inside a
// 0700 directory. Save links the file into place, so only one writer can win
// even across processes sharing the directory.
type FileBackend struct {
	dir string
}

func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{dir: dir}
}

// Dir returns the directory holding the pepper file.
func (b *FileBackend) Dir() string { return b.dir }

func (b *FileBackend) path() string { return filepath.Join(b.dir, materialFile) }

func (b *FileBackend) Load(_ context.Context) (*Material, error) {
	data, err := os.ReadFile(b.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrPepperNotFound
		}
		return nil, err
	}
	defer zeroDER(data)
	return decodeMaterial(data)
}

func (b *FileBackend) Save(_ context.Context, m *Material) error {
	data, err := encodeMaterial(m)
	if err != nil {
		return err
	}
	defer zeroDER(data)
	if err := os.MkdirAll(b.dir, 0o700); err != nil {
		return err
	}
	return createExclusive(b.path(), data)
}

func (b *FileBackend) Delete(_ context.Context) error {
	if err := os.Remove(b.path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether a pepper file is present.
func (b *FileBackend) Exists() bool {
	_, err := os.Stat(b.path())
	return err == nil
}

// createExclusive writes data to a temporary file and hard-links it to path.
// Readers never see a partial file, and an existing path is left untouched.
func createExclusive(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrPepperExists
		}
		return err
	}
	return nil
}
