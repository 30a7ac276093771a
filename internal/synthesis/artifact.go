package synthesis

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

const defaultContentType = "audio/wav"

// FileArtifact is a generated clip stored in the audio directory. Release
// deletes the file; later calls are no-ops.
type FileArtifact struct {
	path        string
	contentType string

	once sync.Once
	err  error
}

func (a *FileArtifact) Path() string        { return a.path }
func (a *FileArtifact) ContentType() string { return a.contentType }

func (a *FileArtifact) Open() (io.ReadCloser, error) {
	return os.Open(a.path)
}

func (a *FileArtifact) Release() error {
	a.once.Do(func() {
		if err := os.Remove(a.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			a.err = err
		}
	})
	return a.err
}

// Store materialises generator output as files under one directory.
type Store struct {
	dir string
}

// NewStore creates dir if needed. An empty dir means a folder under the
// system temp directory.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "arena_audio")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

// Save copies out into a new file with a random name. A generator-owned
// file at out.Path is left in place.
func (s *Store) Save(out Output) (*FileArtifact, error) {
	ct := out.ContentType
	if ct == "" {
		ct = defaultContentType
	}
	dst := filepath.Join(s.dir, uuid.NewString()+".wav")

	var err error
	switch {
	case out.Path != "":
		err = copyFile(out.Path, dst)
	case len(out.Data) > 0:
		err = os.WriteFile(dst, out.Data, 0o644)
	default:
		return nil, errors.New("generator output is empty")
	}
	if err != nil {
		_ = os.Remove(dst)
		return nil, fmt.Errorf("store audio: %w", err)
	}
	return &FileArtifact{path: dst, contentType: ct}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
