// internal/archive/file.go
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps the snapshot as one gzip file on local disk. The write
// goes to a temp file in the same directory followed by a rename, so a
// crash mid-save leaves the previous snapshot intact rather than a
// truncated one.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Save(_ context.Context, snapshot []byte) error {
	data, err := compress(snapshot)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("archive dir: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace archive: %w", err)
	}
	return nil
}

func (s *FileStore) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read archive: %w", err)
	}
	return decompress(data)
}
