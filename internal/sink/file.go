package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileOutput keeps the latest message of every topic in <dir>/<topic>.json.
type FileOutput struct {
	dir string
}

func NewFileOutput(dir string) (*FileOutput, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &FileOutput{dir: dir}, nil
}

// Path returns the file that holds topic.
func (f *FileOutput) Path(topic string) string {
	return filepath.Join(f.dir, topic+".json")
}

func (f *FileOutput) WriteMessage(_ context.Context, topic string, msg []byte) error {
	return WriteFileAtomic(f.Path(topic), msg)
}

func (f *FileOutput) Close() error { return nil }

// WriteFileAtomic writes data to a temp file next to path and renames it into
// place, so readers never see a partial file.
func WriteFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write tmp failed: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename failed: %w", err)
	}
	return nil
}
