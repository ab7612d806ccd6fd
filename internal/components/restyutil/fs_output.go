package restyutil

import (
	"log/slog"
	"os"
	"path/filepath"
)

// Output receives one rendered HTTP exchange at a time.
type Output interface {
	Write(id string, contents string)
}

// FilesystemOutput keeps one file per exchange in a directory. The
// directory is emptied when the output is created, a dump holds one run.
type FilesystemOutput struct {
	dir string
}

func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	if err := os.RemoveAll(dir); err != nil {
		return FilesystemOutput{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{dir: dir}, nil
}

// Write never fails the exchange being dumped, errors are only logged.
func (o FilesystemOutput) Write(id string, contents string) {
	path := filepath.Join(o.dir, id)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		slog.Warn("failed to dump exchange", "path", path, "err", err)
	}
}
