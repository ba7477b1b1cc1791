package restyutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FilesystemOutput writes each recorded http exchange to its own file
// inside a directory.
type FilesystemOutput struct {
	directory string
}

// ErrOutputNotEmpty is returned for an output directory that already has
// contents, recorded exchanges would mix with (or overwrite) them.
var ErrOutputNotEmpty = errors.New("output directory is not empty")

// NewFilesystemOutput creates `dir` if it is missing. An existing
// directory is only used when empty, nothing in it is ever removed.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return FilesystemOutput{}, err
	}
	if len(entries) > 0 {
		return FilesystemOutput{}, fmt.Errorf("%w: %s", ErrOutputNotEmpty, dir)
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	path := filepath.Join(o.directory, fmt.Sprintf("%s.txt", id))
	err := os.WriteFile(path, []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}
