package dbsync

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archiver"
)

var archiveExtensions = []string{".zip", ".tar", ".tar.gz", ".tgz", ".tar.xz", ".txz", ".tar.bz2"}

// WriteOutput runs the dump producer against the right destination. An empty
// path writes to stdout, a path with an archive extension packs the dump file
// into a fresh archive, anything else is written as a plain file.
func WriteOutput(path string, produce func(io.Writer) error) error {
	if path == "" {
		return produce(os.Stdout)
	}

	if !isArchivePath(path) {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("unable to create output file: %w", err)
		}

		if err := produce(file); err != nil {
			_ = file.Close()
			return err
		}

		return file.Close()
	}

	tempDir, err := os.MkdirTemp("", "pgbox_dump")
	if err != nil {
		return err
	}

	defer func() {
		_ = os.RemoveAll(tempDir)
	}()

	dumpPath := filepath.Join(tempDir, "dump.sql")

	dumpFile, err := os.Create(dumpPath)
	if err != nil {
		return err
	}

	if err := produce(dumpFile); err != nil {
		_ = dumpFile.Close()
		return err
	}

	if err := dumpFile.Close(); err != nil {
		return err
	}

	if err := archiver.Archive([]string{dumpPath}, path); err != nil {
		return fmt.Errorf("unable to archive dump to %s: %w", path, err)
	}

	return nil
}

func isArchivePath(path string) bool {
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	return false
}
