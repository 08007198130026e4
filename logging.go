package pgbox

import (
	"fmt"
	"io"
	"os"
	"time"
)

// syncedLogger attaches the container's stdout and stderr to the caller's
// console while keeping a copy in a temp file so launch failures can report
// what the database actually printed.
type syncedLogger struct {
	file   *os.File
	stdout io.Writer
	stderr io.Writer
}

func newSyncedLogger(dir string, extra io.Writer) (*syncedLogger, error) {
	file, err := os.CreateTemp(dir, "pgbox_container_log")
	if err != nil {
		return nil, err
	}

	s := syncedLogger{
		file:   file,
		stdout: io.MultiWriter(os.Stdout, file),
		stderr: io.MultiWriter(os.Stderr, file),
	}

	if extra != nil {
		s.stdout = io.MultiWriter(s.stdout, extra)
		s.stderr = io.MultiWriter(s.stderr, extra)
	}

	return &s, nil
}

func (s *syncedLogger) close() {
	_ = s.file.Close()
	_ = os.Remove(s.file.Name())
}

func readLogsOrTimeout(logger *os.File) (logContent []byte, err error) {
	logContent = []byte("logs could not be read")

	logContentChan := make(chan []byte, 1)
	errChan := make(chan error, 1)

	go func() {
		if actualLogContent, err := os.ReadFile(logger.Name()); err == nil {
			logContentChan <- actualLogContent
		} else {
			errChan <- err
		}
	}()

	select {
	case logContent = <-logContentChan:
	case err = <-errChan:
	case <-time.After(10 * time.Second):
		err = fmt.Errorf("timed out waiting for logs")
	}

	return logContent, err
}
