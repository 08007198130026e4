// Package pgbox launches a disposable PostgreSQL/PostGIS container for use as
// a local test database. The container is named, published on one host port,
// handed one password via environment variable, and removed automatically by
// the runtime when it stops.
package pgbox

import (
	"errors"
	"fmt"
	"os/exec"
)

// TestDatabase maintains all configuration and runtime functions for
// maintaining the lifecycle of one test database container.
type TestDatabase struct {
	config       Config
	syncedLogger *syncedLogger
	cmd          *exec.Cmd
	exited       chan struct{}
	exitErr      error
	started      bool
}

// NewDatabase creates a new TestDatabase struct that can be used to start and stop a test database container.
// When called with no parameters it will assume a default configuration state provided by the DefaultConfig method.
// When called with parameters the first Config parameter will be used for configuration.
func NewDatabase(config ...Config) *TestDatabase {
	if len(config) < 1 {
		return &TestDatabase{config: DefaultConfig()}
	}

	return &TestDatabase{config: config[0]}
}

// Start will try to launch the configured container returning an error when there were any problems with invocation.
// Before asking the runtime for anything it verifies the runtime is reachable, the container name is unused and the
// host port is free; failures there are reported as ErrRuntimeUnavailable, ErrNameConflict and ErrPortConflict.
// After the run request has been issued any failure is the runtime's own, passed through verbatim.
// If the database never becomes ready within the configured start timeout the container is removed so nothing leaks.
func (td *TestDatabase) Start() error {
	if td.started {
		return errors.New("database is already started")
	}

	binary, err := lookupRuntime(td.config.runtime)
	if err != nil {
		return err
	}

	exists, err := containerExists(binary, td.config.containerName)
	if err != nil {
		return err
	}

	if exists {
		return fmt.Errorf("%w: %s", ErrNameConflict, td.config.containerName)
	}

	if err := ensurePortAvailable(td.config.port); err != nil {
		return err
	}

	logger, err := newSyncedLogger("", td.config.logger)
	if err != nil {
		return errors.New("unable to create logger")
	}

	td.syncedLogger = logger

	cmd := exec.Command(binary, runArgs(td.config)...)
	cmd.Stdout = logger.stdout
	cmd.Stderr = logger.stderr
	td.cmd = cmd

	if err := cmd.Start(); err != nil {
		logger.close()
		return fmt.Errorf("could not launch container using %s: %w", cmd.String(), err)
	}

	td.exited = make(chan struct{})

	go func() {
		td.exitErr = cmd.Wait()
		close(td.exited)
	}()

	if err := healthCheckDatabaseOrTimeout(td.config, td.exited); err != nil {
		logContent, _ := readLogsOrTimeout(logger.file)

		if errors.Is(err, errProcessExited) {
			logger.close()
			return fmt.Errorf("could not launch container using %s: %w\n%s", cmd.String(), td.exitErr, logContent)
		}

		if removeErr := removeContainer(binary, td.config.containerName); removeErr != nil {
			logger.close()
			return fmt.Errorf("%v happened after error: %w", removeErr, err)
		}

		<-td.exited
		logger.close()

		return fmt.Errorf("%w\n%s", err, logContent)
	}

	td.started = true

	return nil
}

// Stop will try to remove the container, returning an error when there were any problems.
// The auto-remove policy means a forced removal leaves no stopped container behind.
func (td *TestDatabase) Stop() error {
	if !td.started {
		return errors.New("database has not been started")
	}

	binary, err := exec.LookPath(td.config.runtime)
	if err != nil {
		return fmt.Errorf("%w: %s not found in PATH", ErrRuntimeUnavailable, td.config.runtime)
	}

	if err := removeContainer(binary, td.config.containerName); err != nil {
		return err
	}

	<-td.exited

	td.started = false
	td.syncedLogger.close()

	return nil
}

// Wait blocks until the attached container process exits and returns its exit
// error, if any. This gives a caller running in the foreground the runtime's
// own exit status to propagate.
func (td *TestDatabase) Wait() error {
	if td.exited == nil {
		return errors.New("database has not been started")
	}

	<-td.exited

	return td.exitErr
}

// GetConnectionURL returns a connection URL for the launched database.
func (td *TestDatabase) GetConnectionURL() string {
	return td.config.GetConnectionURL()
}
