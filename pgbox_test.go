package pgbox

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ErrorWhenStopCalledBeforeStart(t *testing.T) {
	database := NewDatabase()

	err := database.Stop()

	assert.EqualError(t, err, "database has not been started")
}

func Test_ErrorWhenWaitCalledBeforeStart(t *testing.T) {
	database := NewDatabase()

	err := database.Wait()

	assert.EqualError(t, err, "database has not been started")
}

func Test_ErrorWhenRuntimeUnavailable(t *testing.T) {
	database := NewDatabase(DefaultConfig().
		Runtime("definitely-not-a-container-runtime"))

	err := database.Start()

	assert.True(t, errors.Is(err, ErrRuntimeUnavailable))
}

func Test_LaunchFailureCleansUpLogFile(t *testing.T) {
	database := NewDatabase(DefaultConfig().
		Runtime(fakeRuntime(t)).
		Port(19879).
		StartTimeout(5 * time.Second))

	err := database.Start()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 125")
	assert.Contains(t, err.Error(), "no space left on device")

	_, statErr := os.Stat(database.syncedLogger.file.Name())
	assert.True(t, os.IsNotExist(statErr), "container log file was left behind")
}

// fakeRuntime writes a stand-in for the container runtime binary whose run
// command fails immediately, the way a runtime-level launch error surfaces.
func fakeRuntime(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fake-runtime")

	script := `#!/bin/sh
case "$1" in
version) exit 0 ;;
ps) exit 0 ;;
run) echo "no space left on device" >&2; exit 125 ;;
rm) exit 0 ;;
esac
exit 0
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))

	return path
}

// The tests below need a reachable container runtime and will pull the
// configured image on first use.

func Test_LaunchAndConnect(t *testing.T) {
	skipWithoutRuntime(t)

	database := NewDatabase(DefaultConfig().
		ContainerName("pgbox-launch-test").
		Port(19876).
		StartTimeout(2 * time.Minute))

	if err := database.Start(); err != nil {
		shutdownDBAndFail(t, err, database)
	}

	db, err := sql.Open("postgres", "host=localhost port=19876 user=postgres password=postgres dbname=postgres sslmode=disable")
	if err != nil {
		shutdownDBAndFail(t, err, database)
	}

	if err = db.Ping(); err != nil {
		shutdownDBAndFail(t, err, database)
	}

	if err := db.Close(); err != nil {
		shutdownDBAndFail(t, err, database)
	}

	if err := database.Stop(); err != nil {
		shutdownDBAndFail(t, err, database)
	}

	// Auto-remove means no container with the fixed name is left behind.
	binary, err := lookupRuntime("docker")
	require.NoError(t, err)

	exists, err := containerExists(binary, "pgbox-launch-test")
	require.NoError(t, err)
	assert.False(t, exists)
}

func Test_ErrorWhenNameConflict(t *testing.T) {
	skipWithoutRuntime(t)

	first := NewDatabase(DefaultConfig().
		ContainerName("pgbox-conflict-test").
		Port(19877).
		StartTimeout(2 * time.Minute))

	if err := first.Start(); err != nil {
		shutdownDBAndFail(t, err, first)
	}

	defer func() {
		if err := first.Stop(); err != nil {
			t.Fatal(err)
		}
	}()

	second := NewDatabase(DefaultConfig().
		ContainerName("pgbox-conflict-test").
		Port(19878))

	err := second.Start()

	assert.True(t, errors.Is(err, ErrNameConflict))
}

func shutdownDBAndFail(t *testing.T, err error, db *TestDatabase) {
	if stopErr := db.Stop(); stopErr != nil {
		t.Fatalf("Failed for version %s with error %s, additionally failed to stop database with error %s", db.config.tag, err, stopErr)
	}

	t.Fatalf("Failed for version %s with error %s", db.config.tag, err)
}

func skipWithoutRuntime(t *testing.T) {
	t.Helper()

	if _, err := lookupRuntime("docker"); err != nil {
		t.Skipf("skipping: %v", err)
	}
}
