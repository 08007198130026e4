package pgbox

import (
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_RunArgs(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, []string{
		"run",
		"--rm",
		"--name", "pgbox-test-db",
		"-p", "5432:5432",
		"-e", "POSTGRES_PASSWORD=postgres",
		"postgis/postgis:12-3.0",
	}, runArgs(config))
}

func Test_RunArgsWithCustomConfig(t *testing.T) {
	config := DefaultConfig().
		ContainerName("scratch-db").
		Port(9876).
		Password("hunter2").
		Tag(V13_3_1)

	assert.Equal(t, []string{
		"run",
		"--rm",
		"--name", "scratch-db",
		"-p", "9876:5432",
		"-e", "POSTGRES_PASSWORD=hunter2",
		"postgis/postgis:13-3.1",
	}, runArgs(config))
}

func Test_ErrorWhenPortAlreadyTaken(t *testing.T) {
	listener, err := net.Listen("tcp", "localhost:9887")
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := listener.Close(); err != nil {
			panic(err)
		}
	}()

	err = ensurePortAvailable(9887)

	assert.True(t, errors.Is(err, ErrPortConflict))
	assert.EqualError(t, err, fmt.Sprintf("%s: process already listening on port 9887", ErrPortConflict))
}

func Test_ErrorWhenRuntimeMissing(t *testing.T) {
	_, err := lookupRuntime("definitely-not-a-container-runtime")

	assert.True(t, errors.Is(err, ErrRuntimeUnavailable))
}
