package pgbox

import (
	"fmt"
	"net"
	"os/exec"
	"strings"
)

// lookupRuntime resolves the configured container runtime binary and verifies
// the engine behind it answers. No container is created when this fails.
func lookupRuntime(runtime string) (string, error) {
	binary, err := exec.LookPath(runtime)
	if err != nil {
		return "", fmt.Errorf("%w: %s not found in PATH", ErrRuntimeUnavailable, runtime)
	}

	// "version" talks to the daemon and exits non-zero when it is not
	// reachable, unlike "--version" which only prints the client build.
	if err := exec.Command(binary, "version").Run(); err != nil {
		return "", fmt.Errorf("%w: %s daemon did not respond: %s", ErrRuntimeUnavailable, runtime, err)
	}

	return binary, nil
}

// containerExists reports whether a container with the given name is known to
// the runtime, running or stopped.
func containerExists(binary, name string) (bool, error) {
	command := exec.Command(binary, "ps", "--all",
		"--filter", fmt.Sprintf("name=^%s$", name),
		"--format", "{{.Names}}")

	output, err := command.Output()
	if err != nil {
		return false, fmt.Errorf("unable to list containers using '%s': %w", command.String(), err)
	}

	for _, line := range strings.Split(string(output), "\n") {
		if strings.TrimSpace(line) == name {
			return true, nil
		}
	}

	return false, nil
}

// runArgs builds the argument vector for the launch. The container is named,
// published on one host port, given exactly one environment variable holding
// the password, and removed automatically when its process stops.
func runArgs(config Config) []string {
	return []string{
		"run",
		"--rm",
		"--name", config.containerName,
		"-p", fmt.Sprintf("%d:5432", config.port),
		"-e", fmt.Sprintf("POSTGRES_PASSWORD=%s", config.password),
		config.ImageRef(),
	}
}

// removeContainer force-removes the named container. Combined with --rm this
// leaves nothing behind, running or stopped.
func removeContainer(binary, name string) error {
	if err := exec.Command(binary, "rm", "--force", name).Run(); err != nil {
		return fmt.Errorf("unable to remove container %s: %w", name, err)
	}

	return nil
}

func ensurePortAvailable(port uint32) error {
	conn, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return fmt.Errorf("%w: process already listening on port %d", ErrPortConflict, port)
	}

	if err := conn.Close(); err != nil {
		return err
	}

	return nil
}
