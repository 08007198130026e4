package pgbox

import (
	"fmt"
	"io"
	"time"
)

// Config maintains the configuration used to launch the test database container.
type Config struct {
	runtime       string
	containerName string
	image         string
	tag           ImageTag
	port          uint32
	database      string
	username      string
	password      string
	startTimeout  time.Duration
	logger        io.Writer
}

// DefaultConfig provides a default set of configuration matching the fixed
// constants the tool was built around. A plain invocation uses exactly these
// values and nothing else.
func DefaultConfig() Config {
	return Config{
		runtime:       "docker",
		containerName: "pgbox-test-db",
		image:         "postgis/postgis",
		tag:           V12_3_0,
		port:          5432,
		database:      "postgres",
		username:      "postgres",
		password:      "postgres",
		startTimeout:  30 * time.Second,
	}
}

// Runtime sets the container runtime binary used to launch the database, for
// example "docker" or "podman".
func (c Config) Runtime(runtime string) Config {
	c.runtime = runtime
	return c
}

// ContainerName sets the fixed name given to the launched container.
func (c Config) ContainerName(name string) Config {
	c.containerName = name
	return c
}

// Image sets the image repository the container is created from.
func (c Config) Image(image string) Config {
	c.image = image
	return c
}

// Tag sets the image tag used when pulling and running the container.
func (c Config) Tag(tag ImageTag) Config {
	c.tag = tag
	return c
}

// Port sets the host port published to the database port inside the container.
func (c Config) Port(port uint32) Config {
	c.port = port
	return c
}

// Database sets the database name used when connecting to the launched server.
func (c Config) Database(database string) Config {
	c.database = database
	return c
}

// Username sets the username used when connecting to the launched server.
func (c Config) Username(username string) Config {
	c.username = username
	return c
}

// Password sets the password injected into the container via the
// POSTGRES_PASSWORD environment variable.
func (c Config) Password(password string) Config {
	c.password = password
	return c
}

// StartTimeout sets how long to wait for the database to accept authenticated
// connections before the launch is abandoned and the container torn down.
func (c Config) StartTimeout(timeout time.Duration) Config {
	c.startTimeout = timeout
	return c
}

// Logger receives a copy of everything the container writes to stdout and
// stderr, in addition to the caller's console.
func (c Config) Logger(logger io.Writer) Config {
	c.logger = logger
	return c
}

// GetConnectionURL returns a connection URL for the launched database.
func (c Config) GetConnectionURL() string {
	return fmt.Sprintf("postgresql://%s:%s@localhost:%d/%s", c.username, c.password, c.port, c.database)
}

// ImageRef returns the full image reference the container is created from.
func (c Config) ImageRef() string {
	return fmt.Sprintf("%s:%s", c.image, c.tag)
}

// ImageTag represents a tag of the postgis/postgis image. The values below
// track the PostgreSQL major version paired with the PostGIS release shipped
// in the corresponding tag.
type ImageTag string

const (
	V13_3_1 ImageTag = "13-3.1"
	V13_3_0 ImageTag = "13-3.0"
	V12_3_1 ImageTag = "12-3.1"
	V12_3_0 ImageTag = "12-3.0"
	V11_3_0 ImageTag = "11-3.0"
	V11_2_5 ImageTag = "11-2.5"
	V10_3_0 ImageTag = "10-3.0"
	V10_2_5 ImageTag = "10-2.5"
)
