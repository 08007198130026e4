package pgbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/lib/pq"
	"github.com/sethvargo/go-retry"
)

const (
	fmtCloseDBConn = "unable to close database connection: %w"
	fmtAfterError  = "%v happened after error: %w"

	healthCheckInterval = 500 * time.Millisecond
)

// healthCheckDatabaseOrTimeout polls the launched database until it accepts an
// authenticated connection, the container process exits, or the configured
// start timeout elapses. The poll observes readiness only; the launch itself
// is never retried.
func healthCheckDatabaseOrTimeout(config Config, processExited <-chan struct{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), config.startTimeout)
	defer cancel()

	backoff := retry.WithMaxDuration(config.startTimeout, retry.NewConstant(healthCheckInterval))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		select {
		case <-processExited:
			return errProcessExited
		default:
		}

		if err := healthCheckDatabase(config.port, config.database, config.username, config.password); err != nil {
			return retry.RetryableError(err)
		}

		return nil
	})

	if err == nil {
		return nil
	}

	if errors.Is(err, errProcessExited) {
		return err
	}

	return fmt.Errorf("timed out waiting for database to become available: %w", err)
}

var errProcessExited = errors.New("container process exited before database became available")

func healthCheckDatabase(port uint32, database, username, password string) (err error) {
	conn, err := openDatabaseConnection(port, username, password, database)
	if err != nil {
		return err
	}

	db := sql.OpenDB(conn)
	defer func() {
		err = connectionClose(db, err)
	}()

	if _, err := db.Query("SELECT 1"); err != nil {
		return err
	}

	return nil
}

func openDatabaseConnection(port uint32, username, password, database string) (*pq.Connector, error) {
	conn, err := pq.NewConnector(fmt.Sprintf("host=localhost port=%d user=%s password=%s dbname=%s sslmode=disable",
		port,
		username,
		password,
		database))
	if err != nil {
		return nil, err
	}

	return conn, nil
}

// connectionClose closes the database connection and handles the error of the function that used the database connection
func connectionClose(db io.Closer, err error) error {
	closeErr := db.Close()
	if closeErr != nil {
		closeErr = fmt.Errorf(fmtCloseDBConn, closeErr)

		if err != nil {
			err = fmt.Errorf(fmtAfterError, closeErr, err)
		} else {
			err = closeErr
		}
	}

	return err
}
