package dbsync

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const defaultRowLimit = 10000

// Config holds the sync parameters. All of them come from the environment,
// matching how the tool has always been driven:
//
//	SOURCE_DB       connection string of the database to copy from (required)
//	TARGET_DB       connection string of the database to load into (required)
//	ROW_LIMIT       max rows dumped for sampled tables (default 10000)
//	SAMPLED_TABLES  comma separated tables to sample instead of copying fully
//	SKIPPED_TABLES  comma separated tables to leave out entirely
type Config struct {
	SourceDB      string
	TargetDB      string
	RowLimit      int
	SampledTables []string
	SkippedTables []string
}

// FromEnv reads the sync configuration from the environment.
func FromEnv() (Config, error) {
	cfg := Config{
		SourceDB: os.Getenv("SOURCE_DB"),
		TargetDB: os.Getenv("TARGET_DB"),
		RowLimit: defaultRowLimit,
	}

	if cfg.SourceDB == "" {
		return Config{}, fmt.Errorf("SOURCE_DB is not set")
	}

	if cfg.TargetDB == "" {
		return Config{}, fmt.Errorf("TARGET_DB is not set")
	}

	if rowLimit := os.Getenv("ROW_LIMIT"); rowLimit != "" {
		limit, err := strconv.Atoi(rowLimit)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ROW_LIMIT %q: %w", rowLimit, err)
		}

		cfg.RowLimit = limit
	}

	cfg.SampledTables = splitTableList(os.Getenv("SAMPLED_TABLES"))
	cfg.SkippedTables = splitTableList(os.Getenv("SKIPPED_TABLES"))

	return cfg, nil
}

func splitTableList(value string) []string {
	if value == "" {
		return nil
	}

	var tables []string

	for _, name := range strings.Split(value, ",") {
		if name = strings.TrimSpace(name); name != "" {
			tables = append(tables, name)
		}
	}

	return tables
}
