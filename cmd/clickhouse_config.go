/*******************************************************************************
 * Copyright (c) 2025, 2026 Genome Research Ltd.
 *
 * Author: Sendu Bala <sb10@sanger.ac.uk>
 *
 * Permission is hereby granted, free of charge, to any person obtaining
 * a copy of this software and associated documentation files (the
 * "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish,
 * distribute, sublicense, and/or sell copies of the Software, and to
 * permit persons to whom the Software is furnished to do so, subject to
 * the following conditions:
 *
 * The above copyright notice and this permission notice shall be included
 * in all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
 * EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
 * MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
 * CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
 * TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 ******************************************************************************/

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/wtsi-hgi/metapep/clickhouse"
)

const (
	envClickhouseDSN      = "METAPEP_CLICKHOUSE_DSN"
	envClickhouseDatabase = "METAPEP_CLICKHOUSE_DATABASE"
	envQueryTimeout       = "METAPEP_QUERY_TIMEOUT"
)

var (
	errClickhouseDSNRequired      = errors.New("clickhouse DSN required")
	errClickhouseDatabaseRequired = errors.New("clickhouse database required")
)

var clickhouseDotEnvKeys = []string{
	envClickhouseDSN,
	envClickhouseDatabase,
	envQueryTimeout,
}

func loadClickhouseDotEnv() {
	orig := originalEnvKeys(clickhouseDotEnvKeys)

	loadClickhouseDotEnvFile(".env", orig)
	loadClickhouseDotEnvFile(".env.local", orig)
}

func originalEnvKeys(keys []string) map[string]struct{} {
	orig := map[string]struct{}{}

	for _, key := range keys {
		if _, ok := os.LookupEnv(key); ok {
			orig[key] = struct{}{}
		}
	}

	return orig
}

func loadClickhouseDotEnvFile(path string, orig map[string]struct{}) {
	env, err := godotenv.Read(path)
	if err != nil {
		return
	}

	for _, key := range clickhouseDotEnvKeys {
		val, ok := env[key]
		if !ok {
			continue
		}

		if _, ok := orig[key]; ok {
			continue
		}

		_ = os.Setenv(key, val)
	}
}

func clickhouseConfigFromEnvAndFlags(
	dsnFlag string,
	databaseFlag string,
	queryTimeoutFlag string,
	queryTimeoutDefault time.Duration,
) (clickhouse.Config, error) {
	dsn, err := requiredFlagOrEnv(dsnFlag, envClickhouseDSN, errClickhouseDSNRequired)
	if err != nil {
		return clickhouse.Config{}, err
	}

	database, err := requiredFlagOrEnv(databaseFlag, envClickhouseDatabase, errClickhouseDatabaseRequired)
	if err != nil {
		return clickhouse.Config{}, err
	}

	queryTimeout, err := parseDurationFlagOrEnv(queryTimeoutFlag, envQueryTimeout, queryTimeoutDefault)
	if err != nil {
		return clickhouse.Config{}, err
	}

	return clickhouse.Config{
		DSN:          dsn,
		Database:     database,
		QueryTimeout: queryTimeout,
	}, nil
}

func requiredFlagOrEnv(flagValue string, envKey string, missing error) (string, error) {
	v := strings.TrimSpace(flagValue)
	if v != "" {
		return v, nil
	}

	v = strings.TrimSpace(os.Getenv(envKey))
	if v == "" {
		return "", missing
	}

	return v, nil
}

func parseDurationFlagOrEnv(flagValue string, envKey string, defaultValue time.Duration) (time.Duration, error) {
	if strings.TrimSpace(flagValue) != "" {
		d, err := time.ParseDuration(flagValue)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %q: %w", envKey, err)
		}

		return d, nil
	}

	v := strings.TrimSpace(os.Getenv(envKey))
	if v == "" {
		return defaultValue, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration in %s: %w", envKey, err)
	}

	return d, nil
}
