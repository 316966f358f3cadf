// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package config

import (
	"bufio"
	"os"
	"strings"

	spidererr "github.com/spiderexpress-dev/spiderexpress/pkg/errors"
)

// ReadSeedFile reads a newline-delimited seed list: one NodeId per
// non-empty line, lines starting with '#' are comments.
func ReadSeedFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, spidererr.Wrapf(err, spidererr.CodeConfigSeedFileNotFound,
			"opening seed file %s", path)
	}
	defer f.Close() //nolint:errcheck

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, spidererr.Wrapf(err, spidererr.CodeConfigLoadReadFailure,
			"reading seed file %s", path)
	}
	return ids, nil
}
