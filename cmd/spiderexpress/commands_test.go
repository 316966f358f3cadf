// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spiderexpress-dev/spiderexpress/internal/config"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := NewRootCmd()

	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	assert.Contains(t, names, "start")
	assert.Contains(t, names, "create")
	assert.Contains(t, names, "list")
	assert.Contains(t, names, "version")
}

func TestListCmd_PrintsRegisteredPlugins(t *testing.T) {
	out, err := execute(t, "", "list")
	require.NoError(t, err)

	assert.Contains(t, out, "--- connectors ---")
	assert.Contains(t, out, "csv")
	assert.Contains(t, out, "--- strategies ---")
	assert.Contains(t, out, "random")
	assert.Contains(t, out, "snowball")
	assert.Contains(t, out, "spikyball")
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "spiderexpress")
}

func TestCreateCmd_EmitsLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.pe.yml")

	out, err := execute(t, "", "create", path)
	require.NoError(t, err)
	assert.Contains(t, out, "created")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "spider", cfg.ProjectName)
	assert.Len(t, cfg.Layers, 1)
}

func TestCreateCmd_Interactive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.pe.yml")

	// Accept the defaults for everything but the project name.
	stdin := "my-crawl\n\n\n\n\n"
	_, err := execute(t, stdin, "create", path, "--interactive")
	require.NoError(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "my-crawl", cfg.ProjectName)
}

func TestCreateCmd_InteractiveRejectsBadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.pe.yml")

	stdin := "my-crawl\n\nnot-a-number\n"
	_, err := execute(t, stdin, "create", path, "--interactive")
	require.Error(t, err)
}

func TestStartCmd_MissingConfig(t *testing.T) {
	_, err := execute(t, "", "start", filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

func TestStartCmd_RequiresArg(t *testing.T) {
	_, err := execute(t, "", "start")
	require.Error(t, err)
}
