// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	spidererr "github.com/spiderexpress-dev/spiderexpress/pkg/errors"
)

// defaultProject is the skeleton emitted by `create`: one layer wired to
// the csv connector and the random strategy.
type defaultProject struct {
	ProjectName  string         `yaml:"project_name"`
	DBURL        string         `yaml:"db_url"`
	MaxIteration int            `yaml:"max_iteration"`
	BatchSize    int            `yaml:"batch_size"`
	EmptySeeds   string         `yaml:"empty_seeds"`
	SeedFile     string         `yaml:"seed_file,omitempty"`
	Seeds        []string       `yaml:"seeds,omitempty"`
	Layers       map[string]any `yaml:"layers"`
}

func newCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <config-path>",
		Short: "Create a new project configuration",
		Long:  "Emit a default project configuration at the given path, optionally prompting for the basics.",
		Args:  cobra.ExactArgs(1),
		RunE:  runCreate,
	}

	cmd.Flags().Bool("interactive", false, "prompt for project settings")
	return cmd
}

func runCreate(cmd *cobra.Command, args []string) error {
	project := defaultProject{
		ProjectName:  "spider",
		DBURL:        "spider.db",
		MaxIteration: 10000,
		BatchSize:    150,
		EmptySeeds:   "continue",
		Seeds:        []string{"first-seed"},
		Layers: map[string]any{
			"base": map[string]any{
				"connector": map[string]any{
					"csv": map[string]any{
						"edge_list_location": "edges.csv",
						"mode":               "out",
					},
				},
				"routers": []any{
					map[string]any{
						"source": "source",
						"target": []any{map[string]any{"field": "target"}},
					},
				},
				"sampler": map[string]any{
					"random": map[string]any{"n": 10},
				},
			},
		},
	}

	if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
		if err := promptProject(cmd, &project); err != nil {
			return err
		}
	}

	data, err := yaml.Marshal(project)
	if err != nil {
		return spidererr.Wrapf(err, spidererr.CodeCLISetupFailure, "marshalling config")
	}
	if err := os.WriteFile(args[0], data, 0o644); err != nil {
		return spidererr.Wrapf(err, spidererr.CodeCLISetupFailure, "writing config %s", args[0])
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", args[0])
	return nil
}

func promptProject(cmd *cobra.Command, project *defaultProject) error {
	reader := bufio.NewReader(cmd.InOrStdin())

	ask := func(question, fallback string) (string, error) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s [%s]: ", question, fallback)
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", spidererr.Wrapf(err, spidererr.CodeCLIInputInvalid, "reading input")
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return fallback, nil
		}
		return line, nil
	}

	var err error
	if project.ProjectName, err = ask("Name of your project?", project.ProjectName); err != nil {
		return err
	}
	if project.DBURL, err = ask("URL of your database?", project.DBURL); err != nil {
		return err
	}

	iterations, err := ask("How many iterations should be done?", strconv.Itoa(project.MaxIteration))
	if err != nil {
		return err
	}
	project.MaxIteration, err = strconv.Atoi(iterations)
	if err != nil {
		return spidererr.Errorf(spidererr.CodeCLIInputInvalid, "max_iteration must be a number, got %q", iterations)
	}

	empty, err := ask("What should happen if seeds are empty? (stop/continue)", project.EmptySeeds)
	if err != nil {
		return err
	}
	if empty != "stop" && empty != "continue" {
		return spidererr.Errorf(spidererr.CodeCLIInputInvalid, "empty_seeds must be stop or continue, got %q", empty)
	}
	project.EmptySeeds = empty

	if project.SeedFile, err = ask("Do you wish to read a file for seeds?", ""); err != nil {
		return err
	}
	if project.SeedFile != "" {
		project.Seeds = nil
	}
	return nil
}
