/*
Copyright 2022 The Koordinator Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package app wires cmd/rtrmd's subcommands: "serve" runs the scheduling
// daemon, "validate-recipe" offline-checks a recipe file against §6's
// duplicate-id/non-positive-amount rules, and "status" queries a running
// daemon's control surface for a pretty-printed plan/resource table.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// NewCommand builds the rtrmd root command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rtrmd",
		Short: "Run-time resource manager daemon",
		Long: `rtrmd hosts the scheduling kernel: the resource accountant, application
registry, working-mode catalogues, contribution library and scheduler core
described in the run-time resource manager specification. It serves the
scheduler control surface over HTTP and drives scheduling cycles on a
configurable trigger.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newValidateRecipeCommand())
	cmd.AddCommand(newStatusCommand())
	return cmd
}

// addConfigFlag attaches the --config flag shared by every subcommand that
// builds a runtime from an rtrmconfig.Config document.
func addConfigFlag(fs *pflag.FlagSet, dst *string) {
	fs.StringVar(dst, "config", "rtrmd.yaml", "path to the daemon configuration file")
}
