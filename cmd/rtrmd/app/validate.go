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

package app

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pietruzzo/barberque-allocation-sub003/pkg/catalogue"
)

func newValidateRecipeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate-recipe <file>",
		Short: "Offline-check a recipe file against the §6 recipe rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateRecipe(cmd, args[0])
		},
	}
	return cmd
}

func runValidateRecipe(cmd *cobra.Command, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("app: read %s: %w", path, err)
	}

	appID, cat, err := catalogue.LoadRecipe(data)
	if err != nil {
		cmd.PrintErrf("INVALID: %v\n", err)
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"application", appID})
	t.AppendHeader(table.Row{"working mode", "value", "requests"})
	for _, wm := range cat.All() {
		t.AppendRow(table.Row{wm.ID, wm.Value(), len(wm.Requests)})
	}
	t.Render()
	cmd.Printf("OK: %d working mode(s) declared\n", cat.Len())
	return nil
}
