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
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type applicationRow struct {
	ID       string `json:"id"`
	Priority uint16 `json:"priority"`
	State    string `json:"state"`
	GoalGap  int    `json:"goal_gap"`
	WM       string `json:"working_mode,omitempty"`
	Binding  uint64 `json:"binding,omitempty"`
}

type resourceRow struct {
	Path      string `json:"path"`
	Type      string `json:"type"`
	Total     uint64 `json:"total"`
	Available uint64 `json:"available"`
}

func newStatusCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the running daemon's application and resource tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "api-addr", "http://localhost:8080", "base URL of a running rtrmd control surface")
	return cmd
}

func runStatus(cmd *cobra.Command, addr string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	var apps []applicationRow
	if err := fetchJSON(client, addr+"/status", &apps); err != nil {
		return fmt.Errorf("app: fetch application status: %w", err)
	}
	var resources []resourceRow
	if err := fetchJSON(client, addr+"/resources", &resources); err != nil {
		return fmt.Errorf("app: fetch resource status: %w", err)
	}

	appTable := table.NewWriter()
	appTable.SetOutputMirror(cmd.OutOrStdout())
	appTable.SetTitle("applications")
	appTable.AppendHeader(table.Row{"id", "priority", "state", "goal gap", "working mode", "binding"})
	for _, a := range apps {
		appTable.AppendRow(table.Row{a.ID, a.Priority, a.State, a.GoalGap, a.WM, a.Binding})
	}
	appTable.Render()

	resTable := table.NewWriter()
	resTable.SetOutputMirror(cmd.OutOrStdout())
	resTable.SetTitle("resources")
	resTable.AppendHeader(table.Row{"path", "type", "total", "available"})
	for _, r := range resources {
		resTable.AppendRow(table.Row{r.Path, r.Type, r.Total, r.Available})
	}
	resTable.Render()
	return nil
}

func fetchJSON(client *http.Client, url string, dst interface{}) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
