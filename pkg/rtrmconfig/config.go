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

// Package rtrmconfig loads and hot-reloads the daemon's configuration: cycle
// budget and worker count, contribution weights and their tunables, and the
// recipe directory and platform file read at start. Only the configuration
// file itself is watched for changes.
package rtrmconfig

import (
	"fmt"
	"os"
	"time"

	"sigs.k8s.io/yaml"
)

// ContributionWeight pairs a contribution's configured name with its weight
// in the Metrics Aggregator's weighted sum (§4.5).
type ContributionWeight struct {
	Name   string  `json:"name"`
	Weight float32 `json:"weight"`
}

// Config is the daemon's full runtime configuration.
type Config struct {
	// CycleBudgetMS bounds one scheduling cycle's wall-clock time in
	// milliseconds (§5, default 500).
	CycleBudgetMS int `json:"cycle_budget_ms"`
	// Workers bounds the scoring fan-out's worker pool size (§5).
	Workers int `json:"workers"`

	// NapWeightPercent feeds contrib.NewValue (§4.4.1), expressed 0-100.
	NapWeightPercent float64 `json:"nap_weight_percent"`
	// MigrationFactor feeds contrib.NewReconfig (§4.4.2).
	MigrationFactor int `json:"migration_factor"`
	// CongestionPenaltyPercent and FairnessPenaltyPercent are per resource
	// type, 0-100 (§4.4.3/§4.4.4).
	CongestionPenaltyPercent map[string]float64 `json:"congestion_penalty_percent"`
	FairnessPenaltyPercent   map[string]float64 `json:"fairness_penalty_percent"`
	ExpBase                  float64            `json:"exp_base"`

	GateZeroScores bool `json:"gate_zero_scores"`

	Weights []ContributionWeight `json:"weights"`

	// RecipeDir holds one YAML recipe file per application; PlatformFile
	// describes the resource namespace consumed by the Binding Engine.
	RecipeDir    string `json:"recipe_dir"`
	PlatformFile string `json:"platform_file"`

	// BindGroup is the Binding Engine's domain type, e.g. "CPU" or "GPU".
	BindGroup string `json:"bind_group"`

	// MetricsAddr is the promhttp listen address for the `serve` subcommand.
	MetricsAddr string `json:"metrics_addr"`
	// APIAddr is the gin control-surface listen address.
	APIAddr string `json:"api_addr"`
}

// Default returns a Config with every tunable at its spec-documented default.
func Default() Config {
	return Config{
		CycleBudgetMS:            500,
		Workers:                  8,
		NapWeightPercent:         50,
		MigrationFactor:          5,
		CongestionPenaltyPercent: map[string]float64{},
		FairnessPenaltyPercent:   map[string]float64{},
		ExpBase:                  2,
		Weights: []ContributionWeight{
			{Name: "value", Weight: 1},
			{Name: "reconfiguration", Weight: 1},
			{Name: "congestion", Weight: 1},
			{Name: "fairness", Weight: 1},
		},
		BindGroup:   "CPU",
		MetricsAddr: ":9090",
		APIAddr:     ":8080",
	}
}

// Load reads and decodes a Config document at path, starting from Default
// so an omitted field keeps its documented default rather than zeroing out.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("rtrmconfig: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("rtrmconfig: decode %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// CycleBudget returns the scheduling cycle's wall-clock budget as a
// time.Duration.
func (c Config) CycleBudget() time.Duration {
	return time.Duration(c.CycleBudgetMS) * time.Millisecond
}

func (c Config) validate() error {
	if c.CycleBudgetMS <= 0 {
		return fmt.Errorf("rtrmconfig: cycle_budget_ms must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("rtrmconfig: workers must be positive")
	}
	if c.RecipeDir == "" {
		return fmt.Errorf("rtrmconfig: recipe_dir is required")
	}
	if c.PlatformFile == "" {
		return fmt.Errorf("rtrmconfig: platform_file is required")
	}
	return nil
}
