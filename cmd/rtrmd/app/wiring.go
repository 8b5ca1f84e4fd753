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
	"path/filepath"

	"k8s.io/klog/v2"

	"github.com/pietruzzo/barberque-allocation-sub003/pkg/aggregator"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/api"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/binding"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/catalogue"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/contrib"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/registry"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/resource"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/respath"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/rtrmconfig"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/scheduler"
)

// systemRoot is the Resource Accountant's fixed root path, a single SYSTEM
// node every platform-description node is nested under.
var systemRoot = respath.New(respath.Segment{Type: respath.System, ID: "0"})

// runtime bundles every long-lived service the daemon's subcommands share:
// the Accountant and Registry (§3 "Ownership"), the catalogue store feeding
// the Binding Engine, and the wired Scheduler ready to run cycles.
type runtime struct {
	Accountant *resource.Accountant
	Registry   *registry.Registry
	Catalogues *api.CatalogueStore
	Engine     *binding.Engine
	Scheduler  *scheduler.Scheduler
	Fairness   *contrib.Fairness
}

// buildRuntime constructs every core service from cfg: loads the platform
// description into a fresh Accountant, probes optional GPU domains, loads
// every recipe file in cfg.RecipeDir, and assembles the configured
// contributions into a Metrics Aggregator (§4.5).
func buildRuntime(cfg rtrmconfig.Config) (*runtime, error) {
	acc := resource.New()

	platformBytes, err := os.ReadFile(cfg.PlatformFile)
	if err != nil {
		return nil, fmt.Errorf("app: read platform description: %w", err)
	}
	platform, err := binding.LoadPlatform(platformBytes)
	if err != nil {
		return nil, fmt.Errorf("app: load platform description: %w", err)
	}
	if err := platform.Build(acc, systemRoot); err != nil {
		return nil, fmt.Errorf("app: build resource namespace: %w", err)
	}
	binding.ProbeGPUDomains(acc, systemRoot)

	reg := registry.New()
	cats := api.NewCatalogueStore()
	if err := loadRecipes(cfg.RecipeDir, reg, cats); err != nil {
		return nil, err
	}

	domainType := respath.Type(cfg.BindGroup)
	engine := &binding.Engine{Accountant: acc, DomainType: domainType}

	penaltyMap := func(in map[string]float64) map[respath.Type]float64 {
		out := make(map[respath.Type]float64, len(in))
		for k, v := range in {
			out[respath.Type(k)] = v
		}
		return out
	}

	fairness := contrib.NewFairness(acc, reg, domainType, penaltyMap(cfg.FairnessPenaltyPercent), cfg.ExpBase)

	byName := map[string]contrib.Contribution{
		"value":           contrib.NewValue(cfg.NapWeightPercent),
		"reconfiguration": contrib.NewReconfig(cfg.MigrationFactor),
		"congestion":      contrib.NewCongestion(penaltyMap(cfg.CongestionPenaltyPercent), cfg.ExpBase),
		"fairness":        fairness,
	}

	weighted := make([]aggregator.Weighted, 0, len(cfg.Weights))
	for _, w := range cfg.Weights {
		c, ok := byName[w.Name]
		if !ok {
			return nil, fmt.Errorf("app: unknown contribution %q in config weights", w.Name)
		}
		weighted = append(weighted, aggregator.Weighted{Contribution: c, Weight: w.Weight})
	}
	agg, err := aggregator.New(weighted, cfg.GateZeroScores)
	if err != nil {
		return nil, fmt.Errorf("app: build aggregator: %w", err)
	}

	sched := &scheduler.Scheduler{
		Accountant: acc,
		Registry:   reg,
		Catalogues: cats,
		Engine:     engine,
		Aggregator: agg,
		Fairness:   fairness,
		Budget:     cfg.CycleBudget(),
		Workers:    cfg.Workers,
	}

	return &runtime{
		Accountant: acc,
		Registry:   reg,
		Catalogues: cats,
		Engine:     engine,
		Scheduler:  sched,
		Fairness:   fairness,
	}, nil
}

// loadRecipes decodes every ".yaml"/".yml" file directly under dir as a
// recipe document (§6), registering the application it names at the
// priority encoded in its file name prefix "<priority>-<id>.yaml", so a
// directory listing alone fixes deterministic registration order.
func loadRecipes(dir string, reg *registry.Registry, cats *api.CatalogueStore) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("app: read recipe dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("app: read recipe %s: %w", path, err)
		}
		appID, cat, err := catalogue.LoadRecipe(data)
		if err != nil {
			return fmt.Errorf("app: recipe %s: %w", path, err)
		}
		priority := priorityFromFilename(entry.Name())
		if _, err := reg.Register(appID, priority); err != nil {
			return fmt.Errorf("app: register %s: %w", appID, err)
		}
		cats.Put(appID, cat)
		if err := reg.Transition(appID, registry.Ready); err != nil {
			return fmt.Errorf("app: %s to READY: %w", appID, err)
		}
		klog.Infof("app: loaded recipe %s for application %s at priority %d", path, appID, priority)
	}
	return nil
}

// priorityFromFilename extracts the leading "<n>-" numeric prefix from a
// recipe file name. A name without such a prefix gets priority 0, the
// highest priority per §3.
func priorityFromFilename(name string) uint16 {
	var n uint16
	i := 0
	for i < len(name) && name[i] >= '0' && name[i] <= '9' {
		n = n*10 + uint16(name[i]-'0')
		i++
	}
	if i == 0 || i >= len(name) || name[i] != '-' {
		return 0
	}
	return n
}
