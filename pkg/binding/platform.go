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

// Package binding implements the Binding Engine: platform-description
// loading, binding-domain enumeration, and candidate generation that
// substitutes a working mode's wildcard requests with a concrete domain id.
package binding

import (
	"fmt"

	apiresource "k8s.io/apimachinery/pkg/api/resource"
	"sigs.k8s.io/yaml"

	"github.com/pietruzzo/barberque-allocation-sub003/pkg/resource"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/respath"
)

// Platform is the declarative platform description consumed from the
// platform-layout translator's output (§6); the translator itself is an
// external collaborator out of scope here, this package only consumes its
// emitted shape.
type Platform struct {
	MemoryBanks         []MemoryBank         `json:"memory_banks"`
	CPUGroups           []CPUGroup           `json:"cpu_groups"`
	ProcessingElements  []ProcessingElement  `json:"processing_elements"`
}

// MemoryBank declares one memory resource: id, quantity, unit.
type MemoryBank struct {
	ID       string `json:"id"`
	Quantity string `json:"quantity"` // e.g. "16Gi", parsed via apimachinery resource.Quantity
}

// CPUGroup declares one CPU socket-like grouping and the memory bank it is
// affine to.
type CPUGroup struct {
	ID             string `json:"id"`
	MemoryAffinity string `json:"memory_affinity"`
}

// ProcessingElement declares one schedulable processing element within a
// CPU group.
type ProcessingElement struct {
	ID        string `json:"id"`
	GroupID   string `json:"group_id"`
	Partition string `json:"partition"` // host | mdev | shared
	Share     uint64 `json:"share"`
}

// LoadPlatform decodes a platform description document.
func LoadPlatform(data []byte) (*Platform, error) {
	var p Platform
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("binding: malformed platform description: %w", err)
	}
	for _, pe := range p.ProcessingElements {
		switch pe.Partition {
		case "host", "mdev", "shared":
		default:
			return nil, fmt.Errorf("binding: processing element %s: invalid partition %q", pe.ID, pe.Partition)
		}
	}
	return &p, nil
}

// Build populates acc's resource namespace from the platform description,
// rooted one level below SYSTEM0: one GROUP node per CPUGroup, one CPU node
// per processing-element's owning group exposing the sum of its PEs'
// shares, one PROC_ELEMENT leaf per element, and one MEMORY leaf per bank
// nested under the CPU node of its affine group (or directly under root if
// unaffiliated).
func (p *Platform) Build(acc *resource.Accountant, root respath.Path) error {
	groupTotals := make(map[string]uint64)
	for _, pe := range p.ProcessingElements {
		groupTotals[pe.GroupID] += pe.Share
	}

	groupPaths := make(map[string]respath.Path)
	for _, g := range p.CPUGroups {
		gp := root.Append(respath.Segment{Type: respath.Group, ID: g.ID})
		if _, err := acc.AddNode(root, respath.Segment{Type: respath.Group, ID: g.ID}, groupTotals[g.ID]); err != nil {
			return fmt.Errorf("binding: group %s: %w", g.ID, err)
		}
		cp := gp.Append(respath.Segment{Type: respath.CPU, ID: g.ID})
		if _, err := acc.AddNode(gp, respath.Segment{Type: respath.CPU, ID: g.ID}, groupTotals[g.ID]); err != nil {
			return fmt.Errorf("binding: cpu %s: %w", g.ID, err)
		}
		groupPaths[g.ID] = cp
	}

	for _, pe := range p.ProcessingElements {
		cp, ok := groupPaths[pe.GroupID]
		if !ok {
			return fmt.Errorf("binding: processing element %s: unknown group %s", pe.ID, pe.GroupID)
		}
		if _, err := acc.AddNode(cp, respath.Segment{Type: respath.ProcElement, ID: pe.ID}, pe.Share); err != nil {
			return fmt.Errorf("binding: processing element %s: %w", pe.ID, err)
		}
	}

	affinity := make(map[string]string)
	for _, g := range p.CPUGroups {
		affinity[g.MemoryAffinity] = g.ID
	}
	for _, m := range p.MemoryBanks {
		qty, err := apiresource.ParseQuantity(m.Quantity)
		if err != nil {
			return fmt.Errorf("binding: memory bank %s: %w", m.ID, err)
		}
		amount := uint64(qty.Value())
		parent := root
		if gid, ok := affinity[m.ID]; ok {
			parent = groupPaths[gid]
		}
		if _, err := acc.AddNode(parent, respath.Segment{Type: respath.Memory, ID: m.ID}, amount); err != nil {
			return fmt.Errorf("binding: memory bank %s: %w", m.ID, err)
		}
	}
	return nil
}
