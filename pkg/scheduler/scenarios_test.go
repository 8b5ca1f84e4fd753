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

package scheduler

import (
	"context"
	"time"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/prashantv/gostub"

	"github.com/pietruzzo/barberque-allocation-sub003/pkg/aggregator"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/binding"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/catalogue"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/contrib"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/registry"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/resource"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/respath"
)

// mapCatalogues is a test-only Catalogues implementation backed by a plain
// map, standing in for the daemon's real application-manager lookup.
type mapCatalogues map[string]*catalogue.Catalogue

func (m mapCatalogues) Get(appID string) (*catalogue.Catalogue, bool) {
	c, ok := m[appID]
	return c, ok
}

func mustCatalogue(wms ...*catalogue.WorkingMode) *catalogue.Catalogue {
	c := catalogue.New()
	for _, wm := range wms {
		if err := c.Add(wm); err != nil {
			panic(err)
		}
	}
	return c
}

var _ = Describe("Scheduler Cycle", func() {
	It("places the higher-priority application and blocks the lower one when capacity is exhausted (scenario 1)", func() {
		acc := resource.New()
		root := respath.New(respath.Segment{Type: respath.System, ID: "0"})
		_, err := acc.AddNode(root, respath.Segment{Type: respath.ProcElement, ID: "0"}, 4)
		Expect(err).NotTo(HaveOccurred())
		pePath := respath.New(
			respath.Segment{Type: respath.System, ID: "0"},
			respath.Segment{Type: respath.ProcElement, ID: "0"},
		)

		reg := registry.New()
		_, err = reg.Register("appA", 0)
		Expect(err).NotTo(HaveOccurred())
		_, err = reg.Register("appB", 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(reg.Transition("appA", registry.Ready)).To(Succeed())
		Expect(reg.Transition("appB", registry.Ready)).To(Succeed())

		wmA := &catalogue.WorkingMode{ID: "wm0", StaticValue: 0.5, Requests: []catalogue.Request{{Path: pePath, Amount: 4}}}
		wmB := &catalogue.WorkingMode{ID: "wm0", StaticValue: 0.5, Requests: []catalogue.Request{{Path: pePath, Amount: 4}}}
		cats := mapCatalogues{"appA": mustCatalogue(wmA), "appB": mustCatalogue(wmB)}

		agg, err := aggregator.New([]aggregator.Weighted{{Contribution: contrib.NewValue(50), Weight: 1}}, false)
		Expect(err).NotTo(HaveOccurred())

		s := &Scheduler{
			Accountant: acc,
			Registry:   reg,
			Catalogues: cats,
			Engine:     &binding.Engine{Accountant: acc, DomainType: respath.System},
			Aggregator: agg,
		}

		plan, code, err := s.RunCycle(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(Ok))
		Expect(plan.Placements).To(HaveLen(1))
		Expect(plan.Placements[0].AppID).To(Equal("appA"))
		Expect(plan.Blocked).To(ConsistOf("appB"))

		appB, err := reg.Get("appB")
		Expect(err).NotTo(HaveOccurred())
		Expect(appB.State()).To(Equal(registry.Blocked))
	})

	It("selects the higher-value working mode (scenario 2)", func() {
		acc := resource.New()
		root := respath.New(respath.Segment{Type: respath.System, ID: "0"})
		_, err := acc.AddNode(root, respath.Segment{Type: respath.ProcElement, ID: "0"}, 4)
		Expect(err).NotTo(HaveOccurred())
		pePath := respath.New(
			respath.Segment{Type: respath.System, ID: "0"},
			respath.Segment{Type: respath.ProcElement, ID: "0"},
		)

		reg := registry.New()
		_, err = reg.Register("app0", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(reg.Transition("app0", registry.Ready)).To(Succeed())
		app0, err := reg.Get("app0")
		Expect(err).NotTo(HaveOccurred())
		app0.SetGoalGap(50)

		wm0 := &catalogue.WorkingMode{ID: "wm0", StaticValue: 0.3, Requests: []catalogue.Request{{Path: pePath, Amount: 2}}}
		wm1 := &catalogue.WorkingMode{ID: "wm1", StaticValue: 0.9, Requests: []catalogue.Request{{Path: pePath, Amount: 4}}}
		cats := mapCatalogues{"app0": mustCatalogue(wm0, wm1)}

		agg, err := aggregator.New([]aggregator.Weighted{{Contribution: contrib.NewValue(50), Weight: 1}}, false)
		Expect(err).NotTo(HaveOccurred())

		s := &Scheduler{
			Accountant: acc,
			Registry:   reg,
			Catalogues: cats,
			Engine:     &binding.Engine{Accountant: acc, DomainType: respath.System},
			Aggregator: agg,
		}

		plan, code, err := s.RunCycle(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(Ok))
		Expect(plan.Placements).To(HaveLen(1))
		Expect(plan.Placements[0].WorkingMode).To(Equal("wm1"))
	})

	It("prefers the unchanged binding over a migration under a migration factor (scenario 3)", func() {
		acc := resource.New()
		root := respath.New(respath.Segment{Type: respath.System, ID: "0"})
		_, err := acc.AddNode(root, respath.Segment{Type: respath.CPU, ID: "1"}, 4)
		Expect(err).NotTo(HaveOccurred())
		_, err = acc.AddNode(root, respath.Segment{Type: respath.CPU, ID: "2"}, 4)
		Expect(err).NotTo(HaveOccurred())

		reqTemplate := respath.New(
			respath.Segment{Type: respath.System, ID: "0"},
			respath.Segment{Type: respath.CPU, ID: respath.AnyID},
		)

		reg := registry.New()
		_, err = reg.Register("app0", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(reg.Transition("app0", registry.Ready)).To(Succeed())
		Expect(reg.SetAssignment("app0", "wm0", 1<<1)).To(Succeed())

		wm0 := &catalogue.WorkingMode{ID: "wm0", StaticValue: 0.5, Requests: []catalogue.Request{{Path: reqTemplate, Amount: 2}}}
		cats := mapCatalogues{"app0": mustCatalogue(wm0)}

		agg, err := aggregator.New([]aggregator.Weighted{{Contribution: contrib.NewReconfig(5), Weight: 1}}, false)
		Expect(err).NotTo(HaveOccurred())

		s := &Scheduler{
			Accountant: acc,
			Registry:   reg,
			Catalogues: cats,
			Engine:     &binding.Engine{Accountant: acc, DomainType: respath.CPU},
			Aggregator: agg,
		}

		plan, code, err := s.RunCycle(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(Ok))
		Expect(plan.Placements).To(HaveLen(1))
		Expect(plan.Placements[0].BindingBits).To(Equal(uint64(1 << 1)))
	})

	It("lets fairness cap placements on a shared platform to exactly two of three equal-priority applications (scenario 4)", func() {
		acc := resource.New()
		root := respath.New(respath.Segment{Type: respath.System, ID: "0"})
		_, err := acc.AddNode(root, respath.Segment{Type: respath.ProcElement, ID: "0"}, 12)
		Expect(err).NotTo(HaveOccurred())
		pePath := respath.New(
			respath.Segment{Type: respath.System, ID: "0"},
			respath.Segment{Type: respath.ProcElement, ID: "0"},
		)

		reg := registry.New()
		cats := mapCatalogues{}
		for _, id := range []string{"app0", "app1", "app2"} {
			_, err := reg.Register(id, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(reg.Transition(id, registry.Ready)).To(Succeed())
			wm := &catalogue.WorkingMode{ID: "wm0", StaticValue: 0.5, Requests: []catalogue.Request{{Path: pePath, Amount: 6}}}
			cats[id] = mustCatalogue(wm)
		}

		fairness := contrib.NewFairness(acc, reg, respath.System, map[respath.Type]float64{respath.ProcElement: 10}, 2)
		agg, err := aggregator.New([]aggregator.Weighted{{Contribution: fairness, Weight: 1}}, false)
		Expect(err).NotTo(HaveOccurred())

		s := &Scheduler{
			Accountant: acc,
			Registry:   reg,
			Catalogues: cats,
			Engine:     &binding.Engine{Accountant: acc, DomainType: respath.System},
			Aggregator: agg,
			Fairness:   fairness,
		}

		plan, code, err := s.RunCycle(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(Ok))
		Expect(plan.Placements).To(HaveLen(2))
		Expect(plan.Blocked).To(HaveLen(1))
	})

	It("produces identical plans for identical Registry and Accountant state (determinism)", func() {
		build := func() (*Scheduler, *registry.Registry) {
			acc := resource.New()
			root := respath.New(respath.Segment{Type: respath.System, ID: "0"})
			_, _ = acc.AddNode(root, respath.Segment{Type: respath.ProcElement, ID: "0"}, 4)
			pePath := respath.New(
				respath.Segment{Type: respath.System, ID: "0"},
				respath.Segment{Type: respath.ProcElement, ID: "0"},
			)

			reg := registry.New()
			cats := mapCatalogues{}
			for i, id := range []string{"appA", "appB"} {
				_, _ = reg.Register(id, uint16(i))
				_ = reg.Transition(id, registry.Ready)
				wm := &catalogue.WorkingMode{ID: "wm0", StaticValue: 0.5, Requests: []catalogue.Request{{Path: pePath, Amount: 4}}}
				cats[id] = mustCatalogue(wm)
			}
			agg, _ := aggregator.New([]aggregator.Weighted{{Contribution: contrib.NewValue(50), Weight: 1}}, false)
			return &Scheduler{
				Accountant: acc,
				Registry:   reg,
				Catalogues: cats,
				Engine:     &binding.Engine{Accountant: acc, DomainType: respath.System},
				Aggregator: agg,
			}, reg
		}

		s1, _ := build()
		plan1, code1, err1 := s1.RunCycle(context.Background())
		Expect(err1).NotTo(HaveOccurred())
		Expect(code1).To(Equal(Ok))

		s2, _ := build()
		plan2, code2, err2 := s2.RunCycle(context.Background())
		Expect(err2).NotTo(HaveOccurred())
		Expect(code2).To(Equal(Ok))

		Expect(cmp.Diff(plan1, plan2, cmp.AllowUnexported(respath.Path{}))).To(BeEmpty())
	})

	It("reports Timeout and commits nothing when the budget is exceeded before selection begins", func() {
		stubs := gostub.New()
		defer stubs.Reset()

		acc := resource.New()
		root := respath.New(respath.Segment{Type: respath.System, ID: "0"})
		_, err := acc.AddNode(root, respath.Segment{Type: respath.ProcElement, ID: "0"}, 4)
		Expect(err).NotTo(HaveOccurred())
		pePath := respath.New(
			respath.Segment{Type: respath.System, ID: "0"},
			respath.Segment{Type: respath.ProcElement, ID: "0"},
		)

		reg := registry.New()
		_, err = reg.Register("app0", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(reg.Transition("app0", registry.Ready)).To(Succeed())
		wm := &catalogue.WorkingMode{ID: "wm0", StaticValue: 0.5, Requests: []catalogue.Request{{Path: pePath, Amount: 4}}}
		cats := mapCatalogues{"app0": mustCatalogue(wm)}

		agg, err := aggregator.New([]aggregator.Weighted{{Contribution: contrib.NewValue(50), Weight: 1}}, false)
		Expect(err).NotTo(HaveOccurred())

		base := time.Now()
		calls := 0
		stubs.Stub(&timeNowFn, func() time.Time {
			calls++
			if calls == 1 {
				return base
			}
			return base.Add(time.Hour)
		})

		s := &Scheduler{
			Accountant: acc,
			Registry:   reg,
			Catalogues: cats,
			Engine:     &binding.Engine{Accountant: acc, DomainType: respath.System},
			Aggregator: agg,
			Budget:     time.Millisecond,
		}

		_, code, err := s.RunCycle(context.Background())
		Expect(err).To(HaveOccurred())
		Expect(code).To(Equal(Timeout))

		app0, err := reg.Get("app0")
		Expect(err).NotTo(HaveOccurred())
		Expect(app0.State()).To(Equal(registry.Ready))
	})
})
