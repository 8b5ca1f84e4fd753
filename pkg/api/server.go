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

package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/pietruzzo/barberque-allocation-sub003/pkg/catalogue"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/registry"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/resource"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/respath"
	"github.com/pietruzzo/barberque-allocation-sub003/pkg/scheduler"
)

// Cycler is the subset of *scheduler.Scheduler the control surface drives;
// an interface so handlers can be exercised against a stub in tests.
type Cycler interface {
	RunCycle(ctx context.Context) (scheduler.Plan, scheduler.ExitCode, error)
}

// Server implements the scheduler control surface (§6) as a gin router: one
// thin handler per operation over the shared Registry/CatalogueStore, in the
// same minimal-handler-struct style as the teacher's admission webhooks.
type Server struct {
	Registry   *registry.Registry
	Catalogues *CatalogueStore
	Scheduler  Cycler
	Accountant *resource.Accountant

	engine *gin.Engine
}

// NewServer wires every route. It does not set gin's mode; the engine runs
// in whatever mode the process has configured.
func NewServer(reg *registry.Registry, cats *CatalogueStore, sched Cycler, acc *resource.Accountant) *Server {
	s := &Server{Registry: reg, Catalogues: cats, Scheduler: sched, Accountant: acc}
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/applications", s.registerApplication)
	r.DELETE("/applications/:id", s.unregisterApplication)
	r.PUT("/applications/:id/goal-gap", s.setGoalGap)
	r.PATCH("/applications/:id/working-modes/:wmID/constraints", s.setAWMConstraints)
	r.DELETE("/applications/:id/working-modes/:wmID/constraints", s.clearAWMConstraints)
	r.POST("/schedule", s.requestSchedule)
	r.GET("/applications/:id/assignment", s.currentAssignment)

	// GET /status and /resources are operational read endpoints for the
	// cmd/rtrmd "status" subcommand; they are not part of the §6 control
	// surface proper, which is why they are idempotent GETs with no
	// exit-code envelope.
	r.GET("/status", s.listApplications)
	r.GET("/resources", s.listResources)

	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

// registerApplication implements register_application: the request body is
// a recipe-file document (§6); the application id and its declared working
// modes both come from the recipe, priority from a query parameter.
func (s *Server) registerApplication(c *gin.Context) {
	priority, err := strconv.ParseUint(c.Query("priority"), 10, 16)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid priority query parameter"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	appID, cat, err := catalogue.LoadRecipe(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := s.Registry.Register(appID, uint16(priority)); err != nil {
		if errIsDuplicate(err) {
			c.JSON(http.StatusOK, gin.H{"exit_code": scheduler.ExcDuplicate, "id": appID})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.Catalogues.Put(appID, cat)

	if err := s.Registry.Transition(appID, registry.Ready); err != nil {
		klog.Errorf("api: %s did not reach READY after registration: %v", appID, err)
	}

	c.JSON(http.StatusOK, gin.H{"exit_code": scheduler.Ok, "id": appID})
}

func errIsDuplicate(err error) bool {
	return err != nil && (err == registry.ErrDuplicateApplication || unwrapIs(err, registry.ErrDuplicateApplication))
}

func unwrapIs(err, target error) bool {
	for err != nil {
		if err == target {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// unregisterApplication implements unregister_application. Idempotent: an
// unknown id is not an error from the control surface's perspective.
func (s *Server) unregisterApplication(c *gin.Context) {
	id := c.Param("id")
	if err := s.Registry.Unregister(id); err != nil {
		c.JSON(http.StatusOK, gin.H{"exit_code": scheduler.ExcNotRegistered})
		return
	}
	s.Catalogues.Delete(id)
	c.JSON(http.StatusOK, gin.H{"exit_code": scheduler.Ok})
}

type goalGapRequest struct {
	Gap int8 `json:"gap"`
}

// setGoalGap implements set_goal_gap(app, i8).
func (s *Server) setGoalGap(c *gin.Context) {
	var req goalGapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	app, err := s.Registry.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"exit_code": scheduler.ExcNotRegistered})
		return
	}
	app.SetGoalGap(float64(req.Gap))
	c.JSON(http.StatusOK, gin.H{"exit_code": scheduler.Ok})
}

// constraintDTO is the wire shape of one catalogue.Constraint; Path is a
// string since respath.Path carries an unexported segment slice.
type constraintDTO struct {
	Path  string `json:"path"`
	Kind  string `json:"kind"`
	Value uint64 `json:"value"`
}

func toDTO(c catalogue.Constraint) constraintDTO {
	return constraintDTO{Path: c.Path.String(), Kind: string(c.Kind), Value: c.Value}
}

func fromDTO(d constraintDTO) (catalogue.Constraint, error) {
	path, err := respath.Parse(d.Path)
	if err != nil {
		return catalogue.Constraint{}, err
	}
	return catalogue.Constraint{Path: path, Kind: catalogue.ConstraintKind(d.Kind), Value: d.Value}, nil
}

// setAWMConstraints implements set_awm_constraints(app, list[constraint]) as
// a JSON Patch (RFC 6902) applied to the working mode's current constraint
// list, so a caller can add or remove a single constraint without resending
// the whole set.
func (s *Server) setAWMConstraints(c *gin.Context) {
	cat, ok := s.Catalogues.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusOK, gin.H{"exit_code": scheduler.ExcNotRegistered})
		return
	}
	wm, ok := cat.Get(c.Param("wmID"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown working mode"})
		return
	}

	current := make([]constraintDTO, len(wm.Constraints))
	for i, cst := range wm.Constraints {
		current[i] = toDTO(cst)
	}
	currentJSON, err := json.Marshal(current)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	patchBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	patch, err := jsonpatch.DecodePatch(patchBody)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	patched, err := patch.Apply(currentJSON)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var dtos []constraintDTO
	if err := json.Unmarshal(patched, &dtos); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	constraints := make([]catalogue.Constraint, 0, len(dtos))
	for _, d := range dtos {
		cst, err := fromDTO(d)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		constraints = append(constraints, cst)
	}

	if err := cat.SetConstraints(c.Param("wmID"), constraints); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"exit_code": scheduler.Ok})
}

// clearAWMConstraints implements clear_awm_constraints(app).
func (s *Server) clearAWMConstraints(c *gin.Context) {
	cat, ok := s.Catalogues.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusOK, gin.H{"exit_code": scheduler.ExcNotRegistered})
		return
	}
	if err := cat.ClearConstraints(c.Param("wmID")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"exit_code": scheduler.Ok})
}

// requestSchedule implements request_schedule(): the one non-idempotent
// operation on the control surface.
func (s *Server) requestSchedule(c *gin.Context) {
	plan, code, err := s.Scheduler.RunCycle(c.Request.Context())
	if err != nil {
		klog.Errorf("api: cycle returned %s: %v", code, err)
		c.JSON(http.StatusOK, gin.H{"exit_code": code, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"exit_code": code, "plan": plan})
}

// currentAssignment implements current_assignment(app) -> (wm, binding) | none.
func (s *Server) currentAssignment(c *gin.Context) {
	app, err := s.Registry.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"exit_code": scheduler.ExcNotRegistered})
		return
	}
	wmID, binding, set := app.CurrentAssignment()
	if !set {
		c.JSON(http.StatusOK, gin.H{"exit_code": scheduler.Ok, "assigned": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"exit_code": scheduler.Ok,
		"assigned":  true,
		"wm":        wmID,
		"binding":   binding,
	})
}

// applicationStatus is one row of the /status listing.
type applicationStatus struct {
	ID       string `json:"id"`
	Priority uint16 `json:"priority"`
	State    string `json:"state"`
	GoalGap  int    `json:"goal_gap"`
	WM       string `json:"working_mode,omitempty"`
	Binding  uint64 `json:"binding,omitempty"`
}

// listApplications backs the "status" subcommand's application table: every
// registered application regardless of state, in id order.
func (s *Server) listApplications(c *gin.Context) {
	snaps := s.Registry.All()
	out := make([]applicationStatus, 0, len(snaps))
	for _, snap := range snaps {
		row := applicationStatus{
			ID:       snap.ID,
			Priority: snap.Priority,
			State:    string(snap.State),
			GoalGap:  int(snap.GoalGap),
		}
		if snap.AWMSet {
			row.WM = snap.WMID
			row.Binding = snap.Binding
		}
		out = append(out, row)
	}
	c.JSON(http.StatusOK, out)
}

// resourceRow is one node's total/available pair in the /resources listing.
type resourceRow struct {
	Path      string `json:"path"`
	Type      string `json:"type"`
	Total     uint64 `json:"total"`
	Available uint64 `json:"available"`
}

// listResources backs the "status" subcommand's resource table: every leaf
// node's total and between-cycle available quantity, grouped by type.
func (s *Server) listResources(c *gin.Context) {
	var out []resourceRow
	for _, t := range s.Accountant.LeafTypes() {
		for _, path := range s.Accountant.DomainPaths(t) {
			out = append(out, resourceRow{
				Path:      path.String(),
				Type:      string(t),
				Total:     s.Accountant.QueryTotal(path),
				Available: s.Accountant.QueryAvailable(path, "", ""),
			})
		}
	}
	c.JSON(http.StatusOK, out)
}
