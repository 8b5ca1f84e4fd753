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

// Package api exposes the scheduler control surface over HTTP (§6):
// register/unregister, goal-gap and constraint updates, manual cycle
// triggers and assignment lookups.
package api

import (
	"sync"

	"github.com/pietruzzo/barberque-allocation-sub003/pkg/catalogue"
)

// CatalogueStore holds one Catalogue per registered application and
// satisfies pkg/scheduler's Catalogues lookup.
type CatalogueStore struct {
	mu   sync.RWMutex
	byID map[string]*catalogue.Catalogue
}

func NewCatalogueStore() *CatalogueStore {
	return &CatalogueStore{byID: make(map[string]*catalogue.Catalogue)}
}

func (s *CatalogueStore) Get(appID string) (*catalogue.Catalogue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[appID]
	return c, ok
}

func (s *CatalogueStore) Put(appID string, cat *catalogue.Catalogue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[appID] = cat
}

func (s *CatalogueStore) Delete(appID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, appID)
}
