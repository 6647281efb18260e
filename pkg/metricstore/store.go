/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package metricstore holds a device's ordered metric sequence plus the
// lookup indices the translation engine needs: by name, by alias, by address
// and by (address, path).
package metricstore

import (
	"sync"
	"time"

	"github.com/carverauto/edgebridge/pkg/models"
)

// Store is safe for concurrent use. Setters update value, timestamp and
// isNull together under one lock acquisition.
type Store struct {
	mu         sync.RWMutex
	metrics    []*models.Metric
	byName     map[string]*models.Metric
	byAlias    map[uint64]*models.Metric
	byAddress  map[string][]*models.Metric
	byAddrPath map[string]map[string]*models.Metric
}

// New creates a store over the given metrics. The slice order is preserved.
func New(metrics ...*models.Metric) *Store {
	s := &Store{}
	s.Add(metrics)

	return s
}

// Add appends metrics and rebuilds all indices.
func (s *Store) Add(metrics []*models.Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics = append(s.metrics, metrics...)
	s.reindex()
}

// reindex rebuilds every index from the ordered sequence. Caller holds mu.
func (s *Store) reindex() {
	s.byName = make(map[string]*models.Metric, len(s.metrics))
	s.byAlias = make(map[uint64]*models.Metric)
	s.byAddress = make(map[string][]*models.Metric)
	s.byAddrPath = make(map[string]map[string]*models.Metric)

	for _, m := range s.metrics {
		s.byName[m.Name] = m

		if m.Alias != nil {
			s.byAlias[*m.Alias] = m
		}

		if !m.Properties.IsGet() || m.Properties.Address == "" {
			continue
		}

		addr := m.Properties.Address
		s.byAddress[addr] = append(s.byAddress[addr], m)

		paths, ok := s.byAddrPath[addr]
		if !ok {
			paths = make(map[string]*models.Metric)
			s.byAddrPath[addr] = paths
		}

		paths[m.Properties.Path] = m
	}
}

// Len returns the number of metrics held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.metrics)
}

// Array returns the ordered view of the metrics.
func (s *Store) Array() []*models.Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Metric, len(s.metrics))
	copy(out, s.metrics)

	return out
}

// Addresses returns the distinct addresses of GET metrics, taken from the
// (address, path) index.
func (s *Store) Addresses() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.byAddrPath))
	for addr := range s.byAddrPath {
		out = append(out, addr)
	}

	return out
}

// SetAlias assigns an alias to the metric at position i and indexes it.
func (s *Store) SetAlias(i int, alias uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.metrics) {
		return
	}

	m := s.metrics[i]
	m.Alias = &alias
	s.byAlias[alias] = m
}

// ReindexAliases refreshes the alias index after an external collaborator
// (the Sparkplug node at BIRTH) assigned aliases in place.
func (s *Store) ReindexAliases() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byAlias = make(map[uint64]*models.Metric)

	for _, m := range s.metrics {
		if m.Alias != nil {
			s.byAlias[*m.Alias] = m
		}
	}
}

// GetByName returns the metric with the given name, or nil.
func (s *Store) GetByName(name string) *models.Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.byName[name]
}

// GetByAlias returns the metric with the given alias, or nil.
func (s *Store) GetByAlias(alias uint64) *models.Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.byAlias[alias]
}

// GetByAddress returns all GET metrics registered under an address.
func (s *Store) GetByAddress(addr string) []*models.Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.byAddress[addr]
}

// PathsForAddr returns the paths registered under an address.
func (s *Store) PathsForAddr(addr string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := s.byAddrPath[addr]
	out := make([]string, 0, len(paths))

	for p := range paths {
		out = append(out, p)
	}

	return out
}

// GetByAddrPath returns the single metric at (address, path), or nil.
func (s *Store) GetByAddrPath(addr, path string) *models.Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.byAddrPath[addr][path]
}

// SetValueByName updates value, timestamp and isNull atomically and returns
// the mutated metric, or nil if the name is unknown. A zero timestamp means
// "now".
func (s *Store) SetValueByName(name string, value interface{}, timestamp int64) *models.Metric {
	s.mu.Lock()
	defer s.mu.Unlock()

	return setValue(s.byName[name], value, timestamp)
}

// SetValueByAlias is SetValueByName keyed by alias.
func (s *Store) SetValueByAlias(alias uint64, value interface{}, timestamp int64) *models.Metric {
	s.mu.Lock()
	defer s.mu.Unlock()

	return setValue(s.byAlias[alias], value, timestamp)
}

// SetValueByAddrPath is SetValueByName keyed by (address, path).
func (s *Store) SetValueByAddrPath(addr, path string, value interface{}, timestamp int64) *models.Metric {
	s.mu.Lock()
	defer s.mu.Unlock()

	return setValue(s.byAddrPath[addr][path], value, timestamp)
}

func setValue(m *models.Metric, value interface{}, timestamp int64) *models.Metric {
	if m == nil {
		return nil
	}

	if timestamp == 0 {
		timestamp = time.Now().UnixMilli()
	}

	m.Value = value
	m.Timestamp = timestamp
	m.IsNull = value == nil

	return m
}
