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

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/carverauto/edgebridge/pkg/logger"
	"github.com/carverauto/edgebridge/pkg/models"
)

// DefaultFilePath is where the agent keeps its local copy of the config
// document.
const DefaultFilePath = "config/conf.json"

var errDeviceNotInFile = errors.New("device entry not found in config file")

// FileStore reads and selectively rewrites the local config file. Writes are
// serialised behind a mutex; the rewrite touches only the field it is asked
// to change so unknown keys in the document survive round-trips.
type FileStore struct {
	path   string
	logger logger.Logger

	mu sync.Mutex
}

func NewFileStore(path string, log logger.Logger) *FileStore {
	if path == "" {
		path = DefaultFilePath
	}

	return &FileStore{path: path, logger: log}
}

// Load parses the local config document.
func (f *FileStore) Load() (*models.AgentConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", f.path, err)
	}

	var cfg models.AgentConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", f.path, err)
	}

	return &cfg, nil
}

// Save replaces the local config document with the given one, creating the
// directory if needed.
func (f *FileStore) Save(doc []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if err := os.WriteFile(f.path, doc, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", f.path, err)
	}

	return nil
}

// SetDevicePollInt rewrites the pollInt of one device entry in place. The
// document is edited as a generic tree so every other key is preserved
// byte-for-byte in meaning, if not formatting.
func (f *FileStore) SetDevicePollInt(connName, deviceID string, pollIntMs int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", f.path, err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config %s: %w", f.path, err)
	}

	if !setPollInt(doc, connName, deviceID, pollIntMs) {
		return fmt.Errorf("%w: %s", errDeviceNotInFile, deviceID)
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.WriteFile(f.path, out, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", f.path, err)
	}

	f.logger.Info().
		Str("device_id", deviceID).
		Int64("poll_int_ms", pollIntMs).
		Msg("Persisted polling interval to config file")

	return nil
}

func setPollInt(doc map[string]interface{}, connName, deviceID string, pollIntMs int64) bool {
	conns, ok := doc["deviceConnections"].([]interface{})
	if !ok {
		return false
	}

	for _, rawConn := range conns {
		conn, ok := rawConn.(map[string]interface{})
		if !ok {
			continue
		}

		if connName != "" {
			if name, _ := conn["name"].(string); name != connName {
				continue
			}
		}

		devices, ok := conn["devices"].([]interface{})
		if !ok {
			continue
		}

		for _, rawDev := range devices {
			dev, ok := rawDev.(map[string]interface{})
			if !ok {
				continue
			}

			if id, _ := dev["deviceId"].(string); id == deviceID {
				dev["pollInt"] = pollIntMs
				return true
			}
		}
	}

	return false
}
