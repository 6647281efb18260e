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

// Package translator supervises the whole edge agent: it fetches identity
// and configuration, constructs one driver per declared southbound
// connection and one device actor per declared device, wires driver events
// to devices and Sparkplug command events back to them, and orchestrates
// graceful shutdown.
package translator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carverauto/edgebridge/pkg/config"
	"github.com/carverauto/edgebridge/pkg/device"
	"github.com/carverauto/edgebridge/pkg/driver"
	"github.com/carverauto/edgebridge/pkg/logger"
	"github.com/carverauto/edgebridge/pkg/metricstore"
	"github.com/carverauto/edgebridge/pkg/models"
	"github.com/carverauto/edgebridge/pkg/sparkplug"
)

// ApplicationUUID keys this application's config documents in the config
// service.
const ApplicationUUID = "aac6f843-cfee-4683-b121-6943bfdf9173"

const defaultRetryInterval = 10 * time.Second

// Config assembles a Translator from its external collaborators.
type Config struct {
	Identity      config.Identity
	Remote        config.Remote
	NodeFactory   sparkplug.NodeFactory
	Files         device.ConfigStore
	Clock         device.Clock
	RetryInterval time.Duration
	Logger        logger.Logger
}

// connection pairs one driver with the devices declared on it.
type connection struct {
	name    string
	drv     driver.Driver
	devices []*device.Device
}

// Translator owns every connection and device; devices hold non-owning
// references back to their driver and the Sparkplug node.
type Translator struct {
	identity      config.Identity
	remote        config.Remote
	nodeFactory   sparkplug.NodeFactory
	files         device.ConfigStore
	clock         device.Clock
	retryInterval time.Duration
	logger        logger.Logger

	node        sparkplug.Node
	connections []*connection
	devices     map[string]*device.Device

	started  bool
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(cfg Config) (*Translator, error) {
	if cfg.NodeFactory == nil {
		return nil, errNodeFactoryRequired
	}

	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = defaultRetryInterval
	}

	return &Translator{
		identity:      cfg.Identity,
		remote:        cfg.Remote,
		nodeFactory:   cfg.NodeFactory,
		files:         cfg.Files,
		clock:         cfg.Clock,
		retryInterval: interval,
		logger:        cfg.Logger,
		devices:       make(map[string]*device.Device),
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}, nil
}

// Stopped closes once Stop has finished.
func (t *Translator) Stopped() <-chan struct{} {
	return t.stopped
}

// Start brings the agent up: identity, config, node, drivers, devices,
// wiring. It blocks in retry loops until identity and a valid config are
// available, so callers cancel via ctx to abandon startup.
func (t *Translator) Start(ctx context.Context) error {
	if t.started {
		return ErrAlreadyStarted
	}

	t.started = true

	principal, err := retryUntil(ctx, t.logger, "identity", t.retryInterval,
		func(ctx context.Context) (*config.Principal, bool, error) {
			p, err := t.identity.FindPrincipal(ctx)
			if err != nil {
				return nil, false, err
			}

			return p, p != nil && p.UUID != "", nil
		})
	if err != nil {
		return fmt.Errorf("identity lookup: %w", err)
	}

	agentCfg, err := retryUntil(ctx, t.logger, "config", t.retryInterval,
		func(ctx context.Context) (*models.AgentConfig, bool, error) {
			cfg, err := t.remote.GetConfig(ctx, ApplicationUUID, principal.UUID)
			if err != nil {
				return nil, false, err
			}

			if cfg == nil {
				return nil, false, nil
			}

			if err := cfg.Validate(); err != nil {
				return nil, false, err
			}

			return cfg, true, nil
		})
	if err != nil {
		return fmt.Errorf("config fetch: %w", err)
	}

	node, err := t.nodeFactory(sparkplug.Identity{
		UUID:      principal.UUID,
		Sparkplug: principal.Sparkplug,
	}, agentCfg.Sparkplug)
	if err != nil {
		return fmt.Errorf("sparkplug node: %w", err)
	}

	t.node = node

	if err := t.buildConnections(config.Rehash(agentCfg)); err != nil {
		t.Stop()
		return err
	}

	for _, conn := range t.connections {
		t.wg.Add(1)

		go t.fanOut(conn)
	}

	t.wg.Add(1)

	go t.nodeEvents()

	for _, conn := range t.connections {
		if err := conn.drv.Open(ctx); err != nil {
			t.logger.Error().Err(err).
				Str("connection", conn.name).
				Msg("Failed to open connection")
		}
	}

	t.logger.Info().
		Int("connections", len(t.connections)).
		Int("devices", len(t.devices)).
		Msg("Translator started")

	return nil
}

// buildConnections constructs drivers and device actors from the rehashed
// config. An unknown connection type is skipped; a driver constructor
// failure aborts the whole start.
func (t *Translator) buildConnections(specs []models.ConnectionSpec) error {
	for i := range specs {
		spec := &specs[i]

		entry, ok := driver.Lookup(spec.ConnType)
		if !ok {
			t.logger.Error().Err(driver.ErrUnknownConnType).
				Str("connection", spec.Name).
				Str("conn_type", spec.ConnType).
				Msg("Skipping connection")

			continue
		}

		drv, err := entry.New(spec.Details[entry.DetailsKey], t.logger)
		if err != nil {
			return fmt.Errorf("connection %q (%s): %w", spec.Name, spec.ConnType, err)
		}

		conn := &connection{name: spec.Name, drv: drv}

		for j := range spec.Devices {
			devSpec := &spec.Devices[j]

			dev := device.New(device.Config{
				DeviceID:  devSpec.DeviceID,
				ConnName:  spec.Name,
				Driver:    drv,
				Node:      t.node,
				Store:     metricstore.New(devSpec.Metrics...),
				Format:    devSpec.PayloadFormat,
				Delimiter: devSpec.Delimiter,
				PollInt:   devSpec.PollInt,
				Clock:     t.clock,
				Conf:      t.files,
				Logger:    t.logger,
			})

			dev.Start()

			conn.devices = append(conn.devices, dev)
			t.devices[devSpec.DeviceID] = dev
		}

		t.connections = append(t.connections, conn)
	}

	return nil
}

// fanOut dispatches one connection's driver events to its devices.
func (t *Translator) fanOut(conn *connection) {
	defer t.wg.Done()

	for {
		select {
		case <-t.done:
			return
		case ev, ok := <-conn.drv.Events():
			if !ok {
				return
			}

			switch ev.Kind {
			case driver.EventOpen:
				for _, dev := range conn.devices {
					dev.DeviceConnected()
				}
			case driver.EventClose:
				for _, dev := range conn.devices {
					dev.DeviceDisconnected()
				}
			case driver.EventData:
				for _, dev := range conn.devices {
					dev.HandleData(ev.Data, ev.ParseVals)
				}
			case driver.EventError:
				t.logger.Error().Err(ev.Err).
					Str("connection", conn.name).
					Msg("Driver error")
			}
		}
	}
}

// nodeEvents routes Sparkplug node events to devices.
func (t *Translator) nodeEvents() {
	defer t.wg.Done()

	for {
		select {
		case <-t.done:
			return
		case ev, ok := <-t.node.Events():
			if !ok {
				return
			}

			switch ev.Kind {
			case sparkplug.EventCommand:
				dev, ok := t.devices[ev.DeviceID]
				if !ok {
					t.logger.Warn().
						Str("device_id", ev.DeviceID).
						Msg("Command for unknown device, skipping")

					continue
				}

				dev.HandleCommand(ev.Payload)
			case sparkplug.EventBirthRequest:
				if dev, ok := t.devices[ev.DeviceID]; ok {
					dev.RequestBirth()
				}
			case sparkplug.EventBirthRequestAll:
				for _, dev := range t.devices {
					dev.RequestBirth()
				}
			case sparkplug.EventStop:
				t.logger.Info().Msg("Stop requested by Sparkplug node")

				go t.Stop()

				return
			}
		}
	}
}

// Stop tears the agent down: devices first (cancelling their watchdogs),
// then connections, then the node. Safe to call repeatedly.
func (t *Translator) Stop() {
	t.stopOnce.Do(func() {
		close(t.done)

		for _, dev := range t.devices {
			dev.Stop()
		}

		for _, conn := range t.connections {
			if err := conn.drv.Close(); err != nil {
				t.logger.Error().Err(err).
					Str("connection", conn.name).
					Msg("Failed to close connection")
			}
		}

		if t.node != nil {
			if err := t.node.Stop(); err != nil {
				t.logger.Error().Err(err).Msg("Failed to stop Sparkplug node")
			}
		}

		t.wg.Wait()
		close(t.stopped)

		t.logger.Info().Msg("Translator stopped")
	})
}
