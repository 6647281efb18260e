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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/carverauto/edgebridge/pkg/config"
	"github.com/carverauto/edgebridge/pkg/logger"
	"github.com/carverauto/edgebridge/pkg/models"
	"github.com/carverauto/edgebridge/pkg/sparkplug"
	"github.com/carverauto/edgebridge/pkg/translator"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", config.DefaultFilePath, "Path to local config file")
	logLevel := flag.String("log-level", "info", "Log level (trace|debug|info|warn|error)")
	nodeUUID := flag.String("node-uuid", os.Getenv("EDGEBRIDGE_NODE_UUID"), "This node's UUID")
	sparkplugID := flag.String("sparkplug-id", os.Getenv("EDGEBRIDGE_SPARKPLUG_ID"), "Sparkplug group/node identifier")
	flag.Parse()

	lg, err := logger.New(&logger.Config{Level: *logLevel, Output: "stdout"})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	files := config.NewFileStore(*configPath, lg)

	trans, err := translator.New(translator.Config{
		Identity:    &staticIdentity{uuid: *nodeUUID, sparkplug: *sparkplugID},
		Remote:      &fileRemote{files: files},
		NodeFactory: newLoggingNode(lg),
		Files:       files,
		Logger:      lg,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sig
		lg.Info().Msg("Shutdown signal received")
		cancel()
		trans.Stop()
	}()

	if err := trans.Start(ctx); err != nil {
		return fmt.Errorf("translator start: %w", err)
	}

	<-trans.Stopped()

	return nil
}

// staticIdentity serves the identity handed in on the command line.
type staticIdentity struct {
	uuid      string
	sparkplug string
}

func (s *staticIdentity) FindPrincipal(_ context.Context) (*config.Principal, error) {
	if s.uuid == "" {
		return nil, nil
	}

	return &config.Principal{UUID: s.uuid, Sparkplug: s.sparkplug}, nil
}

// fileRemote serves the locally persisted config document in place of the
// remote config service.
type fileRemote struct {
	files *config.FileStore
}

func (f *fileRemote) GetConfig(_ context.Context, _, _ string) (*models.AgentConfig, error) {
	return f.files.Load()
}

// newLoggingNode builds a stand-in Sparkplug node that logs every frame.
// Deployments link the broker-backed node here instead.
func newLoggingNode(lg logger.Logger) sparkplug.NodeFactory {
	return func(identity sparkplug.Identity, _ []byte) (sparkplug.Node, error) {
		return &loggingNode{
			logger: lg,
			id:     identity,
			events: make(chan sparkplug.Event),
		}, nil
	}
}

type loggingNode struct {
	logger logger.Logger
	id     sparkplug.Identity
	events chan sparkplug.Event
}

func (n *loggingNode) PublishDeviceBirth(deviceID string, metrics []*models.Metric) error {
	for i, m := range metrics {
		alias := uint64(i + 1)
		m.Alias = &alias
	}

	n.logger.Info().
		Str("device_id", deviceID).
		Int("metrics", len(metrics)).
		Msg("DBIRTH")

	return nil
}

func (n *loggingNode) PublishDeviceData(deviceID string, metrics []*models.Metric) error {
	n.logger.Info().
		Str("device_id", deviceID).
		Int("metrics", len(metrics)).
		Msg("DDATA")

	return nil
}

func (n *loggingNode) PublishDeviceDeath(deviceID string) error {
	n.logger.Info().Str("device_id", deviceID).Msg("DDEATH")
	return nil
}

func (n *loggingNode) Events() <-chan sparkplug.Event {
	return n.events
}

func (n *loggingNode) Stop() error {
	close(n.events)
	return nil
}
