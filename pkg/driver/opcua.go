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

package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/monitor"
	"github.com/gopcua/opcua/ua"

	"github.com/carverauto/edgebridge/pkg/codec"
	"github.com/carverauto/edgebridge/pkg/logger"
	"github.com/carverauto/edgebridge/pkg/models"
)

const opcuaQueueSize = 64

// OPCUA reads, writes and monitors OPC UA nodes. A metric's address is its
// node id; values are decoded by the server stack, so data events bypass the
// codec layer. Subscriptions use server push, not polling.
type OPCUA struct {
	base
	details models.OPCUAConnDetails

	mu     sync.Mutex
	client *opcua.Client
}

func NewOPCUA(details json.RawMessage, log logger.Logger) (Driver, error) {
	var d models.OPCUAConnDetails
	if err := json.Unmarshal(details, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetailsRequired, err)
	}

	if d.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint", ErrDetailsRequired)
	}

	return &OPCUA{base: newBase(log), details: d}, nil
}

func (o *OPCUA) clientOptions() []opcua.Option {
	mode := codec.OPCSecurityMode(o.details.SecurityMode)
	policy := codec.OPCSecurityPolicy(o.details.SecurityPolicy)

	opts := []opcua.Option{
		opcua.SecurityModeString(mode),
		opcua.SecurityPolicy(policy),
	}

	if o.details.UseCredentials {
		opts = append(opts, opcua.AuthUsername(o.details.Username, o.details.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}

	return opts
}

func (o *OPCUA) Open(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.client != nil {
		return nil
	}

	client, err := opcua.NewClient(o.details.Endpoint, o.clientOptions()...)
	if err != nil {
		return fmt.Errorf("opcua client %s: %w", o.details.Endpoint, err)
	}

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("opcua connect %s: %w", o.details.Endpoint, err)
	}

	o.client = client

	o.emitOpen()

	return nil
}

func (o *OPCUA) Close() error {
	o.shutdown(func() {
		o.mu.Lock()
		defer o.mu.Unlock()

		if o.client != nil {
			_ = o.client.Close(context.Background())
			o.client = nil
		}
	})

	return nil
}

func (o *OPCUA) ReadMetrics(
	ctx context.Context, metrics []*models.Metric, _ models.PayloadFormat, _ string) error {
	o.mu.Lock()
	client := o.client
	o.mu.Unlock()

	if client == nil {
		return ErrNotOpen
	}

	addrs := getAddresses(metrics)
	nodes := make([]*ua.ReadValueID, 0, len(addrs))
	valid := make([]string, 0, len(addrs))

	for _, addr := range addrs {
		id, err := ua.ParseNodeID(addr)
		if err != nil {
			o.emitError(fmt.Errorf("%w: %s: %v", ErrBadAddress, addr, err))
			continue
		}

		nodes = append(nodes, &ua.ReadValueID{NodeID: id})
		valid = append(valid, addr)
	}

	if len(nodes) == 0 {
		return nil
	}

	resp, err := client.Read(ctx, &ua.ReadRequest{
		NodesToRead:        nodes,
		TimestampsToReturn: ua.TimestampsToReturnSource,
	})
	if err != nil {
		o.emitError(fmt.Errorf("%w: %v", ErrReadFailed, err))
		return nil
	}

	data := make(map[string]interface{})

	for i, result := range resp.Results {
		if result.Status != ua.StatusOK || result.Value == nil {
			o.emitError(fmt.Errorf("%w: %s: status %v", ErrReadFailed, valid[i], result.Status))
			continue
		}

		data[valid[i]] = result.Value.Value()
	}

	if len(data) > 0 {
		o.emitData(data, false)
	}

	return nil
}

func (o *OPCUA) WriteMetrics(
	ctx context.Context, metrics []*models.Metric, _ models.PayloadFormat, _ string) error {
	o.mu.Lock()
	client := o.client
	o.mu.Unlock()

	if client == nil {
		return ErrNotOpen
	}

	writes := make([]*ua.WriteValue, 0, len(metrics))

	for _, m := range metrics {
		id, err := ua.ParseNodeID(m.Properties.Address)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrBadAddress, m.Properties.Address, err)
		}

		variant, err := ua.NewVariant(m.Value)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrWriteFailed, m.Name, err)
		}

		writes = append(writes, &ua.WriteValue{
			NodeID:      id,
			AttributeID: ua.AttributeIDValue,
			Value: &ua.DataValue{
				EncodingMask: ua.DataValueValue,
				Value:        variant,
			},
		})
	}

	resp, err := client.Write(ctx, &ua.WriteRequest{NodesToWrite: writes})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	for i, status := range resp.Results {
		if status != ua.StatusOK {
			return fmt.Errorf("%w: %s: status %v", ErrWriteFailed, metrics[i].Name, status)
		}
	}

	return nil
}

// StartSubscription overrides the default polling with a server-push
// monitored-item subscription at the requested publish interval.
func (o *OPCUA) StartSubscription(ctx context.Context, sub Subscription) error {
	o.mu.Lock()
	client := o.client
	o.mu.Unlock()

	if client == nil {
		return ErrNotOpen
	}

	done, err := o.registerSub(sub.DeviceID)
	if err != nil {
		return err
	}

	nodeMonitor, err := monitor.NewNodeMonitor(client)
	if err != nil {
		return fmt.Errorf("opcua monitor: %w", err)
	}

	ch := make(chan *monitor.DataChangeMessage, opcuaQueueSize)

	subscription, err := nodeMonitor.ChanSubscribe(
		ctx,
		&opcua.SubscriptionParameters{Interval: sub.Interval},
		ch,
		getAddresses(sub.Metrics)...,
	)
	if err != nil {
		return fmt.Errorf("opcua subscribe: %w", err)
	}

	o.wg.Add(1)

	go func() {
		defer o.wg.Done()
		defer func() { _ = subscription.Unsubscribe(context.Background()) }()

		for {
			select {
			case <-done:
				return
			case msg := <-ch:
				if msg == nil {
					continue
				}

				if msg.Error != nil {
					o.emitError(msg.Error)
					continue
				}

				if msg.Value == nil {
					continue
				}

				o.emitData(map[string]interface{}{msg.NodeID.String(): msg.Value.Value()}, false)
			}
		}
	}()

	return nil
}
