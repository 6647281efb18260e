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
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/carverauto/edgebridge/pkg/logger"
	"github.com/carverauto/edgebridge/pkg/models"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishQoS     = 1
)

// MQTT subscribes to device topics and pushes every received message as a
// raw payload keyed by topic. A metric's address is its topic; the message
// body goes through the codec layer.
type MQTT struct {
	base
	details models.MQTTConnDetails
	client  mqtt.Client
}

func NewMQTT(details json.RawMessage, log logger.Logger) (Driver, error) {
	var d models.MQTTConnDetails
	if err := json.Unmarshal(details, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetailsRequired, err)
	}

	if d.Host == "" {
		return nil, fmt.Errorf("%w: host", ErrDetailsRequired)
	}

	m := &MQTT{base: newBase(log), details: d}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.brokerURL())
	opts.SetClientID(m.clientID())
	opts.SetCleanSession(d.CleanSession)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetAutoReconnect(true)

	if d.Username != "" {
		opts.SetUsername(d.Username)
		opts.SetPassword(d.Password)
	}

	if tlsConfig, err := m.tlsConfig(); err != nil {
		return nil, err
	} else if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(mqtt.Client) {
		m.logger.Info().Str("broker", m.brokerURL()).Msg("MQTT connection up")
		m.emitOpen()
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		m.logger.Warn().Err(err).Msg("MQTT connection lost")
		m.emitClose()
	})

	m.client = mqtt.NewClient(opts)

	return m, nil
}

func (m *MQTT) brokerURL() string {
	protocol := m.details.Protocol
	if protocol == "" {
		protocol = "tcp"
	}

	return fmt.Sprintf("%s://%s:%d", protocol, m.details.Host, m.details.Port)
}

func (m *MQTT) clientID() string {
	if m.details.ClientID != "" {
		return m.details.ClientID
	}

	return "edgebridge-" + uuid.NewString()
}

func (m *MQTT) tlsConfig() (*tls.Config, error) {
	if m.details.CACert == "" && m.details.ClientCert == "" {
		return nil, nil
	}

	config := &tls.Config{MinVersion: tls.VersionTLS12}

	if m.details.CACert != "" {
		caCert, err := os.ReadFile(m.details.CACert)
		if err != nil {
			return nil, fmt.Errorf("%w: read CA certificate: %v", ErrDetailsRequired, err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("%w: parse CA certificate", ErrDetailsRequired)
		}

		config.RootCAs = pool
	}

	if m.details.ClientCert != "" && m.details.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(m.details.ClientCert, m.details.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("%w: load client certificate: %v", ErrDetailsRequired, err)
		}

		config.Certificates = []tls.Certificate{cert}
	}

	return config, nil
}

func (m *MQTT) Open(_ context.Context) error {
	token := m.client.Connect()
	if token.WaitTimeout(mqttConnectTimeout) && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}

	return nil
}

func (m *MQTT) Close() error {
	m.shutdown(func() { m.client.Disconnect(250) })
	return nil
}

// ReadMetrics cannot solicit a retained read for arbitrary topics; the broker
// pushes instead. Present for contract completeness.
func (m *MQTT) ReadMetrics(
	_ context.Context, _ []*models.Metric, _ models.PayloadFormat, _ string) error {
	return nil
}

func (m *MQTT) WriteMetrics(
	_ context.Context, metrics []*models.Metric, format models.PayloadFormat, delimiter string) error {
	byAddr := make(map[string][]*models.Metric)
	for _, metric := range metrics {
		byAddr[metric.Properties.Address] = append(byAddr[metric.Properties.Address], metric)
	}

	for topic, group := range byAddr {
		payload, err := m.codec.Encode(group, format, delimiter)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrWriteFailed, topic, err)
		}

		token := m.client.Publish(topic, mqttPublishQoS, false, payload)
		if token.WaitTimeout(mqttConnectTimeout) && token.Error() != nil {
			return fmt.Errorf("%w: %s: %w", ErrWriteFailed, topic, token.Error())
		}
	}

	return nil
}

// StartSubscription subscribes the device's topics; the broker pushes from
// here on and the interval is unused.
func (m *MQTT) StartSubscription(_ context.Context, sub Subscription) error {
	if _, err := m.registerSub(sub.DeviceID); err != nil {
		return err
	}

	for _, topic := range getAddresses(sub.Metrics) {
		token := m.client.Subscribe(topic, mqttPublishQoS, func(_ mqtt.Client, msg mqtt.Message) {
			m.emitData(map[string]interface{}{msg.Topic(): msg.Payload()}, true)
		})

		if token.WaitTimeout(mqttConnectTimeout) && token.Error() != nil {
			return fmt.Errorf("mqtt subscribe %s: %w", topic, token.Error())
		}
	}

	return nil
}
