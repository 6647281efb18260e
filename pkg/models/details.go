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

package models

// Connection detail blocks, one per supported connection type. Each lives in
// the configuration document under its own key (the registry's DetailsKey).

type RESTConnDetails struct {
	BaseURL  string `json:"baseURL"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	TimeoutS int    `json:"timeout,omitempty"` // seconds
}

type MTConnectConnDetails struct {
	AgentURL string `json:"agentURL"`
	TimeoutS int    `json:"timeout,omitempty"`
}

type S7ConnDetails struct {
	Hostname string `json:"hostname"`
	Port     int    `json:"port"`
	Rack     int    `json:"rack"`
	Slot     int    `json:"slot"`
	TimeoutS int    `json:"timeout,omitempty"`
}

type OPCUAConnDetails struct {
	Endpoint       string `json:"endpoint"`
	SecurityMode   string `json:"securityMode"`
	SecurityPolicy string `json:"securityPolicy"`
	UseCredentials bool   `json:"useCredentials,omitempty"`
	Username       string `json:"username,omitempty"`
	Password       string `json:"password,omitempty"`
}

type MQTTConnDetails struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	Protocol     string `json:"protocol,omitempty"` // mqtt, mqtts, ws, wss
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	ClientID     string `json:"clientId,omitempty"`
	CleanSession bool   `json:"cleanSession,omitempty"`
	CACert       string `json:"caCert,omitempty"`
	ClientCert   string `json:"clientCert,omitempty"`
	ClientKey    string `json:"clientKey,omitempty"`
}

type WebsocketConnDetails struct {
	URL string `json:"url"`
}

type UDPConnDetails struct {
	Port int `json:"port"`
}

type ASCIITCPConnDetails struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

type OpenProtocolConnDetails struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

type SNMPConnDetails struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Community string `json:"community"`
	Version   string `json:"version"` // 1, 2c
	TimeoutS  int    `json:"timeout,omitempty"`
}
