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
	"context"

	"github.com/carverauto/edgebridge/pkg/models"
)

// Principal is what the identity service knows about this edge node.
type Principal struct {
	UUID      string `json:"uuid"`
	Sparkplug string `json:"sparkplug"`
}

// Identity looks up this node's principal. A nil principal with a nil error
// means the service answered but does not know the node yet; the caller
// retries.
type Identity interface {
	FindPrincipal(ctx context.Context) (*Principal, error)
}

// Remote fetches the edge-agent config document keyed by application and
// node UUID. A nil config with a nil error means no config is published yet.
type Remote interface {
	GetConfig(ctx context.Context, appUUID, nodeUUID string) (*models.AgentConfig, error)
}
