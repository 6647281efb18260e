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

package codec

import (
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/carverauto/edgebridge/pkg/models"
)

// parseXML parses the payload into a DOM, applies the metric's XPath and
// coerces the selected node's text to the metric type.
func parseXML(raw interface{}, m *models.Metric) (interface{}, error) {
	var text string

	switch raw.(type) {
	case string, []byte:
		text = asString(raw)
	default:
		return nil, ErrNotStringPayload
	}

	doc, err := xmlquery.Parse(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("invalid XML payload: %w", err)
	}

	path := m.Properties.Path
	if path == "" {
		return Coerce(doc.InnerText(), m.Type)
	}

	node, err := xmlquery.Query(doc, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPath, err)
	}

	if node == nil {
		return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}

	return Coerce(node.InnerText(), m.Type)
}
