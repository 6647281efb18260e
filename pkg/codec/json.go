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

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/carverauto/edgebridge/pkg/models"
)

// jsonDocument parses raw into a JSON value tree. Already-decoded Go values
// (maps, slices) pass through untouched.
func jsonDocument(raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case string:
		return oj.ParseString(v)
	case []byte:
		return oj.Parse(v)
	default:
		return raw, nil
	}
}

// parseJSON applies the metric's JSONPath to the payload and coerces the
// result.
func parseJSON(raw interface{}, m *models.Metric) (interface{}, error) {
	doc, err := jsonDocument(raw)
	if err != nil {
		return nil, err
	}

	selected := doc

	if path := m.Properties.Path; path != "" {
		expr, perr := jp.ParseString(path)
		if perr != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPath, perr)
		}

		results := expr.Get(doc)
		if len(results) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}

		selected = results[0]
		if len(results) > 1 {
			selected = results
		}
	}

	if m.Type == models.TypeDataSet {
		return projectDataSet(selected, m)
	}

	return Coerce(selected, m.Type)
}

// projectDataSet treats the payload as row object(s) and projects them in the
// declared column order of the metric's current DataSet value.
func projectDataSet(selected interface{}, m *models.Metric) (interface{}, error) {
	schema, ok := m.Value.(*models.DataSet)
	if !ok || len(schema.Columns) == 0 {
		return nil, errDataSetNeedsSchema
	}

	var rawRows []interface{}

	switch v := selected.(type) {
	case []interface{}:
		rawRows = v
	default:
		rawRows = []interface{}{v}
	}

	out := &models.DataSet{
		Columns: schema.Columns,
		Types:   schema.Types,
		Rows:    make([][]interface{}, 0, len(rawRows)),
	}

	for _, rr := range rawRows {
		obj, ok := rr.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: dataSet row is %T", ErrPathNotFound, rr)
		}

		row := make([]interface{}, len(schema.Columns))

		for i, col := range schema.Columns {
			cell := obj[col]

			if i < len(schema.Types) {
				coerced, err := Coerce(cell, schema.Types[i])
				if err == nil {
					cell = coerced
				}
			}

			row[i] = cell
		}

		out.Rows = append(out.Rows, row)
	}

	return out, nil
}

// timestampExpr selects the payload-supplied timestamp, when present.
var timestampExpr = jp.MustParseString("$.timestamp")

// jsonTimestamp extracts $.timestamp from a JSON payload. The boolean is
// false when the payload has none.
func jsonTimestamp(raw interface{}) (int64, bool) {
	doc, err := jsonDocument(raw)
	if err != nil {
		return 0, false
	}

	results := timestampExpr.Get(doc)
	if len(results) == 0 {
		return 0, false
	}

	f, ok := toFloat(results[0])
	if !ok {
		return 0, false
	}

	return int64(f), true
}

// encodeJSON assembles one object from the metrics, nesting each value at the
// JSON pointer derived from its path ("$.a.b" and "a.b" both become /a/b).
func encodeJSON(metrics []*models.Metric) ([]byte, error) {
	root := make(map[string]interface{})

	for _, m := range metrics {
		segs := pointerSegments(m.Properties.Path)
		if len(segs) == 0 {
			segs = []string{m.Name}
		}

		node := root

		for _, seg := range segs[:len(segs)-1] {
			child, ok := node[seg].(map[string]interface{})
			if !ok {
				child = make(map[string]interface{})
				node[seg] = child
			}

			node = child
		}

		node[segs[len(segs)-1]] = m.Value
	}

	return []byte(oj.JSON(root)), nil
}

func pointerSegments(path string) []string {
	path = strings.TrimPrefix(path, "$")
	path = strings.TrimPrefix(path, ".")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		return nil
	}

	if strings.Contains(path, "/") {
		return strings.Split(path, "/")
	}

	return strings.Split(path, ".")
}
