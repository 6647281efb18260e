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
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// s7Area selects the PLC memory area an address points into.
type s7Area int

const (
	s7AreaDB s7Area = iota
	s7AreaInput
	s7AreaOutput
	s7AreaMarker
)

// s7Item is a parsed node-7 style address: "DB5,X3.2", "DB5,REAL12",
// "IW0", "Q0.1", "MW4".
type s7Item struct {
	area   s7Area
	db     int
	byteOf int
	bitOf  int
	isBit  bool
	width  int
}

var (
	s7DBPattern   = regexp.MustCompile(`^DB(\d+),([A-Z]+)(\d+)(?:\.(\d+))?$`)
	s7AreaPattern = regexp.MustCompile(`^([IQM])([BWD]?)(\d+)(?:\.(\d+))?$`)
)

// s7TypeWidths maps node-7 type codes inside a DB address to byte widths.
var s7TypeWidths = map[string]int{
	"X":    1, // bit
	"B":    1,
	"C":    1,
	"W":    2,
	"I":    2,
	"INT":  2,
	"DW":   4,
	"DI":   4,
	"DINT": 4,
	"R":    4,
	"REAL": 4,
}

// parseS7Address parses the node-7 address syntax into an item the client
// can read.
func parseS7Address(addr string) (s7Item, error) {
	addr = strings.ToUpper(strings.TrimSpace(addr))

	if match := s7DBPattern.FindStringSubmatch(addr); match != nil {
		return parseS7DBAddress(addr, match)
	}

	if match := s7AreaPattern.FindStringSubmatch(addr); match != nil {
		return parseS7AreaAddress(addr, match)
	}

	return s7Item{}, fmt.Errorf("%w: %q", ErrBadAddress, addr)
}

func parseS7DBAddress(addr string, match []string) (s7Item, error) {
	item := s7Item{area: s7AreaDB}

	item.db, _ = strconv.Atoi(match[1])
	item.byteOf, _ = strconv.Atoi(match[3])

	width, ok := s7TypeWidths[match[2]]
	if !ok {
		return item, fmt.Errorf("%w: %q", ErrBadAddress, addr)
	}

	item.width = width

	if match[2] == "X" {
		if match[4] == "" {
			return item, fmt.Errorf("%w: bit address without bit: %q", ErrBadAddress, addr)
		}

		item.isBit = true
		item.bitOf, _ = strconv.Atoi(match[4])
	}

	return item, nil
}

func parseS7AreaAddress(addr string, match []string) (s7Item, error) {
	var item s7Item

	switch match[1] {
	case "I":
		item.area = s7AreaInput
	case "Q":
		item.area = s7AreaOutput
	case "M":
		item.area = s7AreaMarker
	}

	item.byteOf, _ = strconv.Atoi(match[3])

	switch match[2] {
	case "":
		// plain bit address like I0.2
		if match[4] == "" {
			return item, fmt.Errorf("%w: bit address without bit: %q", ErrBadAddress, addr)
		}

		item.isBit = true
		item.width = 1
		item.bitOf, _ = strconv.Atoi(match[4])
	case "B":
		item.width = 1
	case "W":
		item.width = 2
	case "D":
		item.width = 4
	}

	return item, nil
}
