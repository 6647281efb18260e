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

// Package models holds the shared data model: metrics, wire datatypes,
// payload formats and the configuration document shapes.
package models

import "strings"

// DataType enumerates the Sparkplug wire datatypes a metric can carry.
type DataType string

const (
	TypeBoolean         DataType = "boolean"
	TypeInt8            DataType = "int8"
	TypeInt16           DataType = "int16"
	TypeInt32           DataType = "int32"
	TypeInt64           DataType = "int64"
	TypeUInt8           DataType = "uInt8"
	TypeUInt16          DataType = "uInt16"
	TypeUInt32          DataType = "uInt32"
	TypeUInt64          DataType = "uInt64"
	TypeFloat           DataType = "float"
	TypeDouble          DataType = "double"
	TypeDateTime        DataType = "dateTime"
	TypeString          DataType = "string"
	TypeText            DataType = "text"
	TypeUUID            DataType = "uuid"
	TypeBytes           DataType = "bytes"
	TypeFile            DataType = "file"
	TypeDataSet         DataType = "dataSet"
	TypeTemplate        DataType = "template"
	TypePropertySet     DataType = "propertySet"
	TypePropertySetList DataType = "propertySetList"
)

// Endianness of a value inside a fixed binary buffer. The numeric values
// follow the conventional byte-order notation.
type Endianness int

const (
	EndianBig    Endianness = 4321
	EndianLittle Endianness = 1234
	// EndianPDP is big-endian with a 16-bit word swap (byte order 3-4-1-2).
	EndianPDP Endianness = 3412
)

// PayloadFormat identifies how a southbound payload is encoded.
type PayloadFormat string

const (
	FormatDelimited        PayloadFormat = "delimited"
	FormatJSON             PayloadFormat = "JSON"
	FormatXML              PayloadFormat = "XML"
	FormatFixedBuffer      PayloadFormat = "buffer"
	FormatSerialisedBuffer PayloadFormat = "serialisedBuffer"
)

// NormalizeType strips a trailing BE/LE endianness suffix from a declared tag
// type and reports the endianness it implied. Types without a suffix default
// to big-endian.
func NormalizeType(declared string) (DataType, Endianness) {
	switch {
	case strings.HasSuffix(declared, "BE"):
		return DataType(strings.TrimSuffix(declared, "BE")), EndianBig
	case strings.HasSuffix(declared, "LE"):
		return DataType(strings.TrimSuffix(declared, "LE")), EndianLittle
	default:
		return DataType(declared), EndianBig
	}
}

// IsNumeric reports whether the type holds a scalar number.
func (t DataType) IsNumeric() bool {
	switch t {
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64,
		TypeUInt8, TypeUInt16, TypeUInt32, TypeUInt64,
		TypeFloat, TypeDouble, TypeDateTime:
		return true
	default:
		return false
	}
}
