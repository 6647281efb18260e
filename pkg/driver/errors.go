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

import "errors"

var (
	ErrUnknownConnType    = errors.New("unknown connection type")
	ErrNotOpen            = errors.New("driver is not open")
	ErrAlreadySubscribed  = errors.New("device already has an active subscription")
	ErrWriteNotSupported  = errors.New("driver does not support writes")
	ErrBadAddress         = errors.New("invalid device address")
	ErrDetailsRequired    = errors.New("connection details missing or invalid")
	ErrReadFailed         = errors.New("device read failed")
	ErrWriteFailed        = errors.New("device write failed")
	errS7InputWrite       = errors.New("writes to S7 process-input registers are unreliable")
	errOpenProtocolNoAck  = errors.New("open protocol command not acknowledged")
	errSNMPUnsupportedVer = errors.New("unsupported SNMP version")
)
