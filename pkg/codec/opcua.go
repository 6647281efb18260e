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

// SecurityInvalid is returned for security modes and policies outside the
// fixed lookup tables.
const SecurityInvalid = "Invalid"

var securityModes = map[string]string{
	"None":           "None",
	"Sign":           "Sign",
	"SignAndEncrypt": "SignAndEncrypt",
}

var securityPolicies = map[string]string{
	"None":                  "None",
	"Basic128Rsa15":         "Basic128Rsa15",
	"Basic256":              "Basic256",
	"Basic256Sha256":        "Basic256Sha256",
	"Aes128_Sha256_RsaOaep": "Aes128_Sha256_RsaOaep",
	"Aes256_Sha256_RsaPss":  "Aes256_Sha256_RsaPss",
}

// OPCSecurityMode maps a configured OPC UA message security mode name to its
// canonical form.
func OPCSecurityMode(name string) string {
	if mode, ok := securityModes[name]; ok {
		return mode
	}

	return SecurityInvalid
}

// OPCSecurityPolicy maps a configured OPC UA security policy name to its
// canonical form.
func OPCSecurityPolicy(name string) string {
	if policy, ok := securityPolicies[name]; ok {
		return policy
	}

	return SecurityInvalid
}
