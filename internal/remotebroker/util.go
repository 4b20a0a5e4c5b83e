// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package remotebroker

import (
	"encoding/base64"
	"encoding/json"
)

func b64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func decodeJSON(raw []byte, out any) error {
	return json.Unmarshal(raw, out)
}
