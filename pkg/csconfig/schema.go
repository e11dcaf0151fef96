// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package csconfig

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

func GenerateSettingsSchema() ([]byte, error) {
	settingsSchema := jsonschema.Reflect(&SettingsType{})
	barr, err := json.MarshalIndent(settingsSchema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings schema: %w", err)
	}
	return barr, nil
}
