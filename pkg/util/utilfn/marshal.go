// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package utilfn

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/mitchellh/mapstructure"
)

// DoMapStructure decodes a generic map onto a struct using its json tags
func DoMapStructure(out any, input any) error {
	dconfig := &mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(dconfig)
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// ReadJsonMap reads a json object file; a missing file is an empty map
func ReadJsonMap(fileName string) (map[string]any, error) {
	barr, err := os.ReadFile(fileName)
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	rtn := make(map[string]any)
	if len(bytes.TrimSpace(barr)) == 0 {
		return rtn, nil
	}
	if err := json.Unmarshal(barr, &rtn); err != nil {
		return nil, err
	}
	return rtn, nil
}

func WriteFileIfDifferent(fileName string, contents []byte) (bool, error) {
	oldContents, err := os.ReadFile(fileName)
	if err == nil && bytes.Equal(oldContents, contents) {
		return false, nil
	}
	err = os.WriteFile(fileName, contents, 0644)
	if err != nil {
		return false, err
	}
	return true, nil
}
