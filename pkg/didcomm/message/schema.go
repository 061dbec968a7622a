/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package message

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Validate checks a message against a JSON schema document. Protocol
// tests use this to assert the shape of messages received from the agent
// under test.
func Validate(msg Message, schemaJSON string) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewGoLoader(map[string]interface{}(msg)),
	)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}

	if !result.Valid() {
		descs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			descs = append(descs, e.String())
		}

		return fmt.Errorf("message %q does not match schema:\n\t%s",
			msg.Type(), strings.Join(descs, "\n\t"))
	}

	return nil
}
