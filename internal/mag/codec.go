// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mag

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Payload formats accepted by Encode and Decode.
const (
	FormatJSON = "json"
	FormatCBOR = "cbor"
)

// sampleEncMode uses integer keys and deterministic encoding.
var sampleEncMode cbor.EncMode

var sampleDecMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	sampleEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create sample CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	sampleDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create sample CBOR decoder mode: %v", err))
	}
}

// Encode serializes a sample in the given format.
func Encode(format string, s Sample) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.Marshal(s)
	case FormatCBOR:
		return sampleEncMode.Marshal(s)
	default:
		return nil, fmt.Errorf("mag: unknown payload format %q", format)
	}
}

// Decode parses a payload. Subscribers do not know the producer's format, so
// a payload starting with '{' is taken as JSON and anything else as CBOR.
func Decode(data []byte) (Sample, error) {
	var s Sample
	if len(data) == 0 {
		return s, fmt.Errorf("mag: empty payload")
	}
	if data[0] == '{' {
		if err := json.Unmarshal(data, &s); err != nil {
			return Sample{}, fmt.Errorf("mag: decode json: %w", err)
		}
		return s, nil
	}
	if err := sampleDecMode.Unmarshal(data, &s); err != nil {
		return Sample{}, fmt.Errorf("mag: decode cbor: %w", err)
	}
	return s, nil
}
