package store

import (
	"encoding/json"
	"fmt"

	"github.com/fhchina/cci/internal/ir"
)

// marshalRoutineContract renders a contract as JSON TEXT for storage.
// Go's json.Marshal sorts map keys and struct fields deterministically,
// so equal contracts produce equal payloads.
func marshalRoutineContract(c *ir.RoutineContract) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal routine contract: %w", err)
	}
	return string(data), nil
}

// unmarshalRoutineContract parses a stored JSON payload.
// The condition trees decode through the tagged envelope in internal/ir.
func unmarshalRoutineContract(data string) (*ir.RoutineContract, error) {
	c := &ir.RoutineContract{}
	if err := json.Unmarshal([]byte(data), c); err != nil {
		return nil, fmt.Errorf("unmarshal routine contract: %w", err)
	}
	return c, nil
}

func marshalTypeContract(c *ir.TypeContract) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal type contract: %w", err)
	}
	return string(data), nil
}

func unmarshalTypeContract(data string) (*ir.TypeContract, error) {
	c := &ir.TypeContract{}
	if err := json.Unmarshal([]byte(data), c); err != nil {
		return nil, fmt.Errorf("unmarshal type contract: %w", err)
	}
	return c, nil
}
