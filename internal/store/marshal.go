package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/tactline/internal/engine"
	"github.com/roach88/tactline/internal/ir"
)

// marshalInputs converts tact inputs to canonical JSON TEXT for storage.
func marshalInputs(inputs []engine.TactInput) (string, error) {
	if inputs == nil {
		inputs = []engine.TactInput{}
	}
	data, err := ir.MarshalCanonical(inputs)
	if err != nil {
		return "", fmt.Errorf("marshal inputs: %w", err)
	}
	return string(data), nil
}

// unmarshalInputs parses stored inputs. Numbers decode as json.Number so
// integers keep their exact value; ir.NewValue accepts json.Number.
func unmarshalInputs(data string) ([]engine.TactInput, error) {
	var inputs []engine.TactInput
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	if err := dec.Decode(&inputs); err != nil {
		return nil, fmt.Errorf("unmarshal inputs: %w", err)
	}
	if inputs == nil {
		inputs = []engine.TactInput{}
	}
	return inputs, nil
}

// marshalResult converts a tact result to canonical JSON TEXT and returns
// its content hash alongside.
func marshalResult(res *ir.TactResult) (text, hash string, err error) {
	data, err := ir.MarshalCanonical(res)
	if err != nil {
		return "", "", fmt.Errorf("marshal result: %w", err)
	}
	hash, err = ir.TactResultHash(res)
	if err != nil {
		return "", "", err
	}
	return string(data), hash, nil
}
