package kv

import (
	"encoding/json"
	"fmt"
)

// Pair is a [key, value] two-element JSON array. The persisted state layout
// encodes maps as ordered pair lists rather than JSON objects so that entry
// order survives a round trip.
type Pair[V any] struct {
	Key   string
	Value V
}

func (p Pair[V]) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Key, p.Value})
}

func (p *Pair[V]) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("pair: %w", err)
	}
	if err := json.Unmarshal(raw[0], &p.Key); err != nil {
		return fmt.Errorf("pair key: %w", err)
	}
	if err := json.Unmarshal(raw[1], &p.Value); err != nil {
		return fmt.Errorf("pair value: %w", err)
	}
	return nil
}

// Pairs converts a map to a pair list ordered by the given keys.
func Pairs[V any](m map[string]V, order []string) []Pair[V] {
	out := make([]Pair[V], 0, len(order))
	for _, k := range order {
		if v, ok := m[k]; ok {
			out = append(out, Pair[V]{Key: k, Value: v})
		}
	}
	return out
}
