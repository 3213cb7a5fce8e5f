package kv

import (
	"encoding/json"
	"testing"
)

func TestPairMarshalsAsArray(t *testing.T) {
	pair := Pair[int]{Key: "a.go", Value: 3}
	data, err := json.Marshal(pair)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `["a.go",3]` {
		t.Errorf("encoded pair = %s", data)
	}
}

func TestPairRoundTrip(t *testing.T) {
	type record struct {
		Role string `json:"role"`
	}
	in := []Pair[record]{
		{Key: "user-b", Value: record{Role: "editor"}},
		{Key: "user-a", Value: record{Role: "viewer"}},
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out []Pair[record]
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("pairs = %d, want 2", len(out))
	}
	// order survives the trip
	if out[0].Key != "user-b" || out[0].Value.Role != "editor" {
		t.Errorf("pair[0] = %+v", out[0])
	}
	if out[1].Key != "user-a" || out[1].Value.Role != "viewer" {
		t.Errorf("pair[1] = %+v", out[1])
	}
}

func TestPairsFollowsKeyOrder(t *testing.T) {
	m := map[string][]string{
		"b.go": {"t2"},
		"a.go": {"t1", "t3"},
	}
	pairs := Pairs(m, []string{"b.go", "gone.go", "a.go"})
	if len(pairs) != 2 {
		t.Fatalf("pairs = %d, want 2", len(pairs))
	}
	if pairs[0].Key != "b.go" || len(pairs[0].Value) != 1 {
		t.Errorf("pair[0] = %+v", pairs[0])
	}
	// keys absent from the map are skipped, not emitted empty
	if pairs[1].Key != "a.go" || len(pairs[1].Value) != 2 {
		t.Errorf("pair[1] = %+v", pairs[1])
	}
}

func TestPairUnmarshalRejectsBadShapes(t *testing.T) {
	var pair Pair[string]
	for _, bad := range []string{`["only-key"]`, `{"k":"v"}`, `"k"`} {
		if err := json.Unmarshal([]byte(bad), &pair); err == nil {
			t.Errorf("Unmarshal(%s) succeeded", bad)
		}
	}
}
