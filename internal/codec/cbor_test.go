package codec

import (
	"bytes"
	"testing"
	"time"
)

type sample struct {
	Name  string
	Start time.Time
	Attrs map[string]any
}

func TestMarshal_Deterministic(t *testing.T) {
	a := map[string]any{"b": 2, "a": 1, "c": "three"}
	b := map[string]any{"c": "three", "a": 1, "b": 2}

	encA, err := Marshal(a)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	for i := 0; i < 10; i++ {
		encB, err := Marshal(b)
		if err != nil {
			t.Fatalf("Marshal() error: %v", err)
		}
		if !bytes.Equal(encA, encB) {
			t.Fatalf("encodings differ:\n%x\n%x", encA, encB)
		}
	}
}

func TestSize(t *testing.T) {
	v := sample{
		Name:  "GET /api/users",
		Start: time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC),
		Attrs: map[string]any{"http.method": "GET", "http.status_code": 200},
	}

	data, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	size, err := Size(v)
	if err != nil {
		t.Fatalf("Size() error: %v", err)
	}
	if size != len(data) {
		t.Errorf("Size() = %d, want %d", size, len(data))
	}

	bigger := v
	bigger.Attrs = map[string]any{"http.method": "GET", "http.status_code": 200, "http.url": "https://api.example.com/api/users"}
	if s, _ := Size(bigger); s <= size {
		t.Errorf("Size() with more attributes = %d, want > %d", s, size)
	}
}

func TestUnmarshal_StringKeyedMaps(t *testing.T) {
	data, err := Marshal(map[string]any{"outer": map[string]any{"inner": "x"}})
	if err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	if err := Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	outer, ok := got["outer"].(map[string]any)
	if !ok {
		t.Fatalf("outer = %T, want map[string]any", got["outer"])
	}
	if outer["inner"] != "x" {
		t.Errorf("inner = %v, want x", outer["inner"])
	}
}

func TestSize_Unsupported(t *testing.T) {
	if _, err := Size(make(chan int)); err == nil {
		t.Error("Size(chan) expected error")
	}
}
