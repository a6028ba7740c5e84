package brokerage

import (
	"testing"
)

func TestJsonObjectWriter(t *testing.T) {
	t.Run("empty object", func(t *testing.T) {
		var w jsonObjectWriter
		got, err := w.MarshalJSON()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := "{}"; string(got) != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("keeps insertion order", func(t *testing.T) {
		var w jsonObjectWriter
		w.Append("z", 1)
		w.Append("a", "hello")
		got, err := w.MarshalJSON()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := `{"z":1,"a":"hello"}`; string(got) != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("optional skips zero values", func(t *testing.T) {
		var w jsonObjectWriter
		w.Append("a", 0)
		w.Optional("b", "")
		w.Optional("c", 0)
		w.Optional("broker", NoBroker)
		w.Optional("d", "hello")
		w.Optional("e", SomeBroker("kite"))
		got, err := w.MarshalJSON()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := `{"a":0,"d":"hello","e":"kite"}`; string(got) != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("errors are sticky", func(t *testing.T) {
		var w jsonObjectWriter
		w.Append("f", func() {})
		w.Append("a", 1)
		if _, err := w.MarshalJSON(); err == nil {
			t.Error("expected an error for an unsupported value")
		}
	})
}
