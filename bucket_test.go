package brokerage

import (
	"encoding/json"
	"testing"
)

func TestBroker_NoneIsNotEmpty(t *testing.T) {
	none := Bucket{Client: "alice", Stock: "ACME", Broker: NoBroker}
	empty := Bucket{Client: "alice", Stock: "ACME", Broker: SomeBroker("")}
	if none == empty {
		t.Error("a bucket without broker collides with an empty broker id")
	}
	m := map[Bucket]int{none: 1, empty: 2}
	if len(m) != 2 {
		t.Errorf("got %d map entries, want 2", len(m))
	}
}

func TestBroker_JSON(t *testing.T) {
	tests := []struct {
		in   string
		want Broker
	}{
		{`"kite"`, SomeBroker("kite")},
		{`null`, NoBroker},
	}
	for _, tt := range tests {
		var b Broker
		if err := json.Unmarshal([]byte(tt.in), &b); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", tt.in, err)
		}
		if b != tt.want {
			t.Errorf("Unmarshal(%s) = %#v, want %#v", tt.in, b, tt.want)
		}
		out, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		if string(out) != tt.in {
			t.Errorf("Marshal() = %s, want %s", out, tt.in)
		}
	}
}

func TestParseBucket(t *testing.T) {
	tests := []struct {
		in      string
		want    Bucket
		wantErr bool
	}{
		{in: "alice/ACME/kite", want: Bucket{"alice", "ACME", SomeBroker("kite")}},
		{in: "alice/ACME/-", want: Bucket{"alice", "ACME", NoBroker}},
		{in: "alice/ACME", want: Bucket{"alice", "ACME", NoBroker}},
		{in: "alice", wantErr: true},
		{in: "/ACME/kite", wantErr: true},
		{in: "a/b/c/d", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBucket(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBucket() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got != tt.want {
				t.Errorf("ParseBucket() = %v, want %v", got, tt.want)
			}
			if got.String() != tt.want.String() {
				t.Errorf("String() = %q, want %q", got.String(), tt.want.String())
			}
		})
	}
}
