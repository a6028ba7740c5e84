package brokerage

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Broker is an optional broker identifier.
//
// A transaction either names a broker or has none; the two cases never
// collide, whatever the broker id looks like.
type Broker struct {
	id  string
	set bool
}

// NoBroker is the absent broker.
var NoBroker = Broker{}

// SomeBroker returns a broker reference for id.
func SomeBroker(id string) Broker { return Broker{id: id, set: true} }

// ParseBroker reads a broker from user input, where "" and "-" mean none.
func ParseBroker(s string) Broker {
	if s == "" || s == "-" {
		return NoBroker
	}
	return SomeBroker(s)
}

// ID returns the broker id and whether there is one.
func (b Broker) ID() (string, bool) { return b.id, b.set }

// IsSet reports whether b names a broker.
func (b Broker) IsSet() bool { return b.set }

func (b Broker) String() string {
	if !b.set {
		return "-"
	}
	return b.id
}

func (b Broker) MarshalJSON() ([]byte, error) {
	if !b.set {
		return []byte("null"), nil
	}
	return json.Marshal(b.id)
}

func (b *Broker) UnmarshalJSON(data []byte) error {
	var id *string
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	if id == nil {
		*b = NoBroker
		return nil
	}
	*b = SomeBroker(*id)
	return nil
}

// Bucket is the (client, stock, broker) key lots are tracked under.
// It is comparable and can be used as a map key.
type Bucket struct {
	Client string
	Stock  string
	Broker Broker
}

// String returns a stable textual key, "client/stock/broker" or
// "client/stock/-" when there is no broker.
func (b Bucket) String() string {
	return b.Client + "/" + b.Stock + "/" + b.Broker.String()
}

// ParseBucket parses the output of Bucket.String. The broker part is
// optional.
func ParseBucket(s string) (Bucket, error) {
	parts := strings.Split(s, "/")
	switch len(parts) {
	case 2:
		parts = append(parts, "-")
	case 3:
	default:
		return Bucket{}, fmt.Errorf("invalid bucket %q, want client/stock[/broker]", s)
	}
	if parts[0] == "" || parts[1] == "" {
		return Bucket{}, fmt.Errorf("invalid bucket %q, client and stock are required", s)
	}
	return Bucket{Client: parts[0], Stock: parts[1], Broker: ParseBroker(parts[2])}, nil
}

// less orders buckets by client, stock and broker, no broker first.
func (b Bucket) less(o Bucket) bool {
	if b.Client != o.Client {
		return b.Client < o.Client
	}
	if b.Stock != o.Stock {
		return b.Stock < o.Stock
	}
	if b.Broker.set != o.Broker.set {
		return !b.Broker.set
	}
	return b.Broker.id < o.Broker.id
}
