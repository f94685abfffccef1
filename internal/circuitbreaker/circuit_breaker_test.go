package circuitbreaker

import (
	"testing"
	"time"
)

func TestTripDisablesEndpoint(t *testing.T) {
	b := NewEndpointBreaker(time.Minute)

	if !b.Available("https://rpc-a.example") {
		t.Fatal("fresh endpoint should be available")
	}

	b.Trip("https://rpc-a.example")
	if b.Available("https://rpc-a.example") {
		t.Error("tripped endpoint should be disabled")
	}
	if b.Available("https://rpc-b.example") {
		// other endpoints unaffected
	} else {
		t.Error("untripped endpoint should stay available")
	}
}

func TestCooldownExpiry(t *testing.T) {
	b := NewEndpointBreaker(time.Minute)

	current := time.Unix(1700000000, 0)
	b.SetNowFunc(func() time.Time { return current })

	b.Trip("https://rpc-a.example")
	if b.Available("https://rpc-a.example") {
		t.Fatal("endpoint should be in cooldown")
	}

	current = current.Add(2 * time.Minute)
	if !b.Available("https://rpc-a.example") {
		t.Error("endpoint should recover after cooldown")
	}
}

func TestFilterPreservesOrder(t *testing.T) {
	b := NewEndpointBreaker(time.Minute)
	endpoints := []string{"a", "b", "c"}

	b.Trip("b")
	got := b.Filter(endpoints)
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Errorf("Filter = %v, want [a c]", got)
	}
}

func TestClearFailOpen(t *testing.T) {
	b := NewEndpointBreaker(time.Minute)
	endpoints := []string{"a", "b"}

	b.Trip("a")
	b.Trip("b")
	if len(b.Filter(endpoints)) != 0 {
		t.Fatal("all endpoints should be disabled")
	}

	b.Clear()
	if got := b.Filter(endpoints); len(got) != 2 {
		t.Errorf("after Clear all endpoints should be available, got %v", got)
	}
	if b.DisabledCount() != 0 {
		t.Error("DisabledCount should be zero after Clear")
	}
}
