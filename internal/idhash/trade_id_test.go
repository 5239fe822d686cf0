package idhash

import "testing"

func TestComputeTradeID_Deterministic(t *testing.T) {
	a := ComputeTradeID("TEST", "buy", 1700000000000, 1)
	b := ComputeTradeID("TEST", "buy", 1700000000000, 1)
	if a != b {
		t.Errorf("Expected identical ids, got %s and %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("Expected 64-char hex id, got %d chars", len(a))
	}
}

func TestComputeTradeID_SequenceDisambiguates(t *testing.T) {
	a := ComputeTradeID("TEST", "buy", 1700000000000, 1)
	b := ComputeTradeID("TEST", "buy", 1700000000000, 2)
	if a == b {
		t.Error("Expected different ids for different sequence numbers")
	}
}

func TestComputeOrderID_DiffersBySide(t *testing.T) {
	a := ComputeOrderID("TEST", "below", 99.5, 1)
	b := ComputeOrderID("TEST", "higher", 99.5, 1)
	if a == b {
		t.Error("Expected different ids for different directions")
	}
}
