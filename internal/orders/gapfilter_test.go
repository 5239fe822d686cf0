package orders

import (
	"testing"

	"grid-trading-lab/internal/domain"
)

func buyAt(trigger float64, direction domain.Direction) *domain.OrderAction {
	return &domain.OrderAction{TriggerPrice: trigger, Direction: direction}
}

func TestMergeCloseOrders_LowestTriggerSurvives(t *testing.T) {
	buys := []*domain.OrderAction{
		buyAt(100, domain.DirectionBelow),
		buyAt(101, domain.DirectionBelow), // within 2% of 100 -> merged
		buyAt(101.5, domain.DirectionBelow),
		buyAt(110, domain.DirectionBelow), // outside the cluster
	}

	merged := mergeCloseOrders(buys, 2)
	if len(merged) != 2 {
		t.Fatalf("Expected 2 survivors, got %d", len(merged))
	}

	triggers := map[float64]bool{}
	for _, o := range merged {
		triggers[o.TriggerPrice] = true
	}
	if !triggers[100] {
		t.Error("Lowest trigger of the cluster must survive")
	}
	if !triggers[110] {
		t.Error("Order outside the cluster must survive")
	}
}

func TestMergeCloseOrders_SentinelAndGridFollowExempt(t *testing.T) {
	buys := []*domain.OrderAction{
		buyAt(domain.SentinelTriggerPrice, domain.DirectionHigher),
		buyAt(100, domain.DirectionBelow),
		buyAt(100.5, domain.DirectionHigher), // grid-follow buy, never merged
		buyAt(100.8, domain.DirectionBelow),  // merges into 100
	}

	merged := mergeCloseOrders(buys, 2)
	if len(merged) != 3 {
		t.Fatalf("Expected 3 survivors, got %d", len(merged))
	}

	var sentinel, higher bool
	for _, o := range merged {
		if o.Sentinel() {
			sentinel = true
		}
		if o.TriggerPrice == 100.5 && o.Direction == domain.DirectionHigher {
			higher = true
		}
	}
	if !sentinel {
		t.Error("Sentinel order must never be merged")
	}
	if !higher {
		t.Error("Grid-follow (higher) orders must never be merged")
	}
}

func TestMergeCloseOrders_Deterministic(t *testing.T) {
	make3 := func() []*domain.OrderAction {
		return []*domain.OrderAction{
			buyAt(101.5, domain.DirectionBelow),
			buyAt(100, domain.DirectionBelow),
			buyAt(101, domain.DirectionBelow),
		}
	}

	a := mergeCloseOrders(make3(), 2)
	b := mergeCloseOrders(make3(), 2)
	if len(a) != len(b) {
		t.Fatalf("Merge not deterministic: %d vs %d survivors", len(a), len(b))
	}
	for i := range a {
		if a[i].TriggerPrice != b[i].TriggerPrice {
			t.Errorf("Survivor %d differs: %f vs %f", i, a[i].TriggerPrice, b[i].TriggerPrice)
		}
	}
}

func TestMergeCloseOrders_DisabledGap(t *testing.T) {
	buys := []*domain.OrderAction{
		buyAt(100, domain.DirectionBelow),
		buyAt(100.1, domain.DirectionBelow),
	}
	merged := mergeCloseOrders(buys, 0)
	if len(merged) != 2 {
		t.Errorf("Gap 0 must not merge anything, got %d survivors", len(merged))
	}
}
