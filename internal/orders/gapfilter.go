package orders

import (
	"sort"

	"grid-trading-lab/internal/domain"
)

// mergeCloseOrders merges pending buy orders whose trigger prices fall
// within gapPct% of each other, keeping one representative per cluster.
// This bounds working-set growth during sustained downtrends.
//
// Survivor rule (deterministic): the LOWEST trigger in a cluster survives,
// keeping the grid spread furthest below the current price. Sentinel seed
// orders and direction=higher orders (grid-follow buys) are never merged.
func mergeCloseOrders(buys []*domain.OrderAction, gapPct float64) []*domain.OrderAction {
	if gapPct <= 0 {
		return buys
	}

	var mergeable []*domain.OrderAction
	var exempt []*domain.OrderAction
	for _, o := range buys {
		if o.Sentinel() || o.Direction == domain.DirectionHigher {
			exempt = append(exempt, o)
			continue
		}
		mergeable = append(mergeable, o)
	}
	if len(mergeable) < 2 {
		return buys
	}

	sort.Slice(mergeable, func(i, j int) bool {
		return mergeable[i].TriggerPrice < mergeable[j].TriggerPrice
	})

	// Walk ascending triggers; a neighbor within gapPct of the cluster's
	// lowest member joins the cluster and is dropped.
	kept := []*domain.OrderAction{mergeable[0]}
	clusterLow := mergeable[0].TriggerPrice
	for _, o := range mergeable[1:] {
		if clusterLow > 0 && (o.TriggerPrice-clusterLow)/clusterLow*100 <= gapPct {
			continue
		}
		kept = append(kept, o)
		clusterLow = o.TriggerPrice
	}

	return append(exempt, kept...)
}
