package domain

// DeliveryRates holds the per-destination delivery cost for each mode.
type DeliveryRates struct {
	DestinationID string
	DomicileCost  int64
	StopdeskCost  int64
}

// Cost returns the rate for the given mode. The boolean is false for unknown modes.
func (r DeliveryRates) Cost(mode DeliveryMode) (int64, bool) {
	switch mode {
	case DeliveryModeDomicile:
		return r.DomicileCost, true
	case DeliveryModeStopdesk:
		return r.StopdeskCost, true
	default:
		return 0, false
	}
}

// OrderTotal applies the single total formula shared by checkout and the order engine:
// the sum of unit price times quantity over every line plus the delivery cost.
func OrderTotal(items []OrderLineItem, deliveryCost int64) int64 {
	total := deliveryCost
	for _, item := range items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}
