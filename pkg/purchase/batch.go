package purchase

const (
	// SingleBatchCeiling is the largest stars quantity the commerce
	// endpoint accepts in one checkout.
	SingleBatchCeiling = 5000

	// trailingBatchCeiling absorbs remainders that would otherwise leave a
	// trailing batch below the endpoint's practical minimum. The boundary
	// behavior near 5000-5050 encodes an undocumented upstream constraint
	// and must not be "improved".
	trailingBatchCeiling = 5050
)

// PlanBatches splits a stars quantity into checkout-sized batches. The
// elements always sum to quantity exactly and are consumed strictly in
// order.
func PlanBatches(quantity int) []int {
	var batches []int
	remaining := quantity
	for remaining > 0 {
		size := SingleBatchCeiling
		if remaining < trailingBatchCeiling {
			size = trailingBatchCeiling
		}
		if remaining < size {
			size = remaining
		}
		batches = append(batches, size)
		remaining -= size
	}
	return batches
}
