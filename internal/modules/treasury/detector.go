package treasury

// NeedsRebalancing reports whether any active asset's current allocation
// deviates from its target by strictly more than the threshold.
//
// This is a short-circuit predicate: it returns on the first offending
// asset instead of building a full deviation report, which the planner
// does. Returns false when total value is zero.
func (s *Service) NeedsRebalancing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.totalValueLocked()
	if total == 0 {
		return false
	}

	for _, token := range s.order {
		asset := s.assets[token]
		currentBps := asset.Balance * TotalBps / total
		deviation := currentBps - asset.TargetAllocation
		if deviation < 0 {
			deviation = -deviation
		}
		if deviation > s.thresholdBps {
			return true
		}
	}
	return false
}
