package treasury

// RebalancingSuggestions computes the action list that closes each active
// asset's gap to its target balance. Read-only; callable by any identity.
//
// For every active asset whose deviation strictly exceeds the threshold, one
// action is emitted with amount = |balance - targetBalance| where
// targetBalance = totalValue * target / 10000 (integer division). Assets
// within tolerance are omitted. Actions follow registry insertion order; no
// priority re-ordering. Returns an empty list when total value is zero.
func (s *Service) RebalancingSuggestions() []RebalancingAction {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.totalValueLocked()
	if total == 0 {
		return []RebalancingAction{}
	}

	suggestions := make([]RebalancingAction, 0, len(s.order))
	for _, token := range s.order {
		asset := s.assets[token]

		currentBps := asset.Balance * TotalBps / total
		deviation := currentBps - asset.TargetAllocation
		if deviation < 0 {
			deviation = -deviation
		}
		if deviation <= s.thresholdBps {
			continue
		}

		targetBalance := total * asset.TargetAllocation / TotalBps
		amount := asset.Balance - targetBalance
		isBuy := amount < 0
		if isBuy {
			amount = -amount
		}

		suggestions = append(suggestions, RebalancingAction{
			Token:                asset.Token,
			Amount:               amount,
			IsBuy:                isBuy,
			SlippageToleranceBps: s.defaultSlippageBps,
		})
	}

	return suggestions
}
