package treasury

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/treasurer/internal/domain"
	"github.com/rs/zerolog"
)

// SwapExecutor is the seam for a real exchange integration. The service
// mutates tracked balances itself; the executor is notified once per action
// strictly after the batch is committed and the treasury lock released, so
// an executor callback can never re-enter a half-applied mutation.
type SwapExecutor interface {
	ExecuteSwap(ctx context.Context, action RebalancingAction) error
}

// NoopSwapExecutor is the balance-only stub used until a DEX integration is
// wired in. It only logs.
type NoopSwapExecutor struct {
	log zerolog.Logger
}

// NewNoopSwapExecutor creates a new no-op swap executor
func NewNoopSwapExecutor(log zerolog.Logger) *NoopSwapExecutor {
	return &NoopSwapExecutor{log: log.With().Str("component", "swap_executor").Logger()}
}

// ExecuteSwap logs the action and does nothing else.
func (e *NoopSwapExecutor) ExecuteSwap(_ context.Context, action RebalancingAction) error {
	e.log.Debug().
		Str("token", action.Token).
		Int64("amount", action.Amount).
		Bool("is_buy", action.IsBuy).
		Int64("slippage_bps", action.SlippageToleranceBps).
		Msg("Swap execution skipped (balance-only executor)")
	return nil
}

// RebalanceTreasury applies a batch of rebalancing actions. DAO only, and
// only while rebalancing is enabled.
//
// The batch is atomic per call: actions are validated and applied to a
// staged copy of the balances in array order, and nothing is committed until
// every action has succeeded. The first failing action aborts the whole
// call with no partial state.
func (s *Service) RebalanceTreasury(ctx context.Context, caller domain.Caller, actions []RebalancingAction) error {
	if !caller.IsDAO() {
		return fmt.Errorf("rebalance treasury: %w", ErrUnauthorizedCaller)
	}

	s.mu.Lock()

	if !s.enabled {
		s.mu.Unlock()
		return fmt.Errorf("rebalance treasury: %w", ErrRebalancingDisabled)
	}

	// Stage new balances; commit only if the whole batch validates.
	staged := make(map[string]int64, len(actions))
	for i, action := range actions {
		asset, ok := s.assets[action.Token]
		if !ok || !asset.IsActive {
			s.mu.Unlock()
			return fmt.Errorf("action %d (%q): %w", i, action.Token, ErrInactiveAsset)
		}
		if action.Amount < 0 {
			s.mu.Unlock()
			return fmt.Errorf("action %d (%q): %w", i, action.Token, ErrNegativeAmount)
		}

		balance, touched := staged[action.Token]
		if !touched {
			balance = asset.Balance
		}

		if action.IsBuy {
			balance += action.Amount
		} else {
			if balance < action.Amount {
				s.mu.Unlock()
				return fmt.Errorf("action %d (%q, balance %d, amount %d): %w",
					i, action.Token, balance, action.Amount, ErrInsufficientBalance)
			}
			balance -= action.Amount
		}
		staged[action.Token] = balance
	}

	// Persist the staged balances in one transaction before touching
	// in-memory state.
	now := time.Now().UTC()
	if s.repo != nil {
		updated := make([]Asset, 0, len(staged))
		for token, balance := range staged {
			asset := *s.assets[token]
			asset.Balance = balance
			asset.UpdatedAt = now
			updated = append(updated, asset)
		}
		if err := s.repo.UpdateAssets(updated); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to persist rebalancing batch: %w", err)
		}
	}

	for token, balance := range staged {
		s.assets[token].Balance = balance
		s.assets[token].UpdatedAt = now
	}
	s.mu.Unlock()

	// State is finalized; now the audit trail, events and the (stubbed)
	// swap execution.
	for _, action := range actions {
		s.record(ActionRecord{
			Token:       action.Token,
			Amount:      action.Amount,
			IsBuy:       action.IsBuy,
			SlippageBps: action.SlippageToleranceBps,
			Kind:        "rebalance",
			Caller:      caller.ID,
			Timestamp:   now,
		})

		if s.swaps != nil {
			if err := s.swaps.ExecuteSwap(ctx, action); err != nil {
				s.log.Error().Err(err).
					Str("token", action.Token).
					Msg("Swap execution failed after balance commit")
			}
		}
	}

	s.publish(EventRebalanced, map[string]interface{}{
		"actions": len(actions),
	})

	s.log.Info().
		Int("actions", len(actions)).
		Str("caller", caller.ID).
		Msg("Rebalancing batch executed")

	return nil
}

// EmergencyWithdraw zeroes every active asset's tracked balance and
// disables rebalancing. Owner only. The zeroed balances represent holdings
// transferred out of the tracked registry; re-enabling rebalancing does not
// restore them.
func (s *Service) EmergencyWithdraw(caller domain.Caller) error {
	if !caller.IsOwner() {
		return fmt.Errorf("emergency withdraw: %w", ErrUnauthorizedCaller)
	}

	s.mu.Lock()

	now := time.Now().UTC()
	withdrawn := make([]ActionRecord, 0, len(s.order))
	updated := make([]Asset, 0, len(s.order))
	for _, token := range s.order {
		asset := s.assets[token]
		if asset.Balance == 0 {
			continue
		}
		withdrawn = append(withdrawn, ActionRecord{
			Token:     token,
			Amount:    asset.Balance,
			IsBuy:     false,
			Kind:      "emergency_withdraw",
			Caller:    caller.ID,
			Timestamp: now,
		})
		zeroed := *asset
		zeroed.Balance = 0
		zeroed.UpdatedAt = now
		updated = append(updated, zeroed)
	}

	if s.repo != nil {
		if err := s.repo.UpdateAssets(updated); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to persist emergency withdrawal: %w", err)
		}
		if err := s.repo.SetSettingBool(SettingRebalancingEnabled, false); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to persist rebalancing flag: %w", err)
		}
	}

	for _, asset := range updated {
		s.assets[asset.Token].Balance = 0
		s.assets[asset.Token].UpdatedAt = now
	}
	s.enabled = false
	s.mu.Unlock()

	for _, rec := range withdrawn {
		s.record(rec)
	}

	s.publish(EventEmergencyWithdraw, map[string]interface{}{
		"assets": len(withdrawn),
	})

	s.log.Warn().
		Int("assets", len(withdrawn)).
		Str("caller", caller.ID).
		Msg("Emergency withdrawal executed - rebalancing disabled")

	return nil
}
