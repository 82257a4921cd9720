package treasury

import (
	"fmt"
	"sync"
	"time"

	"github.com/aristath/treasurer/internal/domain"
	"github.com/rs/zerolog"
)

// Service is the authoritative owner of one treasury's state. All mutation
// is serialized behind a single mutex, mirroring the source execution
// environment where one call runs to completion before the next begins.
// External notifications (events, swap execution) happen only after state
// is finalized and the lock released.
type Service struct {
	mu      sync.Mutex
	assets  map[string]*Asset
	order   []string // insertion order of active assets
	nextPos int64
	enabled bool

	thresholdBps       int64
	defaultSlippageBps int64

	repo     *Repository // optional persistence; nil keeps state in memory only
	recorder ActionRecorder
	events   EventPublisher
	swaps    SwapExecutor

	log zerolog.Logger
}

// ServiceConfig holds the dependencies for a treasury service.
type ServiceConfig struct {
	ThresholdBps       int64
	DefaultSlippageBps int64
	Repo               *Repository
	Recorder           ActionRecorder
	Events             EventPublisher
	Swaps              SwapExecutor
	Log                zerolog.Logger
}

// NewService creates a new treasury service
func NewService(cfg ServiceConfig) *Service {
	slippage := cfg.DefaultSlippageBps
	if slippage <= 0 {
		slippage = DefaultSlippageBps
	}

	return &Service{
		assets:             make(map[string]*Asset),
		enabled:            true,
		thresholdBps:       cfg.ThresholdBps,
		defaultSlippageBps: slippage,
		repo:               cfg.Repo,
		recorder:           cfg.Recorder,
		events:             cfg.Events,
		swaps:              cfg.Swaps,
		log:                cfg.Log.With().Str("service", "treasury").Logger(),
	}
}

// Load restores registry state and settings from the repository.
func (s *Service) Load() error {
	if s.repo == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.repo.LoadAll()
	if err != nil {
		return fmt.Errorf("failed to load assets: %w", err)
	}

	s.assets = make(map[string]*Asset, len(records))
	s.order = s.order[:0]
	for _, rec := range records {
		asset := rec.Asset
		s.assets[asset.Token] = &asset
		if asset.IsActive {
			s.order = append(s.order, asset.Token)
		}
		if rec.Position >= s.nextPos {
			s.nextPos = rec.Position + 1
		}
	}

	enabled, err := s.repo.GetSettingBool(SettingRebalancingEnabled, true)
	if err != nil {
		return fmt.Errorf("failed to load rebalancing flag: %w", err)
	}
	s.enabled = enabled

	threshold, err := s.repo.GetSettingInt64(SettingRebalancingThreshold, s.thresholdBps)
	if err != nil {
		return fmt.Errorf("failed to load rebalancing threshold: %w", err)
	}
	s.thresholdBps = threshold

	s.log.Info().
		Int("assets", len(s.assets)).
		Int("active", len(s.order)).
		Bool("rebalancing_enabled", s.enabled).
		Int64("threshold_bps", s.thresholdBps).
		Msg("Treasury state loaded")

	return nil
}

// AddAsset registers a new tracked token with a target allocation. Owner
// only. The asset starts at zero balance and is immediately visible to the
// deviation detector and planner.
func (s *Service) AddAsset(caller domain.Caller, token string, targetBps int64) (Asset, error) {
	if !caller.IsOwner() {
		return Asset{}, fmt.Errorf("add asset: %w", ErrUnauthorizedCaller)
	}
	if token == "" {
		return Asset{}, fmt.Errorf("add asset: token must not be empty")
	}
	if targetBps < 0 || targetBps > TotalBps {
		return Asset{}, fmt.Errorf("add asset %q: %w", token, ErrInvalidAllocation)
	}

	s.mu.Lock()
	existing, ok := s.assets[token]
	if ok && existing.IsActive {
		s.mu.Unlock()
		return Asset{}, fmt.Errorf("add asset %q: %w", token, ErrDuplicateAsset)
	}

	now := time.Now().UTC()
	asset := &Asset{
		Token:            token,
		Balance:          0,
		TargetAllocation: targetBps,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	pos := s.nextPos
	if s.repo != nil {
		if err := s.repo.SaveAsset(*asset, pos); err != nil {
			s.mu.Unlock()
			return Asset{}, fmt.Errorf("failed to persist asset %q: %w", token, err)
		}
	}

	s.assets[token] = asset
	s.order = append(s.order, token)
	s.nextPos = pos + 1

	// The sum-of-targets invariant is conventional, not enforced: callers
	// may register targets summing past 100%. Surface it, keep going.
	if sum := s.activeTargetSumLocked(); sum > TotalBps {
		s.log.Warn().
			Int64("target_sum_bps", sum).
			Msg("Active target allocations exceed 10000 bps")
	}

	result := *asset
	s.mu.Unlock()

	s.publish(EventAssetAdded, map[string]interface{}{
		"token":      token,
		"target_bps": targetBps,
	})

	s.log.Info().
		Str("token", token).
		Int64("target_bps", targetBps).
		Msg("Asset registered")

	return result, nil
}

// RemoveAsset deactivates a tracked token. Owner only. The asset must hold
// zero balance; its row is retained for history.
func (s *Service) RemoveAsset(caller domain.Caller, token string) error {
	if !caller.IsOwner() {
		return fmt.Errorf("remove asset: %w", ErrUnauthorizedCaller)
	}

	s.mu.Lock()
	asset, ok := s.assets[token]
	if !ok || !asset.IsActive {
		s.mu.Unlock()
		return fmt.Errorf("remove asset %q: %w", token, ErrUnknownAsset)
	}
	if asset.Balance != 0 {
		s.mu.Unlock()
		return fmt.Errorf("remove asset %q (balance %d): %w", token, asset.Balance, ErrNonZeroBalance)
	}

	updated := *asset
	updated.IsActive = false
	updated.UpdatedAt = time.Now().UTC()

	if s.repo != nil {
		if err := s.repo.UpdateAsset(updated); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to persist asset %q: %w", token, err)
		}
	}

	*asset = updated
	s.removeFromOrderLocked(token)
	s.mu.Unlock()

	s.publish(EventAssetRemoved, map[string]interface{}{"token": token})
	s.log.Info().Str("token", token).Msg("Asset deactivated")

	return nil
}

// UpdateTargetAllocation overwrites the target allocation of an active
// asset. Owner only. Balance is untouched.
func (s *Service) UpdateTargetAllocation(caller domain.Caller, token string, targetBps int64) error {
	if !caller.IsOwner() {
		return fmt.Errorf("update target: %w", ErrUnauthorizedCaller)
	}
	if targetBps < 0 || targetBps > TotalBps {
		return fmt.Errorf("update target for %q: %w", token, ErrInvalidAllocation)
	}

	s.mu.Lock()
	asset, ok := s.assets[token]
	if !ok || !asset.IsActive {
		s.mu.Unlock()
		return fmt.Errorf("update target for %q: %w", token, ErrUnknownAsset)
	}

	updated := *asset
	updated.TargetAllocation = targetBps
	updated.UpdatedAt = time.Now().UTC()

	if s.repo != nil {
		if err := s.repo.UpdateAsset(updated); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to persist asset %q: %w", token, err)
		}
	}

	*asset = updated

	if sum := s.activeTargetSumLocked(); sum > TotalBps {
		s.log.Warn().
			Int64("target_sum_bps", sum).
			Msg("Active target allocations exceed 10000 bps")
	}
	s.mu.Unlock()

	s.publish(EventTargetUpdated, map[string]interface{}{
		"token":      token,
		"target_bps": targetBps,
	})

	return nil
}

// SetRebalancingEnabled toggles the global rebalancing flag. Owner only.
// While disabled, rebalanceTreasury fails closed; registry management and
// emergency withdrawal remain available.
func (s *Service) SetRebalancingEnabled(caller domain.Caller, enabled bool) error {
	if !caller.IsOwner() {
		return fmt.Errorf("toggle rebalancing: %w", ErrUnauthorizedCaller)
	}

	s.mu.Lock()
	if s.repo != nil {
		if err := s.repo.SetSettingBool(SettingRebalancingEnabled, enabled); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to persist rebalancing flag: %w", err)
		}
	}
	s.enabled = enabled
	s.mu.Unlock()

	s.publish(EventRebalancingToggle, map[string]interface{}{"enabled": enabled})
	s.log.Info().Bool("enabled", enabled).Msg("Rebalancing flag updated")

	return nil
}

// RebalancingEnabled reports the global rebalancing flag.
func (s *Service) RebalancingEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// ThresholdBps returns the configured rebalancing threshold.
func (s *Service) ThresholdBps() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thresholdBps
}

// UpdateThreshold sets the rebalancing threshold. Owner only.
func (s *Service) UpdateThreshold(caller domain.Caller, thresholdBps int64) error {
	if !caller.IsOwner() {
		return fmt.Errorf("update threshold: %w", ErrUnauthorizedCaller)
	}
	if thresholdBps < 0 || thresholdBps > TotalBps {
		return fmt.Errorf("update threshold: %w", ErrInvalidAllocation)
	}

	s.mu.Lock()
	if s.repo != nil {
		if err := s.repo.SetSettingInt64(SettingRebalancingThreshold, thresholdBps); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to persist threshold: %w", err)
		}
	}
	s.thresholdBps = thresholdBps
	s.mu.Unlock()

	return nil
}

// TotalValue returns the sum of all active asset balances. One unit of any
// token counts as one unit of value.
func (s *Service) TotalValue() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalValueLocked()
}

// CurrentAllocations returns, for every active asset in registry order, its
// current basis-point share of total value (0 when total value is zero).
func (s *Service) CurrentAllocations() []Allocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentAllocationsLocked()
}

// ActiveAssets returns copies of all active assets in registry order.
func (s *Service) ActiveAssets() []Asset {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]Asset, 0, len(s.order))
	for _, token := range s.order {
		result = append(result, *s.assets[token])
	}
	return result
}

// GetAsset returns a copy of one asset (active or not).
func (s *Service) GetAsset(token string) (Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, ok := s.assets[token]
	if !ok {
		return Asset{}, fmt.Errorf("get asset %q: %w", token, ErrUnknownAsset)
	}
	return *asset, nil
}

// --- internal helpers (caller must hold s.mu) ---

func (s *Service) totalValueLocked() int64 {
	var total int64
	for _, token := range s.order {
		total += s.assets[token].Balance
	}
	return total
}

func (s *Service) currentAllocationsLocked() []Allocation {
	total := s.totalValueLocked()

	result := make([]Allocation, 0, len(s.order))
	for _, token := range s.order {
		asset := s.assets[token]
		var currentBps int64
		if total > 0 {
			currentBps = asset.Balance * TotalBps / total
		}
		result = append(result, Allocation{
			Token:      asset.Token,
			Balance:    asset.Balance,
			TargetBps:  asset.TargetAllocation,
			CurrentBps: currentBps,
		})
	}
	return result
}

func (s *Service) activeTargetSumLocked() int64 {
	var sum int64
	for _, token := range s.order {
		sum += s.assets[token].TargetAllocation
	}
	return sum
}

func (s *Service) removeFromOrderLocked(token string) {
	for i, t := range s.order {
		if t == token {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *Service) publish(eventType string, data map[string]interface{}) {
	if s.events == nil {
		return
	}
	s.events.Publish(eventType, data)
}

func (s *Service) record(rec ActionRecord) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(rec); err != nil {
		s.log.Warn().Err(err).Str("token", rec.Token).Msg("Failed to record ledger entry")
	}
}
