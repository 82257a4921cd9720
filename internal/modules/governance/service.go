package governance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/treasurer/internal/domain"
	"github.com/aristath/treasurer/internal/modules/treasury"
)

// Proposal lifecycle errors.
var (
	ErrProposalNotOpen     = errors.New("proposal is not open for voting")
	ErrProposalNotApproved = errors.New("proposal is not approved for execution")
	ErrEmptyProposal       = errors.New("proposal has no actions")
)

// Governance event types.
const (
	EventProposalSubmitted = "proposal_submitted"
	EventProposalDecided   = "proposal_decided"
	EventProposalExecuted  = "proposal_executed"
)

// Service runs the proposal lifecycle: submit, vote, execute. Execution
// hands the proposal's actions to the treasury under the caller's DAO
// identity, so treasury authorization still applies.
type Service struct {
	repo     *Repository
	treasury *treasury.Service
	events   treasury.EventPublisher
	quorum   int64
	log      zerolog.Logger
}

// ServiceConfig holds the dependencies for a governance service.
type ServiceConfig struct {
	Repo     *Repository
	Treasury *treasury.Service
	Events   treasury.EventPublisher
	Quorum   int64 // votes needed to decide a proposal; minimum 1
	Log      zerolog.Logger
}

// NewService creates a new governance service
func NewService(cfg ServiceConfig) *Service {
	quorum := cfg.Quorum
	if quorum < 1 {
		quorum = 1
	}

	return &Service{
		repo:     cfg.Repo,
		treasury: cfg.Treasury,
		events:   cfg.Events,
		quorum:   quorum,
		log:      cfg.Log.With().Str("service", "governance").Logger(),
	}
}

// Submit registers a new proposal. DAO only.
func (s *Service) Submit(caller domain.Caller, title, description string, actions []treasury.RebalancingAction) (*Proposal, error) {
	if !caller.IsDAO() {
		return nil, fmt.Errorf("submit proposal: %w", treasury.ErrUnauthorizedCaller)
	}
	if title == "" {
		return nil, fmt.Errorf("submit proposal: title must not be empty")
	}
	if len(actions) == 0 {
		return nil, fmt.Errorf("submit proposal: %w", ErrEmptyProposal)
	}
	for _, action := range actions {
		if action.Token == "" {
			return nil, fmt.Errorf("submit proposal: action token must not be empty")
		}
		if action.Amount < 0 {
			return nil, fmt.Errorf("submit proposal for %q: %w", action.Token, treasury.ErrNegativeAmount)
		}
	}

	now := time.Now().UTC()
	proposal := Proposal{
		UUID:        uuid.New().String(),
		Title:       title,
		Description: description,
		Actions:     actions,
		Status:      StatusPending,
		Proposer:    caller.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(proposal); err != nil {
		return nil, fmt.Errorf("failed to store proposal: %w", err)
	}

	s.publish(EventProposalSubmitted, map[string]interface{}{
		"uuid":    proposal.UUID,
		"title":   proposal.Title,
		"actions": len(proposal.Actions),
	})

	s.log.Info().
		Str("uuid", proposal.UUID).
		Str("title", proposal.Title).
		Int("actions", len(proposal.Actions)).
		Msg("Proposal submitted")

	return &proposal, nil
}

// Vote records one vote on an open proposal. DAO only. Reaching quorum on
// either side decides the proposal.
func (s *Service) Vote(caller domain.Caller, proposalID string, approve bool) (*Proposal, error) {
	if !caller.IsDAO() {
		return nil, fmt.Errorf("vote: %w", treasury.ErrUnauthorizedCaller)
	}

	proposal, err := s.repo.Get(proposalID)
	if err != nil {
		return nil, err
	}
	if !proposal.Open() {
		return nil, fmt.Errorf("vote on proposal %s (status %s): %w", proposalID, proposal.Status, ErrProposalNotOpen)
	}

	if approve {
		proposal.VotesFor++
	} else {
		proposal.VotesAgainst++
	}

	decided := ""
	switch {
	case proposal.VotesFor >= s.quorum:
		proposal.Status = StatusApproved
		decided = StatusApproved
	case proposal.VotesAgainst >= s.quorum:
		proposal.Status = StatusRejected
		decided = StatusRejected
	}

	proposal.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(*proposal); err != nil {
		return nil, fmt.Errorf("failed to store vote: %w", err)
	}

	if decided != "" {
		s.publish(EventProposalDecided, map[string]interface{}{
			"uuid":   proposal.UUID,
			"status": decided,
		})
	}

	return proposal, nil
}

// Execute runs an approved proposal's actions against the treasury. DAO
// only. The treasury applies the batch atomically; a rejected batch marks
// the proposal failed and leaves treasury state untouched.
func (s *Service) Execute(ctx context.Context, caller domain.Caller, proposalID string) (*Proposal, error) {
	if !caller.IsDAO() {
		return nil, fmt.Errorf("execute proposal: %w", treasury.ErrUnauthorizedCaller)
	}

	proposal, err := s.repo.Get(proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.Status != StatusApproved {
		return nil, fmt.Errorf("execute proposal %s (status %s): %w", proposalID, proposal.Status, ErrProposalNotApproved)
	}

	execErr := s.treasury.RebalanceTreasury(ctx, caller, proposal.Actions)

	now := time.Now().UTC()
	proposal.UpdatedAt = now
	if execErr != nil {
		proposal.Status = StatusFailed
	} else {
		proposal.Status = StatusExecuted
		proposal.ExecutedAt = &now
	}

	if err := s.repo.Update(*proposal); err != nil {
		return nil, fmt.Errorf("failed to store execution result: %w", err)
	}

	if execErr != nil {
		s.log.Warn().Err(execErr).Str("uuid", proposal.UUID).Msg("Proposal execution failed")
		return proposal, fmt.Errorf("failed to execute proposal %s: %w", proposalID, execErr)
	}

	s.publish(EventProposalExecuted, map[string]interface{}{
		"uuid":    proposal.UUID,
		"actions": len(proposal.Actions),
	})

	s.log.Info().Str("uuid", proposal.UUID).Msg("Proposal executed")
	return proposal, nil
}

// Get returns one proposal by uuid.
func (s *Service) Get(proposalID string) (*Proposal, error) {
	return s.repo.Get(proposalID)
}

// List returns the most recent proposals, newest first.
func (s *Service) List(limit int) ([]Proposal, error) {
	return s.repo.List(limit)
}

// Metrics returns aggregate proposal metrics.
func (s *Service) Metrics() (*Metrics, error) {
	return s.repo.Metrics()
}

func (s *Service) publish(eventType string, data map[string]interface{}) {
	if s.events == nil {
		return
	}
	s.events.Publish(eventType, data)
}
