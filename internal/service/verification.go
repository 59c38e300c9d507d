package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"TH_treasure_hunt/internal/geo"
	"TH_treasure_hunt/internal/model"
	"TH_treasure_hunt/internal/repository"
	"TH_treasure_hunt/pkg/logger"

	"go.uber.org/zap"
)

const DefaultAdvanceDelay = 2 * time.Second

type EngineConfig struct {
	Attempts     int           `mapstructure:"attempts"`
	AdvanceDelay time.Duration `mapstructure:"advanceDelay"`
}

// LocationSource is a Provider that is fed by the participant's device.
type LocationSource interface {
	geo.Provider
	Report(participantID string, fix model.Coordinates) error
	ReportFailure(participantID string, err error)
	HasFix(participantID string) bool
}

type sessionKey struct {
	huntID        int64
	participantID string
}

// session is the in-memory attempt state of one participant in one hunt.
// activeIndex is the next unsolved clue the attempt budget belongs to.
type session struct {
	activeIndex int
	attempts    int
	status      model.VerificationStatus
}

type VerificationEngine struct {
	store     ProgressRepository
	clues     ClueResolverI
	locations LocationSource
	hook      CompletionHook
	cfg       EngineConfig

	mu       sync.Mutex
	sessions map[sessionKey]*session
}

func NewVerificationEngine(
	store ProgressRepository,
	clues ClueResolverI,
	locations LocationSource,
	hook CompletionHook,
	cfg EngineConfig,
) *VerificationEngine {
	if cfg.Attempts <= 0 {
		cfg.Attempts = model.MaxAttempts
	}
	if cfg.AdvanceDelay <= 0 {
		cfg.AdvanceDelay = DefaultAdvanceDelay
	}
	return &VerificationEngine{
		store:     store,
		clues:     clues,
		locations: locations,
		hook:      hook,
		cfg:       cfg,
		sessions:  make(map[sessionKey]*session),
	}
}

// sessionLocked must be called with e.mu held.
func (e *VerificationEngine) sessionLocked(huntID int64, participantID string) *session {
	key := sessionKey{huntID: huntID, participantID: participantID}
	s, ok := e.sessions[key]
	if !ok {
		s = &session{attempts: e.cfg.Attempts, status: model.StatusIdle}
		e.sessions[key] = s
	}
	return s
}

// activateLocked moves the attempt budget to index when the active clue changed.
func (e *VerificationEngine) activateLocked(s *session, index int) {
	if s.activeIndex != index {
		s.activeIndex = index
		s.attempts = e.cfg.Attempts
		s.status = model.StatusIdle
	}
}

func (e *VerificationEngine) progress(ctx context.Context, huntID int64, participantID string) ([]int, int, error) {
	registered, err := e.store.IsRegistered(ctx, huntID, participantID)
	if err != nil {
		return nil, 0, err
	}
	if !registered {
		return nil, 0, ErrNotRegistered
	}

	solved, err := e.store.GetProgress(ctx, huntID, participantID)
	if err != nil {
		return nil, 0, err
	}

	total, err := e.clues.TotalClues(ctx, huntID)
	if err != nil {
		return nil, 0, err
	}

	return solved, total, nil
}

// Enter opens the clue screen for index. Indices past the next unsolved clue
// are redirected to it; solved clues may be viewed again.
func (e *VerificationEngine) Enter(ctx context.Context, huntID int64, participantID string, index int) (*model.ClueState, error) {
	solved, total, err := e.progress(ctx, huntID, participantID)
	if err != nil {
		return nil, err
	}

	clues, err := e.clues.Resolve(ctx, huntID)
	if err != nil {
		return nil, err
	}

	allowed := len(solved) + 1
	state := &model.ClueState{
		HuntID:        huntID,
		ParticipantID: participantID,
		Index:         index,
		TotalClues:    total,
	}

	if len(solved) >= total {
		state.Status = model.StatusCompleted
		state.Solved = true
		if index < 1 || index > total {
			state.Redirect = true
			state.Index = total
		}
		state.Clue = clueAt(clues, state.Index)
		return state, nil
	}

	if index < 1 || index > allowed {
		state.Redirect = true
		state.Index = allowed
	}

	hasFix := e.locations != nil && e.locations.HasFix(participantID)
	state.HasLocation = hasFix

	answer, err := e.clues.Answer(ctx, huntID, allowed)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	s := e.sessionLocked(huntID, participantID)
	e.activateLocked(s, allowed)
	switch s.status {
	case model.StatusFailure, model.StatusSuccess:
		s.status = model.StatusIdle
	}
	if s.status == model.StatusIdle && needsLocation(answer) && !hasFix {
		s.status = model.StatusAwaitingLocation
	}
	if s.status == model.StatusAwaitingLocation && hasFix {
		s.status = model.StatusIdle
	}
	state.AttemptsRemaining = s.attempts
	state.Status = s.status
	e.mu.Unlock()

	if state.Index < allowed {
		state.Solved = true
		state.Status = model.StatusSuccess
	}
	state.Clue = clueAt(clues, state.Index)

	return state, nil
}

func clueAt(clues []model.Clue, index int) *model.Clue {
	for _, c := range clues {
		if c.Index == index {
			clue := c
			return &clue
		}
	}
	return nil
}

// ReportLocation forwards a device fix, or a device failure when fix is nil.
func (e *VerificationEngine) ReportLocation(ctx context.Context, huntID int64, participantID string, fix *model.Coordinates, failure error) error {
	if e.locations == nil {
		return geo.ErrPositionUnavailable
	}

	if fix == nil {
		if failure == nil {
			failure = geo.ErrPositionUnavailable
		}
		e.locations.ReportFailure(participantID, failure)
		return nil
	}

	if err := e.locations.Report(participantID, *fix); err != nil {
		return err
	}

	e.mu.Lock()
	s := e.sessionLocked(huntID, participantID)
	if s.status == model.StatusAwaitingLocation {
		s.status = model.StatusIdle
	}
	e.mu.Unlock()

	return nil
}

// ResetAttempts restores the attempt budget of the active clue.
func (e *VerificationEngine) ResetAttempts(huntID int64, participantID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.sessionLocked(huntID, participantID)
	if s.status == model.StatusVerifying {
		return
	}
	s.attempts = e.cfg.Attempts
	s.status = model.StatusIdle
}

// Submit verifies one attempt at clue index. Only one submission per
// participant and hunt runs at a time. Location and content failures block
// the attempt without spending it.
func (e *VerificationEngine) Submit(ctx context.Context, huntID int64, participantID string, index int, answer string) (*model.VerificationResult, error) {
	log := logger.Logger().With(zap.Int64("hunt_id", huntID), zap.String("participant_id", participantID), zap.Int("index", index))

	e.mu.Lock()
	s := e.sessionLocked(huntID, participantID)
	if s.status == model.StatusVerifying {
		e.mu.Unlock()
		return nil, ErrVerificationInFlight
	}
	previous := s.status
	s.status = model.StatusVerifying
	e.mu.Unlock()

	restore := func(status model.VerificationStatus) {
		e.mu.Lock()
		s.status = status
		e.mu.Unlock()
	}

	solved, total, err := e.progress(ctx, huntID, participantID)
	if err != nil {
		restore(previous)
		if errors.Is(err, ErrNotRegistered) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}

	allowed := len(solved) + 1
	if index >= 1 && index <= len(solved) {
		restore(previous)
		return nil, ErrClueAlreadySolved
	}
	if index != allowed || index > total {
		restore(previous)
		return nil, ErrClueNotActive
	}

	e.mu.Lock()
	if s.activeIndex != allowed {
		s.activeIndex = allowed
		s.attempts = e.cfg.Attempts
		previous = model.StatusIdle
	}
	if s.attempts <= 0 {
		s.status = model.StatusExhausted
		e.mu.Unlock()
		return nil, ErrAttemptsExhausted
	}
	e.mu.Unlock()

	clueAnswer, err := e.clues.Answer(ctx, huntID, index)
	if err != nil {
		restore(previous)
		if errors.Is(err, ErrVerificationUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}

	var fix *model.Coordinates
	if needsLocation(clueAnswer) {
		if e.locations == nil {
			restore(model.StatusAwaitingLocation)
			return nil, geo.ErrPositionUnavailable
		}
		current, err := e.locations.CurrentLocation(ctx, participantID)
		if err != nil {
			restore(model.StatusAwaitingLocation)
			log.Info("verification blocked on location", zap.Error(err))
			return nil, err
		}
		fix = &current
	}

	result := evaluate(clueAnswer, answer, fix)

	if !result.passed {
		e.mu.Lock()
		s.attempts--
		status := model.StatusFailure
		if s.attempts <= 0 {
			s.attempts = 0
			status = model.StatusExhausted
		}
		s.status = status
		remaining := s.attempts
		e.mu.Unlock()

		log.Info("verification failed", zap.Int("attempts_remaining", remaining))

		return &model.VerificationResult{
			Passed:            false,
			Status:            status,
			AttemptsRemaining: remaining,
			NextIndex:         index,
			DistanceMeters:    result.distanceMeters,
		}, nil
	}

	completed := index == total
	if completed {
		err = e.store.AppendFinal(ctx, huntID, participantID, index, total)
	} else {
		err = e.store.AppendSolved(ctx, huntID, participantID, index)
	}
	if err != nil {
		restore(previous)
		if errors.Is(err, repository.ErrOutOfOrder) {
			log.Error("solved clue rejected by progress store", zap.Error(err))
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
	}

	status := model.StatusSuccess
	nextIndex := index + 1
	if completed {
		status = model.StatusCompleted
		nextIndex = 0
		if e.hook != nil {
			// the flag is already stored; the hook must run even if the caller left
			if err := e.hook.OnClueCompleted(context.WithoutCancel(ctx), huntID, participantID, total); err != nil {
				log.Error("completion hook failed", zap.Error(err))
			}
		}
	}

	e.mu.Lock()
	s.activeIndex = index + 1
	s.attempts = e.cfg.Attempts
	s.status = status
	e.mu.Unlock()

	log.Info("clue verified", zap.Bool("completed", completed))

	return &model.VerificationResult{
		Passed:            true,
		Status:            status,
		AttemptsRemaining: e.cfg.Attempts,
		NextIndex:         nextIndex,
		Completed:         completed,
		AdvanceAfter:      e.cfg.AdvanceDelay,
		DistanceMeters:    result.distanceMeters,
	}, nil
}
