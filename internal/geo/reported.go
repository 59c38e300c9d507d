package geo

import (
	"context"
	"errors"
	"sync"
	"time"

	"TH_treasure_hunt/internal/model"
	"TH_treasure_hunt/pkg/logger"

	"go.uber.org/zap"
)

const (
	defaultMaxFixAge   = 30 * time.Second
	defaultWaitTimeout = 10 * time.Second
)

type report struct {
	fix model.Coordinates
	err error
	at  time.Time
}

// Reported serves positions pushed by the participant's device. A call
// returns the latest report while it is fresh, otherwise it waits for the
// next one.
type Reported struct {
	mu          sync.Mutex
	reports     map[string]report
	waiting     map[string]chan struct{}
	maxFixAge   time.Duration
	waitTimeout time.Duration
	now         func() time.Time
}

func NewReported(maxFixAge, waitTimeout time.Duration) *Reported {
	if maxFixAge <= 0 {
		maxFixAge = defaultMaxFixAge
	}
	if waitTimeout <= 0 {
		waitTimeout = defaultWaitTimeout
	}
	return &Reported{
		reports:     make(map[string]report),
		waiting:     make(map[string]chan struct{}),
		maxFixAge:   maxFixAge,
		waitTimeout: waitTimeout,
		now:         time.Now,
	}
}

// Report stores a position fix for the participant and wakes pending calls.
func (p *Reported) Report(participantID string, fix model.Coordinates) error {
	if !ValidFix(fix) {
		return ErrInvalidFix
	}
	p.store(participantID, report{fix: fix, at: p.now()})
	return nil
}

// ReportFailure stores a device-side failure. Anything other than a
// permission denial is served as ErrPositionUnavailable.
func (p *Reported) ReportFailure(participantID string, err error) {
	if !errors.Is(err, ErrPermissionDenied) {
		err = ErrPositionUnavailable
	}
	p.store(participantID, report{err: err, at: p.now()})
}

func (p *Reported) store(participantID string, r report) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reports[participantID] = r
	if ch, ok := p.waiting[participantID]; ok {
		close(ch)
		delete(p.waiting, participantID)
	}
}

// HasFix reports whether a fresh successful fix is held for the participant.
func (p *Reported) HasFix(participantID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, ok := p.reports[participantID]
	return ok && r.err == nil && p.fresh(r)
}

func (p *Reported) fresh(r report) bool {
	return p.now().Sub(r.at) <= p.maxFixAge
}

func (p *Reported) CurrentLocation(ctx context.Context, participantID string) (model.Coordinates, error) {
	p.mu.Lock()
	if r, ok := p.reports[participantID]; ok && p.fresh(r) {
		p.mu.Unlock()
		return r.fix, r.err
	}
	ch, ok := p.waiting[participantID]
	if !ok {
		ch = make(chan struct{})
		p.waiting[participantID] = ch
	}
	p.mu.Unlock()

	timer := time.NewTimer(p.waitTimeout)
	defer timer.Stop()

	select {
	case <-ch:
		p.mu.Lock()
		r := p.reports[participantID]
		p.mu.Unlock()
		return r.fix, r.err
	case <-timer.C:
		logger.Logger().Debug("no position reported in time",
			zap.String("participant_id", participantID),
			zap.Duration("wait", p.waitTimeout))
		return model.Coordinates{}, ErrPositionUnavailable
	case <-ctx.Done():
		return model.Coordinates{}, ErrPositionUnavailable
	}
}
