package saga

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/DeclineZ/brain-train-sub002/internal/domain/ability"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/mission"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/progression"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/session"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/shared"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/streak"
	"github.com/DeclineZ/brain-train-sub002/internal/domain/wallet"
)

var errBoom = errors.New("boom")

// ── sessions ────────────────────────────────────────────────────────────────

type fakeSessions struct {
	mu       sync.Mutex
	records  map[string]*session.Record
	profiles map[string]ability.Stats
	err      error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		records:  map[string]*session.Record{},
		profiles: map[string]ability.Stats{},
	}
}

func (f *fakeSessions) CountPrior(_ context.Context, userID, gameID string, level int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.records {
		if r.UserID == userID && r.GameID == gameID && r.Level == level {
			n++
		}
	}
	return n, nil
}

func (f *fakeSessions) RecordAttempt(_ context.Context, rec *session.Record, update session.ProfileUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.records[rec.SubmissionKey]; ok {
		return shared.NewDomainError("session", "RecordAttempt", shared.ErrAlreadyProcessed, "duplicate submission")
	}
	if update != nil {
		f.profiles[rec.UserID] = update(f.profiles[rec.UserID])
	}
	cp := *rec
	f.records[rec.SubmissionKey] = &cp
	return nil
}

func (f *fakeSessions) FindByKey(_ context.Context, userID, key string) (*session.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[key]
	if !ok || r.UserID != userID {
		return nil, shared.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// ── stars ───────────────────────────────────────────────────────────────────

type fakeStars struct {
	stars map[progression.StarKey]int
	err   error
}

func (f *fakeStars) Upsert(_ context.Context, key progression.StarKey, star int) (progression.StarResult, error) {
	if f.err != nil {
		return progression.StarResult{}, f.err
	}
	res := progression.ApplyStar(f.stars[key], star)
	if res.Updated {
		f.stars[key] = res.Star
	}
	return res, nil
}

func (f *fakeStars) Get(_ context.Context, key progression.StarKey) (int, error) {
	return f.stars[key], nil
}

func (f *fakeStars) ListByGame(context.Context, string, string) ([]progression.LevelStar, error) {
	return nil, nil
}

// ── ledger ──────────────────────────────────────────────────────────────────

type fakeLedger struct {
	balances map[string]int64
	keys     map[string]int64
	requests []wallet.DeltaRequest
	err      error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: map[string]int64{}, keys: map[string]int64{}}
}

func (f *fakeLedger) ApplyDelta(_ context.Context, req wallet.DeltaRequest) (*wallet.DeltaResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.requests = append(f.requests, req)
	if after, ok := f.keys[req.IdempotencyKey]; ok {
		return &wallet.DeltaResult{NewBalance: after}, shared.NewDomainError("wallet", "ApplyDelta", shared.ErrAlreadyProcessed, "duplicate key")
	}
	f.balances[req.UserID] += req.Delta
	f.keys[req.IdempotencyKey] = f.balances[req.UserID]
	return &wallet.DeltaResult{TransactionID: req.IdempotencyKey, NewBalance: f.balances[req.UserID], Applied: true}, nil
}

func (f *fakeLedger) Balance(_ context.Context, userID string) (int64, error) {
	return f.balances[userID], nil
}

func (f *fakeLedger) History(context.Context, string, int) ([]wallet.Transaction, error) {
	return nil, nil
}

func (f *fakeLedger) applied(action wallet.ActionKey) int {
	n := 0
	for _, r := range f.requests {
		if r.ActionKey == action {
			n++
		}
	}
	return n
}

// ── missions ────────────────────────────────────────────────────────────────

type fakeMissions struct {
	slots []mission.Slot
	err   error
}

func (f *fakeMissions) ListForDay(context.Context, string, time.Time) ([]mission.Slot, error) {
	return f.slots, nil
}

func (f *fakeMissions) InsertSlots(_ context.Context, slots []mission.Slot) error {
	f.slots = append(f.slots, slots...)
	return nil
}

func (f *fakeMissions) Complete(_ context.Context, _, gameID string, _ time.Time, key string, at time.Time) (*mission.Slot, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.slots {
		if f.slots[i].SessionKey == key {
			s := f.slots[i]
			return &s, nil
		}
	}
	for i := range f.slots {
		if f.slots[i].GameID == gameID && !f.slots[i].Completed {
			f.slots[i].Completed = true
			f.slots[i].CompletedAt = &at
			f.slots[i].SessionKey = key
			s := f.slots[i]
			return &s, nil
		}
	}
	return nil, nil
}

func (f *fakeMissions) CountCompleted(context.Context, string, time.Time) (int, error) {
	n := 0
	for _, s := range f.slots {
		if s.Completed {
			n++
		}
	}
	return n, nil
}

// ── checkin, events ─────────────────────────────────────────────────────────

type fakeCheckin struct {
	calls  int
	result *streak.CheckinResult
	err    error
}

func (f *fakeCheckin) PerformCheckin(context.Context, string) (*streak.CheckinResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type recordingPublisher struct {
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []shared.EventType {
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type denyAll struct{}

func (denyAll) EnabledFor(string, string) bool { return false }
