// Package sync keeps the active mailbox's inbox current by polling its
// provider, merging results and persisting them as a cache.
package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/tempmail/internal/logging"
	"github.com/nhle/tempmail/internal/model"
)

// State is the synchronizer's position in its poll cycle:
// Idle -> Fetching -> Merging -> Idle on success, and
// Idle -> Fetching -> FailedUseCache -> Idle when the fetch fails.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateMerging
	StateFailedUseCache
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateMerging:
		return "merging"
	case StateFailedUseCache:
		return "failed-use-cache"
	default:
		return "idle"
	}
}

// defaultInterval applies when none is configured.
const defaultInterval = 7 * time.Second

// fetchTimeout bounds one poll, across every relay attempt.
const fetchTimeout = 30 * time.Second

// Source lists and deletes messages for a mailbox.
type Source interface {
	ListMessages(ctx context.Context, mb model.Mailbox) ([]model.EmailSummary, error)
	DeleteMessage(ctx context.Context, mb model.Mailbox, id string) error
}

// Cache persists the last merged list per address.
type Cache interface {
	SaveCache(ctx context.Context, address string, emails []model.EmailSummary) error
	GetCache(ctx context.Context, address string) ([]model.EmailSummary, error)
}

// UpdateMsg is a tea.Msg carrying a new visible list for Address.
type UpdateMsg struct {
	Address   string
	Emails    []model.EmailSummary
	FromCache bool
	Err       error
}

// Status is a snapshot of the synchronizer. Outcome is the branch the
// last applied poll took, StateMerging or StateFailedUseCache, or
// StateIdle before any poll was applied.
type Status struct {
	Address  string
	State    State
	Outcome  State
	LastSync time.Time
	Err      error
}

// Synchronizer polls the active mailbox. Every fetch is tagged with the
// generation current at launch; a result whose generation has since
// changed belongs to a mailbox that is no longer active and is dropped.
type Synchronizer struct {
	source   Source
	cache    Cache
	interval time.Duration
	logger   *zap.Logger

	mu         gosync.Mutex
	generation uint64
	active     *model.Mailbox
	emails     []model.EmailSummary
	tombstones map[string]struct{}
	emitted    *fingerprint
	state      State
	outcome    State
	inflight   int
	lastSync   time.Time
	lastErr    error
	running    bool

	updates   chan UpdateMsg
	triggerCh chan struct{}
	stopCh    chan struct{}
	wg        gosync.WaitGroup
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Synchronizer) { s.logger = logging.OrNop(l) }
}

// New creates a Synchronizer with no active mailbox.
func New(source Source, cache Cache, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		source:     source,
		cache:      cache,
		interval:   defaultInterval,
		logger:     zap.NewNop(),
		tombstones: make(map[string]struct{}),
		updates:    make(chan UpdateMsg, 16),
		triggerCh:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Switch makes mb the active mailbox, or clears it when mb is nil. The
// visible list and tombstones are reset and an immediate poll is
// requested from the running loop.
func (s *Synchronizer) Switch(mb *model.Mailbox) {
	s.mu.Lock()
	s.generation++
	s.emails = nil
	s.tombstones = make(map[string]struct{})
	s.emitted = nil
	s.lastErr = nil
	s.outcome = StateIdle
	s.active = nil
	address := ""
	if mb != nil {
		cp := *mb
		s.active = &cp
		address = cp.Address
	}
	s.sendLocked(UpdateMsg{Address: address})
	s.mu.Unlock()

	s.Refresh()
}

// Refresh requests an immediate poll from the running loop.
func (s *Synchronizer) Refresh() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

// Active returns the active mailbox, or nil.
func (s *Synchronizer) Active() *model.Mailbox {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	cp := *s.active
	return &cp
}

// Emails returns a copy of the visible list.
func (s *Synchronizer) Emails() []model.EmailSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.EmailSummary(nil), s.emails...)
}

// Status returns a snapshot of the poll state.
func (s *Synchronizer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{State: s.state, Outcome: s.outcome, LastSync: s.lastSync, Err: s.lastErr}
	if s.active != nil {
		st.Address = s.active.Address
	}
	return st
}

// Poll fetches the active mailbox once. It reports whether a new list was
// emitted; unchanged lists, stale results and absorbed failures are not.
func (s *Synchronizer) Poll(ctx context.Context) (UpdateMsg, bool) {
	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return UpdateMsg{}, false
	}
	mb := *s.active
	gen := s.generation
	s.inflight++
	s.state = StateFetching
	s.mu.Unlock()

	fetched, err := s.source.ListMessages(ctx, mb)

	var cached []model.EmailSummary
	if err != nil {
		s.logger.Debug("poll failed",
			zap.String("address", mb.Address),
			zap.Error(err),
		)
		cached = s.loadCache(ctx, mb.Address)
	}

	s.mu.Lock()
	s.inflight--
	if gen != s.generation {
		s.settleLocked()
		s.mu.Unlock()
		s.logger.Debug("discarding stale poll result", zap.String("address", mb.Address))
		return UpdateMsg{}, false
	}

	if err != nil {
		s.state = StateFailedUseCache
		s.outcome = StateFailedUseCache
		s.lastErr = err
		var (
			msg     UpdateMsg
			emitted bool
		)
		if len(s.emails) == 0 && len(cached) > 0 {
			s.emails = withoutTombstones(cached, s.tombstones)
			msg, emitted = s.emitLocked(mb.Address, true, err)
		}
		s.settleLocked()
		s.mu.Unlock()
		return msg, emitted
	}

	s.state = StateMerging
	s.outcome = StateMerging
	merged := Merge(s.emails, fetched, s.tombstones)
	s.emails = merged
	s.lastErr = nil
	s.lastSync = time.Now()
	msg, emitted := s.emitLocked(mb.Address, false, nil)
	snapshot := append([]model.EmailSummary(nil), merged...)
	s.settleLocked()
	s.mu.Unlock()

	s.saveCache(ctx, mb.Address, snapshot)
	return msg, emitted
}

// settleLocked returns to Idle unless another poll is still in flight.
// s.mu must be held.
func (s *Synchronizer) settleLocked() {
	if s.inflight > 0 {
		s.state = StateFetching
		return
	}
	s.state = StateIdle
}

// Delete removes id from mb's visible list at once, tombstones it so a
// lagging poll cannot bring it back, and deletes it on the backend in the
// background. Backend failures are logged and never undo the removal.
func (s *Synchronizer) Delete(mb model.Mailbox, id string) {
	s.mu.Lock()
	var snapshot []model.EmailSummary
	isActive := s.active != nil && s.active.Address == mb.Address
	if isActive {
		s.tombstones[id] = struct{}{}
		s.emails = withoutTombstones(s.emails, s.tombstones)
		s.emitLocked(mb.Address, false, nil)
		snapshot = append([]model.EmailSummary(nil), s.emails...)
	}
	s.mu.Unlock()

	if isActive {
		s.saveCache(context.Background(), mb.Address, snapshot)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		if err := s.source.DeleteMessage(ctx, mb, id); err != nil {
			s.logger.Debug("backend delete failed",
				zap.String("address", mb.Address),
				zap.String("id", id),
				zap.Error(err),
			)
		}
	}()
}

// Updates returns the channel new lists are published on.
func (s *Synchronizer) Updates() <-chan UpdateMsg {
	return s.updates
}

// Start launches the polling loop and returns a tea.Cmd that delivers
// the next UpdateMsg.
func (s *Synchronizer) Start() tea.Cmd {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return s.WaitForUpdate()
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stop := s.stopCh
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(stop)

	return s.WaitForUpdate()
}

// Stop halts the loop and waits for it and any background deletes.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	if s.running {
		close(s.stopCh)
		s.running = false
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// WaitForUpdate returns a tea.Cmd that waits for the next UpdateMsg.
// Call it again after handling each message to keep listening.
func (s *Synchronizer) WaitForUpdate() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-s.updates
		if !ok {
			return nil
		}
		return msg
	}
}

func (s *Synchronizer) loop(stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.pollOnce()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.pollOnce()
		case <-s.triggerCh:
			s.pollOnce()
		}
	}
}

func (s *Synchronizer) pollOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()
	s.Poll(ctx)
}

// emitLocked publishes the visible list unless it matches the last one
// published by length and newest id. s.mu must be held.
func (s *Synchronizer) emitLocked(address string, fromCache bool, err error) (UpdateMsg, bool) {
	fp := fingerprintOf(s.emails)
	if s.emitted != nil && *s.emitted == fp {
		return UpdateMsg{}, false
	}
	s.emitted = &fp

	msg := UpdateMsg{
		Address:   address,
		Emails:    append([]model.EmailSummary(nil), s.emails...),
		FromCache: fromCache,
		Err:       err,
	}
	s.sendLocked(msg)
	return msg, true
}

// sendLocked publishes without blocking; a full channel drops the message.
func (s *Synchronizer) sendLocked(msg UpdateMsg) {
	select {
	case s.updates <- msg:
	default:
	}
}

func (s *Synchronizer) loadCache(ctx context.Context, address string) []model.EmailSummary {
	if s.cache == nil {
		return nil
	}
	cached, err := s.cache.GetCache(ctx, address)
	if err != nil {
		s.logger.Debug("reading cache failed", zap.String("address", address), zap.Error(err))
		return nil
	}
	return cached
}

func (s *Synchronizer) saveCache(ctx context.Context, address string, emails []model.EmailSummary) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SaveCache(ctx, address, emails); err != nil {
		s.logger.Warn("saving cache failed", zap.String("address", address), zap.Error(err))
	}
}
