// Package session owns the live draft engine and mirrors its progress into the archive and the event bus.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Billy-Davies-2/word-card-draft/internal/config"
	"github.com/Billy-Davies-2/word-card-draft/internal/dal"
	"github.com/Billy-Davies-2/word-card-draft/internal/draft"
	"github.com/Billy-Davies-2/word-card-draft/internal/logger"
	"github.com/Billy-Davies-2/word-card-draft/internal/models"
	"github.com/Billy-Davies-2/word-card-draft/internal/pubsub"
)

// ErrNoSession is returned by commands and queries when no draft has been started
var ErrNoSession = &draft.Error{Kind: draft.KindUsage, Code: "NO_SESSION", Message: "no draft session is running"}

// MaxRosterSize bounds team sizes accepted from clients
const MaxRosterSize = 64

var errRosterTooLarge = &draft.Error{
	Kind:    draft.KindConfiguration,
	Code:    draft.CodeInvalidRoster,
	Message: fmt.Sprintf("roster size must be at most %d", MaxRosterSize),
}

// Setup is the input for a new session
type Setup struct {
	Cards     []draft.CardSpec `json:"cards"`
	TeamA     draft.TeamConfig `json:"teamA"`
	TeamB     draft.TeamConfig `json:"teamB"`
	Threshold int              `json:"threshold"`
}

// SetupFromConfig builds the default setup for the given cards
func SetupFromConfig(cfg config.DraftConfig, cards []draft.CardSpec) Setup {
	return Setup{
		Cards:     cards,
		TeamA:     draft.TeamConfig{Name: cfg.TeamAName, Size: cfg.TeamASize, Players: trimAll(cfg.TeamAPlayers)},
		TeamB:     draft.TeamConfig{Name: cfg.TeamBName, Size: cfg.TeamBSize, Players: trimAll(cfg.TeamBPlayers)},
		Threshold: cfg.Threshold,
	}
}

// WithDefaults fills the zero-valued parts of s from def
func (s Setup) WithDefaults(def Setup) Setup {
	if len(s.Cards) == 0 {
		s.Cards = def.Cards
	}
	if s.TeamA.Name == "" && s.TeamA.Size == 0 && len(s.TeamA.Players) == 0 {
		s.TeamA = def.TeamA
	}
	if s.TeamB.Name == "" && s.TeamB.Size == 0 && len(s.TeamB.Players) == 0 {
		s.TeamB = def.TeamB
	}
	if s.Threshold == 0 {
		s.Threshold = def.Threshold
	}
	return s
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

// Publisher is the subset of the event bus the manager needs
type Publisher interface {
	Publish(pubsub.Event)
}

// Manager serializes access to the single live engine
type Manager struct {
	mu    sync.Mutex
	store dal.DraftDAL
	bus   Publisher
	now   func() time.Time

	id      string
	engine  *draft.Engine
	pending []draft.Event
}

// Option configures a Manager
type Option func(*Manager)

// WithClock overrides the time source used for archive timestamps
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager with no running session. bus may be nil.
func NewManager(store dal.DraftDAL, bus Publisher, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		bus:   bus,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnDraftEvent buffers engine events until the command that produced them has been archived
func (m *Manager) OnDraftEvent(ev draft.Event) {
	m.pending = append(m.pending, ev)
}

// Start builds a fresh engine from setup. A running, unfinished session is archived as abandoned.
func (m *Manager) Start(setup Setup) (models.DraftState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if setup.TeamA.Size > MaxRosterSize || setup.TeamB.Size > MaxRosterSize {
		return models.DraftState{}, errRosterTooLarge
	}

	m.pending = nil
	engine, err := draft.New(draft.Config{
		Cards:     setup.Cards,
		TeamA:     setup.TeamA,
		TeamB:     setup.TeamB,
		Threshold: setup.Threshold,
	}, draft.WithObserver(m))
	if err != nil {
		m.pending = nil
		logger.Warn("Rejected session setup", "error", err)
		return models.DraftState{}, err
	}

	initial := m.pending
	if m.engine != nil && !m.engine.IsEnded() {
		m.abandonLocked()
	}
	m.pending = initial

	id := uuid.NewString()
	teamA, _ := engine.Team(models.TeamA)
	teamB, _ := engine.Team(models.TeamB)
	rec := &models.SessionRecord{
		ID:        id,
		Status:    models.SessionRunning,
		TeamAName: teamA.Name(),
		TeamBName: teamB.Name(),
		TeamASize: teamA.RosterSize(),
		TeamBSize: teamB.RosterSize(),
		CardCount: len(setup.Cards),
		Threshold: engine.Threshold(),
		StartedAt: m.now(),
	}
	if err := m.store.SaveSession(rec); err != nil {
		logger.Error("Failed to archive session start", "session", id, "error", err)
	}

	m.id = id
	m.engine = engine
	logger.Info("Draft session started", "session", id, "cards", len(setup.Cards), "threshold", engine.Threshold())

	m.publish(pubsub.SessionEvent(pubsub.EventSessionStarted, summaryOf(rec)))
	m.flushLocked()
	return m.stateLocked()
}

// Abandon discards the running session
func (m *Manager) Abandon() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.engine == nil {
		return ErrNoSession
	}
	m.abandonLocked()
	return nil
}

func (m *Manager) abandonLocked() {
	id := m.id
	if !m.engine.IsEnded() {
		if err := m.store.AbandonSession(id, m.now()); err != nil {
			logger.Error("Failed to archive abandoned session", "session", id, "error", err)
		}
	}
	m.engine = nil
	m.id = ""
	m.pending = nil

	logger.Info("Draft session abandoned", "session", id)
	m.publish(pubsub.SessionEvent(pubsub.EventSessionAbandoned, models.SessionSummary{ID: id, Status: models.SessionAbandoned}))
}

// Select forwards to the engine and archives any resulting claim
func (m *Manager) Select(key string) (draft.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectLocked(key)
}

// SelectState is Select followed by State with no other command in between
func (m *Manager) SelectState(key string) (draft.Outcome, models.DraftState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out, err := m.selectLocked(key)
	if err != nil {
		return 0, models.DraftState{}, err
	}
	st, err := m.stateLocked()
	return out, st, err
}

func (m *Manager) selectLocked(key string) (draft.Outcome, error) {
	if m.engine == nil {
		return 0, ErrNoSession
	}

	pick := m.engine.Confirmed() + 1
	m.pending = nil
	out, err := m.engine.Select(key)
	if err != nil {
		m.pending = nil
		return 0, err
	}

	if out == draft.OutcomeConfirmed || out == draft.OutcomeEnded {
		m.archiveClaimLocked(pick)
	}
	if out == draft.OutcomeEnded {
		if err := m.store.CompleteSession(m.id, m.engine.Partition(), m.now()); err != nil {
			logger.Error("Failed to archive completed session", "session", m.id, "error", err)
		}
		logger.Info("Draft session completed", "session", m.id, "picks", m.engine.Confirmed())
	}

	m.flushLocked()
	return out, nil
}

func (m *Manager) archiveClaimLocked(pick int) {
	for _, ev := range m.pending {
		if ev.Type != draft.EventCardClaimed {
			continue
		}
		claim := models.Claim{
			PickNumber:  pick,
			CardKey:     ev.Key,
			Team:        ev.Team,
			PlayerIndex: ev.PlayerIndex,
			Round:       ev.Round,
			ClaimedAt:   m.now(),
		}
		if c, err := m.engine.Card(ev.Key); err == nil {
			claim.CardLabel = c.Label
		}
		if t, err := m.engine.Team(ev.Team); err == nil {
			claim.PlayerName = t.Player(ev.PlayerIndex).Name
		}
		if err := m.store.RecordClaim(m.id, claim); err != nil {
			logger.Error("Failed to archive claim", "session", m.id, "pick", pick, "error", err)
		}
		return
	}
}

// Undo reverts the last claim and drops it from the archive pick log
func (m *Manager) Undo() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.undoLocked()
}

// UndoState is Undo followed by State with no other command in between
func (m *Manager) UndoState() (models.DraftState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.undoLocked(); err != nil {
		return models.DraftState{}, err
	}
	return m.stateLocked()
}

func (m *Manager) undoLocked() error {
	if m.engine == nil {
		return ErrNoSession
	}

	pick := m.engine.Confirmed()
	m.pending = nil
	if err := m.engine.Undo(); err != nil {
		m.pending = nil
		return err
	}
	if err := m.store.RemoveClaim(m.id, pick); err != nil {
		logger.Error("Failed to remove undone claim from archive", "session", m.id, "pick", pick, "error", err)
	}

	m.flushLocked()
	return nil
}

// State returns a snapshot of the running draft
func (m *Manager) State() (models.DraftState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() (models.DraftState, error) {
	if m.engine == nil {
		return models.DraftState{}, ErrNoSession
	}
	st, err := m.engine.State()
	if err != nil {
		return models.DraftState{}, err
	}
	st.SessionID = m.id
	return st, nil
}

// Turn returns who acts next
func (m *Manager) Turn() (models.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.engine == nil {
		return models.Turn{}, ErrNoSession
	}
	return m.engine.CurrentTurn()
}

// Claimed returns a team's claimed cards in order
func (m *Manager) Claimed(team models.TeamID) ([]models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.engine == nil {
		return nil, ErrNoSession
	}
	return m.engine.Claimed(team)
}

// Unclaimed returns the end-of-draft partition
func (m *Manager) Unclaimed() ([]models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.engine == nil {
		return nil, ErrNoSession
	}
	return m.engine.Unclaimed()
}

// SessionID returns the running session id, or ""
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

// History lists archived sessions, newest first
func (m *Manager) History(limit int) ([]models.SessionSummary, error) {
	return m.store.ListSessions(limit)
}

// Session loads one archived session
func (m *Manager) Session(id string) (*models.SessionRecord, error) {
	return m.store.GetSession(id)
}

// flushLocked publishes buffered engine events in emission order
func (m *Manager) flushLocked() {
	events := m.pending
	m.pending = nil
	for _, ev := range events {
		m.publish(pubsub.FromDraft(m.id, ev))
	}
}

func (m *Manager) publish(ev pubsub.Event) {
	if m.bus != nil {
		m.bus.Publish(ev)
	}
}

func summaryOf(rec *models.SessionRecord) models.SessionSummary {
	return models.SessionSummary{
		ID:        rec.ID,
		Status:    rec.Status,
		TeamAName: rec.TeamAName,
		TeamBName: rec.TeamBName,
		Picks:     len(rec.Claims),
		StartedAt: rec.StartedAt,
	}
}
