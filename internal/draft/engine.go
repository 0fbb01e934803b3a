// Package draft implements the two-team card draft: highlight/confirm selection, lockstep round
// rotation across unequal rosters, a one-slot undo buffer and the end-of-draft unclaimed partition.
//
// An Engine is single-writer. It never blocks and holds no locks; hosts that accept commands from
// several goroutines must serialize calls themselves.
package draft

import (
	"fmt"

	"github.com/Billy-Davies-2/word-card-draft/internal/logger"
	"github.com/Billy-Davies-2/word-card-draft/internal/models"
)

// TeamConfig describes one side at session start
type TeamConfig struct {
	Name    string   `json:"name"`
	Size    int      `json:"size"`
	Players []string `json:"players,omitempty"`
}

// Config is the session initialization input
type Config struct {
	Cards     []CardSpec `json:"cards"`
	TeamA     TeamConfig `json:"teamA"`
	TeamB     TeamConfig `json:"teamB"`
	Threshold int        `json:"threshold"`
}

// Outcome reports what an accepted Select did
type Outcome int

const (
	OutcomeHighlighted Outcome = iota + 1
	OutcomeSwitched
	OutcomeConfirmed
	OutcomeEnded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHighlighted:
		return "highlighted"
	case OutcomeSwitched:
		return "switched"
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeEnded:
		return "ended"
	default:
		return "none"
	}
}

type phase int

const (
	phaseIdle phase = iota
	phaseHighlighted
	phaseEnded
)

// snapshot is the single undo slot: the last confirmed card and the turn it was confirmed on
type snapshot struct {
	key   string
	team  models.TeamID
	round int
}

// Option configures an Engine
type Option func(*Engine)

// WithObserver registers an observer for engine events
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// Engine is the draft state machine. The zero value is unusable; build one with New.
type Engine struct {
	pool      *Pool
	teams     map[models.TeamID]*Team
	threshold int

	phase       phase
	highlighted string
	active      models.TeamID
	round       int
	confirmed   int
	undo        *snapshot
	unclaimed   []string

	observers []Observer
}

// New validates cfg and returns an engine in the Idle state with team A to act in round 0.
// A threshold above the card count ends the draft once every card is claimed.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if cfg.Threshold < 1 {
		return nil, ErrInvalidThreshold.with(fmt.Sprintf("got %d", cfg.Threshold))
	}
	pool, err := NewPool(cfg.Cards)
	if err != nil {
		return nil, err
	}
	teamA, err := NewTeam(models.TeamA, cfg.TeamA.Name, cfg.TeamA.Size, cfg.TeamA.Players)
	if err != nil {
		return nil, err
	}
	teamB, err := NewTeam(models.TeamB, cfg.TeamB.Name, cfg.TeamB.Size, cfg.TeamB.Players)
	if err != nil {
		return nil, err
	}

	threshold := cfg.Threshold
	if threshold > pool.Len() {
		threshold = pool.Len()
	}

	e := &Engine{
		pool:      pool,
		teams:     map[models.TeamID]*Team{models.TeamA: teamA, models.TeamB: teamB},
		threshold: threshold,
		phase:     phaseIdle,
		active:    models.TeamA,
	}
	for _, opt := range opts {
		opt(e)
	}

	logger.Debug("Draft engine initialized", "cards", pool.Len(), "teamA", teamA.RosterSize(), "teamB", teamB.RosterSize(), "threshold", threshold)
	e.emitTurn()
	return e, nil
}

func (e *Engine) ready() error {
	if e == nil || e.pool == nil {
		logger.Error("Draft engine used before initialization")
		return ErrNotInitialized
	}
	return nil
}

// Select drives the highlight/confirm protocol for the card with the given key.
// Selecting the highlighted card again confirms it for the active team.
func (e *Engine) Select(key string) (Outcome, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if e.phase == phaseEnded {
		return 0, ErrDraftAlreadyEnded
	}

	status, err := e.pool.Status(key)
	if err != nil {
		logger.Error("Select on unknown card", "key", key)
		return 0, err
	}

	if e.phase == phaseHighlighted && key == e.highlighted {
		return e.confirm(key)
	}
	if status != models.StatusAvailable {
		logger.Debug("Select rejected", "key", key, "status", status)
		return 0, ErrCardUnavailable.with(key)
	}

	if e.phase == phaseHighlighted {
		prev := e.highlighted
		if err := e.pool.setStatus(prev, models.StatusAvailable, ""); err != nil {
			return 0, err
		}
		if err := e.pool.setStatus(key, models.StatusHighlighted, ""); err != nil {
			return 0, err
		}
		e.highlighted = key
		e.emit(Event{Type: EventCardUnhighlighted, Key: prev, Round: e.round})
		e.emit(Event{Type: EventCardHighlighted, Key: key, Team: e.active, Round: e.round})
		return OutcomeSwitched, nil
	}

	if err := e.pool.setStatus(key, models.StatusHighlighted, ""); err != nil {
		return 0, err
	}
	e.phase = phaseHighlighted
	e.highlighted = key
	e.emit(Event{Type: EventCardHighlighted, Key: key, Team: e.active, Round: e.round})
	return OutcomeHighlighted, nil
}

func (e *Engine) confirm(key string) (Outcome, error) {
	team := e.teams[e.active]
	if err := team.recordClaim(key); err != nil {
		logger.Error("Claim invariant broken", "key", key, "team", e.active, "error", err)
		return 0, err
	}
	if err := e.pool.setStatus(key, models.StatusClaimed, e.active); err != nil {
		_ = team.undoLastClaim(key)
		return 0, err
	}

	player := team.ActivePlayerIndex(e.round)
	e.undo = &snapshot{key: key, team: e.active, round: e.round}
	e.confirmed++
	e.highlighted = ""
	e.phase = phaseIdle
	e.emit(Event{Type: EventCardClaimed, Key: key, Team: e.active, PlayerIndex: player, Round: e.round})

	logger.Debug("Card claimed", "key", key, "team", e.active, "player", player, "round", e.round, "confirmed", e.confirmed)

	if e.active == models.TeamA {
		e.active = models.TeamB
	} else {
		e.active = models.TeamA
		e.round++
	}

	if e.confirmed >= e.threshold {
		e.end()
		return OutcomeEnded, nil
	}
	e.emitTurn()
	return OutcomeConfirmed, nil
}

// end freezes the draft and materializes the unclaimed partition
func (e *Engine) end() {
	keys := e.pool.availableRemainder()
	for _, k := range keys {
		if err := e.pool.setStatus(k, models.StatusUnclaimed, ""); err != nil {
			logger.Error("Failed to mark card unclaimed", "key", k, "error", err)
		}
	}
	e.unclaimed = keys
	e.undo = nil
	e.phase = phaseEnded

	logger.Info("Draft ended", "confirmed", e.confirmed, "unclaimed", len(keys))
	e.emit(Event{Type: EventDraftEnded, Round: e.round, Unclaimed: e.Partition()})
}

// Undo reverts the most recent confirmed claim and restores the turn it was made on.
// A pending highlight is cleared first.
func (e *Engine) Undo() error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.phase == phaseEnded {
		return ErrDraftAlreadyEnded
	}
	if e.undo == nil {
		return ErrNothingToUndo
	}
	snap := *e.undo

	if e.phase == phaseHighlighted {
		prev := e.highlighted
		if err := e.pool.setStatus(prev, models.StatusAvailable, ""); err != nil {
			return err
		}
		e.highlighted = ""
		e.phase = phaseIdle
		e.emit(Event{Type: EventCardUnhighlighted, Key: prev, Round: e.round})
	}

	team := e.teams[snap.team]
	if err := team.undoLastClaim(snap.key); err != nil {
		logger.Error("Undo snapshot does not match team claims", "key", snap.key, "team", snap.team, "error", err)
		return err
	}
	if err := e.pool.setStatus(snap.key, models.StatusAvailable, ""); err != nil {
		_ = team.recordClaim(snap.key)
		return err
	}

	e.confirmed--
	e.active = snap.team
	e.round = snap.round
	e.undo = nil

	logger.Debug("Claim undone", "key", snap.key, "team", snap.team, "round", snap.round)
	e.emit(Event{Type: EventCardUndone, Key: snap.key, Team: snap.team, PlayerIndex: team.ActivePlayerIndex(snap.round), Round: snap.round})
	e.emitTurn()
	return nil
}

// CurrentTurn returns the team and player expected to act
func (e *Engine) CurrentTurn() (models.Turn, error) {
	if err := e.ready(); err != nil {
		return models.Turn{}, err
	}
	if e.phase == phaseEnded {
		return models.Turn{}, ErrDraftAlreadyEnded
	}
	return e.turn(), nil
}

func (e *Engine) turn() models.Turn {
	team := e.teams[e.active]
	p := team.Player(team.ActivePlayerIndex(e.round))
	return models.Turn{
		Team:        e.active,
		TeamName:    team.Name(),
		PlayerIndex: p.Index,
		PlayerName:  p.Name,
		Role:        p.Role,
		Round:       e.round,
	}
}

// CardStatus returns the status of one card
func (e *Engine) CardStatus(key string) (models.CardStatus, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	return e.pool.Status(key)
}

// Claimed returns a team's cards in claim order
func (e *Engine) Claimed(team models.TeamID) ([]models.Card, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	t, ok := e.teams[team]
	if !ok {
		return nil, ErrUnknownTeam.with(string(team))
	}
	keys := t.Claimed()
	cards := make([]models.Card, 0, len(keys))
	for _, k := range keys {
		c, err := e.pool.Get(k)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// Unclaimed returns the frozen partition of never-claimed cards. Only valid once ended.
func (e *Engine) Unclaimed() ([]models.Card, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.phase != phaseEnded {
		return nil, ErrDraftNotEnded
	}
	cards := make([]models.Card, 0, len(e.unclaimed))
	for _, k := range e.unclaimed {
		c, err := e.pool.Get(k)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// Partition returns a copy of the unclaimed keys; nil until the draft ends
func (e *Engine) Partition() []string {
	if e == nil || e.unclaimed == nil {
		return nil
	}
	out := make([]string, len(e.unclaimed))
	copy(out, e.unclaimed)
	return out
}

// IsEnded reports whether the termination threshold has been reached
func (e *Engine) IsEnded() bool {
	return e != nil && e.phase == phaseEnded
}

// CanUndo reports whether Undo would succeed
func (e *Engine) CanUndo() bool {
	return e != nil && e.pool != nil && e.phase != phaseEnded && e.undo != nil
}

// Highlighted returns the focused card key, if any
func (e *Engine) Highlighted() (string, bool) {
	if e == nil || e.phase != phaseHighlighted {
		return "", false
	}
	return e.highlighted, true
}

// Confirmed returns the number of claims made so far
func (e *Engine) Confirmed() int {
	if e == nil {
		return 0
	}
	return e.confirmed
}

// Threshold returns the effective claim limit, at most the number of cards
func (e *Engine) Threshold() int {
	if e == nil {
		return 0
	}
	return e.threshold
}

// Round returns the current zero-based round
func (e *Engine) Round() int {
	if e == nil {
		return 0
	}
	return e.round
}

// Team returns the team with the given id
func (e *Engine) Team(id models.TeamID) (*Team, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	t, ok := e.teams[id]
	if !ok {
		return nil, ErrUnknownTeam.with(string(id))
	}
	return t, nil
}

// Card returns a copy of one card
func (e *Engine) Card(key string) (models.Card, error) {
	if err := e.ready(); err != nil {
		return models.Card{}, err
	}
	return e.pool.Get(key)
}

// State returns a full read-only snapshot for presentation layers
func (e *Engine) State() (models.DraftState, error) {
	if err := e.ready(); err != nil {
		return models.DraftState{}, err
	}

	st := models.DraftState{
		Cards:     e.pool.Cards(),
		Confirmed: e.confirmed,
		Remaining: e.pool.CountAvailable(),
		Threshold: e.threshold,
		CanUndo:   e.CanUndo(),
		Ended:     e.phase == phaseEnded,
		Unclaimed: e.Partition(),
	}
	if k, ok := e.Highlighted(); ok {
		st.Highlighted = k
	}
	if e.phase != phaseEnded {
		t := e.turn()
		st.Turn = &t
	}
	for _, id := range []models.TeamID{models.TeamA, models.TeamB} {
		t := e.teams[id]
		claimed, err := e.Claimed(id)
		if err != nil {
			return models.DraftState{}, err
		}
		st.Teams = append(st.Teams, models.Team{
			ID:      id,
			Name:    t.Name(),
			Players: t.Players(),
			Claimed: claimed,
		})
	}
	return st, nil
}

func (e *Engine) emitTurn() {
	team := e.teams[e.active]
	e.emit(Event{Type: EventTurnChanged, Team: e.active, PlayerIndex: team.ActivePlayerIndex(e.round), Round: e.round})
}

func (e *Engine) emit(ev Event) {
	for _, o := range e.observers {
		o.OnDraftEvent(ev)
	}
}
