package draft

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Billy-Davies-2/word-card-draft/internal/models"
)

func specs(n int) []CardSpec {
	out := make([]CardSpec, n)
	for i := range out {
		out[i] = CardSpec{Key: fmt.Sprintf("c%d", i+1), Label: fmt.Sprintf("word %d", i+1)}
	}
	return out
}

func newEngine(t *testing.T, cards, sizeA, sizeB, threshold int, opts ...Option) *Engine {
	t.Helper()
	e, err := New(Config{
		Cards:     specs(cards),
		TeamA:     TeamConfig{Name: "Red", Size: sizeA},
		TeamB:     TeamConfig{Name: "Blue", Size: sizeB},
		Threshold: threshold,
	}, opts...)
	require.NoError(t, err)
	return e
}

func claim(t *testing.T, e *Engine, key string) Outcome {
	t.Helper()
	out, err := e.Select(key)
	require.NoError(t, err)
	require.Equal(t, OutcomeHighlighted, out)
	out, err = e.Select(key)
	require.NoError(t, err)
	return out
}

func keys(cards []models.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Key
	}
	return out
}

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want *Error
	}{
		{"zero threshold", Config{Cards: specs(2), TeamA: TeamConfig{Size: 1}, TeamB: TeamConfig{Size: 1}}, ErrInvalidThreshold},
		{"no cards", Config{TeamA: TeamConfig{Size: 1}, TeamB: TeamConfig{Size: 1}, Threshold: 1}, ErrInvalidPool},
		{"duplicate keys", Config{Cards: []CardSpec{{Key: "x"}, {Key: "x"}}, TeamA: TeamConfig{Size: 1}, TeamB: TeamConfig{Size: 1}, Threshold: 1}, ErrInvalidPool},
		{"empty team a", Config{Cards: specs(2), TeamB: TeamConfig{Size: 1}, Threshold: 1}, ErrInvalidRoster},
		{"empty team b", Config{Cards: specs(2), TeamA: TeamConfig{Size: 1}, Threshold: 1}, ErrInvalidRoster},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsConfiguration(err))
		})
	}
}

func TestInitialState(t *testing.T) {
	e := newEngine(t, 5, 2, 3, 90)

	turn, err := e.CurrentTurn()
	require.NoError(t, err)
	assert.Equal(t, models.TeamA, turn.Team)
	assert.Equal(t, 0, turn.Round)
	assert.Equal(t, 0, turn.PlayerIndex)
	assert.Equal(t, models.RoleLeader, turn.Role)
	assert.Equal(t, "Red", turn.TeamName)
	assert.False(t, e.CanUndo())
	assert.False(t, e.IsEnded())
	assert.Equal(t, 5, e.Threshold(), "threshold is capped at the pool size")

	for _, c := range e.pool.Cards() {
		assert.Equal(t, models.StatusAvailable, c.Status)
	}
}

func TestSelectHighlightAndSwitch(t *testing.T) {
	e := newEngine(t, 4, 1, 1, 90)

	out, err := e.Select("c1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeHighlighted, out)
	h, ok := e.Highlighted()
	require.True(t, ok)
	assert.Equal(t, "c1", h)

	out, err = e.Select("c2")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSwitched, out)

	s1, _ := e.CardStatus("c1")
	s2, _ := e.CardStatus("c2")
	assert.Equal(t, models.StatusAvailable, s1)
	assert.Equal(t, models.StatusHighlighted, s2)

	highlighted := 0
	for _, c := range e.pool.Cards() {
		if c.Status == models.StatusHighlighted {
			highlighted++
		}
	}
	assert.Equal(t, 1, highlighted)
	assert.Equal(t, 0, e.Confirmed())
}

func TestSelectUnknownCard(t *testing.T) {
	e := newEngine(t, 2, 1, 1, 90)

	_, err := e.Select("nope")
	assert.ErrorIs(t, err, ErrUnknownCard)
	assert.True(t, IsUsage(err))
}

func TestSelectClaimedCardIsRejected(t *testing.T) {
	e := newEngine(t, 4, 1, 1, 90)
	claim(t, e, "c1")

	_, err := e.Select("c1")
	assert.ErrorIs(t, err, ErrCardUnavailable)
	assert.True(t, IsIllegalState(err))

	// a pending highlight survives a rejected select
	_, err = e.Select("c2")
	require.NoError(t, err)
	_, err = e.Select("c1")
	assert.ErrorIs(t, err, ErrCardUnavailable)
	h, ok := e.Highlighted()
	assert.True(t, ok)
	assert.Equal(t, "c2", h)
}

func TestConfirmAdvancesTurn(t *testing.T) {
	e := newEngine(t, 6, 2, 3, 90)

	assert.Equal(t, OutcomeConfirmed, claim(t, e, "c1"))
	turn, _ := e.CurrentTurn()
	assert.Equal(t, models.TeamB, turn.Team)
	assert.Equal(t, 0, turn.Round)

	assert.Equal(t, OutcomeConfirmed, claim(t, e, "c2"))
	turn, _ = e.CurrentTurn()
	assert.Equal(t, models.TeamA, turn.Team)
	assert.Equal(t, 1, turn.Round)
	assert.Equal(t, 1, turn.PlayerIndex)
	assert.Equal(t, models.RoleMember, turn.Role)

	c, err := e.Card("c1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusClaimed, c.Status)
	assert.Equal(t, models.TeamA, c.ClaimedBy)
	assert.Equal(t, 2, e.Confirmed())
}

func TestConfirmUndoRoundTrip(t *testing.T) {
	e := newEngine(t, 6, 2, 3, 90)
	claim(t, e, "c1")
	claim(t, e, "c2")

	before, err := e.State()
	require.NoError(t, err)
	assert.Equal(t, 4, before.Remaining)

	_, err = e.Select("c3")
	require.NoError(t, err)
	mid, err := e.State()
	require.NoError(t, err)
	assert.Equal(t, 3, mid.Remaining, "a highlighted card is no longer Available")

	out, err := e.Select("c3")
	require.NoError(t, err)
	require.Equal(t, OutcomeConfirmed, out)
	require.True(t, e.CanUndo())
	require.NoError(t, e.Undo())

	after, err := e.State()
	require.NoError(t, err)
	before.CanUndo = false
	assert.Equal(t, before, after)
}

func TestUndoIsSingleLevel(t *testing.T) {
	e := newEngine(t, 6, 1, 1, 90)
	claim(t, e, "c1")
	claim(t, e, "c2")

	require.NoError(t, e.Undo())
	assert.False(t, e.CanUndo())

	err := e.Undo()
	assert.ErrorIs(t, err, ErrNothingToUndo)

	claimedA, _ := e.Claimed(models.TeamA)
	claimedB, _ := e.Claimed(models.TeamB)
	assert.Equal(t, []string{"c1"}, keys(claimedA))
	assert.Empty(t, claimedB)

	turn, _ := e.CurrentTurn()
	assert.Equal(t, models.TeamB, turn.Team)
	assert.Equal(t, 0, turn.Round)
}

func TestUndoWithNothingClaimed(t *testing.T) {
	e := newEngine(t, 3, 1, 1, 90)
	assert.ErrorIs(t, e.Undo(), ErrNothingToUndo)
}

func TestUndoClearsPendingHighlight(t *testing.T) {
	var events []EventType
	e := newEngine(t, 4, 1, 1, 90, WithObserver(ObserverFunc(func(ev Event) {
		events = append(events, ev.Type)
	})))
	claim(t, e, "c1")
	_, err := e.Select("c2")
	require.NoError(t, err)

	events = nil
	require.NoError(t, e.Undo())

	_, ok := e.Highlighted()
	assert.False(t, ok)
	s, _ := e.CardStatus("c2")
	assert.Equal(t, models.StatusAvailable, s)
	s, _ = e.CardStatus("c1")
	assert.Equal(t, models.StatusAvailable, s)
	assert.Equal(t, []EventType{EventCardUnhighlighted, EventCardUndone, EventTurnChanged}, events)
}

func TestRoundRobinFairness(t *testing.T) {
	e := newEngine(t, 30, 2, 3, 90)

	picks := map[models.TeamID]map[int]int{models.TeamA: {}, models.TeamB: {}}
	pick := func(n int) {
		for i := 0; i < n; i++ {
			turn, err := e.CurrentTurn()
			require.NoError(t, err)
			picks[turn.Team][turn.PlayerIndex]++
			claim(t, e, fmt.Sprintf("c%d", e.Confirmed()+1))
		}
	}

	pick(12)
	assert.Equal(t, 6, e.Round())
	assert.Equal(t, map[int]int{0: 3, 1: 3}, picks[models.TeamA])
	assert.Equal(t, map[int]int{0: 2, 1: 2, 2: 2}, picks[models.TeamB])

	pick(12)
	assert.Equal(t, 12, e.Round())
	assert.Equal(t, map[int]int{0: 6, 1: 6}, picks[models.TeamA])
	assert.Equal(t, map[int]int{0: 4, 1: 4, 2: 4}, picks[models.TeamB])
}

func TestTerminationPartition(t *testing.T) {
	e := newEngine(t, 10, 2, 2, 6)

	for i := 1; i <= 5; i++ {
		assert.Equal(t, OutcomeConfirmed, claim(t, e, fmt.Sprintf("c%d", i)))
	}
	assert.Equal(t, OutcomeEnded, claim(t, e, "c6"))
	assert.True(t, e.IsEnded())

	unclaimed, err := e.Unclaimed()
	require.NoError(t, err)
	assert.Equal(t, []string{"c7", "c8", "c9", "c10"}, keys(unclaimed))
	for _, c := range unclaimed {
		assert.Equal(t, models.StatusUnclaimed, c.Status)
	}

	_, err = e.Select("c7")
	assert.ErrorIs(t, err, ErrDraftAlreadyEnded)
	assert.ErrorIs(t, e.Undo(), ErrDraftAlreadyEnded)
	_, err = e.CurrentTurn()
	assert.ErrorIs(t, err, ErrDraftAlreadyEnded)
	assert.False(t, e.CanUndo())
}

func TestUnclaimedBeforeEnd(t *testing.T) {
	e := newEngine(t, 3, 1, 1, 2)
	_, err := e.Unclaimed()
	assert.ErrorIs(t, err, ErrDraftNotEnded)
	assert.Nil(t, e.Partition())
}

func TestSixCardScenario(t *testing.T) {
	var ended []string
	e := newEngine(t, 6, 1, 1, 4, WithObserver(ObserverFunc(func(ev Event) {
		if ev.Type == EventDraftEnded {
			ended = ev.Unclaimed
		}
	})))

	claim(t, e, "c1")
	turn, _ := e.CurrentTurn()
	assert.Equal(t, models.TeamB, turn.Team)
	assert.Equal(t, 0, turn.Round)

	claim(t, e, "c2")
	turn, _ = e.CurrentTurn()
	assert.Equal(t, models.TeamA, turn.Team)
	assert.Equal(t, 1, turn.Round)

	claim(t, e, "c3")
	assert.Equal(t, OutcomeEnded, claim(t, e, "c4"))

	unclaimed, err := e.Unclaimed()
	require.NoError(t, err)
	assert.Equal(t, []string{"c5", "c6"}, keys(unclaimed))
	assert.Equal(t, []string{"c5", "c6"}, ended)

	claimedA, _ := e.Claimed(models.TeamA)
	claimedB, _ := e.Claimed(models.TeamB)
	assert.Equal(t, []string{"c1", "c3"}, keys(claimedA))
	assert.Equal(t, []string{"c2", "c4"}, keys(claimedB))
}

func TestThresholdAboveCardCount(t *testing.T) {
	e := newEngine(t, 2, 1, 1, 90)
	claim(t, e, "c1")
	assert.Equal(t, OutcomeEnded, claim(t, e, "c2"))

	unclaimed, err := e.Unclaimed()
	require.NoError(t, err)
	assert.Empty(t, unclaimed)
}

func TestEventSequence(t *testing.T) {
	var got []Event
	e := newEngine(t, 3, 1, 1, 2, WithObserver(ObserverFunc(func(ev Event) {
		got = append(got, ev)
	})))

	require.Len(t, got, 1)
	assert.Equal(t, EventTurnChanged, got[0].Type)

	claim(t, e, "c1")
	claim(t, e, "c2")

	var types []EventType
	for _, ev := range got {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []EventType{
		EventTurnChanged,
		EventCardHighlighted, EventCardClaimed, EventTurnChanged,
		EventCardHighlighted, EventCardClaimed, EventDraftEnded,
	}, types)

	last := got[len(got)-1]
	assert.Equal(t, []string{"c3"}, last.Unclaimed)
	assert.Equal(t, models.TeamB, got[5].Team)
}

func TestZeroEngineIsUsageError(t *testing.T) {
	var e Engine
	_, err := e.Select("c1")
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.True(t, IsUsage(err))
	assert.ErrorIs(t, e.Undo(), ErrNotInitialized)
	_, err = e.State()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestNilEngineAccessors(t *testing.T) {
	var e *Engine
	assert.Zero(t, e.Confirmed())
	assert.Zero(t, e.Threshold())
	assert.Zero(t, e.Round())
	assert.False(t, e.IsEnded())
	assert.False(t, e.CanUndo())
	_, ok := e.Highlighted()
	assert.False(t, ok)
}

func TestClaimedUnknownTeam(t *testing.T) {
	e := newEngine(t, 2, 1, 1, 2)
	_, err := e.Claimed("C")
	assert.ErrorIs(t, err, ErrUnknownTeam)
}
