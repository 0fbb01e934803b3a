package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Billy-Davies-2/word-card-draft/internal/config"
	"github.com/Billy-Davies-2/word-card-draft/internal/dal"
	"github.com/Billy-Davies-2/word-card-draft/internal/draft"
	"github.com/Billy-Davies-2/word-card-draft/internal/mocks"
	"github.com/Billy-Davies-2/word-card-draft/internal/models"
	"github.com/Billy-Davies-2/word-card-draft/internal/pubsub"
)

type recorder struct {
	mu     sync.Mutex
	events []pubsub.Event
}

func (r *recorder) Publish(ev pubsub.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func setup(cards, sizeA, sizeB, threshold int) Setup {
	specs := make([]draft.CardSpec, cards)
	for i := range specs {
		specs[i] = draft.CardSpec{Key: fmt.Sprintf("c%d", i+1), Label: fmt.Sprintf("word %d", i+1)}
	}
	return Setup{
		Cards:     specs,
		TeamA:     draft.TeamConfig{Name: "Red", Size: sizeA},
		TeamB:     draft.TeamConfig{Name: "Blue", Size: sizeB, Players: []string{"Ana", "Ben"}},
		Threshold: threshold,
	}
}

func fixedClock() func() time.Time {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t0 }
}

func confirm(t *testing.T, m *Manager, key string) draft.Outcome {
	t.Helper()
	_, err := m.Select(key)
	require.NoError(t, err)
	out, err := m.Select(key)
	require.NoError(t, err)
	return out
}

func TestCommandsWithoutSession(t *testing.T) {
	m := NewManager(dal.NewMemoryDAL(), nil)

	_, err := m.Select("c1")
	assert.ErrorIs(t, err, ErrNoSession)
	assert.ErrorIs(t, m.Undo(), ErrNoSession)
	assert.ErrorIs(t, m.Abandon(), ErrNoSession)
	_, err = m.State()
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = m.Turn()
	assert.ErrorIs(t, err, ErrNoSession)
	assert.True(t, draft.IsUsage(err))
}

func TestStartArchivesAndPublishes(t *testing.T) {
	store := dal.NewMemoryDAL()
	bus := &recorder{}
	m := NewManager(store, bus, WithClock(fixedClock()))

	st, err := m.Start(setup(6, 1, 2, 4))
	require.NoError(t, err)
	require.NotEmpty(t, st.SessionID)
	assert.Equal(t, m.SessionID(), st.SessionID)
	require.NotNil(t, st.Turn)
	assert.Equal(t, models.TeamA, st.Turn.Team)

	assert.Equal(t, []string{pubsub.EventSessionStarted, string(draft.EventTurnChanged)}, bus.types())

	rec, err := store.GetSession(st.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionRunning, rec.Status)
	assert.Equal(t, "Red", rec.TeamAName)
	assert.Equal(t, 2, rec.TeamBSize)
	assert.Equal(t, 4, rec.Threshold)
}

func TestStartRejectsInvalidSetup(t *testing.T) {
	m := NewManager(dal.NewMemoryDAL(), nil)

	_, err := m.Start(setup(0, 1, 1, 4))
	assert.ErrorIs(t, err, draft.ErrInvalidPool)
	_, err = m.Start(setup(4, 0, 1, 4))
	assert.ErrorIs(t, err, draft.ErrInvalidRoster)
	_, err = m.Start(setup(4, 1, 1, 0))
	assert.ErrorIs(t, err, draft.ErrInvalidThreshold)
	_, err = m.Start(setup(4, MaxRosterSize+1, 1, 4))
	assert.ErrorIs(t, err, draft.ErrInvalidRoster)
	assert.Empty(t, m.SessionID())
}

func TestClaimsAreArchived(t *testing.T) {
	store := dal.NewMemoryDAL()
	m := NewManager(store, &recorder{}, WithClock(fixedClock()))
	st, err := m.Start(setup(6, 1, 2, 90))
	require.NoError(t, err)

	confirm(t, m, "c1")
	confirm(t, m, "c2")
	confirm(t, m, "c3")
	confirm(t, m, "c4")

	rec, err := store.GetSession(st.SessionID)
	require.NoError(t, err)
	require.Len(t, rec.Claims, 4)

	assert.Equal(t, models.Claim{
		PickNumber: 2, CardKey: "c2", CardLabel: "word 2", Team: models.TeamB,
		PlayerIndex: 0, PlayerName: "Ana", Round: 0, ClaimedAt: fixedClock()(),
	}, rec.Claims[1])
	assert.Equal(t, "Ben", rec.Claims[3].PlayerName)
	assert.Equal(t, 1, rec.Claims[3].Round)
}

func TestUndoRemovesArchivedClaim(t *testing.T) {
	store := dal.NewMemoryDAL()
	bus := &recorder{}
	m := NewManager(store, bus)
	st, err := m.Start(setup(6, 1, 1, 90))
	require.NoError(t, err)

	confirm(t, m, "c1")
	confirm(t, m, "c2")
	bus.reset()

	require.NoError(t, m.Undo())
	assert.Equal(t, []string{string(draft.EventCardUndone), string(draft.EventTurnChanged)}, bus.types())

	rec, err := store.GetSession(st.SessionID)
	require.NoError(t, err)
	require.Len(t, rec.Claims, 1)
	assert.Equal(t, "c1", rec.Claims[0].CardKey)

	// second undo is rejected and changes nothing
	assert.ErrorIs(t, m.Undo(), draft.ErrNothingToUndo)
	rec, _ = store.GetSession(st.SessionID)
	assert.Len(t, rec.Claims, 1)

	// the undone card can be claimed again with the same pick number
	confirm(t, m, "c2")
	rec, _ = store.GetSession(st.SessionID)
	require.Len(t, rec.Claims, 2)
	assert.Equal(t, 2, rec.Claims[1].PickNumber)
}

func TestRejectedSelectPublishesNothing(t *testing.T) {
	bus := &recorder{}
	m := NewManager(dal.NewMemoryDAL(), bus)
	_, err := m.Start(setup(4, 1, 1, 90))
	require.NoError(t, err)
	confirm(t, m, "c1")
	bus.reset()

	_, err = m.Select("c1")
	assert.ErrorIs(t, err, draft.ErrCardUnavailable)
	_, err = m.Select("zz")
	assert.ErrorIs(t, err, draft.ErrUnknownCard)
	assert.Empty(t, bus.types())
}

func TestDraftEndCompletesAndExports(t *testing.T) {
	store := dal.NewMemoryDAL()
	bus := &recorder{}
	analytics := mocks.NewMockClickHouseClient()
	exporter := NewArchiveExporter(store, analytics)

	m := NewManager(store, bus)
	st, err := m.Start(setup(6, 1, 1, 4))
	require.NoError(t, err)

	confirm(t, m, "c1")
	confirm(t, m, "c2")
	confirm(t, m, "c3")
	assert.Equal(t, draft.OutcomeEnded, confirm(t, m, "c4"))

	unclaimed, err := m.Unclaimed()
	require.NoError(t, err)
	assert.Len(t, unclaimed, 2)

	rec, err := store.GetSession(st.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, rec.Status)
	assert.Equal(t, []string{"c5", "c6"}, rec.Unclaimed)
	require.NotNil(t, rec.FinishedAt)

	ch := make(chan pubsub.Event, len(bus.events))
	for _, ev := range bus.events {
		ch <- ev
	}
	close(ch)
	exporter.Run(ch)

	assert.Equal(t, []string{st.SessionID}, analytics.ExportedSessions())
	stats, err := analytics.CardPopularity(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, stats, 4)

	_, err = m.Select("c5")
	assert.ErrorIs(t, err, draft.ErrDraftAlreadyEnded)
}

func TestExportThroughDurableConsumer(t *testing.T) {
	store := dal.NewMemoryDAL()
	bus := mocks.NewMockNATSPubSub()
	analytics := mocks.NewMockClickHouseClient()
	require.NoError(t, bus.SubscribeJetStream("analytics-exporter", NewArchiveExporter(store, analytics).Handle))

	m := NewManager(store, bus)
	st, err := m.Start(setup(3, 1, 1, 2))
	require.NoError(t, err)
	confirm(t, m, "c1")
	assert.Equal(t, draft.OutcomeEnded, confirm(t, m, "c2"))

	assert.Eventually(t, func() bool {
		return len(analytics.ExportedSessions()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{st.SessionID}, analytics.ExportedSessions())

	last := bus.Replay(1)
	require.Len(t, last, 1)
	assert.Equal(t, string(draft.EventDraftEnded), last[0].Type)
}

func TestAbandon(t *testing.T) {
	store := dal.NewMemoryDAL()
	bus := &recorder{}
	m := NewManager(store, bus)
	st, err := m.Start(setup(4, 1, 1, 90))
	require.NoError(t, err)
	confirm(t, m, "c1")

	require.NoError(t, m.Abandon())
	assert.Empty(t, m.SessionID())
	assert.Contains(t, bus.types(), pubsub.EventSessionAbandoned)

	rec, err := store.GetSession(st.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionAbandoned, rec.Status)

	_, err = m.State()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRestartAbandonsUnfinishedSession(t *testing.T) {
	store := dal.NewMemoryDAL()
	bus := &recorder{}
	m := NewManager(store, bus)

	first, err := m.Start(setup(4, 1, 1, 90))
	require.NoError(t, err)
	bus.reset()

	second, err := m.Start(setup(4, 1, 1, 90))
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Equal(t, []string{pubsub.EventSessionAbandoned, pubsub.EventSessionStarted, string(draft.EventTurnChanged)}, bus.types())

	rec, _ := store.GetSession(first.SessionID)
	assert.Equal(t, models.SessionAbandoned, rec.Status)

	for _, c := range second.Cards {
		assert.Equal(t, models.StatusAvailable, c.Status)
	}

	history, err := m.History(0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestSetupFromConfig(t *testing.T) {
	cfg := config.DraftConfig{
		TeamAName: "North", TeamBName: "South",
		TeamASize: 2, TeamBSize: 3,
		TeamBPlayers: []string{" Ana ", "Ben"},
		Threshold:    12,
	}
	s := SetupFromConfig(cfg, []draft.CardSpec{{Key: "1", Label: "river"}})

	assert.Equal(t, "North", s.TeamA.Name)
	assert.Equal(t, 3, s.TeamB.Size)
	assert.Equal(t, []string{"Ana", "Ben"}, s.TeamB.Players)
	assert.Equal(t, 12, s.Threshold)
	assert.Len(t, s.Cards, 1)
}

func TestConcurrentSelectsAreSerialized(t *testing.T) {
	m := NewManager(dal.NewMemoryDAL(), pubsub.New())
	_, err := m.Start(setup(40, 2, 3, 90))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 1; i <= 40; i++ {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			m.Select(k)
			m.Select(k)
		}(fmt.Sprintf("c%d", i))
	}
	wg.Wait()

	st, err := m.State()
	require.NoError(t, err)
	claimed := 0
	for _, c := range st.Cards {
		if c.Status == models.StatusClaimed {
			claimed++
		}
	}
	assert.Equal(t, st.Confirmed, claimed)
	assert.Equal(t, st.Confirmed, len(st.Teams[0].Claimed)+len(st.Teams[1].Claimed))
}

func TestSelectStateReflectsOwnTransition(t *testing.T) {
	m := NewManager(dal.NewMemoryDAL(), pubsub.New())
	_, err := m.Start(setup(40, 2, 3, 90))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 1; i <= 40; i++ {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			for n := 0; n < 2; n++ {
				out, st, err := m.SelectState(k)
				if err != nil {
					continue
				}
				switch out {
				case draft.OutcomeHighlighted, draft.OutcomeSwitched:
					assert.Equal(t, k, st.Highlighted)
				case draft.OutcomeConfirmed:
					assert.Empty(t, st.Highlighted)
					for _, c := range st.Cards {
						if c.Key == k {
							assert.Equal(t, models.StatusClaimed, c.Status)
						}
					}
				}
			}
		}(fmt.Sprintf("c%d", i))
	}
	wg.Wait()
}

func TestUndoState(t *testing.T) {
	m := NewManager(dal.NewMemoryDAL(), nil)
	_, err := m.UndoState()
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = m.Start(setup(4, 1, 1, 90))
	require.NoError(t, err)
	confirm(t, m, "c1")

	st, err := m.UndoState()
	require.NoError(t, err)
	assert.Equal(t, 0, st.Confirmed)
	assert.False(t, st.CanUndo)

	_, err = m.UndoState()
	assert.ErrorIs(t, err, draft.ErrNothingToUndo)
}
