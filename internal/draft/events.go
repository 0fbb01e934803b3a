package draft

import "github.com/Billy-Davies-2/word-card-draft/internal/models"

// EventType names an engine notification
type EventType string

const (
	EventTurnChanged       EventType = "draft:turn"
	EventCardHighlighted   EventType = "card:highlight"
	EventCardUnhighlighted EventType = "card:unhighlight"
	EventCardClaimed       EventType = "card:claim"
	EventCardUndone        EventType = "card:undo"
	EventDraftEnded        EventType = "draft:end"
)

// Event is emitted after a transition has completed. Only the fields relevant to Type are set.
type Event struct {
	Type        EventType     `json:"type"`
	Key         string        `json:"key,omitempty"`
	Team        models.TeamID `json:"team,omitempty"`
	PlayerIndex int           `json:"playerIndex"`
	Round       int           `json:"round"`
	Unclaimed   []string      `json:"unclaimed,omitempty"`
}

// Observer receives engine events synchronously. Implementations must not call back into the engine.
type Observer interface {
	OnDraftEvent(Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Event)

func (f ObserverFunc) OnDraftEvent(e Event) { f(e) }
