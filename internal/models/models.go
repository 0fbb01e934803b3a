package models

import "time"

// TeamID identifies one of the two drafting sides
type TeamID string

const (
	TeamA TeamID = "A"
	TeamB TeamID = "B"
)

// Other returns the opposing side
func (t TeamID) Other() TeamID {
	if t == TeamA {
		return TeamB
	}
	return TeamA
}

// Valid reports whether t names one of the two sides
func (t TeamID) Valid() bool {
	return t == TeamA || t == TeamB
}

// CardStatus is the lifecycle position of a card within a draft
type CardStatus string

const (
	StatusAvailable   CardStatus = "available"
	StatusHighlighted CardStatus = "highlighted"
	StatusClaimed     CardStatus = "claimed"
	StatusUnclaimed   CardStatus = "unclaimed"
)

// Card is a draftable word card
type Card struct {
	Key       string     `json:"key"`
	Label     string     `json:"label"`
	Status    CardStatus `json:"status"`
	ClaimedBy TeamID     `json:"claimedBy,omitempty"`
}

// Role of a player inside a roster
type Role string

const (
	RoleLeader Role = "leader"
	RoleMember Role = "member"
)

// Player is a named roster member
type Player struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// Team is the read-only view of a drafting side
type Team struct {
	ID      TeamID   `json:"id"`
	Name    string   `json:"name"`
	Players []Player `json:"players"`
	Claimed []Card   `json:"claimed"`
}

// Turn describes who is expected to act next
type Turn struct {
	Team        TeamID `json:"team"`
	TeamName    string `json:"teamName"`
	PlayerIndex int    `json:"playerIndex"`
	PlayerName  string `json:"playerName"`
	Role        Role   `json:"role"`
	Round       int    `json:"round"`
}

// DraftState represents the complete state of a running draft
type DraftState struct {
	SessionID   string   `json:"sessionId"`
	Cards       []Card   `json:"cards"`
	Teams       []Team   `json:"teams"`
	Turn        *Turn    `json:"turn,omitempty"`
	Highlighted string   `json:"highlighted,omitempty"`
	Confirmed   int      `json:"confirmed"`
	Remaining   int      `json:"remaining"` // cards still Available
	Threshold   int      `json:"threshold"`
	CanUndo     bool     `json:"canUndo"`
	Ended       bool     `json:"ended"`
	Unclaimed   []string `json:"unclaimed,omitempty"`
}

// SessionStatus tracks an archived draft session
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionAbandoned SessionStatus = "abandoned"
)

// Claim is one confirmed pick in the archive log
type Claim struct {
	PickNumber  int       `json:"pickNumber"`
	CardKey     string    `json:"cardKey"`
	CardLabel   string    `json:"cardLabel"`
	Team        TeamID    `json:"team"`
	PlayerIndex int       `json:"playerIndex"`
	PlayerName  string    `json:"playerName"`
	Round       int       `json:"round"`
	ClaimedAt   time.Time `json:"claimedAt"`
}

// SessionRecord is an archived draft session with its pick log
type SessionRecord struct {
	ID         string        `json:"id"`
	Status     SessionStatus `json:"status"`
	TeamAName  string        `json:"teamAName"`
	TeamBName  string        `json:"teamBName"`
	TeamASize  int           `json:"teamASize"`
	TeamBSize  int           `json:"teamBSize"`
	CardCount  int           `json:"cardCount"`
	Threshold  int           `json:"threshold"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt *time.Time    `json:"finishedAt,omitempty"`
	Claims     []Claim       `json:"claims"`
	Unclaimed  []string      `json:"unclaimed"`
}

// SessionSummary is the list view of an archived session
type SessionSummary struct {
	ID         string        `json:"id"`
	Status     SessionStatus `json:"status"`
	TeamAName  string        `json:"teamAName"`
	TeamBName  string        `json:"teamBName"`
	Picks      int           `json:"picks"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt *time.Time    `json:"finishedAt,omitempty"`
}

// CardStat is the cross-session popularity of one card
type CardStat struct {
	CardKey   string  `json:"cardKey"`
	CardLabel string  `json:"cardLabel"`
	Claims    uint64  `json:"claims"`
	AvgPick   float64 `json:"avgPick"`
	FirstPick uint64  `json:"firstPicks"`
}
