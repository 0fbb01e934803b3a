package draft

import (
	"fmt"

	"github.com/Billy-Davies-2/word-card-draft/internal/models"
)

// Team holds one side's roster and claimed cards
type Team struct {
	id      models.TeamID
	name    string
	players []models.Player
	claimed []string
}

// NewTeam creates a team of size players. Missing names default to "Player N"; index 0 is the leader.
func NewTeam(id models.TeamID, name string, size int, names []string) (*Team, error) {
	if size < 1 {
		return nil, ErrInvalidRoster.with(fmt.Sprintf("team %s has size %d", id, size))
	}
	if name == "" {
		name = "Team " + string(id)
	}

	players := make([]models.Player, size)
	for i := range players {
		n := ""
		if i < len(names) {
			n = names[i]
		}
		if n == "" {
			n = fmt.Sprintf("Player %d", i+1)
		}
		role := models.RoleMember
		if i == 0 {
			role = models.RoleLeader
		}
		players[i] = models.Player{Index: i, Name: n, Role: role}
	}

	return &Team{id: id, name: name, players: players}, nil
}

func (t *Team) ID() models.TeamID { return t.id }
func (t *Team) Name() string      { return t.name }

// RosterSize is fixed at construction
func (t *Team) RosterSize() int {
	return len(t.players)
}

// ActivePlayerIndex is the rotation rule: round mod roster size
func (t *Team) ActivePlayerIndex(round int) int {
	return round % len(t.players)
}

// Player returns the roster entry at index i
func (t *Team) Player(i int) models.Player {
	return t.players[i]
}

// Players returns a copy of the roster
func (t *Team) Players() []models.Player {
	out := make([]models.Player, len(t.players))
	copy(out, t.players)
	return out
}

// Claimed returns the claimed keys in claim order
func (t *Team) Claimed() []string {
	out := make([]string, len(t.claimed))
	copy(out, t.claimed)
	return out
}

func (t *Team) recordClaim(key string) error {
	for _, k := range t.claimed {
		if k == key {
			return ErrDuplicateClaim.with(fmt.Sprintf("team %s already holds %s", t.id, key))
		}
	}
	t.claimed = append(t.claimed, key)
	return nil
}

func (t *Team) undoLastClaim(key string) error {
	n := len(t.claimed)
	if n == 0 || t.claimed[n-1] != key {
		return ErrNothingToUndo.with(fmt.Sprintf("team %s last claim is not %s", t.id, key))
	}
	t.claimed = t.claimed[:n-1]
	return nil
}
