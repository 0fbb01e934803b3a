package draft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Billy-Davies-2/word-card-draft/internal/models"
)

func TestNewTeamDefaults(t *testing.T) {
	team, err := NewTeam(models.TeamB, "", 3, []string{"Ana"})
	require.NoError(t, err)

	assert.Equal(t, "Team B", team.Name())
	assert.Equal(t, 3, team.RosterSize())

	players := team.Players()
	assert.Equal(t, models.Player{Index: 0, Name: "Ana", Role: models.RoleLeader}, players[0])
	assert.Equal(t, models.Player{Index: 1, Name: "Player 2", Role: models.RoleMember}, players[1])
	assert.Equal(t, "Player 3", players[2].Name)
}

func TestNewTeamRejectsEmptyRoster(t *testing.T) {
	_, err := NewTeam(models.TeamA, "x", 0, nil)
	assert.ErrorIs(t, err, ErrInvalidRoster)
}

func TestActivePlayerIndex(t *testing.T) {
	team, _ := NewTeam(models.TeamA, "", 3, nil)
	got := []int{}
	for r := 0; r < 7; r++ {
		got = append(got, team.ActivePlayerIndex(r))
	}
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2, 0}, got)
}

func TestTeamClaims(t *testing.T) {
	team, _ := NewTeam(models.TeamA, "", 1, nil)

	require.NoError(t, team.recordClaim("a"))
	require.NoError(t, team.recordClaim("b"))
	assert.ErrorIs(t, team.recordClaim("a"), ErrDuplicateClaim)
	assert.Equal(t, []string{"a", "b"}, team.Claimed())

	assert.ErrorIs(t, team.undoLastClaim("a"), ErrNothingToUndo)
	require.NoError(t, team.undoLastClaim("b"))
	require.NoError(t, team.undoLastClaim("a"))
	assert.ErrorIs(t, team.undoLastClaim("a"), ErrNothingToUndo)
	assert.Empty(t, team.Claimed())
}
