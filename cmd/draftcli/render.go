package main

import (
	"fmt"
	"strings"

	"github.com/Billy-Davies-2/word-card-draft/internal/models"
)

type command struct {
	name string
	arg  string
}

// parseCommand maps a line of input to a command. Anything that is not a keyword selects a card.
func parseCommand(line string) command {
	line = strings.TrimSpace(line)
	switch strings.ToLower(line) {
	case "":
		return command{name: "refresh"}
	case "u", "undo":
		return command{name: "undo"}
	case "q", "quit", "exit":
		return command{name: "quit"}
	case "r", "restart":
		return command{name: "restart"}
	case "h", "history":
		return command{name: "history"}
	}
	return command{name: "select", arg: line}
}

func teamNames(st models.DraftState) map[models.TeamID]string {
	names := make(map[models.TeamID]string, len(st.Teams))
	for _, t := range st.Teams {
		names[t.ID] = t.Name
	}
	return names
}

func statusText(c models.Card, names map[models.TeamID]string) string {
	switch c.Status {
	case models.StatusHighlighted:
		return "selected, enter again to confirm"
	case models.StatusClaimed:
		return "claimed by " + names[c.ClaimedBy]
	case models.StatusUnclaimed:
		return "unclaimed"
	default:
		return ""
	}
}

// cardRows is the table body for the pool, header first
func cardRows(st models.DraftState) [][]string {
	names := teamNames(st)
	rows := [][]string{{"#", "Word", "Status"}}
	for _, c := range st.Cards {
		rows = append(rows, []string{c.Key, c.Label, statusText(c, names)})
	}
	return rows
}

func turnLine(t models.Turn) string {
	player := fmt.Sprintf("player %d", t.PlayerIndex+1)
	if t.PlayerName != "" {
		player = t.PlayerName
	}
	if t.Role == models.RoleLeader {
		player += " (leader)"
	}
	return fmt.Sprintf("%s to pick: %s, round %d", t.TeamName, player, t.Round+1)
}

func progressLine(st models.DraftState) string {
	line := fmt.Sprintf("%d of %d picks made", st.Confirmed, st.Threshold)
	if st.CanUndo {
		line += ", undo available"
	}
	return line
}

// summary lists each team's claims and the leftovers once the draft has ended
func summary(st models.DraftState) string {
	var b strings.Builder
	labels := make(map[string]string, len(st.Cards))
	for _, c := range st.Cards {
		labels[c.Key] = c.Label
	}
	for _, t := range st.Teams {
		words := make([]string, len(t.Claimed))
		for i, c := range t.Claimed {
			words[i] = c.Label
		}
		fmt.Fprintf(&b, "%s: %s\n", t.Name, joinOrDash(words))
	}
	left := make([]string, len(st.Unclaimed))
	for i, k := range st.Unclaimed {
		left[i] = labels[k]
	}
	fmt.Fprintf(&b, "Unclaimed: %s", joinOrDash(left))
	return b.String()
}

func joinOrDash(s []string) string {
	if len(s) == 0 {
		return "-"
	}
	return strings.Join(s, ", ")
}
