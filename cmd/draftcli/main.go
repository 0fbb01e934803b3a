// Command draftcli runs a word-card draft in the terminal, one shared screen for both teams.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/pterm/pterm"

	"github.com/Billy-Davies-2/word-card-draft/internal/cards"
	"github.com/Billy-Davies-2/word-card-draft/internal/config"
	"github.com/Billy-Davies-2/word-card-draft/internal/dal"
	"github.com/Billy-Davies-2/word-card-draft/internal/draft"
	"github.com/Billy-Davies-2/word-card-draft/internal/logger"
	"github.com/Billy-Davies-2/word-card-draft/internal/models"
	"github.com/Billy-Davies-2/word-card-draft/internal/session"
)

func main() {
	archive := flag.String("archive", "", "SQLite file to archive finished drafts in (default: memory)")
	csvPath := flag.String("cards", "", "CSV file of number,word rows (overrides CARDS_CSV)")
	flag.Parse()

	logger.SetHandler(pterm.NewSlogHandler(pterm.DefaultLogger.WithLevel(pterm.LogLevelWarn)))

	cfg, err := config.Load()
	if err != nil {
		pterm.Error.Printfln("Invalid configuration: %v", err)
		os.Exit(1)
	}
	if *csvPath != "" {
		cfg.Draft.CardsCSV = *csvPath
	}

	var store dal.DraftDAL = dal.NewMemoryDAL()
	if *archive != "" {
		if store, err = dal.NewSQLiteDAL(*archive); err != nil {
			pterm.Error.Printfln("Cannot open archive: %v", err)
			os.Exit(1)
		}
	}
	defer store.Close()

	specs, err := cards.Load(cfg.Draft.CardsCSV)
	if err != nil {
		pterm.Error.Printfln("Cannot load cards: %v", err)
		os.Exit(1)
	}

	pterm.DefaultHeader.WithFullWidth().Println("Word Card Draft")
	mgr := session.NewManager(store, nil)
	defaults := session.SetupFromConfig(cfg.Draft, specs)

	for {
		if !startSession(mgr, askSetup(defaults)) {
			continue
		}
		if !play(mgr) {
			return
		}
		again, _ := pterm.DefaultInteractiveConfirm.WithDefaultText("Start another draft?").WithDefaultValue(true).Show()
		if !again {
			return
		}
	}
}

// askSetup lets the facilitator adjust team names, sizes and the pick limit
func askSetup(def session.Setup) session.Setup {
	custom, _ := pterm.DefaultInteractiveConfirm.
		WithDefaultText(fmt.Sprintf("Customise teams? (default %s x%d vs %s x%d, %d picks)",
			def.TeamA.Name, def.TeamA.Size, def.TeamB.Name, def.TeamB.Size, def.Threshold)).
		WithDefaultValue(false).
		Show()
	if !custom {
		return def
	}

	setup := def
	setup.TeamA.Name = askText("Team A name", def.TeamA.Name)
	setup.TeamA.Size = askInt("Team A players", def.TeamA.Size)
	setup.TeamB.Name = askText("Team B name", def.TeamB.Name)
	setup.TeamB.Size = askInt("Team B players", def.TeamB.Size)
	setup.Threshold = askInt("Total picks before the draft ends", def.Threshold)
	setup.TeamA.Players = nil
	setup.TeamB.Players = nil
	return setup
}

func askText(prompt, def string) string {
	v, _ := pterm.DefaultInteractiveTextInput.WithDefaultText(prompt).WithDefaultValue(def).Show()
	if v == "" {
		return def
	}
	return v
}

func askInt(prompt string, def int) int {
	for {
		v := askText(prompt, strconv.Itoa(def))
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
		pterm.Error.Printfln("%q is not a number", v)
	}
}

func startSession(mgr *session.Manager, setup session.Setup) bool {
	if _, err := mgr.Start(setup); err != nil {
		pterm.Error.Printfln("Cannot start draft: %v", err)
		return false
	}
	pterm.Success.Printfln("Draft started with %d cards", len(setup.Cards))
	return true
}

// play runs one draft to completion. It returns false when the user quits.
func play(mgr *session.Manager) bool {
	for {
		st, err := mgr.State()
		if err != nil {
			pterm.Error.Println(err.Error())
			return false
		}
		render(st)
		if st.Ended {
			pterm.DefaultBox.WithTitle("Draft complete").Println(summary(st))
			return true
		}

		line, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Card number (u = undo, r = restart, h = history, q = quit)").
			Show()
		pterm.Println()

		cmd := parseCommand(line)
		switch cmd.name {
		case "quit":
			return false
		case "restart":
			mgr.Abandon()
			return true
		case "history":
			showHistory(mgr)
		case "undo":
			if err := mgr.Undo(); err != nil {
				reportError(err)
			} else {
				pterm.Info.Println("Last pick undone")
			}
		case "select":
			out, err := mgr.Select(cmd.arg)
			if err != nil {
				reportError(err)
				continue
			}
			switch out {
			case draft.OutcomeConfirmed, draft.OutcomeEnded:
				pterm.Success.Printfln("Card %s claimed", cmd.arg)
			default:
				pterm.Info.Printfln("Card %s selected, enter it again to confirm", cmd.arg)
			}
		}
	}
}

func render(st models.DraftState) {
	pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData(cardRows(st))).Render()
	if st.Turn != nil {
		pterm.Info.Println(turnLine(*st.Turn))
	}
	pterm.Println(pterm.LightCyan(progressLine(st)))
}

func reportError(err error) {
	if draft.IsIllegalState(err) {
		pterm.Warning.Println(err.Error())
		return
	}
	pterm.Error.Println(err.Error())
}

func showHistory(mgr *session.Manager) {
	sessions, err := mgr.History(10)
	if err != nil {
		reportError(err)
		return
	}
	rows := pterm.TableData{{"Started", "Teams", "Picks", "Status"}}
	for _, s := range sessions {
		rows = append(rows, []string{
			s.StartedAt.Format("15:04:05"),
			s.TeamAName + " vs " + s.TeamBName,
			strconv.Itoa(s.Picks),
			string(s.Status),
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}
