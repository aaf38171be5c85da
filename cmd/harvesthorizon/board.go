package main

import (
	"fmt"
	"strings"

	"github.com/lox/harvesthorizon/internal/board"
)

type BoardCmd struct {
	Show   BoardShowCmd   `cmd:"" default:"1" help:"Show the board."`
	Roll   BoardRollCmd   `cmd:"" help:"Roll the dice for the current player."`
	Choose BoardChooseCmd `cmd:"" help:"Choose a solution for the current problem card."`
	Buy    BoardBuyCmd    `cmd:"" help:"Buy an asset in the shop."`
	Skip   BoardSkipCmd   `cmd:"" help:"Leave the shop without buying."`
	Reset  BoardResetCmd  `cmd:"" help:"Start a new game."`
}

type BoardShowCmd struct{}

func (c *BoardShowCmd) Run(g *Globals) error {
	return runBoard(g, func(game *board.Game) (*board.State, error) { return game.State() })
}

type BoardRollCmd struct{}

func (c *BoardRollCmd) Run(g *Globals) error {
	return runBoard(g, (*board.Game).Roll)
}

type BoardChooseCmd struct {
	Solution int `arg:"" help:"Solution number, starting at 1."`
}

func (c *BoardChooseCmd) Run(g *Globals) error {
	return runBoard(g, func(game *board.Game) (*board.State, error) {
		return game.ChooseSolution(c.Solution - 1)
	})
}

type BoardBuyCmd struct {
	Asset string `arg:"" help:"Asset ID."`
}

func (c *BoardBuyCmd) Run(g *Globals) error {
	return runBoard(g, func(game *board.Game) (*board.State, error) {
		return game.BuyAsset(c.Asset)
	})
}

type BoardSkipCmd struct{}

func (c *BoardSkipCmd) Run(g *Globals) error {
	return runBoard(g, (*board.Game).SkipShop)
}

type BoardResetCmd struct{}

func (c *BoardResetCmd) Run(g *Globals) error {
	return runBoard(g, (*board.Game).Reset)
}

func runBoard(g *Globals, action func(*board.Game) (*board.State, error)) error {
	game, err := g.game()
	if err != nil {
		return err
	}
	st, err := action(game)
	if err != nil {
		return err
	}
	printBoard(game.Content(), st)
	return nil
}

func printBoard(content *board.Content, st *board.State) {
	for i, p := range st.Players {
		marker := " "
		if i == st.CurrentPlayer {
			marker = "*"
		}
		assets := "none"
		if len(p.Assets) > 0 {
			assets = strings.Join(p.Assets, ", ")
		}
		fmt.Fprintf(stdout, "%s %s: on %s, $%d, sustainability %d/10, assets: %s\n",
			marker, p.Name, content.Tiles[p.Position%len(content.Tiles)].Name, p.Cash, p.Sustainability, assets)
	}

	if st.DiceValue > 0 {
		fmt.Fprintf(stdout, "Last roll: %d\n", st.DiceValue)
	}

	cur := st.Current()
	switch st.Phase {
	case board.PhaseRoll:
		fmt.Fprintf(stdout, "%s to roll: harvesthorizon board roll\n", cur.Name)
	case board.PhaseCard:
		if st.CurrentCard == nil {
			break
		}
		fmt.Fprintf(stdout, "\n%s: %s\n", st.CurrentCard.Title, st.CurrentCard.Description)
		for i, sol := range st.CurrentCard.Solutions {
			fmt.Fprintf(stdout, "  %d. %s ($%d, sustainability %+d)\n", i+1, sol.Title, sol.Cost, sol.Effect.SustainabilityChange)
		}
		fmt.Fprintln(stdout, "Choose with: harvesthorizon board choose <n>")
	case board.PhaseShop:
		fmt.Fprintf(stdout, "\n%s is in the shop:\n", cur.Name)
		for _, a := range content.Assets {
			fmt.Fprintf(stdout, "  %s: %s ($%d, +$%d per field)\n", a.ID, a.Name, a.Cost, a.IncomeBoost)
		}
		fmt.Fprintln(stdout, "Buy with: harvesthorizon board buy <id>, or leave with: harvesthorizon board skip")
	}
}
