// Package board implements the two-player board game variant. The game state
// lives in a JSON file so several processes (CLI, web) can take turns.
package board

import (
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/lox/harvesthorizon/internal/metrics"
)

const FieldIncome = 500

var (
	ErrWrongPhase       = errors.New("action not allowed in current phase")
	ErrInsufficientCash = errors.New("insufficient cash")
	ErrUnknownAsset     = errors.New("unknown asset")
	ErrInvalidSolution  = errors.New("invalid solution")
)

// Rand is the randomness the game needs. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

// Game applies player actions to the stored state.
type Game struct {
	content *Content
	store   *FileStore
	rng     Rand
	now     func() time.Time
}

func NewGame(content *Content, store *FileStore) *Game {
	return &Game{
		content: content,
		store:   store,
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		now:     time.Now,
	}
}

// SetRand replaces the dice and card source.
func (g *Game) SetRand(r Rand) {
	g.rng = r
}

func (g *Game) Content() *Content { return g.content }

// State returns the current stored state.
func (g *Game) State() (*State, error) {
	return g.store.Load()
}

// Roll moves the current player and resolves the tile they land on.
func (g *Game) Roll() (*State, error) {
	s, err := g.load(PhaseRoll)
	if err != nil {
		return nil, err
	}

	s.DiceValue = 1 + g.rng.IntN(6)
	p := s.Current()
	p.Position = (p.Position + s.DiceValue) % len(g.content.Tiles)
	tile := g.content.Tiles[p.Position]

	switch tile.Type {
	case TileEvent:
		card := g.content.Cards[g.rng.IntN(len(g.content.Cards))]
		s.CurrentCard = &card
		s.Phase = PhaseCard
		log.Printf("board: %s rolled %d, landed on %s, drew %s", p.Name, s.DiceValue, tile.Name, card.ID)
	case TileShop:
		s.Phase = PhaseShop
		log.Printf("board: %s rolled %d, landed on %s", p.Name, s.DiceValue, tile.Name)
	default:
		income := g.income(p)
		p.Cash += income
		log.Printf("board: %s rolled %d, landed on %s, earned %d", p.Name, s.DiceValue, tile.Name, income)
		g.endTurn(s)
	}

	return s, g.save(s, "roll")
}

func (g *Game) income(p *Player) int {
	income := FieldIncome
	for _, id := range p.Assets {
		if a, ok := g.content.Asset(id); ok {
			income += a.IncomeBoost
		}
	}
	return income
}

// ChooseSolution pays for one of the current card's solutions and ends the turn.
func (g *Game) ChooseSolution(index int) (*State, error) {
	s, err := g.load(PhaseCard)
	if err != nil {
		return nil, err
	}
	if s.CurrentCard == nil || index < 0 || index >= len(s.CurrentCard.Solutions) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSolution, index)
	}

	sol := s.CurrentCard.Solutions[index]
	p := s.Current()
	if p.Cash < sol.Cost {
		return nil, fmt.Errorf("%w: %s costs %d, %s has %d", ErrInsufficientCash, sol.Title, sol.Cost, p.Name, p.Cash)
	}
	p.Cash -= sol.Cost
	p.Sustainability = clamp(p.Sustainability+sol.Effect.SustainabilityChange, MinSustainability, MaxSustainability)
	log.Printf("board: %s chose %q for %s", p.Name, sol.Title, s.CurrentCard.ID)

	g.endTurn(s)
	return s, g.save(s, "choose")
}

// BuyAsset buys from the shop. The asset's income boost is paid immediately.
func (g *Game) BuyAsset(id string) (*State, error) {
	s, err := g.load(PhaseShop)
	if err != nil {
		return nil, err
	}
	a, ok := g.content.Asset(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, id)
	}

	p := s.Current()
	if p.Cash < a.Cost {
		return nil, fmt.Errorf("%w: %s costs %d, %s has %d", ErrInsufficientCash, a.Name, a.Cost, p.Name, p.Cash)
	}
	p.Cash -= a.Cost
	p.Assets = append(p.Assets, a.ID)
	p.Cash += a.IncomeBoost
	log.Printf("board: %s bought %s", p.Name, a.ID)

	g.endTurn(s)
	return s, g.save(s, "buy")
}

// SkipShop leaves the shop without buying.
func (g *Game) SkipShop() (*State, error) {
	s, err := g.load(PhaseShop)
	if err != nil {
		return nil, err
	}
	log.Printf("board: %s left the shop", s.Current().Name)
	g.endTurn(s)
	return s, g.save(s, "skip")
}

// Reset starts a new game.
func (g *Game) Reset() (*State, error) {
	s := NewState()
	log.Printf("board: reset")
	return s, g.save(s, "reset")
}

func (g *Game) load(want Phase) (*State, error) {
	s, err := g.store.Load()
	if err != nil {
		return nil, err
	}
	if s.Phase != want {
		return nil, fmt.Errorf("%w: in %s, need %s", ErrWrongPhase, s.Phase, want)
	}
	return s, nil
}

func (g *Game) endTurn(s *State) {
	s.Phase = PhaseRoll
	s.CurrentCard = nil
	s.CurrentPlayer = (s.CurrentPlayer + 1) % len(s.Players)
}

func (g *Game) save(s *State, action string) error {
	s.LastUpdate = g.now().UTC()
	if err := g.store.Save(s); err != nil {
		return err
	}
	metrics.BoardActions.WithLabelValues(action).Inc()
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
