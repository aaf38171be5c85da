package board

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

type Phase string

const (
	PhaseRoll Phase = "ROLL"
	PhaseCard Phase = "CARD"
	PhaseShop Phase = "SHOP"
)

const (
	StartingCash           = 10000
	StartingSustainability = 7
	MinSustainability      = 1
	MaxSustainability      = 10
)

type Player struct {
	Name           string   `json:"name"`
	Position       int      `json:"position"`
	Cash           int      `json:"cash"`
	Sustainability int      `json:"sustainability"`
	Assets         []string `json:"assets"`
}

// State is the whole shared game document.
type State struct {
	Players       []Player  `json:"players"`
	CurrentPlayer int       `json:"current_player"`
	Phase         Phase     `json:"game_state"`
	DiceValue     int       `json:"dice_value"`
	CurrentCard   *Card     `json:"current_card"`
	LastUpdate    time.Time `json:"last_update"`
}

// NewState returns a fresh two-player game.
func NewState() *State {
	return &State{
		Players: []Player{
			{Name: "Player 1", Cash: StartingCash, Sustainability: StartingSustainability, Assets: []string{}},
			{Name: "Player 2", Cash: StartingCash, Sustainability: StartingSustainability, Assets: []string{}},
		},
		Phase: PhaseRoll,
	}
}

// Current returns the player whose turn it is.
func (s *State) Current() *Player {
	return &s.Players[s.CurrentPlayer]
}

// FileStore keeps the game state in a JSON file shared between processes.
// There is no locking; the last writer wins.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the state, or returns a new game when the file does not exist.
func (f *FileStore) Load() (*State, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read board state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse board state: %w", err)
	}
	if len(s.Players) == 0 {
		return NewState(), nil
	}
	if s.CurrentPlayer < 0 || s.CurrentPlayer >= len(s.Players) {
		s.CurrentPlayer = 0
	}
	if s.Phase == "" {
		s.Phase = PhaseRoll
	}
	return &s, nil
}

// Save writes the whole document through a temp file and rename.
func (f *FileStore) Save(s *State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal board state: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create board state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".board-*.json")
	if err != nil {
		return fmt.Errorf("create temp board state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write board state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close board state: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace board state: %w", err)
	}
	return nil
}
