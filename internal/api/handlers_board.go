package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/lox/harvesthorizon/internal/board"
)

var errNoBoard = errors.New("board game not configured")

type boardAction string

const (
	actionRoll   boardAction = "roll"
	actionChoose boardAction = "choose"
	actionBuy    boardAction = "buy"
	actionSkip   boardAction = "skip"
	actionReset  boardAction = "reset"
)

// BoardActionRequest carries the argument for choose (Solution) and buy (Asset).
// Solution is a pointer so a missing index is not read as the first solution.
type BoardActionRequest struct {
	Solution *int   `json:"solution"`
	Asset    string `json:"asset"`
}

// BoardView is the board state plus the static content needed to draw it.
type BoardView struct {
	State   *board.State   `json:"state"`
	Content *board.Content `json:"content"`
}

func (s *Server) boardView() (BoardView, error) {
	st, err := s.game.State()
	if err != nil {
		return BoardView{}, err
	}
	return BoardView{State: st, Content: s.game.Content()}, nil
}

func (s *Server) handleAPIBoard(w http.ResponseWriter, r *http.Request) {
	if s.game == nil {
		writeError(w, http.StatusServiceUnavailable, errNoBoard)
		return
	}
	view, err := s.boardView()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleBoardAction(action boardAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.game == nil {
			writeError(w, http.StatusServiceUnavailable, errNoBoard)
			return
		}

		var req BoardActionRequest
		if action == actionChoose || action == actionBuy {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
				writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
				return
			}
		}

		st, err := s.applyBoardAction(action, req)
		if err != nil {
			writeError(w, boardErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, BoardView{State: st, Content: s.game.Content()})
	}
}

func (s *Server) applyBoardAction(action boardAction, req BoardActionRequest) (*board.State, error) {
	switch action {
	case actionRoll:
		return s.game.Roll()
	case actionChoose:
		if req.Solution == nil {
			return nil, fmt.Errorf("%w: solution is required", board.ErrInvalidSolution)
		}
		return s.game.ChooseSolution(*req.Solution)
	case actionBuy:
		return s.game.BuyAsset(req.Asset)
	case actionSkip:
		return s.game.SkipShop()
	case actionReset:
		return s.game.Reset()
	}
	return nil, fmt.Errorf("unknown board action %q", action)
}

func boardErrorStatus(err error) int {
	switch {
	case errors.Is(err, board.ErrWrongPhase):
		return http.StatusConflict
	case errors.Is(err, board.ErrInsufficientCash):
		return http.StatusUnprocessableEntity
	case errors.Is(err, board.ErrInvalidSolution), errors.Is(err, board.ErrUnknownAsset):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// handleBoardStream pushes the board view to the client on connect and then
// whenever the state file changes, whichever process wrote it.
func (s *Server) handleBoardStream(w http.ResponseWriter, r *http.Request) {
	if s.game == nil {
		writeError(w, http.StatusServiceUnavailable, errNoBoard)
		return
	}

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("api: board stream accept: %v", err)
		return
	}
	defer c.CloseNow()

	// Clients only listen; CloseRead handles control frames and cancels ctx
	// when the peer goes away.
	ctx := c.CloseRead(r.Context())

	if err := s.streamBoard(ctx, c, s.boardPoll); err != nil && ctx.Err() == nil {
		log.Printf("api: board stream: %v", err)
		c.Close(websocket.StatusInternalError, "board unavailable")
		return
	}
	c.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) streamBoard(ctx context.Context, c *websocket.Conn, interval time.Duration) error {
	var (
		last time.Time
		sent bool
	)
	send := func() error {
		view, err := s.boardView()
		if err != nil {
			return err
		}
		if sent && view.State.LastUpdate.Equal(last) {
			return nil
		}
		last, sent = view.State.LastUpdate, true

		writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return wsjson.Write(writeCtx, c, view)
	}

	if err := send(); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := send(); err != nil {
				return err
			}
		}
	}
}
