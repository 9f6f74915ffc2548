// Package referee accepts or rejects placements and keeps each game's
// stored status in step with its moves.
package referee

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brensch/voro/game"
	"github.com/brensch/voro/notify"
	"github.com/brensch/voro/rules"
	"github.com/brensch/voro/store"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

const DefaultBoardCache = 64

// maxPlaceAttempts bounds how often a placement is re-read after another
// process appended to the same game.
const maxPlaceAttempts = 3

var ErrStatusMismatch = errors.New("referee: stored status differs from replay")

type BoardStore interface {
	LoadBoard(ctx context.Context, id int64) (*game.Board, error)
}

type GameStore interface {
	CreateGame(ctx context.Context, g *game.Game) (int64, error)
	LoadGame(ctx context.Context, id int64) (*game.Game, error)
	ListMoves(ctx context.Context, gameID int64) ([]game.Placement, error)
	AppendMove(ctx context.Context, gameID int64, seen int, p game.Placement, status game.Status) error
	SaveStatus(ctx context.Context, gameID int64, status game.Status) error
}

type Notifier interface {
	Notify(ctx context.Context, gameID int64, ev notify.Event) error
}

// Archiver receives each game once, when it completes.
type Archiver interface {
	ArchiveGame(ctx context.Context, g game.Game, moves []game.Placement) error
}

// Outcome is the result of a placement attempt. Status is the game's status
// after the attempt, unchanged on rejection.
type Outcome struct {
	Accepted bool
	Reason   rules.Reason
	Status   game.Status
}

// Referee serialises placements per game. Different games are handled in
// parallel.
type Referee struct {
	boards   BoardStore
	games    GameStore
	notifier Notifier
	archiver Archiver
	cache    *lru.Cache[int64, *game.Board]
	locks    keyedMutex
	log      logrus.FieldLogger
	now      func() time.Time
}

// New builds a referee. notifier may be nil.
func New(boards BoardStore, games GameStore, notifier Notifier, cacheSize int, log logrus.FieldLogger) (*Referee, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultBoardCache
	}
	cache, err := lru.New[int64, *game.Board](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("board cache: %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Referee{
		boards:   boards,
		games:    games,
		notifier: notifier,
		cache:    cache,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// SetArchiver registers where finished games are archived. It must be
// called before the referee is shared.
func (r *Referee) SetArchiver(a Archiver) {
	r.archiver = a
}

// Board returns a validated board, from cache when possible.
func (r *Referee) Board(ctx context.Context, id int64) (*game.Board, error) {
	if b, ok := r.cache.Get(id); ok {
		return b, nil
	}
	b, err := r.boards.LoadBoard(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.Add(id, b)
	return b, nil
}

// CreateGame starts a game on boardID. An empty player identity leaves that
// seat open to anyone.
func (r *Referee) CreateGame(ctx context.Context, name string, boardID int64, player1, player2 string) (*game.Game, error) {
	if _, err := r.Board(ctx, boardID); err != nil {
		return nil, err
	}
	if name == "" {
		name = seatName(player1) + " vs " + seatName(player2)
	}
	g := &game.Game{
		Name:      name,
		BoardID:   boardID,
		Player1:   player1,
		Player2:   player2,
		Status:    game.InitialStatus(),
		CreatedAt: r.now(),
	}
	if _, err := r.games.CreateGame(ctx, g); err != nil {
		return nil, err
	}
	r.log.WithFields(logrus.Fields{"game": g.ID, "board": boardID}).Info("game created")
	return g, nil
}

func seatName(p string) string {
	if p == "" {
		return "anyone"
	}
	return p
}

// Game returns a game together with its placements.
func (r *Referee) Game(ctx context.Context, id int64) (*game.Game, []game.Placement, error) {
	g, err := r.games.LoadGame(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	moves, err := r.games.ListMoves(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return g, moves, nil
}

// Status returns the stored status of a game.
func (r *Referee) Status(ctx context.Context, id int64) (game.Status, error) {
	g, err := r.games.LoadGame(ctx, id)
	if err != nil {
		return game.Status{}, err
	}
	return g.Status, nil
}

// PlayToken attempts to place a token of color on cell on behalf of actor.
// Illegal placements come back as a rejected Outcome; the error is reserved
// for storage failures.
//
// The per-game lock only covers this process. The store refuses a move
// appended on a stale read, in which case the game is read and checked again.
func (r *Referee) PlayToken(ctx context.Context, gameID int64, actor string, cell int, color game.Player) (Outcome, error) {
	unlock := r.locks.Lock(gameID)
	defer unlock()

	log := r.log.WithFields(logrus.Fields{
		"game":   gameID,
		"cell":   cell,
		"player": color,
		"actor":  actor,
	})

	for attempt := 1; ; attempt++ {
		g, err := r.games.LoadGame(ctx, gameID)
		if err != nil {
			return Outcome{}, err
		}
		b, err := r.Board(ctx, g.BoardID)
		if err != nil {
			return Outcome{}, fmt.Errorf("game %d: %w", gameID, err)
		}
		moves, err := r.games.ListMoves(ctx, gameID)
		if err != nil {
			return Outcome{}, fmt.Errorf("game %d: %w", gameID, err)
		}
		cells := game.Occupancy(b.Len(), moves)

		reason := rules.CheckPlacement(g.Status, cells, cell, color)
		if reason == rules.ReasonNone {
			if seat := g.Participant(color); seat != "" && seat != actor {
				reason = rules.ReasonNotParticipant
			}
		}
		if reason != rules.ReasonNone {
			log.WithField("reason", reason).Debug("placement rejected")
			return Outcome{Reason: reason, Status: g.Status}, nil
		}

		status, _ := rules.Play(b, g.Status, cells, cell, color)
		placement := game.Placement{Cell: cell, Player: color, PlacedAt: r.now()}
		err = r.games.AppendMove(ctx, gameID, len(moves), placement, status)
		if errors.Is(err, store.ErrConflict) && attempt < maxPlaceAttempts {
			log.WithField("attempt", attempt).Debug("game changed during placement, reading again")
			continue
		}
		if errors.Is(err, store.ErrCellTaken) {
			log.WithField("reason", rules.ReasonOccupied).Debug("placement lost a race")
			return Outcome{Reason: rules.ReasonOccupied, Status: g.Status}, nil
		}
		if err != nil {
			return Outcome{}, fmt.Errorf("game %d: %w", gameID, err)
		}

		fields := logrus.Fields{"to_move": status.ToMove, "moves_left": status.MovesLeft}
		if status.GameComplete {
			fields["score_1"], fields["score_2"] = status.Score1, status.Score2
			log.WithFields(fields).Info("game complete")
			if r.archiver != nil {
				final := *g
				final.Status = status
				if err := r.archiver.ArchiveGame(ctx, final, append(moves, placement)); err != nil {
					log.WithError(err).Error("archive failed")
				}
			}
		} else {
			log.WithFields(fields).Debug("placement accepted")
		}

		r.notify(ctx, gameID, notify.NewMoveEvent(cell, color), notify.NewStatusEvent(status))
		return Outcome{Accepted: true, Status: status}, nil
	}
}

func (r *Referee) notify(ctx context.Context, gameID int64, events ...notify.Event) {
	if r.notifier == nil {
		return
	}
	for _, ev := range events {
		if err := r.notifier.Notify(ctx, gameID, ev); err != nil {
			r.log.WithError(err).WithFields(logrus.Fields{"game": gameID, "action": ev.EventAction()}).Warn("notify failed")
		}
	}
}

// Verify replays a game and compares the result with its stored status.
// With repair set, a differing stored status is overwritten.
func (r *Referee) Verify(ctx context.Context, gameID int64, repair bool) (game.Status, error) {
	unlock := r.locks.Lock(gameID)
	defer unlock()

	g, err := r.games.LoadGame(ctx, gameID)
	if err != nil {
		return game.Status{}, err
	}
	b, err := r.Board(ctx, g.BoardID)
	if err != nil {
		return game.Status{}, err
	}
	moves, err := r.games.ListMoves(ctx, gameID)
	if err != nil {
		return game.Status{}, err
	}
	replayed, err := rules.Replay(b, moves)
	if err != nil {
		return game.Status{}, fmt.Errorf("game %d: %w", gameID, err)
	}
	if replayed.Equal(g.Status) {
		return replayed, nil
	}
	if !repair {
		return replayed, fmt.Errorf("game %d: %w", gameID, ErrStatusMismatch)
	}
	if err := r.games.SaveStatus(ctx, gameID, replayed); err != nil {
		return replayed, err
	}
	r.log.WithField("game", gameID).Warn("stored status repaired from replay")
	return replayed, nil
}
