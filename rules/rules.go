package rules

import (
	"fmt"

	"github.com/brensch/voro/game"
	"github.com/brensch/voro/unionfind"
)

// Evaluation is the result of scanning a position for completion.
type Evaluation struct {
	BorderFull bool
	// OuterGroups is half the number of same-colour runs around the border.
	OuterGroups int
	// Groups are the border-carrying components after all same-colour
	// edges are merged. Weight is the number of border cells they touch.
	Groups    []unionfind.Group
	Remaining int
	Complete  bool
	Score1    int
	Score2    int
}

// Evaluate decides whether the position in cells is finished and, if so,
// scores it. cells must hold one entry per board cell.
//
// Border cells are seeded with weight one and merged along same-colour
// border edges; half the resulting run count is the number of outer
// groups. Merging every same-colour edge then joins runs through the
// interior. The game is over once at most outer+1 components remain.
func Evaluate(b *game.Board, cells []game.Player) Evaluation {
	if len(cells) != b.Len() {
		panic(fmt.Sprintf("rules: %d cells for a board of %d", len(cells), b.Len()))
	}

	var ev Evaluation
	for i := 0; i < b.NumBorder; i++ {
		if cells[i] == game.Empty {
			return ev
		}
	}
	ev.BorderFull = true

	uf := unionfind.New(len(cells))
	for i := 0; i < b.NumBorder; i++ {
		uf.SetWeight(i, 1)
	}
	for _, e := range b.Edges {
		i, j := e[0], e[1]
		if !b.IsBorder(i) || !b.IsBorder(j) {
			continue
		}
		if cells[i] != cells[j] {
			continue
		}
		uf.Merge(i, j)
	}
	ev.OuterGroups = len(uf.PositiveWeightGroups()) / 2

	for _, e := range b.Edges {
		i, j := e[0], e[1]
		if cells[i] == game.Empty || cells[i] != cells[j] {
			continue
		}
		uf.Merge(i, j)
	}
	ev.Groups = uf.PositiveWeightGroups()
	ev.Remaining = len(ev.Groups) - ev.OuterGroups - 1
	if ev.Remaining > 0 {
		return ev
	}

	ev.Complete = true
	for _, g := range ev.Groups {
		owner := cells[g.Root]
		if g.Weight > 1 {
			ev.addScore(owner, g.Weight-4)
		} else {
			ev.addScore(owner.Other(), 1)
		}
	}
	return ev
}

func (ev *Evaluation) addScore(p game.Player, n int) {
	switch p {
	case game.Player1:
		ev.Score1 += n
	case game.Player2:
		ev.Score2 += n
	}
}

// Apply folds the evaluation into s. Turn fields are left untouched.
func (ev Evaluation) Apply(s game.Status) game.Status {
	s.BorderFull = ev.BorderFull
	s.ConnectionsRemaining = nil
	s.GameComplete = false
	s.Score1, s.Score2 = 0, 0
	if !ev.BorderFull {
		return s
	}
	remaining := ev.Remaining
	s.ConnectionsRemaining = &remaining
	if ev.Complete {
		s.GameComplete = true
		s.Score1, s.Score2 = ev.Score1, ev.Score2
	}
	return s
}
