package watch

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/brensch/voro/game"
	"github.com/brensch/voro/notify"
	"github.com/brensch/voro/server"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	gridWidth  = 61
	gridHeight = 31
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	p1Style     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	p2Style     = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

type eventMsg struct{ ev notify.Event }

type closedMsg struct{ err error }

type sentMsg struct{ err error }

// Sender delivers a placement request to the server.
type Sender func(notify.PlayRequest) error

// Model is the bubbletea model of a watched game.
type Model struct {
	detail server.GameDetail
	board  *game.Board
	cells  []game.Player
	status game.Status
	player string
	send   Sender

	listen tea.Cmd
	input  string
	notice string
	closed bool
}

// NewModel starts from a fetched game. listen yields the next live event and
// send may be nil for a pure spectator.
func NewModel(detail server.GameDetail, board *game.Board, player string, listen tea.Cmd, send Sender) Model {
	return Model{
		detail: detail,
		board:  board,
		cells:  game.Occupancy(board.Len(), detail.Placements()),
		status: detail.Game.Status,
		player: player,
		send:   send,
		listen: listen,
	}
}

func (m Model) Init() tea.Cmd {
	return m.listen
}

// Colour returns the colour a placement from this client is made in: the
// seat registered to the player, else whoever is to move.
func (m Model) Colour() game.Player {
	switch {
	case m.player != "" && m.detail.Game.Player1 == m.player:
		return game.Player1
	case m.player != "" && m.detail.Game.Player2 == m.player:
		return game.Player2
	default:
		return m.status.ToMove
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		switch ev := msg.ev.(type) {
		case notify.MoveEvent:
			if ev.Location >= 0 && ev.Location < len(m.cells) {
				m.cells[ev.Location] = ev.Color
			}
			m.notice = fmt.Sprintf("player %d took cell %d", ev.Color, ev.Location)
		case notify.StatusEvent:
			m.status = ev.Status
		case notify.RejectedEvent:
			m.notice = fmt.Sprintf("cell %d rejected: %s", ev.Location, ev.Reason)
		}
		return m, m.listen

	case closedMsg:
		m.closed = true
		if msg.err != nil {
			m.notice = "disconnected: " + msg.err.Error()
		} else {
			m.notice = "disconnected"
		}
		return m, nil

	case sentMsg:
		if msg.err != nil {
			m.notice = "send failed: " + msg.err.Error()
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "backspace":
		if m.input != "" {
			m.input = m.input[:len(m.input)-1]
		}
		return m, nil
	case "enter":
		return m.submit()
	}
	if len(key) == 1 && key[0] >= '0' && key[0] <= '9' && len(m.input) < 4 && m.send != nil {
		m.input += key
	}
	return m, nil
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.send == nil || m.input == "" || m.closed {
		return m, nil
	}
	cell, err := strconv.Atoi(m.input)
	m.input = ""
	if err != nil {
		return m, nil
	}
	req := notify.PlayRequest{Action: notify.ActionPlayToken, Location: cell, Color: m.Colour()}
	send := m.send
	return m, func() tea.Msg {
		return sentMsg{err: send(req)}
	}
}

func (m Model) View() string {
	var sb strings.Builder
	g := m.detail.Game
	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s (game %d, board %d)", g.Name, g.ID, g.BoardID)))
	sb.WriteString("\n\n")
	sb.WriteString(m.grid())
	sb.WriteString("\n")
	sb.WriteString(m.statusLine())
	sb.WriteString("\n")
	if m.send != nil {
		sb.WriteString(fmt.Sprintf("place as %s> %s\n", m.swatch(m.Colour()), m.input))
	}
	if m.notice != "" {
		sb.WriteString(noticeStyle.Render(m.notice))
		sb.WriteString("\n")
	}
	sb.WriteString(dimStyle.Render("q quit"))
	sb.WriteString("\n")
	return sb.String()
}

func (m Model) swatch(p game.Player) string {
	switch p {
	case game.Player1:
		return p1Style.Render("player 1")
	case game.Player2:
		return p2Style.Render("player 2")
	}
	return "nobody"
}

func (m Model) statusLine() string {
	s := m.status
	if s.GameComplete {
		return fmt.Sprintf("final score %s %d : %d %s", m.swatch(game.Player1), s.Score1, s.Score2, m.swatch(game.Player2))
	}
	line := fmt.Sprintf("%s to move, %d left", m.swatch(s.ToMove), s.MovesLeft)
	if s.BorderFull && s.ConnectionsRemaining != nil {
		line += fmt.Sprintf(", %d connections remaining", *s.ConnectionsRemaining)
	}
	return line
}

// grid projects cell sites onto a character grid. Terminal cells are about
// twice as tall as wide, so columns are spaced half as far as rows.
func (m Model) grid() string {
	rows := make([][]string, gridHeight)
	for r := range rows {
		rows[r] = make([]string, gridWidth)
		for c := range rows[r] {
			rows[r][c] = " "
		}
	}
	extent := game.BorderRadius + 1
	for i, t := range m.board.Tokens {
		col := int(math.Round((t.X + extent) / (2 * extent) * (gridWidth - 1)))
		row := int(math.Round((extent - t.Y) / (2 * extent) * (gridHeight - 1)))
		if col < 0 || col >= gridWidth || row < 0 || row >= gridHeight {
			continue
		}
		rows[row][col] = m.glyph(i)
	}
	var sb strings.Builder
	for _, r := range rows {
		sb.WriteString(strings.TrimRight(strings.Join(r, ""), " "))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) glyph(cell int) string {
	switch m.cells[cell] {
	case game.Player1:
		return p1Style.Render("●")
	case game.Player2:
		return p2Style.Render("●")
	}
	if m.board.IsBorder(cell) {
		return dimStyle.Render("○")
	}
	return dimStyle.Render("·")
}
