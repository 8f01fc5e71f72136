package terminal

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	log "github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/gridtraffic/game/engine"
)

var (
	styleDefault   = tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite)
	styleRoad      = styleDefault.Foreground(tcell.ColorDarkGray)
	styleJunction  = styleDefault.Foreground(tcell.ColorSilver)
	styleHeld      = styleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorOlive)
	styleBuilding  = styleDefault.Foreground(tcell.ColorSlateGray)
	styleStatus    = styleDefault.Foreground(tcell.ColorAqua).Bold(true)
	styleHelp      = styleDefault.Foreground(tcell.ColorGray)
	styleDebugMark = styleDefault.Background(tcell.ColorNavy)
	styleDebugJunc = styleDefault.Background(tcell.ColorPurple)

	stateStyles = map[engine.AgentState]tcell.Style{
		engine.Driving:   styleDefault.Foreground(tcell.ColorLime).Bold(true),
		engine.Waiting:   styleDefault.Foreground(tcell.ColorYellow).Bold(true),
		engine.Collision: styleDefault.Foreground(tcell.ColorRed).Bold(true),
		engine.Respawned: styleDefault.Foreground(tcell.ColorAqua).Bold(true),
	}

	headingGlyphs = map[engine.Direction]rune{
		engine.North: '▲',
		engine.South: '▼',
		engine.East:  '▶',
		engine.West:  '◀',
	}
)

const helpLine = "space pause  s step  r reset  d debug  q quit"

// Viewer draws one simulation onto a terminal screen and drives it from a
// ticker. The simulation is only touched from the goroutine running Run.
type Viewer struct {
	screen   tcell.Screen
	sim      *engine.Simulation
	interval time.Duration
	paused   bool
}

// NewViewer creates a viewer. The caller owns the screen's Init and Fini.
func NewViewer(screen tcell.Screen, sim *engine.Simulation, interval time.Duration) *Viewer {
	if interval <= 0 {
		interval = time.Duration(engine.DefaultTickMs) * time.Millisecond
	}
	return &Viewer{screen: screen, sim: sim, interval: interval}
}

// Paused reports whether automatic stepping is suspended
func (v *Viewer) Paused() bool { return v.paused }

// Run steps and redraws until the user quits or ctx is cancelled
func (v *Viewer) Run(ctx context.Context) error {
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				// Screen finalized
				close(events)
				return
			}
			events <- ev
		}
	}()

	v.Draw()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok || !v.HandleEvent(ev) {
				return nil
			}
			v.Draw()

		case <-ticker.C:
			if !v.paused {
				v.sim.Step()
			}
			v.Draw()
		}
	}
}

// HandleEvent applies a key or resize event. It returns false when the user
// asked to quit.
func (v *Viewer) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q', 'Q':
				return false
			case 'r', 'R':
				v.sim.Reset()
				log.WithField("tick", v.sim.Tick()).Info("Simulation reset from viewer")
			case 'd', 'D':
				v.sim.SetDebug(!v.sim.Network().Debug())
			case ' ':
				v.paused = !v.paused
			case 's', 'S':
				if v.paused {
					v.sim.Step()
				}
			}
		}

	case *tcell.EventResize:
		v.screen.Sync()
	}
	return true
}

// Draw renders the grid, the cars and a status line
func (v *Viewer) Draw() {
	v.screen.Clear()
	width, height := v.screen.Size()
	net := v.sim.Network()

	for row := 0; row < net.Rows() && row < height; row++ {
		for col := 0; col < net.Cols() && col < width; col++ {
			glyph, style := cellGlyph(net, engine.Coord{Col: col, Row: row})
			v.screen.SetContent(col, row, glyph, nil, style)
		}
	}

	for _, a := range v.sim.Roster() {
		cell := net.CellAt(a.Position)
		if cell == nil || cell.Col >= width || cell.Row >= height {
			continue
		}
		glyph, ok := headingGlyphs[a.Direction]
		if !ok {
			glyph = '●'
		}
		style, ok := stateStyles[a.State]
		if !ok {
			style = styleDefault
		}
		if j, ok := net.Junction(cell.Coord()); ok && j.Occupied() {
			style = style.Background(tcell.ColorOlive)
		}
		v.screen.SetContent(cell.Col, cell.Row, glyph, nil, style)
	}

	statusRow := min(net.Rows(), height-2)
	if statusRow >= 0 {
		drawText(v.screen, 0, statusRow, styleStatus, v.status())
		drawText(v.screen, 0, statusRow+1, styleHelp, helpLine)
	}

	v.screen.Show()
}

func (v *Viewer) status() string {
	states := v.sim.CountStates()
	diag := v.sim.Network().Diagnostics()
	mode := ""
	if v.paused {
		mode = " [paused]"
	}
	if v.sim.Network().Debug() {
		mode += " [debug]"
	}
	return fmt.Sprintf("tick %d  cars %d  driving %d  waiting %d  collision %d  forced %d  overrides %d%s",
		v.sim.Tick(), v.sim.AgentCount(),
		states[engine.Driving], states[engine.Waiting], states[engine.Collision],
		diag.ForcedReleases, diag.OverrideCrossings, mode)
}

func cellGlyph(net *engine.Network, coord engine.Coord) (rune, tcell.Style) {
	cell := net.CellAtCoord(coord)
	glyph, style := ' ', styleDefault

	switch cell.Kind {
	case engine.RoadHorizontal, engine.RoadVertical:
		glyph, style = flowGlyph(cell.Flow), styleRoad
	case engine.Junction:
		glyph, style = '┼', styleJunction
		if j, ok := net.Junction(coord); ok && j.Occupied() {
			style = styleHeld
		}
	case engine.Building:
		glyph, style = '█', styleBuilding
	}

	switch cell.DebugView {
	case "mark":
		style = styleDebugMark.Foreground(tcell.ColorWhite)
	case "junction":
		style = styleDebugJunc.Foreground(tcell.ColorWhite)
	}
	return glyph, style
}

func flowGlyph(flow engine.Flow) rune {
	switch flow {
	case engine.WestToEast:
		return '→'
	case engine.EastToWest:
		return '←'
	case engine.NorthToSouth:
		return '↓'
	case engine.SouthToNorth:
		return '↑'
	}
	return '·'
}

func drawText(screen tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		screen.SetContent(x, y, r, nil, style)
		x++
	}
}
