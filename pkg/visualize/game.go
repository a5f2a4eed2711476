// Package visualize is the ebiten-driven live tape/head/state view shared
// by cmd/tmwatch and `tmc watch`. Grounded on smasonuk-sicpu's
// cmd/desktop: a Game struct wrapping the thing being simulated, stepping
// it a fixed number of times per Update, and drawing a text grid with
// ebitenutil.DebugPrintAt.
package visualize

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"github.com/smasonuk/tmc/pkg/grid"
	"github.com/smasonuk/tmc/pkg/simulator"
)

const (
	cols          = 80
	charWidth     = 8
	charHeight    = 16
	stepsPerFrame = 1
)

// Game drives a *simulator.Simulator one stepsPerFrame worth of Step calls
// per Update, the same fixed-clock-per-tick idiom as smasonuk-sicpu's
// cmd/desktop Game.Update driving a *cpu.CPU.
type Game struct {
	sim   *simulator.Simulator
	input string

	stepsPerFrame int
	paused        bool
}

// New returns a Game that will Run input against sim when started.
func New(sim *simulator.Simulator, input string) *Game {
	g := &Game{sim: sim, input: input, stepsPerFrame: stepsPerFrame}
	g.sim.Reset(input)
	return g
}

func (g *Game) Update() error {
	if ebiten.IsKeyPressed(ebiten.KeySpace) {
		g.paused = !g.paused
	}
	if g.paused {
		return nil
	}
	for i := 0; i < g.stepsPerFrame; i++ {
		if g.sim.Halted() {
			break
		}
		g.sim.Step()
	}
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	cfg := g.sim.CurrentConfig()

	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("input: %q", g.input), 0, 0)
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("state: %s   steps: %d", cfg.State, g.sim.Steps()), 0, charHeight)
	status := "running"
	if g.sim.Halted() {
		if g.sim.Accepted() {
			status = "ACCEPT"
		} else {
			status = "REJECT"
		}
	}
	ebitenutil.DebugPrintAt(screen, "status: "+status, 0, 2*charHeight)

	g.drawTape(screen, cfg)
}

// drawTape renders the tape as one character per grid cell, wrapping at
// cols characters per row, with the head position marked on the row below
// using the same grid.GetGridCoords layout smasonuk-sicpu uses for its
// character VRAM.
func (g *Game) drawTape(screen *ebiten.Image, cfg simulator.Config) {
	baseY := 4 * charHeight
	for i, sym := range cfg.Tape {
		x, y := grid.GetGridCoords(i, cols)
		px := x * charWidth
		py := baseY + y*2*charHeight
		ebitenutil.DebugPrintAt(screen, string(rune(sym)), px, py)
	}

	hx, hy := grid.GetGridCoords(cfg.Head, cols)
	px := hx * charWidth
	py := baseY + hy*2*charHeight + charHeight
	if cfg.Head >= 0 {
		ebitenutil.DebugPrintAt(screen, "^", px, py)
	}
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return cols * charWidth, 600
}

// Run opens a window titled title and blocks until it is closed.
func Run(sim *simulator.Simulator, input, title string) error {
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	return ebiten.RunGame(New(sim, input))
}
