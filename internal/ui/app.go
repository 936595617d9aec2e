// Package ui shows the live CPU address map of a hosted cartridge and lets
// the user poke the mapper registers from the keyboard.
package ui

import (
	"time"

	"github.com/FabianRolfMatthiasNoll/gbrainbow/internal/emu"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/retroenv/retrogolib/log"
)

const (
	screenW = 480
	screenH = 320

	toastDuration = 2 * time.Second
)

type App struct {
	cfg    Config
	m      *emu.Machine
	logger *log.Logger

	showHelp bool

	toastMsg   string
	toastUntil time.Time
}

func NewApp(cfg Config, m *emu.Machine, logger *log.Logger) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(screenW*cfg.Scale, screenH*cfg.Scale)
	return &App{cfg: cfg, m: m, logger: logger, showHelp: true}
}

func (a *App) Run() error { return ebiten.RunGame(a) }

func (a *App) Update() error {
	a.handleKeys()
	if a.toastMsg != "" && time.Now().After(a.toastUntil) {
		a.toastMsg = ""
	}
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	screen.Fill(colorBackground)
	a.drawPages(screen)
	a.drawRanges(screen)
	a.drawStatus(screen)
	if a.showHelp {
		a.drawHelp(screen)
	}
	a.drawToast(screen)
}

func (a *App) Layout(outW, outH int) (int, int) { return screenW, screenH }

func (a *App) toast(msg string) {
	a.toastMsg = msg
	a.toastUntil = time.Now().Add(toastDuration)
	a.logger.Info(msg)
}
