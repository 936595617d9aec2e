package ui

import (
	"fmt"

	"github.com/FabianRolfMatthiasNoll/gbrainbow/internal/cart"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/retroenv/retrogolib/log"
)

// controlValue encodes the banking state the way register 0x00A0 expects it.
func controlValue(s cart.BankingState) byte {
	v := byte(s.RAMMode&0x01)<<7 | byte(s.ROMMode&0x07)
	if s.MBC5Compat {
		v |= 0x08
	}
	return v
}

// handleKeys turns key presses into register writes, so every change takes
// the same path a game would.
func (a *App) handleKeys() {
	if inpututil.IsKeyJustPressed(ebiten.KeyH) {
		a.showHelp = !a.showHelp
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		if err := a.m.SaveStateToFile(a.cfg.StatePath); err != nil {
			a.toast("Save failed: " + err.Error())
		} else {
			a.toast("Saved " + a.cfg.StatePath)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF9) {
		if err := a.m.LoadStateFromFile(a.cfg.StatePath); err != nil {
			a.toast("Load failed: " + err.Error())
		} else {
			a.toast("Loaded " + a.cfg.StatePath)
		}
	}

	r, ok := a.m.Rainbow()
	if !ok {
		return
	}
	s := r.Banking()

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyM):
		s.ROMMode = (s.ROMMode + 1) & 0x07
		a.poke(0x00A0, controlValue(s))

	case inpututil.IsKeyJustPressed(ebiten.KeyA):
		s.RAMMode ^= 0x01
		a.poke(0x00A0, controlValue(s))

	case inpututil.IsKeyJustPressed(ebiten.KeyC):
		s.MBC5Compat = !s.MBC5Compat
		a.poke(0x00A0, controlValue(s))

	case inpututil.IsKeyJustPressed(ebiten.KeyB):
		if s.BootROMMode {
			a.poke(0x00FF, 0x00)
		} else {
			a.poke(0x00FF, 0x01)
		}

	case inpututil.IsKeyJustPressed(ebiten.KeyArrowUp):
		a.selectBank(s, s.ROMBanks[4]+1)

	case inpututil.IsKeyJustPressed(ebiten.KeyArrowDown):
		a.selectBank(s, s.ROMBanks[4]-1)

	case inpututil.IsKeyJustPressed(ebiten.KeyE):
		if r.Bridge().Enable {
			a.poke(0x00F0, 0x00)
		} else {
			a.poke(0x00F0, 0x01)
		}
	}
}

// selectBank moves ROM slot 4 to bank, keeping its source.
func (a *App) selectBank(s cart.BankingState, bank uint32) {
	if s.MBC5Compat && !s.BootROMMode {
		a.poke(0x2000, byte(bank))
		a.poke(0x3000, byte(bank>>8)&0x01)
		return
	}
	a.poke(0x0084, byte(bank>>8))
	a.poke(0x0094, byte(bank))
}

func (a *App) poke(addr uint16, value byte) {
	a.m.Write(addr, value)
	a.logger.Debug("Register poke", log.Hex("address", addr), log.Hex("value", value))
	a.toast(fmt.Sprintf("%04X <- %02X", addr, value))
}
