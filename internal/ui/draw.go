package ui

import (
	"fmt"
	"image"
	"image/color"

	"github.com/FabianRolfMatthiasNoll/gbrainbow/internal/bus"
	"github.com/FabianRolfMatthiasNoll/gbrainbow/internal/cart"
	"github.com/FabianRolfMatthiasNoll/gbrainbow/internal/trace"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

var (
	colorBackground = color.RGBA{0x18, 0x18, 0x20, 0xFF}
	colorUnmapped   = color.RGBA{0x40, 0x40, 0x48, 0xFF}
	colorROM        = color.RGBA{0x30, 0x60, 0xC0, 0xFF}
	colorRAM        = color.RGBA{0x30, 0xA0, 0x50, 0xFF}
	colorFPGA       = color.RGBA{0xE0, 0x80, 0x20, 0xFF}
	colorRegisters  = color.RGBA{0xE0, 0x30, 0x30, 0xFF}
	colorToast      = color.RGBA{0, 0, 0, 0xC0}
)

// page grid: one row per 4K, one cell per 256-byte page
const (
	gridX     = 48
	gridY     = 24
	cellW     = 10
	cellH     = 10
	gridRows  = 12
	gridCols  = 16
	textLineH = 14
)

func fillRect(dst *ebiten.Image, x, y, w, h int, c color.Color) {
	dst.SubImage(image.Rect(x, y, x+w, y+h)).(*ebiten.Image).Fill(c)
}

// fpgaStart is the cart RAM offset where FPGA RAM begins, or -1.
func (a *App) fpgaStart() int64 {
	h := a.m.Header()
	if h == nil || !h.IsRainbow() {
		return -1
	}
	return int64(h.CartRAMSize() - cart.FPGARAMSize)
}

func pageColor(p bus.Page, fpgaStart int64) color.RGBA {
	switch p.Kind {
	case bus.PrgRom:
		return colorROM
	case bus.CartRam:
		if fpgaStart >= 0 && int64(p.Offset) >= fpgaStart {
			return colorFPGA
		}
		return colorRAM
	default:
		return colorUnmapped
	}
}

func (a *App) drawPages(screen *ebiten.Image) {
	ebitenutil.DebugPrintAt(screen, "CPU address map", gridX, 4)

	pages := a.m.Pages()
	fpga := a.fpgaStart()
	for row := 0; row < gridRows; row++ {
		y := gridY + row*cellH
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%04X", row<<12), 8, y-3)
		for col := 0; col < gridCols; col++ {
			p := pages[row*gridCols+col]
			x := gridX + col*cellW
			fillRect(screen, x, y, cellW-1, cellH-1, pageColor(p, fpga))
			if p.Registers != bus.AccessNone {
				fillRect(screen, x+3, y+3, cellW-7, cellH-7, colorRegisters)
			}
		}
	}
}

// drawRanges lists the merged mapping under the grid.
func (a *App) drawRanges(screen *ebiten.Image) {
	y := gridY + gridRows*cellH + 8
	var buf []byte
	for _, r := range trace.Ranges(a.m.Pages()) {
		buf = buf[:0]
		buf = fmt.Appendf(buf, "%04X-%04X %s", r.Start, r.End, r.Page.Kind)
		if r.Page.Kind != bus.None {
			buf = fmt.Appendf(buf, " @%06X", r.Page.Offset)
		}
		if r.Page.Registers != bus.AccessNone {
			buf = append(buf, " regs"...)
		}
		ebitenutil.DebugPrintAt(screen, string(buf), 8, y)
		y += textLineH
		if y > screenH-textLineH {
			break
		}
	}
}

func statusLines(snap cart.RainbowSnapshot) []string {
	s, e := snap.Banking, snap.Bridge
	lines := []string{
		fmt.Sprintf("ROM mode %d  RAM mode %d", s.ROMMode, s.RAMMode),
		fmt.Sprintf("MBC5 compat %t  RAM enable %t", s.MBC5Compat, s.RAMEnabled),
		fmt.Sprintf("Boot ROM mode %t", s.BootROMMode),
		"ROM banks:",
	}
	for i := 0; i < len(s.ROMBanks); i += 2 {
		lines = append(lines, fmt.Sprintf(" %d:%05X  %d:%05X", i, s.ROMBanks[i], i+1, s.ROMBanks[i+1]))
	}
	lines = append(lines,
		fmt.Sprintf("RAM banks: 0:%05X 1:%05X", s.RAMBanks[0], s.RAMBanks[1]),
		fmt.Sprintf("Auto R/W %04X +%d", s.AutoRWAddress, s.AutoRWIncrement),
		fmt.Sprintf("Bridge en %t irq %t", e.Enable, e.IRQEnable),
		fmt.Sprintf(" rx slot %d recv %t", e.RxAddress, e.HasReceivedMessage),
		fmt.Sprintf(" tx slot %d sent %t", e.TxAddress, e.MessageSent),
	)
	return lines
}

func (a *App) drawStatus(screen *ebiten.Image) {
	x := gridX + gridCols*cellW + 24
	y := 4

	h := a.m.Header()
	if h == nil {
		ebitenutil.DebugPrintAt(screen, "No cartridge", x, y)
		return
	}
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%s (%s)", h.Name(), h.CartTypeStr), x, y)
	y += textLineH

	r, ok := a.m.Rainbow()
	if !ok {
		return
	}
	for _, line := range statusLines(r.Snapshot()) {
		ebitenutil.DebugPrintAt(screen, line, x, y)
		y += textLineH
	}
}

func (a *App) drawHelp(screen *ebiten.Image) {
	help := []string{
		"M ROM mode  A RAM mode  C compat",
		"B boot ROM mode  E bridge",
		"Up/Down ROM bank (slot 4)",
		"F5 save  F9 load  H help",
	}
	x := gridX + gridCols*cellW + 24
	y := screenH - len(help)*textLineH - 4
	for _, line := range help {
		ebitenutil.DebugPrintAt(screen, line, x, y)
		y += textLineH
	}
}

func (a *App) drawToast(screen *ebiten.Image) {
	if a.toastMsg == "" {
		return
	}
	w := len(a.toastMsg)*6 + 12
	fillRect(screen, (screenW-w)/2, screenH/2-10, w, 20, colorToast)
	ebitenutil.DebugPrintAt(screen, a.toastMsg, (screenW-w)/2+6, screenH/2-8)
}
