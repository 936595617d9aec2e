package cart

import "github.com/FabianRolfMatthiasNoll/gbrainbow/internal/bus"

const (
	mbc5ROMBankSize = 0x4000
	mbc5RAMBankSize = 0x2000
)

// window is one contiguous CPU range and the storage behind it. kind None
// leaves the range unmapped.
type window struct {
	start, end uint16
	kind       bus.MemoryKind
	offset     uint32
	readOnly   bool
}

// plan is the complete mapping of 0x0000-0xBFFF for one register state.
type plan struct {
	windows      []window
	ramRegisters bus.RegisterAccess // decode of 0xA000-0xBFFF
}

// slot ties a CPU window to the bank register that drives it.
type slot struct {
	start uint16
	size  uint32
	bank  int
}

var romLayouts = [8][]slot{
	ROMMode32K: {
		{0x0000, 0x8000, 0},
	},
	ROMMode16K16K: {
		{0x0000, 0x4000, 0},
		{0x4000, 0x4000, 4},
	},
	ROMMode16K8K8K: {
		{0x0000, 0x4000, 0},
		{0x4000, 0x2000, 4},
		{0x6000, 0x2000, 6},
	},
	ROMMode8Kx4: {
		{0x0000, 0x2000, 0},
		{0x2000, 0x2000, 2},
		{0x4000, 0x2000, 4},
		{0x6000, 0x2000, 6},
	},
	ROMMode4Kx8: {
		{0x0000, 0x1000, 0},
		{0x1000, 0x1000, 1},
		{0x2000, 0x1000, 2},
		{0x3000, 0x1000, 3},
		{0x4000, 0x1000, 4},
		{0x5000, 0x1000, 5},
		{0x6000, 0x1000, 6},
		{0x7000, 0x1000, 7},
	},
}

var ramLayouts = [2][]slot{
	RAMMode8K: {
		{0xA000, 0x2000, 0},
	},
	RAMMode4Kx2: {
		{0xA000, 0x1000, 0},
		{0xB000, 0x1000, 1},
	},
}

// ramMask wraps cart RAM bank indices to the physical RAM size. It assumes a
// power of two RAM size no smaller than the window.
func ramMask(realRAMSize, size uint32) uint16 {
	return uint16(realRAMSize/size - 1)
}

// planRainbow derives the full address map from the register state.
func planRainbow(s BankingState, realRAMSize uint32) plan {
	if !s.BootROMMode && s.MBC5Compat {
		return planCompat(s)
	}

	romMode := s.ROMMode
	if s.BootROMMode {
		romMode = ROMMode8Kx4
	}

	var p plan
	layout := romLayouts[romMode&0x07]
	if len(layout) == 0 {
		p.windows = append(p.windows, window{start: 0x0000, end: 0x7FFF})
	}
	for _, sl := range layout {
		p.windows = append(p.windows, romWindow(sl, s.ROMBanks[sl.bank], realRAMSize))
	}
	for _, sl := range ramLayouts[s.RAMMode&0x01] {
		p.windows = append(p.windows, ramWindow(sl, s.RAMBanks[sl.bank], realRAMSize))
	}
	p.ramRegisters = bus.AccessNone
	return p
}

func planCompat(s BankingState) plan {
	p := plan{
		windows: []window{
			{start: 0x0000, end: 0x3FFF, kind: bus.PrgRom, offset: 0, readOnly: true},
			{start: 0x4000, end: 0x7FFF, kind: bus.PrgRom, offset: (s.ROMBanks[4] & bankIndexMask) * mbc5ROMBankSize, readOnly: true},
		},
	}
	if s.RAMEnabled {
		p.windows = append(p.windows, window{
			start: 0xA000, end: 0xBFFF,
			kind:   bus.CartRam,
			offset: (s.RAMBanks[0] & bankIndexMask) * mbc5RAMBankSize,
		})
		p.ramRegisters = bus.AccessNone
	} else {
		// disabled RAM reads 0xFF through the register path
		p.windows = append(p.windows, window{start: 0xA000, end: 0xBFFF})
		p.ramRegisters = bus.AccessRead
	}
	return p
}

func romWindow(sl slot, bank uint32, realRAMSize uint32) window {
	w := window{
		start:    sl.start,
		end:      sl.start + uint16(sl.size-1),
		readOnly: true,
	}
	index := uint16(bank)
	switch (bank >> 16) & 0x01 {
	case sourceROM:
		w.kind = bus.PrgRom
		w.offset = uint32(index) * sl.size
	case sourceCartRAM:
		w.kind = bus.CartRam
		w.offset = uint32(index&ramMask(realRAMSize, sl.size)) * sl.size
	}
	return w
}

func ramWindow(sl slot, bank uint32, realRAMSize uint32) window {
	w := window{
		start: sl.start,
		end:   sl.start + uint16(sl.size-1),
	}
	index := uint16(bank)
	switch (bank >> 16) & 0x03 {
	case sourceROM:
		w.kind = bus.PrgRom
		w.offset = uint32(index) * sl.size
	case sourceCartRAM:
		w.kind = bus.CartRam
		w.offset = uint32(index&ramMask(realRAMSize, sl.size)) * sl.size
	default:
		// FPGA RAM sits right after cart RAM. A 4K window picks one half of
		// it, the 8K window always shows all of it.
		w.kind = bus.CartRam
		w.offset = realRAMSize
		if sl.size < FPGARAMSize {
			w.offset += uint32(index&0x0001) * sl.size
		}
	}
	return w
}

// RefreshMappings reissues the complete mapping for the current registers.
func (r *Rainbow) RefreshMappings() {
	if r.m.IsBootRomDisabled() {
		r.m.MapRegisters(0x0000, 0x00FF, bus.AccessReadWrite)
	}

	p := planRainbow(r.bank, r.realRAMSize())
	for _, w := range p.windows {
		if w.kind == bus.None {
			r.m.Unmap(w.start, w.end)
			continue
		}
		r.m.Map(w.start, w.end, w.kind, w.offset, w.readOnly)
	}
	r.m.MapRegisters(0xA000, 0xBFFF, p.ramRegisters)
}
