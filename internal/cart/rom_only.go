package cart

import "github.com/FabianRolfMatthiasNoll/gbrainbow/internal/bus"

// ROMOnly maps 32KB of ROM and, when present, 8KB of RAM with no banking.
type ROMOnly struct {
	m      Mapper
	hasRAM bool
}

func NewROMOnly(hasRAM bool) *ROMOnly {
	return &ROMOnly{hasRAM: hasRAM}
}

func (c *ROMOnly) Init(m Mapper) { c.m = m }

func (c *ROMOnly) RefreshMappings() {
	c.m.Map(0x0000, 0x7FFF, bus.PrgRom, 0, true)
	if c.hasRAM {
		c.m.Map(0xA000, 0xBFFF, bus.CartRam, 0, false)
	} else {
		c.m.Unmap(0xA000, 0xBFFF)
	}
}

// ROM-only carts open no register pages.
func (c *ROMOnly) ReadRegister(addr uint16) byte { return 0xFF }
func (c *ROMOnly) WriteRegister(addr uint16, value byte) {}
func (c *ROMOnly) SaveState() []byte { return nil }
func (c *ROMOnly) LoadState(data []byte) error { return nil }
