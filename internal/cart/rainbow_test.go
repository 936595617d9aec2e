package cart

import (
	"testing"

	"github.com/FabianRolfMatthiasNoll/gbrainbow/internal/bus"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

const (
	testROMSize     = 0x40000 // 256K
	testRealRAMSize = 0x8000  // 32K cart RAM, FPGA RAM follows
)

type rainbowFixture struct {
	r   *Rainbow
	b   *bus.Bus
	rom []byte
	ram []byte
}

// newRainbowFixture builds a Rainbow on a real bus. Every 4K block of ROM
// starts with its block number so reads identify the mapped bank.
func newRainbowFixture(t *testing.T, peer Peer) *rainbowFixture {
	t.Helper()

	rom := make([]byte, testROMSize)
	for i := 0; i < testROMSize/0x1000; i++ {
		rom[i*0x1000] = byte(i)
	}
	ram := make([]byte, testRealRAMSize+FPGARAMSize)

	b := bus.New(rom, ram)
	r := NewRainbow(log.NewTestLogger(t), ram, peer)
	r.Init(b)
	b.Attach(r)
	r.RefreshMappings()
	return &rainbowFixture{r: r, b: b, rom: rom, ram: ram}
}

// extended leaves MBC5 compatibility with the given ROM and RAM modes.
func (f *rainbowFixture) extended(rom ROMMode, ram RAMMode) {
	f.b.Write(0x00A0, byte(ram)<<7|byte(rom))
}

func TestRainbow_PowerOnIsMBC5(t *testing.T) {
	f := newRainbowFixture(t, nil)

	s := f.r.Banking()
	assert.True(t, s.MBC5Compat)
	assert.False(t, s.BootROMMode)
	assert.False(t, s.RAMEnabled)
	assert.Equal(t, uint32(0x00001), s.ROMBanks[4])
	assert.Equal(t, uint32(0x10000), s.RAMBanks[0])
	assert.Equal(t, uint32(0x10001), s.RAMBanks[1])
	assert.True(t, f.r.Bridge().MessageSent)

	assert.Equal(t, byte(1), f.b.Read(0x1000))
	assert.Equal(t, byte(4), f.b.Read(0x4000)) // bank 1 starts at 4K block 4
	assert.Equal(t, byte(0xFF), f.b.Read(0xA000))
	assert.Equal(t, bus.AccessRead, f.b.Page(0xA000).Registers)
	assert.Equal(t, bus.AccessReadWrite, f.b.Page(0x0000).Registers)
	assert.Equal(t, bus.AccessWrite, f.b.Page(0x5F00).Registers)
}

func TestRainbow_CompatRAMEnable(t *testing.T) {
	f := newRainbowFixture(t, nil)

	f.b.Write(0x1234, 0x0A)
	assert.True(t, f.r.Banking().RAMEnabled)
	pg := f.b.Page(0xA000)
	assert.Equal(t, bus.CartRam, pg.Kind)
	assert.False(t, pg.ReadOnly)
	assert.Equal(t, bus.AccessNone, pg.Registers)

	f.b.Write(0xA010, 0x66)
	assert.Equal(t, byte(0x66), f.ram[0x0010])
	assert.Equal(t, byte(0x66), f.b.Read(0xA010))

	// only the literal 0x0A enables
	f.b.Write(0x0000, 0x1A)
	assert.False(t, f.r.Banking().RAMEnabled)
	assert.Equal(t, bus.None, f.b.Page(0xA000).Kind)
	assert.Equal(t, bus.AccessRead, f.b.Page(0xA000).Registers)
	assert.Equal(t, byte(0xFF), f.b.Read(0xA010))
}

func TestRainbow_CompatBanking(t *testing.T) {
	f := newRainbowFixture(t, nil)

	f.b.Write(0x2000, 0x05)
	assert.Equal(t, uint32(0x005), f.r.Banking().ROMBanks[4])
	assert.Equal(t, byte(5*4), f.b.Read(0x4000))

	f.b.Write(0x3000, 0x01)
	assert.Equal(t, uint32(0x105), f.r.Banking().ROMBanks[4])
	assert.Equal(t, uint32(0x105*0x4000%testROMSize), f.b.Page(0x4000).Offset)

	f.b.Write(0x4000, 0x13)
	assert.Equal(t, uint32(0x03), f.r.Banking().RAMBanks[0])
	f.b.Write(0x0000, 0x0A)
	assert.Equal(t, uint32(3*0x2000), f.b.Page(0xA000).Offset)

	// extended registers are ignored in compatibility mode
	f.b.Write(0x0090, 0x07)
	f.b.Write(0x0070, 0x01)
	f.b.Write(0x007A, 0x02)
	assert.Equal(t, uint32(0x00000), f.r.Banking().ROMBanks[0])
	assert.Equal(t, uint32(0x00003), f.r.Banking().RAMBanks[0])
}

func TestRainbow_ROMLayoutsTile(t *testing.T) {
	counts := map[ROMMode]int{
		ROMMode32K:     1,
		ROMMode16K16K:  2,
		ROMMode16K8K8K: 3,
		ROMMode8Kx4:    4,
		ROMMode4Kx8:    8,
	}
	for mode, want := range counts {
		s := BankingState{ROMMode: mode, RAMMode: RAMMode8K}
		p := planRainbow(s, testRealRAMSize)

		next := uint32(0x0000)
		got := 0
		for _, w := range p.windows {
			if w.start >= 0x8000 {
				continue
			}
			assert.Equal(t, next, uint32(w.start))
			assert.True(t, w.readOnly)
			next = uint32(w.end) + 1
			got++
		}
		assert.Equal(t, uint32(0x8000), next)
		assert.Equal(t, want, got)
	}

	// the asymmetric mode: 16K then two 8K windows
	p := planRainbow(BankingState{ROMMode: ROMMode16K8K8K}, testRealRAMSize)
	assert.Equal(t, uint16(0x3FFF), p.windows[0].end)
	assert.Equal(t, uint16(0x5FFF), p.windows[1].end)
	assert.Equal(t, uint16(0x7FFF), p.windows[2].end)
}

func TestRainbow_UndefinedROMModesUnmap(t *testing.T) {
	f := newRainbowFixture(t, nil)
	f.b.Write(0x00A0, 0x05)
	assert.Equal(t, ROMMode(5), f.r.Banking().ROMMode)
	assert.Equal(t, bus.None, f.b.Page(0x4000).Kind)
	assert.Equal(t, byte(0xFF), f.b.Read(0x4000))
}

func TestRainbow_BankTargets(t *testing.T) {
	f := newRainbowFixture(t, nil)
	f.extended(ROMMode16K16K, RAMMode8K)

	// slot 0 -> cart RAM bank 5, 16K windows over 32K RAM alias with mask 1
	f.b.Write(0x0070, 0x01)
	f.b.Write(0x0090, 0x05)
	pg := f.b.Page(0x0000)
	assert.Equal(t, bus.CartRam, pg.Kind)
	assert.True(t, pg.ReadOnly)
	assert.Equal(t, uint32(0x4000), pg.Offset)

	// slot 4 -> ROM bank 0x0102, unmasked in the plan
	f.b.Write(0x0084, 0x01)
	f.b.Write(0x0094, 0x02)
	assert.Equal(t, uint32(0x00102), f.r.Banking().ROMBanks[4])
	p := planRainbow(f.r.Banking(), testRealRAMSize)
	assert.Equal(t, uint32(0x102*0x4000), p.windows[1].offset)
	assert.Equal(t, bus.PrgRom, p.windows[1].kind)

	// source bit survives index writes and index survives source writes
	f.b.Write(0x0070, 0x00)
	assert.Equal(t, uint32(0x00005), f.r.Banking().ROMBanks[0])
	assert.Equal(t, byte(5*4), f.b.Read(0x0000))
}

func TestRainbow_RAMMasking(t *testing.T) {
	for _, size := range []uint32{0x2000, 0x8000, 0x20000} {
		s := BankingState{ROMMode: ROMMode4Kx8}
		for i := range s.ROMBanks {
			s.ROMBanks[i] = 0x10000 | uint32(0x21+i)
		}
		p := planRainbow(s, size)
		mask := size/0x1000 - 1
		for i, w := range p.windows[:8] {
			assert.Equal(t, bus.CartRam, w.kind)
			assert.Equal(t, (uint32(0x21+i)&mask)*0x1000, w.offset)
		}
	}
}

func TestRainbow_RAMWindows(t *testing.T) {
	f := newRainbowFixture(t, nil)
	f.extended(ROMMode32K, RAMMode4Kx2)
	assert.Equal(t, RAMMode4Kx2, f.r.Banking().RAMMode)
	assert.False(t, f.r.Banking().MBC5Compat)

	// A000: FPGA RAM upper half
	f.b.Write(0x007A, 0x02)
	f.b.Write(0x009A, 0x01)
	assert.Equal(t, uint32(testRealRAMSize+0x1000), f.b.Page(0xA000).Offset)

	// B000: cart RAM bank 11, masked to 8 banks of 4K
	f.b.Write(0x007B, 0x01)
	f.b.Write(0x009B, 0x0B)
	assert.Equal(t, uint32(3*0x1000), f.b.Page(0xB000).Offset)

	// source 3 mirrors FPGA RAM
	f.b.Write(0x007B, 0x03)
	f.b.Write(0x009B, 0x00)
	assert.Equal(t, uint32(testRealRAMSize), f.b.Page(0xB000).Offset)

	f.b.Write(0xB001, 0xAB)
	assert.Equal(t, byte(0xAB), f.r.FPGARAM()[0x0001])

	// one 8K window always shows the whole FPGA RAM
	f.extended(ROMMode32K, RAMMode8K)
	f.b.Write(0x009A, 0x01)
	assert.Equal(t, uint32(testRealRAMSize), f.b.Page(0xA000).Offset)
	assert.Equal(t, uint32(testRealRAMSize+0x1000), f.b.Page(0xB000).Offset)

	// source 0 maps ROM, writable like the hardware allows
	f.b.Write(0x007A, 0x00)
	f.b.Write(0x009A, 0x03)
	pg := f.b.Page(0xA000)
	assert.Equal(t, bus.PrgRom, pg.Kind)
	assert.False(t, pg.ReadOnly)
	assert.Equal(t, uint32(3*0x2000), pg.Offset)
}

func TestRainbow_MiddleByteWrites(t *testing.T) {
	f := newRainbowFixture(t, nil)
	f.extended(ROMMode4Kx8, RAMMode4Kx2)

	f.b.Write(0x0073, 0x01)
	f.b.Write(0x0083, 0xAB)
	f.b.Write(0x0093, 0xCD)
	assert.Equal(t, uint32(0x1ABCD), f.r.Banking().ROMBanks[3])

	f.b.Write(0x007B, 0x02)
	f.b.Write(0x008B, 0xFF)
	f.b.Write(0x009B, 0x12)
	assert.Equal(t, uint32(0x20312), f.r.Banking().RAMBanks[1])
}

func TestRainbow_AutoRW(t *testing.T) {
	f := newRainbowFixture(t, nil)

	f.b.Write(0x00B0, 0x01)
	f.b.Write(0x00B1, 0xFE)
	f.b.Write(0x00B2, 0x01)
	for i := 0; i < 4; i++ {
		f.b.Write(0x00B3, byte(0x10+i))
	}
	fpga := f.r.FPGARAM()
	assert.Equal(t, byte(0x10), fpga[0x01FE])
	assert.Equal(t, byte(0x13), fpga[0x0201])
	assert.Equal(t, uint16(0x0202), f.r.Banking().AutoRWAddress)

	f.b.Write(0x00B0, 0x01)
	f.b.Write(0x00B1, 0xFE)
	for i := 0; i < 4; i++ {
		assert.Equal(t, byte(0x10+i), f.b.Read(0x00B3))
	}

	// high byte keeps 5 bits, access wraps inside the 8K region
	f.b.Write(0x00B0, 0xFF)
	f.b.Write(0x00B1, 0xFF)
	assert.Equal(t, uint16(0x1FFF), f.r.Banking().AutoRWAddress)
	f.b.Write(0x00B3, 0xA1)
	f.b.Write(0x00B3, 0xA2)
	assert.Equal(t, byte(0xA1), fpga[0x1FFF])
	assert.Equal(t, byte(0xA2), fpga[0x0000])

	// increment 0 makes the data register a fixed port
	f.b.Write(0x00B2, 0x00)
	f.b.Write(0x00B1, 0x40)
	f.b.Write(0x00B0, 0x00)
	f.b.Write(0x00B3, 0x01)
	f.b.Write(0x00B3, 0x02)
	assert.Equal(t, byte(0x02), fpga[0x0040])
	assert.Equal(t, uint16(0x0040), f.r.Banking().AutoRWAddress)
}

func TestRainbow_AutoRWCursorWraps16Bit(t *testing.T) {
	f := newRainbowFixture(t, nil)
	f.b.Write(0x00B0, 0x1F)
	f.b.Write(0x00B1, 0xFF)
	f.b.Write(0x00B2, 0xFF)
	for i := 0; i < 0x100; i++ {
		_ = f.b.Read(0x00B3)
	}
	assert.Equal(t, uint16((0x1FFF+0x100*0xFF)&0xFFFF), f.r.Banking().AutoRWAddress)
}

func TestRainbow_VersionAndFallthrough(t *testing.T) {
	f := newRainbowFixture(t, nil)
	assert.Equal(t, byte(MapperVersion), f.b.Read(0x00CA))
	assert.Equal(t, byte(0x20), f.b.Read(0x00CA))

	// non register addresses in the window read mapped ROM
	f.rom[0x0042] = 0x99
	assert.Equal(t, byte(0x99), f.b.Read(0x0042))
}

func TestRainbow_BootROMMode(t *testing.T) {
	f := newRainbowFixture(t, nil)

	// stored config: extended, one 32K window of ROM bank 1
	f.extended(ROMMode32K, RAMMode8K)
	f.b.Write(0x0090, 0x01)
	f.b.Write(0x0092, 0x03)
	f.b.Write(0x0094, 0x05)
	f.b.Write(0x0096, 0x07)
	assert.Equal(t, byte(8), f.b.Read(0x0000))

	f.b.Write(0x00FF, 0x01)
	assert.True(t, f.r.Banking().BootROMMode)
	assert.Equal(t, byte(1*2), f.b.Read(0x0000))
	assert.Equal(t, byte(3*2), f.b.Read(0x2000))
	assert.Equal(t, byte(5*2), f.b.Read(0x4000))
	assert.Equal(t, byte(7*2), f.b.Read(0x6000))
	assert.Equal(t, ROMMode32K, f.r.Banking().ROMMode)

	f.b.Write(0x00FF, 0x00)
	assert.Equal(t, byte(8), f.b.Read(0x0000))
	assert.Equal(t, byte(8+2), f.b.Read(0x2000))

	// overrides compatibility mode too, and unlocks the extended registers
	f.b.Write(0x00A0, 0x08)
	f.b.Write(0x00FF, 0x01)
	assert.Equal(t, 4, countROMWindows(planRainbow(f.r.Banking(), testRealRAMSize)))
	f.b.Write(0x0092, 0x09)
	assert.Equal(t, uint32(0x00009), f.r.Banking().ROMBanks[2])
	f.b.Write(0x00FF, 0x00)
	assert.Equal(t, 2, countROMWindows(planRainbow(f.r.Banking(), testRealRAMSize)))
}

func countROMWindows(p plan) int {
	n := 0
	for _, w := range p.windows {
		if w.start < 0x8000 {
			n++
		}
	}
	return n
}

func TestRainbow_RegisterWindowWaitsForBootROM(t *testing.T) {
	rom := make([]byte, testROMSize)
	ram := make([]byte, testRealRAMSize+FPGARAMSize)
	b := bus.New(rom, ram)
	b.SetBootROM(make([]byte, 0x100))
	r := NewRainbow(log.NewTestLogger(t), ram, nil)
	r.Init(b)
	b.Attach(r)
	r.RefreshMappings()

	assert.Equal(t, bus.AccessWrite, b.Page(0x0000).Registers)
	// registers stay writable under the overlay
	b.Write(0x00A0, 0x01)
	assert.Equal(t, ROMMode16K16K, r.Banking().ROMMode)

	b.Write(0xFF50, 0x01)
	assert.Equal(t, bus.AccessReadWrite, b.Page(0x0000).Registers)
	assert.Equal(t, byte(MapperVersion), b.Read(0x00CA))
}

func TestRainbow_RefreshIsIdempotent(t *testing.T) {
	f := newRainbowFixture(t, nil)
	f.extended(ROMMode16K8K8K, RAMMode4Kx2)
	f.b.Write(0x0094, 0x21)
	f.b.Write(0x007B, 0x02)

	before := f.b.Pages()
	f.r.RefreshMappings()
	f.r.RefreshMappings()
	assert.Equal(t, before, f.b.Pages())

	s := f.r.Banking()
	a, b := planRainbow(s, testRealRAMSize), planRainbow(s, testRealRAMSize)
	assert.Len(t, b.windows, len(a.windows))
	for i := range a.windows {
		assert.Equal(t, a.windows[i], b.windows[i])
	}
}

func TestRainbow_SaveLoadState(t *testing.T) {
	f := newRainbowFixture(t, nil)
	f.extended(ROMMode4Kx8, RAMMode4Kx2)
	f.b.Write(0x0075, 0x01)
	f.b.Write(0x0095, 0x33)
	f.b.Write(0x00B0, 0x12)
	f.b.Write(0x00B2, 0x04)
	f.b.Write(0x00F0, 0x03)
	f.b.Write(0x00F3, 0x0D)
	f.b.Write(0x00F4, 0x02)
	data := f.r.SaveState()
	pages := f.b.Pages()

	g := newRainbowFixture(t, nil)
	assert.NoError(t, g.r.LoadState(data))
	assert.Equal(t, f.r.Snapshot(), g.r.Snapshot())
	assert.Equal(t, pages, g.b.Pages())
	assert.Equal(t, uint8(0x05), g.r.Bridge().RxAddress)
	assert.True(t, g.r.Bridge().IRQEnable)

	again := g.r.SaveState()
	assert.Equal(t, string(data), string(again))

	assert.Error(t, g.r.LoadState([]byte{0x01, 0x02}))
	assert.Error(t, g.r.LoadState(NewMBC5().SaveState()))
}

func TestRainbow_UndersizedRAMKeepsFPGARAMOffBus(t *testing.T) {
	rom := make([]byte, testROMSize)
	ram := make([]byte, 0x1000)
	b := bus.New(rom, ram)
	r := NewRainbow(log.NewTestLogger(t), ram, nil)
	r.Init(b)
	b.Attach(r)
	r.RefreshMappings()
	assert.Len(t, r.FPGARAM(), FPGARAMSize)

	// an FPGA RAM window lands past the cart RAM and wraps onto it
	b.Write(0x00A0, byte(RAMMode8K)<<7|byte(ROMMode32K))
	b.Write(0x007A, 0x02)
	b.Write(0x009A, 0x00)
	assert.Equal(t, bus.CartRam, b.Page(0xA000).Kind)
	assert.Equal(t, uint32(0), b.Page(0xA000).Offset)

	// the registers reach the separate buffer, the window reaches cart RAM
	b.Write(0x00B0, 0x00)
	b.Write(0x00B1, 0x00)
	b.Write(0x00B2, 0x01)
	b.Write(0x00B3, 0x5A)
	b.Write(0xA000, 0x33)
	assert.Equal(t, byte(0x5A), r.FPGARAM()[0])
	assert.Equal(t, byte(0x33), ram[0])
	assert.Equal(t, byte(0x33), b.Read(0xA000))
}
