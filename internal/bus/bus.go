package bus

import (
	"bytes"
	"encoding/gob"
)

// MemoryKind tags the backing storage of a mapped page.
type MemoryKind uint8

const (
	None MemoryKind = iota
	PrgRom
	CartRam
)

func (k MemoryKind) String() string {
	switch k {
	case PrgRom:
		return "ROM"
	case CartRam:
		return "RAM"
	default:
		return "----"
	}
}

// RegisterAccess selects which bus accesses of a page are routed to the
// attached device instead of mapped memory.
type RegisterAccess uint8

const (
	AccessNone  RegisterAccess = 0
	AccessRead  RegisterAccess = 1
	AccessWrite RegisterAccess = 2

	AccessReadWrite = AccessRead | AccessWrite
)

const (
	pageShift = 8
	pageSize  = 1 << pageShift
	pageCount = 0x10000 >> pageShift

	bootROMSize   = 0x100
	bootDisableIO = 0xFF50
)

// Page describes how one 256-byte page of CPU address space is decoded.
type Page struct {
	Kind      MemoryKind
	Offset    uint32 // offset of the first byte of the page inside the source
	ReadOnly  bool
	Registers RegisterAccess
}

// Device receives register accesses for pages opened with MapRegisters.
type Device interface {
	ReadRegister(addr uint16) byte
	WriteRegister(addr uint16, value byte)
	RefreshMappings()
}

// Bus is the CPU address-space mapper: a page table over ROM and cartridge
// RAM, register windows for the cartridge, the DMG boot ROM overlay and the
// console's own work RAM.
type Bus struct {
	rom     []byte
	cartRam []byte
	boot    []byte

	bootDisabled bool

	pages  [pageCount]Page
	device Device

	wram [0x2000]byte // 8KB internal RAM
	hram [0x7F]byte
}

func New(rom, cartRam []byte) *Bus {
	return &Bus{
		rom:     rom,
		cartRam: cartRam,
	}
}

// SetBootROM installs the 256-byte DMG boot ROM overlay at 0x0000-0x00FF.
func (b *Bus) SetBootROM(boot []byte) {
	if len(boot) < bootROMSize {
		b.boot = nil
		return
	}
	b.boot = make([]byte, bootROMSize)
	copy(b.boot, boot[:bootROMSize])
	b.bootDisabled = false
}

// Attach connects the cartridge that handles register pages.
func (b *Bus) Attach(d Device) { b.device = d }

func (b *Bus) IsBootRomDisabled() bool { return b.boot == nil || b.bootDisabled }

func (b *Bus) source(kind MemoryKind) []byte {
	switch kind {
	case PrgRom:
		return b.rom
	case CartRam:
		return b.cartRam
	}
	return nil
}

// Map installs a mapping of [start, end] to kind at offset. Offsets beyond
// the end of the source wrap around, so out-of-range banks alias.
func (b *Bus) Map(start, end uint16, kind MemoryKind, offset uint32, readOnly bool) {
	src := b.source(kind)
	if len(src) == 0 {
		b.Unmap(start, end)
		return
	}
	size := uint32(len(src))
	for p := int(start >> pageShift); p <= int(end>>pageShift); p++ {
		pg := &b.pages[p]
		pg.Kind = kind
		pg.Offset = offset % size
		pg.ReadOnly = readOnly
		offset += pageSize
	}
}

func (b *Bus) Unmap(start, end uint16) {
	for p := int(start >> pageShift); p <= int(end>>pageShift); p++ {
		pg := &b.pages[p]
		pg.Kind = None
		pg.Offset = 0
		pg.ReadOnly = false
	}
}

// MapRegisters replaces the register decode flags of [start, end].
func (b *Bus) MapRegisters(start, end uint16, access RegisterAccess) {
	for p := int(start >> pageShift); p <= int(end>>pageShift); p++ {
		b.pages[p].Registers = access
	}
}

// Page returns the decode entry covering addr.
func (b *Bus) Page(addr uint16) Page { return b.pages[addr>>pageShift] }

// Pages returns a copy of the whole page table.
func (b *Bus) Pages() [pageCount]Page { return b.pages }

// Peek reads mapped memory at addr, ignoring register decode and the boot
// overlay. ok is false when nothing is mapped there.
func (b *Bus) Peek(addr uint16) (byte, bool) {
	pg := &b.pages[addr>>pageShift]
	src := b.source(pg.Kind)
	if len(src) == 0 {
		return 0xFF, false
	}
	off := (pg.Offset + uint32(addr&(pageSize-1))) % uint32(len(src))
	return src[off], true
}

func (b *Bus) Read(addr uint16) byte {
	if addr < bootROMSize && !b.IsBootRomDisabled() {
		return b.boot[addr]
	}

	pg := &b.pages[addr>>pageShift]
	if pg.Registers&AccessRead != 0 && b.device != nil {
		return b.device.ReadRegister(addr)
	}
	if v, ok := b.Peek(addr); ok {
		return v
	}

	switch {
	case addr >= 0xC000 && addr < 0xE000:
		return b.wram[addr-0xC000]
	case addr >= 0xE000 && addr < 0xFE00: // echo RAM
		return b.wram[addr-0xE000]
	case addr >= 0xFF80 && addr < 0xFFFF:
		return b.hram[addr-0xFF80]
	default:
		return 0xFF // unmapped
	}
}

func (b *Bus) Write(addr uint16, value byte) {
	pg := &b.pages[addr>>pageShift]
	if pg.Registers&AccessWrite != 0 && b.device != nil {
		b.device.WriteRegister(addr, value)
		return
	}
	if src := b.source(pg.Kind); len(src) > 0 {
		if !pg.ReadOnly {
			off := (pg.Offset + uint32(addr&(pageSize-1))) % uint32(len(src))
			src[off] = value
		}
		return
	}

	switch {
	case addr >= 0xC000 && addr < 0xE000:
		b.wram[addr-0xC000] = value
	case addr >= 0xE000 && addr < 0xFE00:
		b.wram[addr-0xE000] = value
	case addr >= 0xFF80 && addr < 0xFFFF:
		b.hram[addr-0xFF80] = value
	case addr == bootDisableIO:
		if value != 0 && !b.bootDisabled {
			b.bootDisabled = true
			if b.device != nil {
				b.device.RefreshMappings()
			}
		}
	}
}

// SaveState/LoadState cover the console side only; the page table is rebuilt
// by the cartridge after its own state is restored.
type busState struct {
	BootDisabled bool
	WRAM         []byte
	HRAM         []byte
}

func (b *Bus) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	s := busState{
		BootDisabled: b.bootDisabled,
		WRAM:         append([]byte(nil), b.wram[:]...),
		HRAM:         append([]byte(nil), b.hram[:]...),
	}
	_ = enc.Encode(s)
	return buf.Bytes()
}

func (b *Bus) LoadState(data []byte) error {
	var s busState
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&s); err != nil {
		return err
	}
	b.bootDisabled = s.BootDisabled
	copy(b.wram[:], s.WRAM)
	copy(b.hram[:], s.HRAM)
	return nil
}
