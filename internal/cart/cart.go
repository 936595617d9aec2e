package cart

import (
	"errors"

	"github.com/FabianRolfMatthiasNoll/gbrainbow/internal/bus"
	"github.com/retroenv/retrogolib/log"
)

const (
	TypeROMOnly        = 0x00
	TypeRainbow        = 0xFA
	TypeRainbowBattery = 0xFB
)

// ErrStateMismatch is returned when a save state belongs to another cartridge type.
var ErrStateMismatch = errors.New("save state does not match cartridge")

// Mapper is the part of the host memory manager a cartridge drives. Addresses
// are CPU addresses, ranges are inclusive.
type Mapper interface {
	Map(start, end uint16, kind bus.MemoryKind, offset uint32, readOnly bool)
	Unmap(start, end uint16)
	MapRegisters(start, end uint16, access bus.RegisterAccess)
	IsBootRomDisabled() bool
	// Peek reads mapped memory without register decode.
	Peek(addr uint16) (byte, bool)
}

// Cartridge is a memory mapper. It never serves bus accesses itself: it
// installs mappings on the Mapper and only sees accesses to the register
// pages it opened.
type Cartridge interface {
	Init(m Mapper)
	RefreshMappings()
	ReadRegister(addr uint16) byte
	WriteRegister(addr uint16, value byte)
	// SaveState/LoadState serialize banking registers. ROM and RAM contents
	// are persisted separately.
	SaveState() []byte
	LoadState(data []byte) error
}

// Options carries the collaborators some boards need.
type Options struct {
	Logger *log.Logger
	Peer   Peer // Rainbow co-processor; nil leaves the bridge without a peer
}

// NewCartridge picks an implementation based on the ROM header. ram must be
// h.CartRAMSize() bytes long.
func NewCartridge(h *Header, ram []byte, opts Options) Cartridge {
	switch h.CartType {
	case 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E: // MBC5 variants
		return NewMBC5()
	case TypeRainbow, TypeRainbowBattery:
		return NewRainbow(opts.Logger, ram, opts.Peer)
	default:
		// Fallback to ROM-only for unknown types to allow some homebrew/tests to run
		return NewROMOnly(len(ram) > 0)
	}
}
