package cart

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/FabianRolfMatthiasNoll/gbrainbow/internal/bus"
	"github.com/retroenv/retrogolib/log"
)

// Rainbow board by Broke Studio, Game Boy flavour (cart types 0xFA/0xFB).
//
// The board extends MBC5 with five ROM window layouts, two RAM window
// layouts, 8KB of FPGA RAM and a mailbox link to an ESP co-processor that
// provides networking. At power on it behaves like a plain MBC5.

const (
	FPGARAMSize = 0x2000

	// platform codes for the top 3 bits of the version byte
	mapperPlatformPCB = 0
	mapperPlatformEmu = 1
	mapperPlatformWeb = 2

	mapperVersionPrototype = 0

	// MapperVersion is returned by register 0x00CA.
	MapperVersion = mapperPlatformEmu<<5 | mapperVersionPrototype
)

// ROMMode selects how 0x0000-0x7FFF is split into windows.
type ROMMode uint8

const (
	ROMMode32K     ROMMode = iota // 32K
	ROMMode16K16K                 // 16K + 16K
	ROMMode16K8K8K                // 16K + 8K + 8K
	ROMMode8Kx4                   // 8K + 8K + 8K + 8K
	ROMMode4Kx8                   // 4K x 8
)

// RAMMode selects how 0xA000-0xBFFF is split into windows.
type RAMMode uint8

const (
	RAMMode8K   RAMMode = iota // 8K
	RAMMode4Kx2                // 4K + 4K
)

// Bank register source selectors, stored above the 16-bit bank index.
const (
	bankIndexMask = 0x0FFFF

	sourceROM     = 0
	sourceCartRAM = 1
	sourceFPGARAM = 2 // RAM windows only, 3 is a mirror
)

// BankingState is the programmable state of the mapper.
type BankingState struct {
	BootROMMode bool // boot ROM layout, overrides MBC5Compat and ROMMode
	MBC5Compat  bool
	RAMEnabled  bool // MBC5 compatibility RAM enable

	ROMMode ROMMode // 3 bits wide, values above ROMMode4Kx8 decode no window
	RAMMode RAMMode

	// bits 0-15 bank index, bit 16 source (0 ROM, 1 cart RAM)
	ROMBanks [8]uint32
	// bits 0-15 bank index, bits 16-17 source (0 ROM, 1 cart RAM, 2/3 FPGA RAM)
	RAMBanks [2]uint32

	AutoRWAddress   uint16
	AutoRWIncrement uint8
}

// BridgeState is the host side of the ESP mailbox link.
type BridgeState struct {
	Enable    bool
	IRQEnable bool

	HasReceivedMessage bool // inbox latched until acknowledged through 0x00F1
	MessageSent        bool // false only while a message is being pushed

	RxAddress uint8 // mailbox slot 0-7 for inbound messages
	TxAddress uint8 // mailbox slot 0-7 for outbound messages
}

// RainbowSnapshot is a copy of all mapper registers.
type RainbowSnapshot struct {
	Banking BankingState
	Bridge  BridgeState
}

type Rainbow struct {
	m      Mapper
	logger *log.Logger
	peer   Peer

	ram  []byte // cart RAM followed by FPGA RAM
	fpga []byte

	bank BankingState
	esp  BridgeState
}

// NewRainbow creates the mapper over ram, the whole cart RAM allocation
// whose last FPGARAMSize bytes are the FPGA RAM.
func NewRainbow(logger *log.Logger, ram []byte, peer Peer) *Rainbow {
	if logger == nil {
		logger = log.NewWithConfig(log.DefaultConfig())
	}
	r := &Rainbow{
		logger: logger,
		peer:   peer,
		ram:    ram,
	}
	if len(ram) >= FPGARAMSize {
		r.fpga = ram[len(ram)-FPGARAMSize:]
	} else {
		// header did not reserve FPGA RAM, keep it off the bus
		r.fpga = make([]byte, FPGARAMSize)
		logger.Warn("Cart RAM too small for FPGA RAM", log.Int("size", len(ram)))
	}
	r.reset()
	return r
}

// power/reset values
func (r *Rainbow) reset() {
	r.bank = BankingState{
		MBC5Compat: true,
	}
	r.bank.ROMBanks[0] = 0x00000
	r.bank.ROMBanks[4] = 0x00001
	r.bank.RAMBanks[0] = 0x10000
	r.bank.RAMBanks[1] = 0x10001

	r.esp = BridgeState{
		MessageSent: true,
	}
}

func (r *Rainbow) Init(m Mapper) {
	r.m = m
	r.reset()
	r.m.MapRegisters(0x0000, 0x5FFF, bus.AccessWrite)
}

// SetPeer replaces the co-processor.
func (r *Rainbow) SetPeer(p Peer) { r.peer = p }

// realRAMSize is the cart RAM size without the FPGA RAM.
func (r *Rainbow) realRAMSize() uint32 {
	if len(r.ram) < FPGARAMSize {
		return uint32(len(r.ram))
	}
	return uint32(len(r.ram) - FPGARAMSize)
}

// FPGARAM exposes the FPGA RAM region.
func (r *Rainbow) FPGARAM() []byte { return r.fpga }

func (r *Rainbow) Banking() BankingState { return r.bank }

func (r *Rainbow) Bridge() BridgeState { return r.esp }

func (r *Rainbow) Snapshot() RainbowSnapshot {
	return RainbowSnapshot{Banking: r.bank, Bridge: r.esp}
}

// save states carry registers only, RAM goes through the battery layer
type rainbowState struct {
	Type    string
	Banking BankingState
	Bridge  BridgeState
}

const rainbowStateType = "rainbow"

func (r *Rainbow) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	_ = enc.Encode(rainbowState{Type: rainbowStateType, Banking: r.bank, Bridge: r.esp})
	return buf.Bytes()
}

func (r *Rainbow) LoadState(data []byte) error {
	var s rainbowState
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&s); err != nil {
		return fmt.Errorf("decoding rainbow state: %w", err)
	}
	if s.Type != rainbowStateType {
		return ErrStateMismatch
	}
	r.bank, r.esp = s.Banking, s.Bridge
	r.RefreshMappings()
	return nil
}
