package cart

import (
	"bytes"
	"encoding/gob"

	"github.com/FabianRolfMatthiasNoll/gbrainbow/internal/bus"
)

// MBC5 supports up to 8MB ROM and 128KB RAM, simple banking.
type MBC5 struct {
	m Mapper

	romBank    uint16 // 9 bits (0..511)
	ramBank    byte   // 0..15
	ramEnabled bool
}

func NewMBC5() *MBC5 {
	return &MBC5{romBank: 1}
}

func (c *MBC5) Init(m Mapper) {
	c.m = m
	c.m.MapRegisters(0x0000, 0x5FFF, bus.AccessWrite)
}

func (c *MBC5) RefreshMappings() {
	c.m.Map(0x0000, 0x3FFF, bus.PrgRom, 0, true)
	c.m.Map(0x4000, 0x7FFF, bus.PrgRom, uint32(c.romBank)*0x4000, true)
	if c.ramEnabled {
		c.m.Map(0xA000, 0xBFFF, bus.CartRam, uint32(c.ramBank)*0x2000, false)
	} else {
		c.m.Unmap(0xA000, 0xBFFF)
	}
}

func (c *MBC5) ReadRegister(addr uint16) byte {
	v, _ := c.m.Peek(addr)
	return v
}

func (c *MBC5) WriteRegister(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		c.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x3000:
		// low 8 bits of ROM bank
		c.romBank = (c.romBank & 0x100) | uint16(value)
	case addr < 0x4000:
		// high bit of ROM bank (bit8)
		c.romBank = (c.romBank & 0x0FF) | uint16(value&0x01)<<8
	case addr < 0x6000:
		c.ramBank = value & 0x0F
	}
	c.RefreshMappings()
}

type mbc5State struct {
	Type       string
	RomBank    uint16
	RamBank    byte
	RamEnabled bool
}

const mbc5StateType = "mbc5"

func (c *MBC5) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	_ = enc.Encode(mbc5State{Type: mbc5StateType, RomBank: c.romBank, RamBank: c.ramBank, RamEnabled: c.ramEnabled})
	return buf.Bytes()
}

func (c *MBC5) LoadState(data []byte) error {
	var s mbc5State
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&s); err != nil {
		return err
	}
	if s.Type != mbc5StateType {
		return ErrStateMismatch
	}
	c.romBank, c.ramBank, c.ramEnabled = s.RomBank, s.RamBank, s.RamEnabled
	c.RefreshMappings()
	return nil
}
