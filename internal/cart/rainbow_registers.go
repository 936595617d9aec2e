package cart

import "github.com/retroenv/retrogolib/log"

// regKind identifies the register decoded at an address of the 0x0000-0x00FF window.
type regKind uint8

const (
	regNone regKind = iota

	regROMBankSource // 0x0070-0x0077
	regRAMBankSource // 0x007A-0x007B
	regROMBankHigh   // 0x0080-0x0087
	regRAMBankHigh   // 0x008A-0x008B
	regROMBankLow    // 0x0090-0x0097
	regRAMBankLow    // 0x009A-0x009B
	regControl       // 0x00A0

	regAutoRWAddressHigh // 0x00B0
	regAutoRWAddressLow  // 0x00B1
	regAutoRWIncrement   // 0x00B2
	regAutoRWData        // 0x00B3

	regVersion // 0x00CA

	regBridgeControl // 0x00F0
	regBridgeRx      // 0x00F1
	regBridgeTx      // 0x00F2
	regBridgeRxSlot  // 0x00F3
	regBridgeTxSlot  // 0x00F4

	regBootROMMode // 0x00FF
)

var registers = buildRegisterTable()

func buildRegisterTable() (t [0x100]regKind) {
	for i := 0; i < 8; i++ {
		t[0x70+i] = regROMBankSource
		t[0x80+i] = regROMBankHigh
		t[0x90+i] = regROMBankLow
	}
	for i := 0; i < 2; i++ {
		t[0x7A+i] = regRAMBankSource
		t[0x8A+i] = regRAMBankHigh
		t[0x9A+i] = regRAMBankLow
	}
	t[0xA0] = regControl
	t[0xB0] = regAutoRWAddressHigh
	t[0xB1] = regAutoRWAddressLow
	t[0xB2] = regAutoRWIncrement
	t[0xB3] = regAutoRWData
	t[0xCA] = regVersion
	t[0xF0] = regBridgeControl
	t[0xF1] = regBridgeRx
	t[0xF2] = regBridgeTx
	t[0xF3] = regBridgeRxSlot
	t[0xF4] = regBridgeTxSlot
	t[0xFF] = regBootROMMode
	return t
}

func registerAt(addr uint16) regKind {
	if addr > 0x00FF {
		return regNone
	}
	return registers[addr]
}

// compat reports whether MBC5 style decoding is in effect. The boot ROM
// layout always uses the extended registers.
func (r *Rainbow) compat() bool {
	return !r.bank.BootROMMode && r.bank.MBC5Compat
}

// autoRW returns the FPGA RAM byte under the cursor and advances the cursor.
func (r *Rainbow) autoRW() *byte {
	p := &r.fpga[r.bank.AutoRWAddress&(FPGARAMSize-1)]
	r.bank.AutoRWAddress += uint16(r.bank.AutoRWIncrement)
	return p
}

func (r *Rainbow) ReadRegister(addr uint16) byte {
	switch registerAt(addr) {
	case regAutoRWData:
		return *r.autoRW()

	case regVersion:
		return MapperVersion

	case regBridgeControl:
		var v byte
		if r.esp.Enable {
			v |= 0x01
		}
		if r.esp.IRQEnable {
			v |= 0x02
		}
		r.logger.Debug("Bridge flags read", log.Hex("address", addr), log.Hex("flags", v))
		return v

	case regBridgeRx:
		var v byte
		if r.messageReceived() {
			v |= 0x80
		}
		if r.peer != nil && r.peer.DataReady() {
			v |= 0x40
		}
		return v

	case regBridgeTx:
		if r.esp.MessageSent {
			return 0x80
		}
		return 0x00
	}

	// everything else reads whatever is mapped, disabled RAM reads 0xFF
	v, _ := r.m.Peek(addr)
	return v
}

func (r *Rainbow) WriteRegister(addr uint16, value byte) {
	compat := r.compat()

	if compat {
		switch addr & 0x7000 {
		case 0x0000, 0x1000:
			r.bank.RAMEnabled = value == 0x0A
		case 0x2000:
			r.bank.ROMBanks[4] = uint32(value) | r.bank.ROMBanks[4]&0x100
		case 0x3000:
			r.bank.ROMBanks[4] = r.bank.ROMBanks[4]&0xFF | uint32(value&0x01)<<8
		case 0x4000, 0x5000:
			r.bank.RAMBanks[0] = uint32(value & 0x0F)
		}
	}

	// evaluated independently of the MBC5 decode above
	switch registerAt(addr) {
	case regROMBankSource:
		if !compat {
			b := &r.bank.ROMBanks[addr&0x07]
			*b = *b&0x00FFFF | uint32(value&0x01)<<16
		}
	case regRAMBankSource:
		if !compat {
			b := &r.bank.RAMBanks[addr&0x01]
			*b = *b&0x00FFFF | uint32(value&0x03)<<16
		}
	case regROMBankHigh:
		if !compat {
			b := &r.bank.ROMBanks[addr&0x07]
			*b = *b&0x0100FF | uint32(value)<<8
		}
	case regRAMBankHigh:
		if !compat {
			b := &r.bank.RAMBanks[addr&0x01]
			*b = *b&0x0300FF | uint32(value&0x03)<<8
		}
	case regROMBankLow:
		if !compat {
			b := &r.bank.ROMBanks[addr&0x07]
			*b = *b&0x01FF00 | uint32(value)
		}
	case regRAMBankLow:
		if !compat {
			b := &r.bank.RAMBanks[addr&0x01]
			*b = *b&0x03FF00 | uint32(value)
		}

	case regControl:
		r.bank.RAMMode = RAMMode(value >> 7 & 0x01)
		r.bank.MBC5Compat = value&0x08 != 0
		r.bank.ROMMode = ROMMode(value & 0x07)

	case regAutoRWAddressHigh:
		r.bank.AutoRWAddress = r.bank.AutoRWAddress&0x00FF | uint16(value&0x1F)<<8
	case regAutoRWAddressLow:
		r.bank.AutoRWAddress = r.bank.AutoRWAddress&0xFF00 | uint16(value)
	case regAutoRWIncrement:
		r.bank.AutoRWIncrement = value
	case regAutoRWData:
		*r.autoRW() = value

	case regBridgeControl:
		r.esp.Enable = value&0x01 != 0
		r.esp.IRQEnable = value&0x02 != 0
	case regBridgeRx:
		if r.esp.Enable {
			r.clearMessageReceived()
		} else {
			r.logger.Warn("Bridge is not enabled", log.Hex("address", addr))
		}
	case regBridgeTx:
		if r.esp.Enable {
			r.transmit()
		} else {
			r.logger.Warn("Bridge is not enabled", log.Hex("address", addr))
		}
	case regBridgeRxSlot:
		r.esp.RxAddress = value & 0x07
	case regBridgeTxSlot:
		r.esp.TxAddress = value & 0x07

	case regBootROMMode:
		r.bank.BootROMMode = value&0x01 != 0
	}

	r.RefreshMappings()
}
