package emu

import (
	"github.com/FabianRolfMatthiasNoll/gbrainbow/internal/cart"
	"github.com/retroenv/retrogolib/log"
)

// debugDevice logs every register access before handing it to the cartridge.
type debugDevice struct {
	cart.Cartridge
	logger *log.Logger
}

func (d *debugDevice) ReadRegister(addr uint16) byte {
	v := d.Cartridge.ReadRegister(addr)
	d.logger.Debug("Register read", log.Hex("address", addr), log.Hex("value", v))
	return v
}

func (d *debugDevice) WriteRegister(addr uint16, value byte) {
	d.logger.Debug("Register write", log.Hex("address", addr), log.Hex("value", value))
	d.Cartridge.WriteRegister(addr, value)
}
