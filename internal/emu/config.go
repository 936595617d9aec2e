package emu

import "time"

// Config contains settings that affect how a cartridge is hosted.
type Config struct {
	BootROM     bool   // overlay the DMG boot ROM when one is supplied
	SaveRAM     bool   // keep battery backed RAM in a memory mapped save file
	BatteryPath string // save file; empty derives <rom>.sav from the ROM path
	Debug       bool   // log every cartridge register access

	// Co-processor networking, disabled while ServerAddr is empty.
	ServerAddr  string
	DialTimeout time.Duration
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
}
