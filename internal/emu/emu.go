package emu

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"

	"github.com/FabianRolfMatthiasNoll/gbrainbow/internal/battery"
	"github.com/FabianRolfMatthiasNoll/gbrainbow/internal/bus"
	"github.com/FabianRolfMatthiasNoll/gbrainbow/internal/cart"
	"github.com/FabianRolfMatthiasNoll/gbrainbow/internal/esp"
	"github.com/retroenv/retrogolib/log"
)

// Machine hosts one cartridge: its header, RAM, the CPU address space and,
// for Rainbow boards, the co-processor firmware.
type Machine struct {
	cfg    Config
	logger *log.Logger

	header   *cart.Header
	bus      *bus.Bus
	cart     cart.Cartridge
	ram      []byte
	battery  *battery.File // nil when RAM lives on the heap
	firmware *esp.Firmware // Rainbow boards only

	romPath string
	bootROM []byte
}

func New(cfg Config, logger *log.Logger) *Machine {
	cfg.Defaults()
	if logger == nil {
		logger = log.NewWithConfig(log.DefaultConfig())
	}
	return &Machine{cfg: cfg, logger: logger}
}

func (m *Machine) LoadCartridge(rom []byte, boot []byte) error {
	h, err := cart.ParseHeader(rom)
	if err != nil {
		return fmt.Errorf("parsing header: %w", err)
	}
	if !cart.HeaderChecksumOK(rom) {
		m.logger.Warn("Header checksum mismatch", log.String("title", h.Name()))
	}

	// release RAM and connections of the previous cartridge
	if err := m.Close(); err != nil {
		return err
	}

	ram, err := m.allocateRAM(h)
	if err != nil {
		return err
	}

	b := bus.New(rom, ram)
	if m.cfg.BootROM && len(boot) >= 0x100 {
		b.SetBootROM(boot)
		m.bootROM = boot
	}

	opts := cart.Options{Logger: m.logger}
	if h.IsRainbow() {
		var dial esp.Dialer
		if m.cfg.ServerAddr != "" {
			dial = esp.TCPDialer(m.cfg.ServerAddr, m.cfg.DialTimeout, m.logger)
		}
		m.firmware = esp.NewFirmware(m.logger, dial)
		opts.Peer = m.firmware
	}

	c := cart.NewCartridge(h, ram, opts)
	c.Init(b)
	var dev bus.Device = c
	if m.cfg.Debug {
		dev = &debugDevice{Cartridge: c, logger: m.logger}
	}
	b.Attach(dev)
	c.RefreshMappings()

	m.header, m.bus, m.cart, m.ram = h, b, c, ram

	m.logger.Info("Cartridge loaded",
		log.String("title", h.Name()),
		log.String("type", h.CartTypeStr),
		log.Int("rom", len(rom)),
		log.Int("ram", len(ram)))
	return nil
}

func (m *Machine) allocateRAM(h *cart.Header) ([]byte, error) {
	size := h.CartRAMSize()
	path := m.BatteryPath()
	if !m.cfg.SaveRAM || !h.HasBattery() || path == "" || size == 0 {
		return make([]byte, size), nil
	}

	f, err := battery.Open(path, size)
	if err != nil {
		return nil, fmt.Errorf("opening battery RAM: %w", err)
	}
	m.battery = f
	m.logger.Debug("Battery RAM mapped", log.String("path", path), log.Int("size", size))
	return f.Bytes(), nil
}

// LoadROMFromFile replaces the current cartridge with a ROM from disk,
// preserving the boot ROM.
func (m *Machine) LoadROMFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading ROM: %w", err)
	}
	prev := m.romPath
	m.romPath = path
	if err := m.LoadCartridge(data, m.bootROM); err != nil {
		m.romPath = prev
		return err
	}
	return nil
}

// ROMPath returns the currently loaded ROM file path, if any.
func (m *Machine) ROMPath() string { return m.romPath }

// BatteryPath is the save file used for battery backed RAM.
func (m *Machine) BatteryPath() string {
	if m.cfg.BatteryPath != "" {
		return m.cfg.BatteryPath
	}
	if m.romPath == "" {
		return ""
	}
	return battery.PathFor(m.romPath)
}

// SetBootROM sets the DMG boot ROM used by following cartridge loads.
func (m *Machine) SetBootROM(data []byte) {
	if len(data) >= 0x100 {
		m.bootROM = append([]byte(nil), data[:0x100]...)
	}
}

func (m *Machine) Header() *cart.Header { return m.header }

func (m *Machine) Bus() *bus.Bus { return m.bus }

func (m *Machine) Cart() cart.Cartridge { return m.cart }

// Firmware returns the co-processor of a Rainbow board, nil otherwise.
func (m *Machine) Firmware() *esp.Firmware { return m.firmware }

// Rainbow returns the mapper when a Rainbow board is loaded.
func (m *Machine) Rainbow() (*cart.Rainbow, bool) {
	r, ok := m.cart.(*cart.Rainbow)
	return r, ok
}

func (m *Machine) Read(addr uint16) byte {
	if m.bus == nil {
		return 0xFF
	}
	return m.bus.Read(addr)
}

func (m *Machine) Write(addr uint16, value byte) {
	if m.bus != nil {
		m.bus.Write(addr, value)
	}
}

// Pages returns the current page table.
func (m *Machine) Pages() [256]bus.Page {
	if m.bus == nil {
		return [256]bus.Page{}
	}
	return m.bus.Pages()
}

// SaveBattery returns a copy of battery backed cartridge RAM. The actual file
// IO is managed by the caller unless the RAM is memory mapped already.
func (m *Machine) SaveBattery() ([]byte, bool) {
	if m.header == nil || !m.header.HasBattery() || len(m.ram) == 0 {
		return nil, false
	}
	return append([]byte(nil), m.ram...), true
}

// LoadBattery copies saved RAM into the cartridge.
func (m *Machine) LoadBattery(data []byte) bool {
	if m.header == nil || !m.header.HasBattery() || len(m.ram) == 0 {
		return false
	}
	copy(m.ram, data)
	return true
}

// FlushBattery writes memory mapped battery RAM back to its file.
func (m *Machine) FlushBattery() error {
	if m.battery == nil {
		return nil
	}
	return m.battery.Flush()
}

// Close releases the battery file and the server connection.
func (m *Machine) Close() error {
	var err error
	if m.firmware != nil {
		if ferr := m.firmware.Close(); ferr != nil {
			err = fmt.Errorf("closing server connection: %w", ferr)
		}
		m.firmware = nil
	}
	if m.battery != nil {
		if berr := m.battery.Close(); berr != nil && err == nil {
			err = berr
		}
		m.battery = nil
		// ram pointed into the unmapped file
		m.ram = nil
		m.bus, m.cart = nil, nil
	}
	return err
}

// --- Save/Load state ---
type machineState struct {
	CartType byte
	Bus      []byte
	Cart     []byte
}

func (m *Machine) SaveState() []byte {
	if m.bus == nil || m.cart == nil {
		return nil
	}
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	_ = enc.Encode(machineState{
		CartType: m.header.CartType,
		Bus:      m.bus.SaveState(),
		Cart:     m.cart.SaveState(),
	})
	return buf.Bytes()
}

func (m *Machine) LoadState(data []byte) error {
	if m.bus == nil || m.cart == nil {
		return nil
	}
	var s machineState
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&s); err != nil {
		return fmt.Errorf("decoding state: %w", err)
	}
	if s.CartType != m.header.CartType {
		return cart.ErrStateMismatch
	}
	if err := m.bus.LoadState(s.Bus); err != nil {
		return fmt.Errorf("loading bus state: %w", err)
	}
	// the cartridge rebuilds the page table, so it goes last
	if err := m.cart.LoadState(s.Cart); err != nil {
		return fmt.Errorf("loading cartridge state: %w", err)
	}
	return nil
}

func (m *Machine) SaveStateToFile(path string) error {
	data := m.SaveState()
	if len(data) == 0 {
		return nil
	}
	return os.WriteFile(path, data, 0644)
}

func (m *Machine) LoadStateFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return m.LoadState(data)
}
