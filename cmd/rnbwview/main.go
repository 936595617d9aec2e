package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/FabianRolfMatthiasNoll/gbrainbow/internal/config"
	"github.com/FabianRolfMatthiasNoll/gbrainbow/internal/emu"
	"github.com/FabianRolfMatthiasNoll/gbrainbow/internal/ui"
	"github.com/retroenv/retrogolib/log"
)

type CLIFlags struct {
	ROMPath   string
	BootROM   string
	Scale     int
	Title     string
	StatePath string
	SaveRAM   bool // keep battery RAM mapped in ROM.sav
	Server    string
	Debug     bool
	Quiet     bool
}

func parseFlags() CLIFlags {
	var f CLIFlags
	flag.StringVar(&f.ROMPath, "rom", "", "path to ROM (.gb)")
	flag.StringVar(&f.BootROM, "bootrom", "", "optional DMG boot ROM")
	flag.IntVar(&f.Scale, "scale", 2, "window scale")
	flag.StringVar(&f.Title, "title", "rnbwview", "window title")
	flag.StringVar(&f.StatePath, "state", "", "save state file (default ROM.savestate)")
	flag.BoolVar(&f.SaveRAM, "save", true, "persist battery RAM to ROM.sav")
	flag.StringVar(&f.Server, "server", "", "host:port the co-processor connects to")
	flag.BoolVar(&f.Debug, "debug", false, "log every register access")
	flag.BoolVar(&f.Quiet, "quiet", false, "only log errors")
	flag.Parse()
	return f
}

func mustRead(logger *log.Logger, path string) []byte {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		logger.Fatal("Reading file failed", log.String("path", path), log.Err(err))
	}
	return b
}

func main() {
	f := parseFlags()
	logger := config.CreateLogger(f.Debug, f.Quiet)

	if f.ROMPath == "" {
		logger.Fatal("-rom is required")
	}
	romPath := f.ROMPath
	// prefer absolute path for save file placement consistency
	if abs, err := filepath.Abs(romPath); err == nil {
		romPath = abs
	}

	m := emu.New(emu.Config{
		BootROM:    true,
		SaveRAM:    f.SaveRAM,
		ServerAddr: f.Server,
		Debug:      f.Debug,
	}, logger)
	m.SetBootROM(mustRead(logger, f.BootROM))
	if err := m.LoadROMFromFile(romPath); err != nil {
		logger.Fatal("Loading cartridge failed", log.Err(err))
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Error("Closing cartridge failed", log.Err(err))
		}
	}()

	statePath := f.StatePath
	if statePath == "" {
		statePath = romPath + ".savestate"
	}

	app := ui.NewApp(ui.Config{Title: f.Title, Scale: f.Scale, StatePath: statePath}, m, logger)
	if err := app.Run(); err != nil {
		logger.Error("Viewer failed", log.Err(err))
	}
}
