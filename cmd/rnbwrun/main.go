package main

import (
	"flag"
	"os"

	"github.com/FabianRolfMatthiasNoll/gbrainbow/internal/config"
	"github.com/FabianRolfMatthiasNoll/gbrainbow/internal/emu"
	"github.com/FabianRolfMatthiasNoll/gbrainbow/internal/trace"
	"github.com/bradleyjkemp/memviz"
	"github.com/retroenv/retrogolib/log"
)

func main() {
	romPath := flag.String("rom", "", "path to ROM (.gb)")
	bootPath := flag.String("bootrom", "", "optional DMG boot ROM overlaid at 0x0000 until FF50 disables it")
	scriptPath := flag.String("script", "", "bus access script to replay")
	dotPath := flag.String("dot", "", "write a graphviz dump of the mapper state to this file")
	server := flag.String("server", "", "host:port the co-processor connects to")
	debug := flag.Bool("debug", false, "log every register access")
	quiet := flag.Bool("quiet", false, "only log errors")
	flag.Parse()

	logger := config.CreateLogger(*debug, *quiet)
	if *romPath == "" {
		logger.Fatal("-rom is required")
	}

	m := emu.New(emu.Config{
		BootROM:    *bootPath != "",
		ServerAddr: *server,
		Debug:      *debug,
	}, logger)
	if *bootPath != "" {
		boot, err := os.ReadFile(*bootPath)
		if err != nil {
			logger.Fatal("Reading boot ROM failed", log.Err(err))
		}
		m.SetBootROM(boot)
	}
	if err := m.LoadROMFromFile(*romPath); err != nil {
		logger.Fatal("Loading cartridge failed", log.Err(err))
	}

	code := run(m, logger, *scriptPath, *dotPath)
	if err := m.Close(); err != nil {
		logger.Error("Closing cartridge failed", log.Err(err))
	}
	os.Exit(code)
}

func run(m *emu.Machine, logger *log.Logger, scriptPath, dotPath string) int {
	code := 0
	if scriptPath != "" {
		f, err := os.Open(scriptPath)
		if err != nil {
			logger.Error("Opening script failed", log.Err(err))
			return 1
		}
		ops, err := trace.Parse(f)
		_ = f.Close()
		if err != nil {
			logger.Error("Parsing script failed", log.String("script", scriptPath), log.Err(err))
			return 1
		}

		res, err := trace.Run(m.Bus(), ops, os.Stdout)
		if err != nil {
			logger.Error("Running script failed", log.Err(err))
			return 1
		}
		logger.Info("Script done",
			log.Int("reads", res.Reads),
			log.Int("writes", res.Writes),
			log.Int("mismatches", res.Mismatches))
		if res.Mismatches > 0 {
			code = 1
		}
	}

	if err := trace.WriteMap(os.Stdout, m.Pages()); err != nil {
		logger.Error("Writing address map failed", log.Err(err))
		return 1
	}

	if dotPath != "" {
		if err := writeDot(m, dotPath); err != nil {
			logger.Error("Writing state graph failed", log.Err(err))
			return 1
		}
		logger.Info("Wrote state graph", log.String("path", dotPath))
	}
	return code
}

// writeDot dumps the mapper registers, or the page table for other boards.
func writeDot(m *emu.Machine, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if r, ok := m.Rainbow(); ok {
		snap := r.Snapshot()
		memviz.Map(f, &snap)
	} else {
		pages := m.Pages()
		memviz.Map(f, &pages)
	}
	return f.Close()
}
