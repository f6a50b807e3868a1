package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli"
	"github.com/valerio/gbacore/internal/audio"
	"github.com/valerio/gbacore/internal/config"
	"github.com/valerio/gbacore/internal/console"
	"github.com/valerio/gbacore/internal/device"
	"github.com/valerio/gbacore/internal/device/term"
	"github.com/valerio/gbacore/internal/savestate"
	"github.com/valerio/gbacore/internal/video"
)

func main() {
	app := cli.NewApp()
	app.Name = "gbacore"
	app.Description = "A cycle-approximate Game Boy Advance core"
	app.Usage = "gbacore --bios <bios.bin> <ROM file>"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "bios", Usage: "Path to the 16KiB GBA BIOS image"},
		cli.StringFlag{Name: "rom", Usage: "Path to the ROM file"},
		cli.StringFlag{Name: "frontend", Value: "sdl", Usage: "Video/audio/input frontend: sdl or none"},
		cli.IntFlag{Name: "scale", Value: 2, Usage: "Integer window scale (sdl frontend only)"},
		cli.BoolFlag{Name: "vsync", Usage: "Enable vsync (sdl frontend only)"},
		cli.BoolFlag{Name: "inspect", Usage: "Open a read-only terminal register/VRAM inspector alongside the frontend"},
		cli.BoolFlag{Name: "headless", Usage: "Run without polling a frontend"},
		cli.IntFlag{Name: "frames", Usage: "Number of frames to run in headless mode"},
		cli.StringFlag{Name: "save-state", Usage: "Write a save state here on quit"},
		cli.StringFlag{Name: "load-state", Usage: "Load a save state from here on start"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		slog.Error("gbacore exited with an error", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := config.Config{
		BIOSPath:         c.String("bios"),
		ROMPath:          c.String("rom"),
		Frontend:         config.Frontend(c.String("frontend")),
		Scale:            c.Int("scale"),
		VSync:            c.Bool("vsync"),
		Inspect:          c.Bool("inspect"),
		Headless:         c.Bool("headless"),
		Frames:           c.Int("frames"),
		SaveStateOnQuit:  c.String("save-state"),
		LoadStateOnStart: c.String("load-state"),
	}
	if cfg.ROMPath == "" && c.NArg() > 0 {
		cfg.ROMPath = c.Args().Get(0)
	}
	if err := cfg.Validate(); err != nil {
		cli.ShowAppHelp(c)
		return err
	}

	cons := console.New()

	bios, err := os.ReadFile(cfg.BIOSPath)
	if err != nil {
		return fmt.Errorf("read bios: %w", err)
	}
	if err := cons.LoadBIOS(bios); err != nil {
		return fmt.Errorf("load bios: %w", err)
	}

	rom, err := console.LoadROMFile(cfg.ROMPath)
	if err != nil {
		return err
	}
	if err := cons.LoadROM(rom, nil, false); err != nil {
		return fmt.Errorf("load rom: %w", err)
	}

	if cfg.LoadStateOnStart != "" {
		if err := loadState(cons, cfg.LoadStateOnStart); err != nil {
			return err
		}
	}

	if cfg.Headless {
		return runHeadless(cons, cfg)
	}
	return runInteractive(cons, cfg)
}

func runHeadless(cons *console.Console, cfg config.Config) error {
	for i := 0; i < cfg.Frames; i++ {
		cons.RunFrame()
	}
	slog.Info("headless run complete", "frames", cfg.Frames)
	if cfg.SaveStateOnQuit != "" {
		return saveState(cons, cfg.SaveStateOnQuit)
	}
	return nil
}

func runInteractive(cons *console.Console, cfg config.Config) error {
	front, err := newFrontend(cfg.Frontend)
	if err != nil {
		return err
	}
	if err := front.Init(device.Config{Title: "gbacore", Scale: cfg.Scale, VSync: cfg.VSync}); err != nil {
		return fmt.Errorf("init frontend: %w", err)
	}
	defer front.Cleanup()

	var inspector device.Inspector
	if cfg.Inspect {
		inspector = term.New()
		if err := inspector.Attach(cons); err != nil {
			return fmt.Errorf("attach inspector: %w", err)
		}
		defer inspector.Cleanup()
	}

	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()

	for range ticker.C {
		events, err := front.Poll()
		if err != nil {
			return err
		}
		applyInput(cons, events)

		cons.RunFrame()

		if err := front.Present(cons.FrameBuffer()); err != nil {
			return err
		}
		if err := front.QueueSamples(cons.AudioSamples()); err != nil {
			slog.Warn("queue samples failed", "error", err)
		}

		if inspector != nil {
			if err := inspector.Render(); err != nil {
				return err
			}
			quit, err := inspector.Poll()
			if err != nil {
				return err
			}
			if quit {
				break
			}
		}
	}

	if cfg.SaveStateOnQuit != "" {
		return saveState(cons, cfg.SaveStateOnQuit)
	}
	return nil
}

func applyInput(cons *console.Console, events []device.InputEvent) {
	keys := cons.Keys()
	for _, e := range events {
		e.Apply(&keys)
	}
	cons.SetKeys(keys)
}

func newFrontend(name config.Frontend) (device.Frontend, error) {
	switch name {
	case config.FrontendSDL, "":
		return newSDLFrontend()
	case config.FrontendNone:
		return noopFrontend{}, nil
	default:
		return nil, errors.New("config: unknown frontend " + string(name))
	}
}

func saveState(cons *console.Console, path string) error {
	snap := savestate.Capture(cons)
	data, err := savestate.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal save state: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write save state: %w", err)
	}
	slog.Info("saved state", "path", path)
	return nil
}

func loadState(cons *console.Console, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read save state: %w", err)
	}
	snap, err := savestate.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("unmarshal save state: %w", err)
	}
	if err := savestate.Restore(cons, snap); err != nil {
		return fmt.Errorf("restore save state: %w", err)
	}
	slog.Info("loaded state", "path", path)
	return nil
}

// noopFrontend implements device.Frontend for --frontend=none, for
// scripted benchmarking runs that want Present/QueueSamples/Poll to be
// free no-ops instead of branching around a nil frontend everywhere.
type noopFrontend struct{}

func (noopFrontend) Init(device.Config) error          { return nil }
func (noopFrontend) Cleanup() error                    { return nil }
func (noopFrontend) Present(*video.FrameBuffer) error  { return nil }
func (noopFrontend) QueueSamples([]audio.Sample) error { return nil }
func (noopFrontend) Poll() ([]device.InputEvent, error) { return nil, nil }
