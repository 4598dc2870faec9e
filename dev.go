package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/howeyc/fsnotify"
	rlog "github.com/retroenv/retrogolib/log"
	"github.com/rivo/tview"

	"github.com/nf/c8/vip"
)

// devMode runs romFile and resets the machine whenever the file changes.
// If debug is set, the terminal is taken over by the debugger and log
// output is sent to its log pane.
func devMode(ctx context.Context, cfg vip.Config, debug bool, romFile string) error {
	romFile = filepath.Clean(romFile)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Watch(filepath.Dir(romFile)); err != nil {
		return err
	}

	rom, err := os.ReadFile(romFile)
	if err != nil {
		return err
	}

	cfg.Dev = true
	var d *debugger
	if debug {
		if cfg.Frontend == vip.Terminal {
			return fmt.Errorf("dev: -debug and -cli both need the terminal")
		}
		d = newDebugger()
		cfg.StateFunc = d.StateFunc
		cfg.Logf = log.Printf
		if cfg.Logger != nil {
			lc := rlog.DefaultConfig()
			lc.Level = cfg.Logger.Level()
			lc.Output = tview.ANSIWriter(d.log)
			cfg.Logger = rlog.NewWithConfig(lc)
		}
	}
	runner := vip.NewRunner(cfg)

	if d != nil {
		d.run = runner
		log.SetPrefix("")
		log.SetOutput(d.log)
		go func() {
			if err := d.Run(); err != nil {
				log.Fatalf("debug: %v", err)
			}
			log.SetOutput(os.Stderr)
			log.SetPrefix("c8: ")
			runner.Debug("exit", 0)
		}()
	}

	go func() {
		var reload <-chan time.Time
		for {
			select {
			case <-reload:
				reload = nil
				rom, err := os.ReadFile(romFile)
				if err != nil {
					log.Printf("dev: %v", err)
					break
				}
				log.Printf("dev: reset %s (%d bytes)", filepath.Base(romFile), len(rom))
				runner.Swap(rom)
			case ev := <-watcher.Event:
				if filepath.Clean(ev.Name) == romFile && !ev.IsAttrib() {
					reload = time.After(100 * time.Millisecond)
				}
			case err := <-watcher.Error:
				log.Printf("dev: watcher: %v", err)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Printf("dev: start %s", filepath.Base(romFile))
	code, err := runner.Run(ctx, rom)
	if d != nil {
		d.app.Stop()
	}
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("dev: exit code: %d", code)
	}
	return nil
}
