// Command c8 executes CHIP-8 programs.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"io"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"github.com/retroenv/retrogolib/buildinfo"
	rlog "github.com/retroenv/retrogolib/log"

	"github.com/nf/c8/vip"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	log.SetPrefix("c8: ")
	log.SetFlags(0)

	var (
		cliFlag   = flag.Bool("cli", false, "draw in the terminal instead of a window")
		devFlag   = flag.Bool("dev", false, "enable developer mode (reset the machine when the program file changes)")
		debugFlag = flag.Bool("debug", false, "enable debugger (implies -dev)")

		hzFlag     = flag.Int("hz", vip.DefaultHz, "instructions per `second`")
		scaleFlag  = flag.Int("scale", 10, "window pixels per display pixel")
		fgFlag     = flag.String("fg", "#ffcc00", "foreground `colour`")
		bgFlag     = flag.String("bg", "#996600", "background `colour`")
		muteFlag   = flag.Bool("mute", false, "disable the buzzer")
		keymapFlag = flag.String("keymap", "qwerty", "keypad layout (qwerty or hex)")

		stackFlag           = flag.Int("stack", 16, "return stack `depth`")
		noIndexOverflowFlag = flag.Bool("no_index_overflow", false, "leave VF unchanged when Fx1E carries I past 0xfff")
		seedFlag            = flag.Int64("seed", 0, "random number `seed` (0 seeds from the clock)")

		quietFlag   = flag.Bool("q", false, "only log errors")
		verboseFlag = flag.Bool("v", false, "log debug output, including an instruction trace on halt")
		versionFlag = flag.Bool("version", false, "print version and exit")

		cpuProfileFlag = flag.String("cpu_profile", "", "write CPU profile to `file`")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <program.ch8>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()
	if *versionFlag {
		fmt.Printf("c8 %s\n", buildinfo.Version(version, commit, date))
		return
	}
	if flag.NArg() != 1 {
		flag.Usage()
	}

	cfg := vip.DefaultConfig()
	cfg.Hz = *hzFlag
	cfg.Scale = *scaleFlag
	cfg.Sound = !*muteFlag
	cfg.Machine.StackDepth = *stackFlag
	cfg.Machine.IndexOverflow = !*noIndexOverflowFlag
	if *cliFlag {
		cfg.Frontend = vip.Terminal
	}
	var err error
	if cfg.Foreground, err = parseColor(*fgFlag); err != nil {
		log.Fatalf("-fg: %v", err)
	}
	if cfg.Background, err = parseColor(*bgFlag); err != nil {
		log.Fatalf("-bg: %v", err)
	}
	if cfg.Keymap, err = vip.KeymapByName(*keymapFlag); err != nil {
		log.Fatalf("-keymap: %v", err)
	}
	if seed := *seedFlag; seed != 0 {
		r := rand.New(rand.NewSource(seed))
		cfg.Machine.Rand = func() byte { return byte(r.Intn(0x100)) }
	}
	cfg.Logger = createLogger(*verboseFlag, *quietFlag)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *devFlag || *debugFlag {
		if err := devMode(ctx, cfg, *debugFlag, flag.Arg(0)); err != nil {
			log.Fatal(err)
		}
		return
	}

	var cpuProfile io.Closer
	if prof := *cpuProfileFlag; prof != "" {
		f, err := os.Create(prof)
		if err != nil {
			log.Fatalf("creating CPU profile file: %v", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatalf("starting CPU profile: %v", err)
		}
		cpuProfile = f
	}

	code, err := run(ctx, cfg, flag.Arg(0))

	if f := cpuProfile; f != nil {
		pprof.StopCPUProfile()
		f.Close()
	}

	if err != nil {
		log.Fatal(err)
	}
	os.Exit(code)
}

func run(ctx context.Context, cfg vip.Config, romFile string) (int, error) {
	rom, err := os.ReadFile(romFile)
	if err != nil {
		return 0, err
	}
	return vip.NewRunner(cfg).Run(ctx, rom)
}

func createLogger(debug, quiet bool) *rlog.Logger {
	cfg := rlog.DefaultConfig()
	switch {
	case debug:
		cfg.Level = rlog.DebugLevel
	case quiet:
		cfg.Level = rlog.ErrorLevel
	}
	return rlog.NewWithConfig(cfg)
}

// parseColor parses a colour of the form #rgb or #rrggbb.
func parseColor(s string) (color.RGBA, error) {
	c := color.RGBA{A: 0xff}
	var err error
	switch len(s) {
	case 7:
		_, err = fmt.Sscanf(s, "#%02x%02x%02x", &c.R, &c.G, &c.B)
	case 4:
		_, err = fmt.Sscanf(s, "#%1x%1x%1x", &c.R, &c.G, &c.B)
		c.R *= 0x11
		c.G *= 0x11
		c.B *= 0x11
	default:
		err = fmt.Errorf("want #rgb or #rrggbb")
	}
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: %v", s, err)
	}
	return c, nil
}
