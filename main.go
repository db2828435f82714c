package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"prompter/audio"
	"prompter/beep"
	"prompter/clock"
	"prompter/config"
	"prompter/doctor"
	"prompter/encoder"
	"prompter/hotkey"
	"prompter/log"
	"prompter/recorder"
	"prompter/session"
	"prompter/shutdown"
	"prompter/teleprompter"
)

var version = "dev"

// options is the config file overlaid with whatever flags were set
// explicitly.
type options struct {
	config.Config

	configPath  string
	setup       bool
	doctor      bool
	test        bool
	showVersion bool
	longPress   time.Duration
	args        []string
}

func parseOptions(args []string) (options, error) {
	fs := flag.NewFlagSet("prompter", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML settings file (default: $XDG_CONFIG_HOME/prompter/config.yaml)")
	deviceFlag := fs.String("device", "", "Capture device ID or name")
	setupFlag := fs.Bool("setup", false, "Pick a microphone and save it to the config file")
	countdownFlag := fs.Int("countdown", session.DefaultCountdown, "Countdown before recording, in seconds (0-15)")
	formatFlag := fs.String("format", encoder.FormatFLAC, "Take format: flac or wav")
	outFlag := fs.String("out", ".", "Directory saved takes are written to")
	scriptFlag := fs.String("script", "", "Text file loaded into the teleprompter")
	speedFlag := fs.Float64("speed", teleprompter.DefaultSpeed, "Scroll speed (0.5-5)")
	fontSizeFlag := fs.Int("fontsize", teleprompter.DefaultFontSize, "Teleprompter font size (8-72)")
	logPathFlag := fs.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	copyPathFlag := fs.Bool("copypath", false, "Copy the saved file path to the clipboard")
	hotkeyFlag := fs.Bool("hotkey", false, "Record with the global Ctrl+Shift+Space shortcut")
	beepsFlag := fs.Bool("beeps", true, "Play countdown and start/stop cues")
	longPressFlag := fs.Duration("longpress", 350*time.Millisecond, "Hotkey hold threshold between tap-to-toggle and push-to-talk")
	testFlag := fs.Bool("test", false, "Test mode (headless, stdin-driven, WAV file as input)")
	doctorFlag := fs.Bool("doctor", false, "Run system diagnostics and exit")
	versionFlag := fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	path, optional := *configPath, *configPath == ""
	if optional {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return options{}, err
		}
	}
	cfg, err := config.Load(path, optional)
	if err != nil {
		return options{}, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Device = *deviceFlag
		case "countdown":
			cfg.Countdown = countdownFlag
		case "format":
			cfg.Format = *formatFlag
		case "out":
			cfg.OutDir = *outFlag
		case "script":
			cfg.Script = *scriptFlag
		case "speed":
			cfg.Speed = *speedFlag
		case "fontsize":
			cfg.FontSize = *fontSizeFlag
		case "logpath":
			cfg.LogPath = *logPathFlag
		case "copypath":
			cfg.CopyPath = *copyPathFlag
		case "hotkey":
			cfg.Hotkey = *hotkeyFlag
		case "beeps":
			cfg.Beeps = beepsFlag
		}
	})
	if err := cfg.Validate(); err != nil {
		return options{}, err
	}

	return options{
		Config:      cfg,
		configPath:  path,
		setup:       *setupFlag,
		doctor:      *doctorFlag,
		test:        *testFlag,
		showVersion: *versionFlag,
		longPress:   *longPressFlag,
		args:        fs.Args(),
	}, nil
}

// newSession builds a session from opts. Test mode and the TUI share it.
func newSession(actx audio.Context, clk clock.Clock, opts options, observer session.Observer, script string) (*session.Session, error) {
	sess, err := session.New(session.Config{
		Clock:     clk,
		Audio:     actx,
		Format:    opts.Format,
		Countdown: opts.CountdownSeconds(),
		Observer:  observer,
	})
	if err != nil {
		return nil, err
	}
	sess.SetScrollSpeed(opts.Speed)
	sess.SetFontSize(opts.FontSize)
	if script != "" {
		sess.SetTeleprompterText(script)
	}
	return sess, nil
}

func loadScript(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	return string(data), nil
}

func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

func run() {
	opts, err := parseOptions(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if opts.showVersion {
		fmt.Printf("prompter %s\n", version)
		os.Exit(0)
	}

	// Resolve log directory early
	logPath, err := log.ResolveDir(opts.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()

	if opts.doctor {
		os.Exit(doctor.Run(opts.Device))
	}
	if !opts.BeepsEnabled() {
		beep.Disable()
	}

	script, err := loadScript(opts.Script)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if opts.test {
		if len(opts.args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: prompter -test <wav-file>")
			os.Exit(1)
		}
		runTestMode(opts, opts.args[0], script)
		return
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer actx.Close()

	if opts.setup {
		runSetup(actx, &opts)
	}

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	a := newApp(ctx, recorder.DirSaver{Dir: opts.OutDir}, opts.CopyPath)
	a.script = opts.Script
	sess, err := newSession(actx, clock.New(), opts, a.observe, script)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	a.sess = sess
	defer sess.Close()
	log.SessionStart(opts.Device, opts.Format, opts.CountdownSeconds())

	p := NewTUIProgram(a)
	a.setSink(tuiSink{p: p})

	go beep.Init()
	go func() {
		a.report("connect", a.connect(opts.Device))
		audio.WatchDevices(ctx, actx, audio.DefaultWatchInterval, a.devicesChanged)
	}()
	if opts.Hotkey {
		go runHotkey(ctx, a, hotkey.New(), opts.longPress)
	}
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
	}
	log.SessionEnd(sess.State().Takes)
}

// runSetup lets the user pick a microphone on the terminal and stores the
// choice in the config file.
func runSetup(actx audio.Context, opts *options) {
	dev, err := audio.SelectDevice(actx, opts.Device)
	if err != nil {
		log.Warnf("device selection failed: %v", err)
		fmt.Printf("Warning: device selection failed: %v\n", err)
		return
	}
	opts.Device = dev.ID
	if err := config.Save(opts.configPath, opts.Config); err != nil {
		fmt.Printf("Warning: could not save config: %v\n", err)
		return
	}
	fmt.Printf("Saved %s to %s\n", dev.Label(), opts.configPath)
}

// runHotkey maps the global shortcut onto takes: a press starts one, the
// matching release or second tap ends it.
func runHotkey(ctx context.Context, a *app, hk hotkey.Hotkey, longPress time.Duration) {
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		a.notice("Global shortcut unavailable: %v", err)
		return
	}
	defer hk.Unregister()

	hy := hotkey.NewHybrid(hk, longPress)
	defer hy.Close()
	driveHotkey(ctx, a, hy)
}

// driveHotkey maps shortcut events onto take commands: a press starts a
// take from Idle or Stopped, and a stop (second tap or hold release)
// finishes whatever is running.
func driveHotkey(ctx context.Context, a *app, hy *hotkey.Hybrid) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-hy.Start():
			log.Info("hotkey_start_" + string(ev.Mode))
			if st := a.sess.State().Status; st == session.Idle || st == session.Stopped {
				a.report("hotkey start", a.Toggle())
			}
		case <-hy.StopChan():
			log.Info("hotkey_stop")
			a.report("hotkey stop", a.Finish())
		}
	}
}
