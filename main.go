package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"
	"time"

	"orion/audio"
	"orion/auth"
	"orion/beep"
	"orion/capture"
	"orion/clipboard"
	"orion/config"
	"orion/encoder"
	"orion/hotkey"
	"orion/log"
	"orion/notes"
	"orion/playback"
	"orion/speech"
	"orion/transcriber"
	"orion/transport"
)

var version = "dev"

var shutdownOnce sync.Once

type session struct {
	sink    EventSink
	store   *notes.Store
	saver   *notes.Autosaver
	capture *capture.Controller
	play    *playback.Controller
}

func (s *session) pushCounts() {
	pending, offline := s.store.Counts()
	s.sink.SyncCounts(len(s.store.List("")), pending, offline)
}

func (s *session) shutdown() {
	shutdownOnce.Do(func() {
		s.play.Stop()
		s.saver.Close()
		log.SessionEnd(s.capture.Captures(), s.saver.Flushes())
		log.Close()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
		}
		os.Exit(0)
	})
}

type bindings struct {
	ptt, read, pause, stop hotkey.Combo
}

func parseBindings(h config.HotkeySettings) (bindings, error) {
	var b bindings
	var err error
	if b.ptt, err = hotkey.ParseCombo(h.PushToTalk); err != nil {
		return b, err
	}
	if b.read, err = hotkey.ParseCombo(h.ReadClipboard); err != nil {
		return b, err
	}
	if b.pause, err = hotkey.ParseCombo(h.PauseSpeech); err != nil {
		return b, err
	}
	if b.stop, err = hotkey.ParseCombo(h.StopSpeech); err != nil {
		return b, err
	}
	return b, nil
}

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix
}

func modeLineText(cfg *config.Config, format string) string {
	lang := cfg.STT.Language
	if lang == "" {
		lang = "auto"
	}
	return fmt.Sprintf("[%s | %s | %s]", format, lang, cfg.Sync.ServerURL)
}

func helpLineText(h config.HotkeySettings) string {
	return fmt.Sprintf("%s talk · %s read clipboard · %s pause · %s stop",
		h.PushToTalk, h.ReadClipboard, h.PauseSpeech, h.StopSpeech)
}

// promptToken asks for a bearer token on stdin until the server accepts
// one or the attempts run out.
func promptToken(gate *auth.Gate) error {
	reader := bufio.NewReader(os.Stdin)
	for attempt := 0; attempt < 3; attempt++ {
		fmt.Print("API token: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		candidate := strings.TrimSpace(line)
		if candidate == "" {
			continue
		}
		err = gate.SubmitToken(context.Background(), candidate)
		switch {
		case err == nil:
			fmt.Println("Token accepted.")
			return nil
		case errors.Is(err, auth.ErrInvalidToken):
			fmt.Println("Token rejected, try again.")
		default:
			return err
		}
	}
	return auth.ErrInvalidToken
}

func run() {
	configFlag := flag.String("config", "", "Config file path (default ~/.orion/config.json)")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	formatFlag := flag.String("format", "", "Audio upload format: wav or flac (default from config)")
	langFlag := flag.String("lang", "", "Language code for transcription, e.g. en, es (default from config)")
	longPressFlag := flag.Duration("longpress", 350*time.Millisecond, "Long-press threshold for hold-to-talk vs tap-to-toggle")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("orion %s\n", version)
		os.Exit(0)
	}

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	cfgPath := *configFlag
	if cfgPath == "" {
		cfgPath, err = config.DefaultPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *formatFlag != "" {
		cfg.STT.Format = *formatFlag
	}
	switch cfg.STT.Format {
	case "wav", "flac":
	default:
		fmt.Printf("Error: unknown format %q (use wav or flac)\n", cfg.STT.Format)
		os.Exit(1)
	}
	if *langFlag != "" {
		cfg.STT.Language = *langFlag
	}

	binds, err := parseBindings(cfg.Hotkeys)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Resolve -setup into -device early (before daemonization)
	if *setupFlag && *deviceFlag == "" && !*testFlag {
		actx, err := audio.NewContext()
		if err != nil {
			fmt.Printf("Error initializing audio: %v\n", err)
			os.Exit(1)
		}
		if dev, _ := audio.SelectDevice(actx); dev != nil {
			*deviceFlag = dev.Name
		}
		actx.Close()
	}

	// Daemonize in non-TUI mode: re-exec in background, return shell prompt
	if !*tuiFlag && !*testFlag && os.Getenv("_ORION_BG") == "" {
		args := os.Args[1:]
		if *deviceFlag != "" {
			args = append(args, "-device", *deviceFlag)
		}
		exe, _ := os.Executable()
		cmd := exec.Command(exe, args...)
		cmd.Env = append(os.Environ(), "_ORION_BG=1")
		devnull, _ := os.Open(os.DevNull)
		cmd.Stdin, cmd.Stdout, cmd.Stderr = devnull, devnull, devnull
		if err := cmd.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	log.SessionStart(cfg.Sync.ServerURL, cfg.STT.Format, cfg.STT.Language)

	client := transport.New(cfg.Sync.ServerURL)
	gate := auth.NewGate(client, cfg.Sync.Token, cfg.SetToken)
	if err := gate.Verify(context.Background()); err != nil {
		log.Warnf("auth verify failed, starting offline: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: could not reach %s: %v\n", cfg.Sync.ServerURL, err)
	}
	if gate.Required() && !gate.Authenticated() {
		if err := promptToken(gate); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	var sink EventSink = nopSink{}
	if *tuiFlag && !*testFlag {
		sink = tuiSink{}
	}

	store := notes.NewStore(client, cfg.Sync.PageSize)
	if err := store.Refresh(context.Background()); err != nil {
		log.Warnf("initial note refresh failed: %v", err)
	}

	s := &session{sink: sink, store: store}
	s.saver = notes.NewAutosaver(store, time.Duration(cfg.Sync.DebounceMs)*time.Millisecond, func(n notes.Note) {
		sink.NoteFlushed(n)
		s.pushCounts()
	})

	speechClient := speech.NewClient(client)
	if err := speechClient.UpdateSettings(context.Background(), speech.Settings{
		Engine: cfg.TTS.Engine,
		Voice:  cfg.TTS.Voice,
		Speed:  cfg.TTS.Speed,
	}); err != nil {
		log.Warnf("tts settings not applied: %v", err)
	}

	tr := transcriber.NewServer(client)
	tr.SetLanguage(cfg.STT.Language)

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: orion -test <wav-file>")
			os.Exit(1)
		}
		runTestMode(cfg, tr, speechClient, s, args[0])
		return
	}

	if err := clipboard.Init(); err != nil {
		fmt.Printf("Warning: paste init failed: %v\n", err)
		fmt.Println("Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
	}

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer actx.Close()

	var selectedDevice *audio.DeviceInfo
	if *deviceFlag != "" {
		if devices, err := actx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == *deviceFlag {
					selectedDevice = &devices[i]
					break
				}
			}
		}
	}

	captureDevice, err := actx.NewCapture(selectedDevice, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		fmt.Printf("Error initializing capture device: %v\n", err)
		os.Exit(1)
	}
	defer captureDevice.Close()

	go beep.Init()

	s.capture = capture.NewController(captureDevice, tr, capture.Config{
		Format:   cfg.STT.Format,
		Language: cfg.STT.Language,
	}, clipboard.Insert, sink.CaptureEvent)
	s.play = playback.NewController(speechClient, actx, sink.PlaybackEvent)

	pttHK := hotkey.New(binds.ptt)
	readHK := hotkey.New(binds.read)
	pauseHK := hotkey.New(binds.pause)
	stopHK := hotkey.New(binds.stop)
	for _, hk := range []hotkey.Hotkey{pttHK, readHK, pauseHK, stopHK} {
		if err := hk.Register(); err != nil {
			log.Errorf("hotkey register error: %v", err)
			fmt.Printf("Error registering hotkey: %v\n", err)
			os.Exit(1)
		}
		defer hk.Unregister()
	}
	hy := hotkey.NewHybrid(pttHK, *longPressFlag)

	if *tuiFlag {
		tuiMu.Lock()
		tuiProgram = NewTUIProgram(helpLineText(cfg.Hotkeys))
		tuiMu.Unlock()

		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
				os.Exit(1)
			}
			s.shutdown()
		}()
		<-tuiReady
	}

	sink.ModeLine(modeLineText(cfg, cfg.STT.Format))
	sink.DeviceLine(deviceLineText(selectedDevice))
	s.pushCounts()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case ev := <-hy.Start():
			log.Info("hotkey_capture_" + string(ev.Mode))
			if err := s.capture.Start(); err != nil {
				log.Errorf("capture start: %v", err)
			}

		case <-hy.StopChan():
			s.capture.Stop()

		case <-readHK.Keydown():
			text, err := clipboard.Read()
			if err != nil {
				log.Warnf("clipboard read: %v", err)
				continue
			}
			switch err := s.play.Speak(context.Background(), text); {
			case errors.Is(err, playback.ErrEmptyText):
				log.Info("clipboard_empty")
			case err != nil:
				log.Errorf("speak: %v", err)
			}

		case <-pauseHK.Keydown():
			s.play.TogglePause()

		case <-stopHK.Keydown():
			s.play.Stop()

		case <-sigCh:
			s.shutdown()
			return
		}
	}
}
