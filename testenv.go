package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"orion/audio"
	"orion/beep"
	"orion/capture"
	"orion/config"
	"orion/encoder"
	"orion/playback"
	"orion/speech"
	"orion/transcriber"
)

// runTestMode drives the whole session from stdin commands, with a WAV
// file standing in for the microphone. Transcribed text goes to stdout
// instead of the focused window so a harness can assert on it.
func runTestMode(cfg *config.Config, tr transcriber.Transcriber, synth *speech.Client, s *session, wavPath string) {
	beep.Disable()

	fakeCtx, err := audio.NewFakeContext(wavPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		os.Exit(1)
	}

	captureDevice, err := fakeCtx.NewCapture(nil, audio.CaptureConfig{
		SampleRate: encoder.SampleRate, Channels: encoder.Channels,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating capture: %v\n", err)
		os.Exit(1)
	}
	defer captureDevice.Close()
	fakeCapture := captureDevice.(*audio.FakeCapture)

	s.capture = capture.NewController(captureDevice, tr, capture.Config{
		Format:   cfg.STT.Format,
		Language: cfg.STT.Language,
	}, func(text string) error {
		fmt.Printf("TRANSCRIBED\t%s\n", text)
		return nil
	}, nil)
	s.play = playback.NewController(synth, fakeCtx, nil)

	waitIdle := func() {
		for s.capture.State() != capture.Idle || s.play.State() != playback.Idle {
			time.Sleep(5 * time.Millisecond)
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "", "#":

		case "RECORD":
			if err := s.capture.Start(); err != nil {
				fmt.Printf("ERROR\t%v\n", err)
			}
		case "STOP":
			s.capture.Stop()
		case "WAIT_AUDIO_DONE":
			<-fakeCapture.AudioDone()
		case "WAIT_IDLE":
			waitIdle()

		case "SPEAK":
			if err := s.play.Speak(context.Background(), arg); err != nil {
				fmt.Printf("ERROR\t%v\n", err)
			}
		case "PAUSE":
			s.play.TogglePause()
		case "STOP_SPEECH":
			s.play.Stop()
		case "VOICES":
			voices, err := synth.Voices(context.Background())
			if err != nil {
				fmt.Printf("ERROR\t%v\n", err)
				break
			}
			engines := make([]string, 0, len(voices))
			for engine := range voices {
				engines = append(engines, engine)
			}
			sort.Strings(engines)
			for _, engine := range engines {
				for _, v := range voices[engine] {
					id := v.ShortName
					if id == "" {
						id = v.Name
					}
					fmt.Printf("VOICE\t%s\t%s\t%s\n", engine, id, v.Locale)
				}
			}

		case "NOTE_CREATE":
			title, content, _ := strings.Cut(arg, "|")
			n := s.store.Create(context.Background(), title, content)
			fmt.Printf("NOTE\t%s\t%s\n", n.ID, n.SyncState)
		case "NOTE_EDIT":
			id, rest, _ := strings.Cut(arg, "|")
			title, content, _ := strings.Cut(rest, "|")
			if _, err := s.saver.Edit(id, title, content); err != nil {
				fmt.Printf("ERROR\t%v\n", err)
			}
		case "NOTE_SELECT":
			s.saver.Select(arg)
		case "NOTE_DELETE":
			s.store.Delete(context.Background(), arg)
		case "NOTE_LIST":
			for _, n := range s.store.List(arg) {
				fmt.Printf("NOTE\t%s\t%s\t%s\n", n.ID, n.SyncState, n.Title)
			}
		case "SYNC":
			if err := s.store.TriggerSync(context.Background()); err != nil {
				fmt.Printf("ERROR\t%v\n", err)
			}
		case "COUNTS":
			pending, offline := s.store.Counts()
			fmt.Printf("COUNTS\t%d\t%d\n", pending, offline)

		case "SLEEP":
			if ms, err := strconv.Atoi(arg); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		case "QUIT":
			waitIdle()
			s.shutdown()
			return
		default:
			fmt.Printf("ERROR\tunknown command %q\n", cmd)
		}
	}
	s.shutdown()
}
