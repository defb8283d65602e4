package main

import (
	"orion/capture"
	"orion/notes"
	"orion/playback"
)

// EventSink abstracts the display layer so the Bubble Tea TUI and the
// headless test mode can receive the same session events.
type EventSink interface {
	CaptureEvent(ev capture.Event)
	PlaybackEvent(ev playback.Event)
	NoteFlushed(n notes.Note)
	SyncCounts(total, pending, offline int)
	ModeLine(text string)
	DeviceLine(text string)
}

// tuiSink forwards events to the running Bubble Tea program.
type tuiSink struct{}

func (tuiSink) CaptureEvent(ev capture.Event) {
	switch ev.State {
	case capture.Recording:
		if ev.Level > 0 {
			tuiSend(AudioLevelMsg{Level: ev.Level})
		} else {
			tuiSend(RecordingStartMsg{})
		}
	case capture.Processing:
		tuiSend(ProcessingMsg{})
	case capture.Failed:
		tuiSend(CaptureErrorMsg{Err: ev.Err})
	case capture.Idle:
		tuiSend(RecordingStopMsg{})
		if ev.Text != "" || ev.NoSpeech {
			tuiSend(TranscriptionMsg{Text: ev.Text, Metrics: ev.Metrics, NoSpeech: ev.NoSpeech})
		}
	}
}

func (tuiSink) PlaybackEvent(ev playback.Event) {
	tuiSend(PlaybackMsg{State: ev.State, Err: ev.Err})
}

func (tuiSink) NoteFlushed(n notes.Note) {
	tuiSend(NoteFlushMsg{ID: n.ID, State: n.SyncState.String()})
}

func (tuiSink) SyncCounts(total, pending, offline int) {
	tuiSend(SyncCountsMsg{Total: total, Pending: pending, Offline: offline})
}

func (tuiSink) ModeLine(text string)   { tuiSend(ModeLineMsg{Text: text}) }
func (tuiSink) DeviceLine(text string) { tuiSend(DeviceLineMsg{Text: text}) }

// nopSink drops everything; used when no TUI is attached.
type nopSink struct{}

func (nopSink) CaptureEvent(capture.Event)   {}
func (nopSink) PlaybackEvent(playback.Event) {}
func (nopSink) NoteFlushed(notes.Note)       {}
func (nopSink) SyncCounts(int, int, int)     {}
func (nopSink) ModeLine(string)              {}
func (nopSink) DeviceLine(string)            {}
