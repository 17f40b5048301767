package transcode

import (
	"strings"
	"testing"
	"time"
)

func TestProgressParserEmitsOnBlockBoundary(t *testing.T) {
	parser := newProgressParser()

	lines := []string{
		"frame=240",
		"fps=48.0",
		"out_time_us=10000000",
		"out_time=00:00:10.000000",
		"speed=2.0x",
		"progress=continue",
	}

	var updates []ProgressUpdate
	for _, line := range lines {
		if update, ok := parser.parseLine(line); ok {
			updates = append(updates, update)
		}
	}

	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	if updates[0].OutTime != 10*time.Second {
		t.Fatalf("unexpected out time: %v", updates[0].OutTime)
	}
	if updates[0].Speed != 2.0 {
		t.Fatalf("unexpected speed: %v", updates[0].Speed)
	}
	if updates[0].Done {
		t.Fatal("expected continue record not to be done")
	}
}

func TestProgressParserFinalRecord(t *testing.T) {
	parser := newProgressParser()
	input := strings.Join([]string{
		"out_time_ms=90500000",
		"speed=1.5x",
		"progress=end",
	}, "\n")

	var final ProgressUpdate
	var count int
	for _, line := range strings.Split(input, "\n") {
		if update, ok := parser.parseLine(line); ok {
			final = update
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected 1 update, got %d", count)
	}
	if !final.Done {
		t.Fatal("expected final record to be done")
	}
	if final.OutTime != 90500*time.Millisecond {
		t.Fatalf("unexpected out time: %v", final.OutTime)
	}
}

func TestProgressParserFallsBackToClockTime(t *testing.T) {
	parser := newProgressParser()
	if _, ok := parser.parseLine("out_time=00:01:30.500000"); ok {
		t.Fatal("out_time alone should not emit an update")
	}
	update, ok := parser.parseLine("progress=continue")
	if !ok {
		t.Fatal("expected update on progress line")
	}
	want := time.Minute + 30*time.Second + 500*time.Millisecond
	if update.OutTime != want {
		t.Fatalf("unexpected out time: got %v want %v", update.OutTime, want)
	}
}

func TestProgressParserIgnoresGarbage(t *testing.T) {
	parser := newProgressParser()
	for _, line := range []string{"", "no pairs here", "out_time_us=not-a-number", "speed=fast"} {
		if _, ok := parser.parseLine(line); ok {
			t.Fatalf("line %q should not emit an update", line)
		}
	}
}

func TestPercentOf(t *testing.T) {
	cases := []struct {
		name     string
		outTime  time.Duration
		duration float64
		want     float64
	}{
		{"halfway", 30 * time.Second, 60, 50},
		{"complete", 60 * time.Second, 60, 100},
		{"overshoot clamps", 90 * time.Second, 60, 100},
		{"zero duration suppresses", 30 * time.Second, 0, 0},
		{"negative duration suppresses", 30 * time.Second, -5, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PercentOf(tc.outTime, tc.duration); got != tc.want {
				t.Fatalf("PercentOf(%v, %v) = %v, want %v", tc.outTime, tc.duration, got, tc.want)
			}
		})
	}
}

func TestEncodeArgs(t *testing.T) {
	spec := EncodeSpec{
		InputPath:        "/scratch/7/input.mp4",
		OutputDir:        "/scratch/7/encoded/720p",
		Label:            "720p",
		Width:            1280,
		Height:           720,
		BitrateKbps:      2500,
		FrameRate:        24,
		AudioBitrateKbps: 128,
		SegmentSeconds:   10,
	}
	args := encodeArgs(spec)
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-i /scratch/7/input.mp4",
		"-vf scale=1280:720",
		"-c:v libx264",
		"-b:v 2500k",
		"-r 24",
		"-c:a aac",
		"-b:a 128k",
		"-hls_time 10",
		"-hls_playlist_type vod",
		"-progress pipe:1",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args missing %q: %s", want, joined)
		}
	}
	if args[len(args)-1] != "/scratch/7/encoded/720p/playlist.m3u8" {
		t.Fatalf("unexpected output path: %s", args[len(args)-1])
	}
}
