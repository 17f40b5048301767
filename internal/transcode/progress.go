package transcode

import (
	"strconv"
	"strings"
	"time"
)

// progressParser accumulates ffmpeg progress key=value lines into updates.
// ffmpeg writes one block of pairs per interval, terminated by a
// progress=continue or progress=end line.
type progressParser struct {
	outTime time.Duration
	speed   float64
}

func newProgressParser() *progressParser {
	return &progressParser{}
}

// parseLine consumes one line from the progress pipe. A complete block
// returns an update.
func (p *progressParser) parseLine(line string) (ProgressUpdate, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found {
		return ProgressUpdate{}, false
	}
	value = strings.TrimSpace(value)

	switch key {
	case "out_time_us", "out_time_ms":
		// Both keys carry microseconds.
		if micros, err := strconv.ParseInt(value, 10, 64); err == nil && micros >= 0 {
			p.outTime = time.Duration(micros) * time.Microsecond
		}
	case "out_time":
		if parsed, ok := parseClock(value); ok {
			p.outTime = parsed
		}
	case "speed":
		trimmed := strings.TrimSuffix(value, "x")
		if speed, err := strconv.ParseFloat(trimmed, 64); err == nil && speed >= 0 {
			p.speed = speed
		}
	case "progress":
		update := ProgressUpdate{
			OutTime: p.outTime,
			Speed:   p.speed,
			Done:    value == "end",
		}
		return update, true
	}
	return ProgressUpdate{}, false
}

// parseClock handles ffmpeg's HH:MM:SS.micros timestamps.
func parseClock(value string) (time.Duration, bool) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 {
		return 0, false
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || seconds < 0 {
		return 0, false
	}
	total := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))
	return total, true
}

// PercentOf converts an encoded timeline position into a completion
// percentage against the probed duration. An unknown duration yields 0 so
// progress reporting degrades to silence rather than noise.
func PercentOf(outTime time.Duration, durationSeconds float64) float64 {
	if durationSeconds <= 0 {
		return 0
	}
	percent := outTime.Seconds() * 100 / durationSeconds
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
