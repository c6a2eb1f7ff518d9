package transcode

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Update carries one progress report from a running conversion.
type Update struct {
	Percent float64
	Message string
}

// progressParser folds the key=value stream ffmpeg writes under
// -progress pipe:1 into throttled callbacks. ffmpeg flushes a batch of
// keys roughly twice a second, terminated by a progress= marker line.
type progressParser struct {
	duration float64
	onUpdate func(Update)

	outTimeUs int64
	speed     string

	lastPercent float64
	reported    bool
}

func newProgressParser(duration float64, onUpdate func(Update)) *progressParser {
	return &progressParser{duration: duration, onUpdate: onUpdate}
}

func (p *progressParser) consume(line string) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "progress=") {
		p.flush(strings.TrimPrefix(line, "progress=") == "end")
		return
	}
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return
	}
	value = strings.TrimSpace(value)
	switch strings.TrimSpace(key) {
	case "out_time_us":
		if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
			p.outTimeUs = us
		}
	case "out_time_ms":
		// Despite the name this field carries microseconds; only honor it
		// when out_time_us never showed up.
		if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 && p.outTimeUs == 0 {
			p.outTimeUs = us
		}
	case "speed":
		if value != "N/A" {
			p.speed = value
		}
	}
}

// flush reports the current batch. Intermediate batches are throttled to
// whole-percent movement so the queue is not hammered with updates; the
// final batch always reports 100.
func (p *progressParser) flush(final bool) {
	if p.onUpdate == nil {
		return
	}

	percent := 0.0
	if p.duration > 0 && p.outTimeUs > 0 {
		percent = (float64(p.outTimeUs) / 1e6) / p.duration * 100
		if percent > 99.9 {
			percent = 99.9
		}
	}
	if final {
		percent = 100
	}
	if !final && p.reported && percent-p.lastPercent < 1 {
		return
	}
	p.lastPercent = percent
	p.reported = true

	message := "Converting"
	if p.speed != "" {
		message = fmt.Sprintf("Converting (%s)", p.speed)
	}
	if final {
		message = "Finishing output"
	}
	p.onUpdate(Update{Percent: percent, Message: message})
}

// tailBuffer retains the most recent lines written to it so failures can
// report the end of a long stderr stream without holding all of it.
type tailBuffer struct {
	mu    sync.Mutex
	lines []string
	max   int
}

func newTailBuffer(max int) *tailBuffer {
	if max <= 0 {
		max = 1
	}
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Add(line string) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		b.lines = b.lines[1:]
	}
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n")
}

// Last returns the most recent retained line.
func (b *tailBuffer) Last() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.lines) == 0 {
		return ""
	}
	return b.lines[len(b.lines)-1]
}
