package kitchen

import (
	"time"

	"github.com/savoria/savoria/pkg/enums/priority"
)

// Cue describes the audible notification for a new order. Screen clients
// synthesize the tone themselves; the board only decides its shape.
type Cue struct {
	Frequency int           `json:"frequency"` // Hz
	Duration  time.Duration `json:"duration"`
	Pulses    int           `json:"pulses"`
}

// CueSink receives cues as they are raised. Play must not block.
type CueSink interface {
	Play(c Cue)
}

// CueFor scales the cue with the order's priority: more urgent orders get a
// higher, longer, more insistent tone.
func CueFor(p string) Cue {
	rank := priority.ByName(p).Rank()
	return Cue{
		Frequency: 660 + 220*rank,
		Duration:  time.Duration(150+50*rank) * time.Millisecond,
		Pulses:    1 + rank,
	}
}
