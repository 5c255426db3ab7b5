package classifier

import (
	"time"
)

// Intent is the closed set of purposes an inbound text can be classified into.
type Intent int

const (
	IntentUnknown Intent = iota
	IntentCurrentSong
	IntentOther
)

func (i Intent) String() string {
	switch i {
	case IntentCurrentSong:
		return "current_song"
	case IntentOther:
		return "other"
	default:
		return "unknown"
	}
}

// ParseIntent maps a model label onto an Intent. Only the labels the model is
// instructed to produce are accepted.
func ParseIntent(label string) (Intent, bool) {
	switch label {
	case "current_song":
		return IntentCurrentSong, true
	case "other":
		return IntentOther, true
	default:
		return IntentUnknown, false
	}
}

// Result is created once per inbound message and never mutated.
type Result struct {
	MessageID  string
	Intent     Intent
	Confidence float64

	// Failed is set when the classifier could not produce an intent; Intent is
	// then IntentUnknown.
	Failed bool

	Latency time.Duration
}
