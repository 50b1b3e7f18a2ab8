package models

import (
	"fmt"
	"strings"
)

// Mood is one label from a fixed set.
type Mood string

const (
	MoodHappy   Mood = "Happy"
	MoodExcited Mood = "Excited"
	MoodCalm    Mood = "Calm"
	MoodNeutral Mood = "Neutral"
	MoodSad     Mood = "Sad"
	MoodAnxious Mood = "Anxious"
	MoodTired   Mood = "Tired"
	MoodAngry   Mood = "Angry"
)

// Moods lists every accepted label in display order.
var Moods = []Mood{MoodHappy, MoodExcited, MoodCalm, MoodNeutral, MoodSad, MoodAnxious, MoodTired, MoodAngry}

// Negative reports whether m counts towards a crisis signal.
func (m Mood) Negative() bool {
	switch m {
	case MoodSad, MoodAnxious, MoodTired, MoodAngry:
		return true
	default:
		return false
	}
}

// ParseMood matches s against the label set case-insensitively.
func ParseMood(s string) (Mood, error) {
	for _, m := range Moods {
		if strings.EqualFold(string(m), strings.TrimSpace(s)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mood %q", s)
}
