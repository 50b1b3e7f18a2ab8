package models

// DiaryEntry is free text tagged with a mood.
type DiaryEntry struct {
	Header `yaml:",inline"`
	Text   string `json:"text" yaml:"text"`
	Mood   Mood   `json:"mood" yaml:"mood"`
}

func (e *DiaryEntry) Meta() *Header { return &e.Header }

// MoodSource tells where a mood entry came from.
type MoodSource string

const (
	MoodSourceManual  MoodSource = "manual"
	MoodSourceDiary   MoodSource = "diary"
	MoodSourceCheckIn MoodSource = "check_in"
)

// MoodEntry is a standalone mood check-in for a calendar day.
type MoodEntry struct {
	Header  `yaml:",inline"`
	Mood    Mood       `json:"mood" yaml:"mood"`
	DateKey string     `json:"dateKey" yaml:"dateKey"`
	Source  MoodSource `json:"source" yaml:"source"`
}

func (e *MoodEntry) Meta() *Header { return &e.Header }

// ActivityEntry records body weight, a step count, or both.
type ActivityEntry struct {
	Header `yaml:",inline"`
	Weight *float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
	Steps  *int64   `json:"steps,omitempty" yaml:"steps,omitempty"`
}

func (e *ActivityEntry) Meta() *Header { return &e.Header }
