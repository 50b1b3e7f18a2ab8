package kinds

import (
	"fmt"

	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/common"
)

// Mood entries match on (timestamp, mood).
var Mood = Kind[models.MoodEntry]{
	Name:       "mood",
	Collection: common.CollectionMood,
	Header:     (*models.MoodEntry).Meta,
	Encode: func(e models.MoodEntry) map[string]any {
		return encodeHeader(e.Header, map[string]any{
			"mood":    string(e.Mood),
			"dateKey": e.DateKey,
			"source":  string(e.Source),
		})
	},
	Decode: func(fields map[string]any) (models.MoodEntry, error) {
		h, err := decodeHeader(fields)
		if err != nil {
			return models.MoodEntry{}, err
		}
		mood, err := String(fields, "mood")
		if err != nil {
			return models.MoodEntry{}, err
		}
		dateKey, err := OptionalString(fields, "dateKey")
		if err != nil {
			return models.MoodEntry{}, err
		}
		source, err := OptionalString(fields, "source")
		if err != nil {
			return models.MoodEntry{}, err
		}
		return models.MoodEntry{
			Header:  h,
			Mood:    models.Mood(mood),
			DateKey: dateKey,
			Source:  models.MoodSource(source),
		}, nil
	},
	MatchKey: func(e models.MoodEntry) string {
		return fmt.Sprintf("%d|%q", e.Timestamp, e.Mood)
	},
	CopyPayload: func(dst *models.MoodEntry, src models.MoodEntry) {
		dst.Mood = src.Mood
		dst.DateKey = src.DateKey
		dst.Source = src.Source
	},
}
