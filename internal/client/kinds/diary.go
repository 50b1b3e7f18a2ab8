package kinds

import (
	"fmt"

	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/common"
)

// Diary entries match on (timestamp, text).
var Diary = Kind[models.DiaryEntry]{
	Name:       "diary",
	Collection: common.CollectionDiary,
	Header:     (*models.DiaryEntry).Meta,
	Encode: func(e models.DiaryEntry) map[string]any {
		return encodeHeader(e.Header, map[string]any{
			"text": e.Text,
			"mood": string(e.Mood),
		})
	},
	Decode: func(fields map[string]any) (models.DiaryEntry, error) {
		h, err := decodeHeader(fields)
		if err != nil {
			return models.DiaryEntry{}, err
		}
		text, err := String(fields, "text")
		if err != nil {
			return models.DiaryEntry{}, err
		}
		mood, err := OptionalString(fields, "mood")
		if err != nil {
			return models.DiaryEntry{}, err
		}
		return models.DiaryEntry{Header: h, Text: text, Mood: models.Mood(mood)}, nil
	},
	MatchKey: func(e models.DiaryEntry) string {
		return fmt.Sprintf("%d|%q", e.Timestamp, e.Text)
	},
	CopyPayload: func(dst *models.DiaryEntry, src models.DiaryEntry) {
		dst.Text = src.Text
		dst.Mood = src.Mood
	},
}
