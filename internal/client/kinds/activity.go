package kinds

import (
	"strconv"
	"strings"

	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/common"
)

// Activity entries match on (timestamp, weight, steps). An absent value only
// matches another absent value.
var Activity = Kind[models.ActivityEntry]{
	Name:       "activity",
	Collection: common.CollectionActivity,
	Header:     (*models.ActivityEntry).Meta,
	Encode: func(e models.ActivityEntry) map[string]any {
		fields := map[string]any{"weight": nil, "steps": nil}
		if e.Weight != nil {
			fields["weight"] = *e.Weight
		}
		if e.Steps != nil {
			fields["steps"] = *e.Steps
		}
		return encodeHeader(e.Header, fields)
	},
	Decode: func(fields map[string]any) (models.ActivityEntry, error) {
		h, err := decodeHeader(fields)
		if err != nil {
			return models.ActivityEntry{}, err
		}
		weight, err := OptionalFloat64(fields, "weight")
		if err != nil {
			return models.ActivityEntry{}, err
		}
		steps, err := OptionalInt64(fields, "steps")
		if err != nil {
			return models.ActivityEntry{}, err
		}
		return models.ActivityEntry{Header: h, Weight: weight, Steps: steps}, nil
	},
	MatchKey: func(e models.ActivityEntry) string {
		var b strings.Builder
		b.WriteString(strconv.FormatInt(e.Timestamp, 10))
		b.WriteString("|w=")
		if e.Weight != nil {
			b.WriteString(strconv.FormatFloat(*e.Weight, 'g', -1, 64))
		} else {
			b.WriteString("-")
		}
		b.WriteString("|s=")
		if e.Steps != nil {
			b.WriteString(strconv.FormatInt(*e.Steps, 10))
		} else {
			b.WriteString("-")
		}
		return b.String()
	},
	CopyPayload: func(dst *models.ActivityEntry, src models.ActivityEntry) {
		dst.Weight = clonePtr(src.Weight)
		dst.Steps = clonePtr(src.Steps)
	},
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
