package entries

import (
	"database/sql"

	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/dbx"
)

var DiarySchema = Schema[models.DiaryEntry]{
	Table:   "diary_entries",
	Columns: []string{"text", "mood"},
	Header:  (*models.DiaryEntry).Meta,
	Values: func(e *models.DiaryEntry) []any {
		return []any{e.Text, string(e.Mood)}
	},
	Targets: func(e *models.DiaryEntry) []any {
		return []any{&e.Text, (*string)(&e.Mood)}
	},
}

var MoodSchema = Schema[models.MoodEntry]{
	Table:   "mood_entries",
	Columns: []string{"mood", "date_key", "source"},
	Header:  (*models.MoodEntry).Meta,
	Values: func(e *models.MoodEntry) []any {
		return []any{string(e.Mood), e.DateKey, string(e.Source)}
	},
	Targets: func(e *models.MoodEntry) []any {
		return []any{(*string)(&e.Mood), &e.DateKey, (*string)(&e.Source)}
	},
}

var ActivitySchema = Schema[models.ActivityEntry]{
	Table:   "activity_entries",
	Columns: []string{"weight", "steps"},
	Header:  (*models.ActivityEntry).Meta,
	Values: func(e *models.ActivityEntry) []any {
		var weight sql.NullFloat64
		if e.Weight != nil {
			weight = sql.NullFloat64{Float64: *e.Weight, Valid: true}
		}
		var steps sql.NullInt64
		if e.Steps != nil {
			steps = sql.NullInt64{Int64: *e.Steps, Valid: true}
		}
		return []any{weight, steps}
	},
	Targets: func(e *models.ActivityEntry) []any {
		return []any{nullFloat{&e.Weight}, nullInt{&e.Steps}}
	},
}

func NewDiaryRepository(db dbx.DBTX) *SQLiteRepository[models.DiaryEntry] {
	return NewSQLiteRepository(db, DiarySchema)
}

func NewMoodRepository(db dbx.DBTX) *SQLiteRepository[models.MoodEntry] {
	return NewSQLiteRepository(db, MoodSchema)
}

func NewActivityRepository(db dbx.DBTX) *SQLiteRepository[models.ActivityEntry] {
	return NewSQLiteRepository(db, ActivitySchema)
}

// nullFloat scans a nullable REAL into a *float64 field.
type nullFloat struct{ dst **float64 }

func (n nullFloat) Scan(src any) error {
	var v sql.NullFloat64
	if err := v.Scan(src); err != nil {
		return err
	}
	*n.dst = nil
	if v.Valid {
		f := v.Float64
		*n.dst = &f
	}
	return nil
}

// nullInt scans a nullable INTEGER into a *int64 field.
type nullInt struct{ dst **int64 }

func (n nullInt) Scan(src any) error {
	var v sql.NullInt64
	if err := v.Scan(src); err != nil {
		return err
	}
	*n.dst = nil
	if v.Valid {
		i := v.Int64
		*n.dst = &i
	}
	return nil
}
