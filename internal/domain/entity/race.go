// Package entity defines the race records read from the source file and written to the table.
package entity

import (
	"encoding/json"
	"time"
)

// RaceRecord is one row of races.csv, typed but not yet enriched.
// Pointer fields are null when the cell is empty or, in permissive mode, unparseable.
type RaceRecord struct {
	RaceID    int32
	Year      *int32
	Round     *int32
	CircuitID *int32
	Name      *string
	Date      *time.Time
	Time      *string
	URL       *string
}

// Race is one row of races.races_ext. Timestamps are microseconds since the Unix epoch, UTC.
type Race struct {
	RaceID        int32   `parquet:"name=race_id, type=INT32"`
	RaceYear      *int32  `parquet:"name=race_year, type=INT32, repetitiontype=OPTIONAL"`
	Round         *int32  `parquet:"name=round, type=INT32, repetitiontype=OPTIONAL"`
	CircuitID     *int32  `parquet:"name=circuit_id, type=INT32, repetitiontype=OPTIONAL"`
	Name          *string `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	IngestionDate int64   `parquet:"name=ingestion_date, type=INT64, convertedtype=TIMESTAMP_MICROS"`
	RaceTimestamp *int64  `parquet:"name=race_timestamp, type=INT64, convertedtype=TIMESTAMP_MICROS, repetitiontype=OPTIONAL"`
}

// NewRace returns a pointer to a zero Race, the parquet schema prototype.
func NewRace() *Race {
	return new(Race)
}

// IngestedAt returns IngestionDate as a time.
func (r Race) IngestedAt() time.Time {
	return time.UnixMicro(r.IngestionDate).UTC()
}

// StartsAt returns RaceTimestamp as a time, or nil.
func (r Race) StartsAt() *time.Time {
	if r.RaceTimestamp == nil {
		return nil
	}
	t := time.UnixMicro(*r.RaceTimestamp).UTC()
	return &t
}

type raceJSON struct {
	RaceID        int32      `json:"race_id"`
	RaceYear      *int32     `json:"race_year"`
	Round         *int32     `json:"round"`
	CircuitID     *int32     `json:"circuit_id"`
	Name          *string    `json:"name"`
	IngestionDate time.Time  `json:"ingestion_date"`
	RaceTimestamp *time.Time `json:"race_timestamp"`
}

// MarshalJSON renders the timestamps in RFC 3339.
func (r Race) MarshalJSON() ([]byte, error) {
	return json.Marshal(raceJSON{
		RaceID:        r.RaceID,
		RaceYear:      r.RaceYear,
		Round:         r.Round,
		CircuitID:     r.CircuitID,
		Name:          r.Name,
		IngestionDate: r.IngestedAt(),
		RaceTimestamp: r.StartsAt(),
	})
}
