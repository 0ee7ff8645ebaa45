package sink

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

const insertPassSQL = `
INSERT INTO passes (
    decoded,
    pass_header,
    tag_type,
    app_id,
    group_id,
    agency_id,
    serial_num,
    last_seen_at,
    nr_samples,
    center_freq_delta,
    seen_at,
    raw_line
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// passLine mirrors the two forms Hypothesis.Serialize emits. decoded is
// only present (and false) in the non-decoded form; its absence (nil)
// means the full field set was present, i.e. a decoded record.
type passLine struct {
	Decoded         *bool   `json:"decoded"`
	PassHeader      uint64  `json:"passHeader"`
	TagType         uint64  `json:"tagType"`
	AppID           uint64  `json:"appId"`
	GroupID         uint64  `json:"groupId"`
	AgencyID        uint64  `json:"agencyId"`
	SerialNum       uint64  `json:"serialNum"`
	LastSeenAt      int64   `json:"lastSeenAt"`
	NrSamples       int     `json:"nrSamples"`
	CenterFreqDelta float64 `json:"centerFreqDelta"`
	SeenAt          string  `json:"seenAt"`
}

// SqliteSink appends every decoded (or non-decoded bookkeeping) record line
// into a `passes` table. Its connection lifecycle is a sync.Once-guarded
// write connection opened in WAL mode, with the schema applied once on
// first write.
type SqliteSink struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error
}

// NewSqliteSink creates a sink backed by the sqlite database at dbPath. The
// connection is opened lazily, on the first Append call.
func NewSqliteSink(dbPath string) *SqliteSink {
	return &SqliteSink{dbPath: dbPath}
}

func (s *SqliteSink) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", s.dbPath))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if _, err = db.Exec(schemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

// Append parses line (the JSON record Hypothesis.Serialize produced) and
// inserts it as one row in the passes table.
func (s *SqliteSink) Append(line string) (err error) {
	var pl passLine
	if err := json.Unmarshal([]byte(line), &pl); err != nil {
		return fmt.Errorf("sink: parsing record line: %w", err)
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("sink: getting write connection: %w", err)
	}

	stmt, err := db.Prepare(insertPassSQL)
	if err != nil {
		return fmt.Errorf("sink: preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	decoded := pl.Decoded == nil
	var passHeader, tagType, appID, groupID, agencyID, serialNum sql.NullInt64
	var seenAt sql.NullString
	if decoded {
		passHeader = sql.NullInt64{Int64: int64(pl.PassHeader), Valid: true}
		tagType = sql.NullInt64{Int64: int64(pl.TagType), Valid: true}
		appID = sql.NullInt64{Int64: int64(pl.AppID), Valid: true}
		groupID = sql.NullInt64{Int64: int64(pl.GroupID), Valid: true}
		agencyID = sql.NullInt64{Int64: int64(pl.AgencyID), Valid: true}
		serialNum = sql.NullInt64{Int64: int64(pl.SerialNum), Valid: true}
		seenAt = sql.NullString{String: pl.SeenAt, Valid: pl.SeenAt != ""}
	}

	_, err = stmt.Exec(
		decoded,
		passHeader,
		tagType,
		appID,
		groupID,
		agencyID,
		serialNum,
		pl.LastSeenAt,
		pl.NrSamples,
		pl.CenterFreqDelta,
		seenAt,
		line,
	)
	if err != nil {
		return fmt.Errorf("sink: inserting pass: %w", err)
	}
	return nil
}

// Close closes the write connection, if one was ever opened.
func (s *SqliteSink) Close() error {
	if s.writeDB != nil {
		return s.writeDB.Close()
	}
	return nil
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}
