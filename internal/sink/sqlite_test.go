package sink

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func TestSqliteSinkInsertsDecodedAndNonDecodedRows(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "passes.db")
	s := NewSqliteSink(dbPath)
	defer s.Close()

	decodedLine := `{"passHeader":5, "tagType":2, "appId":0, "groupId":18, "agencyId":52, "serialNum":5666987, "lastSeenAt":12345, "nrSamples":20, "centerFreqDelta":250000, "seenAt": "2026-08-06 00:00:00"}`
	if err := s.Append(decodedLine); err != nil {
		t.Fatalf("Append decoded: %v", err)
	}

	nonDecodedLine := `{"decoded":false, "lastSeenAt":9999, "nrSamples":33, "centerFreqDelta":-10000}`
	if err := s.Append(nonDecodedLine); err != nil {
		t.Fatalf("Append non-decoded: %v", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("opening db for verification: %v", err)
	}
	defer db.Close()

	rows, err := db.Query("SELECT decoded, serial_num, nr_samples FROM passes ORDER BY id")
	if err != nil {
		t.Fatalf("querying passes: %v", err)
	}
	defer rows.Close()

	type row struct {
		decoded    bool
		serialNum  sql.NullInt64
		nrSamples  int
	}
	var got []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.decoded, &r.serialNum, &r.nrSamples); err != nil {
			t.Fatalf("scanning row: %v", err)
		}
		got = append(got, r)
	}

	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if !got[0].decoded || !got[0].serialNum.Valid || got[0].serialNum.Int64 != 5666987 || got[0].nrSamples != 20 {
		t.Errorf("decoded row = %+v", got[0])
	}
	if got[1].decoded || got[1].serialNum.Valid || got[1].nrSamples != 33 {
		t.Errorf("non-decoded row = %+v", got[1])
	}
}

func TestSqliteSinkRejectsMalformedLine(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "passes.db")
	s := NewSqliteSink(dbPath)
	defer s.Close()

	if err := s.Append("not json"); err == nil {
		t.Error("Append with malformed JSON returned nil error")
	}
}
