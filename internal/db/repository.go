package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const batchSize = 50000

type Species struct {
	TaxID  int64
	Parent int64
	Name   string
	Common string
	Rank   string
	// Track is the lineage from this node up to the root, e.g. [562 561 ... 1].
	Track []int64
}

// Writer loads a freshly created taxonomy database in batched transactions.
type Writer struct {
	conn    *sql.DB
	tx      *sql.Tx
	species *sql.Stmt
	synonym *sql.Stmt
	merged  *sql.Stmt
	pending int
}

// Create removes any file at path and returns a Writer over an empty schema.
func Create(path string) (*Writer, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale db: %w", err)
	}
	conn, err := Open(path)
	if err != nil {
		return nil, err
	}
	for _, stmt := range []string{"PRAGMA journal_mode = OFF", "PRAGMA synchronous = OFF"} {
		if _, err := conn.Exec(stmt); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", stmt, err)
		}
	}
	w := &Writer{conn: conn}
	if err := w.begin(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) begin() error {
	tx, err := w.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	w.tx = tx
	if w.species, err = tx.Prepare(`INSERT INTO species(taxid, parent, spname, common, rank, track) VALUES(?,?,?,?,?,?)`); err != nil {
		return fmt.Errorf("prepare species insert: %w", err)
	}
	if w.synonym, err = tx.Prepare(`INSERT OR IGNORE INTO synonym(taxid, spname) VALUES(?,?)`); err != nil {
		return fmt.Errorf("prepare synonym insert: %w", err)
	}
	if w.merged, err = tx.Prepare(`INSERT INTO merged(taxid_old, taxid_new) VALUES(?,?)`); err != nil {
		return fmt.Errorf("prepare merged insert: %w", err)
	}
	w.pending = 0
	return nil
}

func (w *Writer) flush() error {
	if w.pending < batchSize {
		return nil
	}
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return w.begin()
}

func (w *Writer) AddSpecies(s Species) error {
	var common any
	if s.Common != "" {
		common = s.Common
	}
	if _, err := w.species.Exec(s.TaxID, s.Parent, s.Name, common, s.Rank, formatTrack(s.Track)); err != nil {
		return fmt.Errorf("insert species %d: %w", s.TaxID, err)
	}
	w.pending++
	return w.flush()
}

func (w *Writer) AddSynonym(taxID int64, name string) error {
	if _, err := w.synonym.Exec(taxID, name); err != nil {
		return fmt.Errorf("insert synonym %d: %w", taxID, err)
	}
	w.pending++
	return w.flush()
}

func (w *Writer) AddMerged(oldID, newID int64) error {
	if _, err := w.merged.Exec(oldID, newID); err != nil {
		return fmt.Errorf("insert merged %d: %w", oldID, err)
	}
	w.pending++
	return w.flush()
}

// Commit records the schema version and closes the database.
func (w *Writer) Commit() error {
	if _, err := w.tx.Exec(`INSERT OR REPLACE INTO stats(version) VALUES(?)`, SchemaVersion); err != nil {
		_ = w.Abort()
		return fmt.Errorf("write stats: %w", err)
	}
	if err := w.tx.Commit(); err != nil {
		_ = w.conn.Close()
		return fmt.Errorf("commit tx: %w", err)
	}
	return w.conn.Close()
}

func (w *Writer) Abort() error {
	_ = w.tx.Rollback()
	return w.conn.Close()
}

// TranslateMerged maps a retired taxid to its replacement. Unknown ids are
// returned unchanged.
func TranslateMerged(conn *sql.DB, taxID int64) (int64, error) {
	var newID int64
	err := conn.QueryRow(`SELECT taxid_new FROM merged WHERE taxid_old = ?`, taxID).Scan(&newID)
	if errors.Is(err, sql.ErrNoRows) {
		return taxID, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query merged: %w", err)
	}
	return newID, nil
}

// LookupSpecies returns the row for taxID; ok is false when it is absent.
func LookupSpecies(conn *sql.DB, taxID int64) (s Species, ok bool, err error) {
	var common sql.NullString
	var track string
	err = conn.QueryRow(
		`SELECT taxid, parent, spname, common, rank, track FROM species WHERE taxid = ?`, taxID,
	).Scan(&s.TaxID, &s.Parent, &s.Name, &common, &s.Rank, &track)
	if errors.Is(err, sql.ErrNoRows) {
		return Species{}, false, nil
	}
	if err != nil {
		return Species{}, false, fmt.Errorf("query species: %w", err)
	}
	s.Common = common.String
	if s.Track, err = parseTrack(track); err != nil {
		return Species{}, false, fmt.Errorf("species %d: %w", taxID, err)
	}
	return s, true, nil
}

// SpeciesByName matches scientific names first, then synonyms, ignoring case.
func SpeciesByName(conn *sql.DB, name string) ([]int64, error) {
	ids, err := queryIDs(conn, `SELECT taxid FROM species WHERE spname = ? ORDER BY taxid`, name)
	if err != nil || len(ids) > 0 {
		return ids, err
	}
	return queryIDs(conn, `SELECT taxid FROM synonym WHERE spname = ? ORDER BY taxid`, name)
}

func queryIDs(conn *sql.DB, query string, args ...any) ([]int64, error) {
	rows, err := conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query taxids: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan taxid: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func CountRows(dbPath, table string) (int, error) {
	conn, err := OpenReadOnly(dbPath)
	if err != nil {
		return 0, err
	}
	defer conn.Close()
	row := conn.QueryRow(`SELECT COUNT(*) FROM ` + table)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("scan count: %w", err)
	}
	return count, nil
}

func formatTrack(track []int64) string {
	parts := make([]string, len(track))
	for i, id := range track {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func parseTrack(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	track := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse track %q: %w", raw, err)
		}
		track = append(track, id)
	}
	return track, nil
}
