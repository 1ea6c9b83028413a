package db

import (
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

// SchemaVersion is stored in the stats table. Version 2 matches the layout
// ete3's NCBITaxa expects, so taxa.sqlite stays readable by that tooling.
const SchemaVersion = 2

const SchemaSQL = `
CREATE TABLE IF NOT EXISTS stats (
    version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS species (
    taxid INTEGER PRIMARY KEY,
    parent INTEGER,
    spname VARCHAR(50) COLLATE NOCASE,
    common VARCHAR(50) COLLATE NOCASE,
    rank VARCHAR(50),
    track TEXT
);

CREATE TABLE IF NOT EXISTS synonym (
    taxid INTEGER,
    spname VARCHAR(50) COLLATE NOCASE,
    PRIMARY KEY (spname, taxid)
);

CREATE TABLE IF NOT EXISTS merged (
    taxid_old INTEGER,
    taxid_new INTEGER
);

CREATE INDEX IF NOT EXISTS spname1 ON species (spname COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS spname2 ON synonym (spname COLLATE NOCASE);
`

func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(SchemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

// OpenReadOnly opens an existing taxonomy database without creating or
// migrating it.
func OpenReadOnly(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("taxonomy database: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}
