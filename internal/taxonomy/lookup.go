package taxonomy

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"card_live_dashboard/internal/db"
)

var ErrNotFound = errors.New("taxon not found")

type Taxon struct {
	TaxID  int64  `json:"taxid"`
	Name   string `json:"name"`
	Rank   string `json:"rank"`
	Common string `json:"common,omitempty"`
}

// DB is a read-only handle on a built taxa.sqlite.
type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	conn, err := db.OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	return &DB{conn: conn}, nil
}

func (t *DB) Close() error {
	return t.conn.Close()
}

func (t *DB) Taxon(taxID int64) (Taxon, error) {
	s, err := t.species(taxID)
	if err != nil {
		return Taxon{}, err
	}
	return toTaxon(s), nil
}

// Lineage returns the path from the root down to taxID. Retired ids are
// translated through the merged table first.
func (t *DB) Lineage(taxID int64) ([]Taxon, error) {
	s, err := t.species(taxID)
	if err != nil {
		return nil, err
	}
	lineage := make([]Taxon, len(s.Track))
	for i, id := range s.Track {
		node, ok, err := db.LookupSpecies(t.conn, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("lineage of %d: %d: %w", taxID, id, ErrNotFound)
		}
		lineage[len(s.Track)-1-i] = toTaxon(node)
	}
	return lineage, nil
}

// TaxIDs resolves a scientific name or synonym, case-insensitively.
func (t *DB) TaxIDs(name string) ([]int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNotFound
	}
	ids, err := db.SpeciesByName(t.conn, name)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return ids, nil
}

func (t *DB) species(taxID int64) (db.Species, error) {
	resolved, err := db.TranslateMerged(t.conn, taxID)
	if err != nil {
		return db.Species{}, err
	}
	s, ok, err := db.LookupSpecies(t.conn, resolved)
	if err != nil {
		return db.Species{}, err
	}
	if !ok {
		return db.Species{}, fmt.Errorf("taxid %d: %w", taxID, ErrNotFound)
	}
	return s, nil
}

func toTaxon(s db.Species) Taxon {
	return Taxon{TaxID: s.TaxID, Name: s.Name, Rank: s.Rank, Common: s.Common}
}
