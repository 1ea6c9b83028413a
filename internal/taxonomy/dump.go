package taxonomy

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"card_live_dashboard/internal/db"
)

const rootTaxID = 1

// maxDepth bounds lineage walks so a malformed nodes.dmp cannot loop forever.
const maxDepth = 256

// Name classes that are stored as synonyms, the same set NCBITaxa keeps.
var synonymClasses = map[string]bool{
	"synonym":                 true,
	"equivalent name":         true,
	"genbank equivalent name": true,
	"anamorph":                true,
	"genbank synonym":         true,
	"genbank anamorph":        true,
	"teleomorph":              true,
}

type synonym struct {
	taxID int64
	name  string
}

type dump struct {
	parents  map[int64]int64
	ranks    map[int64]string
	names    map[int64]string
	common   map[int64]string
	synonyms []synonym
	merged   [][2]int64
}

func newDump() *dump {
	return &dump{
		parents: make(map[int64]int64),
		ranks:   make(map[int64]string),
		names:   make(map[int64]string),
		common:  make(map[int64]string),
	}
}

// readArchive reads nodes.dmp, names.dmp and merged.dmp out of a taxdump
// tarball. Other members are skipped.
func readArchive(r io.Reader) (*dump, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer gz.Close()

	d := newDump()
	seen := map[string]bool{}
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := path.Base(hdr.Name)
		switch name {
		case "nodes.dmp":
			err = d.readNodes(tr)
		case "names.dmp":
			err = d.readNames(tr)
		case "merged.dmp":
			err = d.readMerged(tr)
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		seen[name] = true
	}
	for _, required := range []string{"nodes.dmp", "names.dmp"} {
		if !seen[required] {
			return nil, fmt.Errorf("taxdump archive is missing %s", required)
		}
	}
	return d, nil
}

// splitDumpLine splits a "a\t|\tb\t|\n" record into its trimmed fields.
func splitDumpLine(line string) []string {
	line = strings.TrimRight(line, "\r\n")
	line = strings.TrimSuffix(line, "|")
	fields := strings.Split(line, "|")
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}
	return fields
}

func scanDump(r io.Reader, minFields int, fn func(fields []string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		fields := splitDumpLine(scanner.Text())
		if len(fields) < minFields {
			return fmt.Errorf("line %d: expected %d fields, got %d", lineNo, minFields, len(fields))
		}
		if err := fn(fields); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	return scanner.Err()
}

func (d *dump) readNodes(r io.Reader) error {
	return scanDump(r, 3, func(f []string) error {
		taxID, err := strconv.ParseInt(f[0], 10, 64)
		if err != nil {
			return fmt.Errorf("taxid: %w", err)
		}
		parent, err := strconv.ParseInt(f[1], 10, 64)
		if err != nil {
			return fmt.Errorf("parent: %w", err)
		}
		d.parents[taxID] = parent
		d.ranks[taxID] = f[2]
		return nil
	})
}

func (d *dump) readNames(r io.Reader) error {
	return scanDump(r, 4, func(f []string) error {
		taxID, err := strconv.ParseInt(f[0], 10, 64)
		if err != nil {
			return fmt.Errorf("taxid: %w", err)
		}
		name, class := f[1], f[3]
		switch {
		case class == "scientific name":
			d.names[taxID] = name
		case class == "genbank common name":
			d.common[taxID] = name
		case synonymClasses[class]:
			d.synonyms = append(d.synonyms, synonym{taxID: taxID, name: name})
		}
		return nil
	})
}

func (d *dump) readMerged(r io.Reader) error {
	return scanDump(r, 2, func(f []string) error {
		oldID, err := strconv.ParseInt(f[0], 10, 64)
		if err != nil {
			return fmt.Errorf("old taxid: %w", err)
		}
		newID, err := strconv.ParseInt(f[1], 10, 64)
		if err != nil {
			return fmt.Errorf("new taxid: %w", err)
		}
		d.merged = append(d.merged, [2]int64{oldID, newID})
		return nil
	})
}

// track walks from taxID to the root.
func (d *dump) track(taxID int64) ([]int64, error) {
	track := []int64{taxID}
	current := taxID
	for current != rootTaxID {
		parent, ok := d.parents[current]
		if !ok {
			return nil, fmt.Errorf("taxid %d: parent %d not in nodes.dmp", taxID, current)
		}
		if parent == current {
			break
		}
		track = append(track, parent)
		current = parent
		if len(track) > maxDepth {
			return nil, fmt.Errorf("taxid %d: lineage deeper than %d", taxID, maxDepth)
		}
	}
	return track, nil
}

func (d *dump) write(w *db.Writer) error {
	for taxID, parent := range d.parents {
		track, err := d.track(taxID)
		if err != nil {
			return err
		}
		if err := w.AddSpecies(db.Species{
			TaxID:  taxID,
			Parent: parent,
			Name:   d.names[taxID],
			Common: d.common[taxID],
			Rank:   d.ranks[taxID],
			Track:  track,
		}); err != nil {
			return err
		}
	}
	for _, s := range d.synonyms {
		if err := w.AddSynonym(s.taxID, s.name); err != nil {
			return err
		}
	}
	for _, m := range d.merged {
		if err := w.AddMerged(m[0], m[1]); err != nil {
			return err
		}
	}
	return nil
}
