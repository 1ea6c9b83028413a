package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"card_live_dashboard/internal/model"
)

const fullResult = `{
  "timestamp": "2020-07-09 20:20:40",
  "geo_area_code": 124,
  "geo_area_name": "Canada",
  "analysis": {"version": "1.0"},
  "rgi_main": [{"cut_off": "Perfect", "best_hit_aro": "NDM-1", "drug_class": "n/a"}],
  "rgi_kmer": [{"taxonomy_label": "Escherichia coli"}],
  "mlst": [{"scheme": "ecoli", "sequence_type": "-"}],
  "lmat": [{"taxonomy_label": "Escherichia coli", "count": 10}]
}`

func writeResult(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestParseFullResult(t *testing.T) {
	s, err := Parse("sample1", []byte(fullResult))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Filename != "sample1" || s.GeoAreaCode != 124 {
		t.Fatalf("unexpected sample %+v", s)
	}
	if !s.Timestamp.Equal(time.Date(2020, time.July, 9, 20, 20, 40, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %v", s.Timestamp)
	}
	if s.AnalysisValid != "all" {
		t.Fatalf("expected analysis_valid all, got %q", s.AnalysisValid)
	}
	if got := s.Analyses[model.RGIMain][0]["drug_class"]; got != nil {
		t.Fatalf("expected n/a to be cleared, got %v", got)
	}
	if got := s.Analyses[model.MLST][0]["sequence_type"]; got != nil {
		t.Fatalf("expected '-' to be cleared in mlst, got %v", got)
	}
	if s.Fields["geo_area_name"] != "Canada" || s.Fields["analysis.version"] != "1.0" {
		t.Fatalf("unexpected fields %v", s.Fields)
	}
}

func TestAnalysisValidPartial(t *testing.T) {
	body := `{"timestamp": "2020-08-01T10:00:00Z", "geo_area_code": "10",
	  "rgi_main": [], "rgi_kmer": [{"taxonomy_label": "x"}], "mlst": [], "lmat": [{"a": 1}]}`
	s, err := Parse("partial", []byte(body))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.AnalysisValid != "rgi_kmer and lmat" {
		t.Fatalf("unexpected analysis_valid %q", s.AnalysisValid)
	}
	if s.Has(model.RGIMain) {
		t.Fatal("empty rgi_main list should count as absent")
	}

	none, err := Parse("none", []byte(`{"timestamp": "2020-08-01", "geo_area_code": 1}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if none.AnalysisValid != "None" {
		t.Fatalf("expected None, got %q", none.AnalysisValid)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"not json":       `{`,
		"no timestamp":   `{"geo_area_code": 1}`,
		"bad timestamp":  `{"timestamp": "yesterday", "geo_area_code": 1}`,
		"no geo":         `{"timestamp": "2020-08-01"}`,
		"fractional geo": `{"timestamp": "2020-08-01", "geo_area_code": 12.5}`,
		"bad analysis":   `{"timestamp": "2020-08-01", "geo_area_code": 1, "lmat": "x"}`,
	}
	for name, body := range cases {
		if _, err := Parse(name, []byte(body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseWholeFloatGeoCode(t *testing.T) {
	s, err := Parse("float", []byte(`{"timestamp": "2020-08-01", "geo_area_code": 124.0}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.GeoAreaCode != 124 {
		t.Fatalf("expected geo code 124, got %d", s.GeoAreaCode)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeResult(t, dir, "b", fullResult)
	writeResult(t, dir, "a", `{"timestamp": "2020-07-01 00:00:00", "geo_area_code": 10}`)
	writeResult(t, dir, ".hidden", `{"timestamp": "2020-07-02 00:00:00", "geo_area_code": 124.0}`)
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	samples, err := LoadDir(context.Background(), dir, 2)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(samples))
	}
	data := model.NewData(samples)
	if _, ok := data.Files()["a"]; !ok {
		t.Fatal("expected sample a")
	}
	if _, ok := data.Files()[".hidden"]; !ok {
		t.Fatal("expected dotfiles to be loaded like any other result file")
	}
}

func TestLoadDirErrors(t *testing.T) {
	if _, err := LoadDir(context.Background(), filepath.Join(t.TempDir(), "missing"), 1); err == nil {
		t.Fatal("expected error for missing directory")
	}

	dir := t.TempDir()
	writeResult(t, dir, "good", fullResult)
	writeResult(t, dir, "bad", `{`)
	_, err := LoadDir(context.Background(), dir, 2)
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Fatalf("expected error naming the bad file, got %v", err)
	}
}
