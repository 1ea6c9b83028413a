package model

import (
	"encoding/json"
	"testing"
)

func taxonomyFixture() *Data {
	return NewData([]Sample{
		{Filename: "a", Timestamp: day(1), Analyses: map[string][]Record{
			LMAT: {
				{"taxonomy_label": "Escherichia coli", "count": json.Number("10")},
				{"taxonomy_label": "Shigella flexneri", "count": json.Number("3")},
			},
			RGIKmer: {
				{"taxonomy_label": "Escherichia coli"},
				{"taxonomy_label": "Klebsiella pneumoniae"},
				{"taxonomy_label": "Klebsiella pneumoniae"},
			},
		}},
		{Filename: "b", Timestamp: day(2), Analyses: map[string][]Record{
			LMAT: {{"taxonomy_label": "Salmonella enterica"}},
		}},
		{Filename: "c", Timestamp: day(3), Fields: map[string]any{"geo_area_name": "Canada"}},
	})
}

func TestAddTaxonomy(t *testing.T) {
	data := taxonomyFixture()
	withTaxa := data.AddTaxonomy()

	samples := withTaxa.Samples()
	if got := samples[0].Fields[LMATTaxonomy]; got != "Escherichia coli" {
		t.Fatalf("expected lmat label weighted by count, got %v", got)
	}
	if got := samples[0].Fields[RGIKmerTaxonomy]; got != "Klebsiella pneumoniae" {
		t.Fatalf("expected most frequent rgi_kmer label, got %v", got)
	}
	if _, ok := samples[1].Fields[RGIKmerTaxonomy]; ok {
		t.Fatal("did not expect rgi_kmer taxonomy without rgi_kmer records")
	}
	if samples[2].Fields["geo_area_name"] != "Canada" {
		t.Fatalf("existing fields must be kept, got %v", samples[2].Fields)
	}

	counts, err := withTaxa.CountBy(LMATTaxonomy)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts["Escherichia coli"] != 1 || counts["Salmonella enterica"] != 1 || len(counts) != 2 {
		t.Fatalf("unexpected taxonomy counts %v", counts)
	}

	if _, ok := data.Samples()[0].Fields[LMATTaxonomy]; ok {
		t.Fatal("original data must be unchanged")
	}
}

func TestDominantLabelTie(t *testing.T) {
	label, ok := dominantLabel([]Record{{"taxonomy_label": "B"}, {"taxonomy_label": "A"}, {"taxonomy_label": ""}})
	if !ok || label != "A" {
		t.Fatalf("expected alphabetical tie break, got %q", label)
	}
	if _, ok := dominantLabel(nil); ok {
		t.Fatal("expected no label for empty records")
	}
}
