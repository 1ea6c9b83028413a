package model

import (
	"encoding/json"
	"strings"
)

// Per-sample taxonomy columns derived from the lmat and rgi_kmer records.
const (
	LMATTaxonomy    = "lmat_taxonomy"
	RGIKmerTaxonomy = "rgi_kmer_taxonomy"
)

const taxonomyLabel = "taxonomy_label"

// AddTaxonomy sets the lmat_taxonomy and rgi_kmer_taxonomy fields of every
// sample to the dominant taxonomy_label of its lmat and rgi_kmer records.
// Samples without labelled records get no value.
func (d *Data) AddTaxonomy() *Data {
	out := make([]Sample, len(d.samples))
	for i, s := range d.samples {
		fields := make(map[string]any, len(s.Fields)+2)
		for k, v := range s.Fields {
			fields[k] = v
		}
		delete(fields, LMATTaxonomy)
		delete(fields, RGIKmerTaxonomy)
		if label, ok := dominantLabel(s.Analyses[LMAT]); ok {
			fields[LMATTaxonomy] = label
		}
		if label, ok := dominantLabel(s.Analyses[RGIKmer]); ok {
			fields[RGIKmerTaxonomy] = label
		}
		s.Fields = fields
		out[i] = s
	}
	return &Data{samples: out}
}

// dominantLabel picks the label with the largest total count. Records
// without a count weigh 1. Ties go to the alphabetically first label.
func dominantLabel(records []Record) (string, bool) {
	weights := make(map[string]float64)
	for _, r := range records {
		label, _ := r[taxonomyLabel].(string)
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		weights[label] += recordWeight(r["count"])
	}
	best, bestWeight := "", 0.0
	for label, w := range weights {
		if best == "" || w > bestWeight || (w == bestWeight && label < best) {
			best, bestWeight = label, w
		}
	}
	return best, best != ""
}

func recordWeight(v any) float64 {
	switch n := v.(type) {
	case json.Number:
		if f, err := n.Float64(); err == nil && f > 0 {
			return f
		}
	case float64:
		if n > 0 {
			return n
		}
	case int:
		if n > 0 {
			return float64(n)
		}
	}
	return 1
}
