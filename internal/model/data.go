package model

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Analysis fields carried by every CARD:Live result file, in reporting order.
const (
	RGIMain = "rgi_main"
	RGIKmer = "rgi_kmer"
	MLST    = "mlst"
	LMAT    = "lmat"
)

var AnalysisFields = []string{RGIMain, RGIKmer, MLST, LMAT}

const (
	GeoAntarctica = 10
	GeoNA         = -10
)

type Record map[string]any

type Sample struct {
	Filename      string              `json:"filename"`
	Timestamp     time.Time           `json:"timestamp"`
	GeoAreaCode   int                 `json:"geo_area_code"`
	AnalysisValid string              `json:"analysis_valid"`
	Analyses      map[string][]Record `json:"analyses,omitempty"`
	// Fields holds the remaining top-level scalar values of the result file.
	Fields map[string]any `json:"fields,omitempty"`
}

func (s Sample) Has(field string) bool {
	return len(s.Analyses[field]) > 0
}

// Data is an immutable set of samples keyed by filename. Selections return
// new values and never modify the receiver.
type Data struct {
	samples []Sample
}

func NewData(samples []Sample) *Data {
	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Filename < sorted[j].Filename })
	return &Data{samples: sorted}
}

func (d *Data) Len() int {
	return len(d.samples)
}

func (d *Data) Samples() []Sample {
	out := make([]Sample, len(d.samples))
	copy(out, d.samples)
	return out
}

func (d *Data) Files() map[string]struct{} {
	files := make(map[string]struct{}, len(d.samples))
	for _, s := range d.samples {
		files[s.Filename] = struct{}{}
	}
	return files
}

// LatestUpdate is the newest sample timestamp; ok is false for empty data.
func (d *Data) LatestUpdate() (latest time.Time, ok bool) {
	for _, s := range d.samples {
		if !ok || s.Timestamp.After(latest) {
			latest = s.Timestamp
			ok = true
		}
	}
	return latest, ok
}

// SelectByTime keeps samples with start <= timestamp <= end.
func (d *Data) SelectByTime(start, end time.Time) *Data {
	return d.filter(func(s Sample) bool {
		return !s.Timestamp.Before(start) && !s.Timestamp.After(end)
	})
}

func (d *Data) SelectByFiles(files map[string]struct{}) *Data {
	return d.filter(func(s Sample) bool {
		_, ok := files[s.Filename]
		return ok
	})
}

// ReplaceAntarcticaWithNA recodes geo area 10 as -10 for samples older than
// threshold. Early submissions defaulted the region to Antarctica when none
// was chosen.
func (d *Data) ReplaceAntarcticaWithNA(threshold time.Time) *Data {
	out := make([]Sample, len(d.samples))
	for i, s := range d.samples {
		if s.GeoAreaCode == GeoAntarctica && s.Timestamp.Before(threshold) {
			s.GeoAreaCode = GeoNA
		}
		out[i] = s
	}
	return &Data{samples: out}
}

// CountBy counts samples per value of a top-level field. Samples without a
// value for the field are left out; the field is unknown only when no sample
// carries it.
func (d *Data) CountBy(field string) (map[string]int, error) {
	counts := make(map[string]int)
	for _, s := range d.samples {
		var key string
		switch field {
		case "geo_area_code":
			key = strconv.Itoa(s.GeoAreaCode)
		case "analysis_valid":
			key = s.AnalysisValid
		default:
			v, ok := s.Fields[field]
			if !ok || v == nil {
				continue
			}
			key = fmt.Sprint(v)
		}
		counts[key]++
	}
	if len(counts) == 0 && len(d.samples) > 0 {
		return nil, fmt.Errorf("unknown field %q", field)
	}
	return counts, nil
}

func (d *Data) filter(keep func(Sample) bool) *Data {
	out := make([]Sample, 0, len(d.samples))
	for _, s := range d.samples {
		if keep(s) {
			out = append(out, s)
		}
	}
	return &Data{samples: out}
}
