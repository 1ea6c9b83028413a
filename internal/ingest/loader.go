package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"card_live_dashboard/internal/model"
	"card_live_dashboard/internal/pipeline"
)

// Per-analysis placeholder values that mean "no value".
var naMarkers = map[string]string{
	model.RGIMain: "n/a",
	model.RGIKmer: "n/a",
	model.MLST:    "-",
	model.LMAT:    "n/a",
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// LoadDir parses every result file in dir. Any unreadable file fails the
// whole load; the errors of all bad files are joined.
func LoadDir(ctx context.Context, dir string, workers int) ([]model.Sample, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("data directory %s does not exist", dir)
		}
		return nil, fmt.Errorf("stat data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read data directory: %w", err)
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}

	samples := make([]model.Sample, len(paths))
	errs := pipeline.Run(paths, workers, func(i int, path string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, err := ParseFile(path)
		if err != nil {
			return err
		}
		samples[i] = s
		return nil
	})
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return samples, nil
}

func ParseFile(path string) (model.Sample, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Sample{}, fmt.Errorf("read file: %w", err)
	}
	s, err := Parse(filepath.Base(path), raw)
	if err != nil {
		return model.Sample{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes one result file. The filename identifies the sample and
// replaces any "filename" key in the document.
func Parse(filename string, raw []byte) (model.Sample, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return model.Sample{}, fmt.Errorf("decode json: %w", err)
	}

	s := model.Sample{
		Filename: filename,
		Analyses: make(map[string][]model.Record),
		Fields:   make(map[string]any),
	}

	ts, ok := doc["timestamp"].(string)
	if !ok {
		return model.Sample{}, errors.New("missing timestamp")
	}
	t, err := parseTimestamp(ts)
	if err != nil {
		return model.Sample{}, err
	}
	s.Timestamp = t

	geo, err := parseInt(doc["geo_area_code"])
	if err != nil {
		return model.Sample{}, fmt.Errorf("geo_area_code: %w", err)
	}
	s.GeoAreaCode = geo

	for _, field := range model.AnalysisFields {
		records, err := parseAnalysis(doc[field], naMarkers[field])
		if err != nil {
			return model.Sample{}, fmt.Errorf("%s: %w", field, err)
		}
		if len(records) > 0 {
			s.Analyses[field] = records
		}
	}
	s.AnalysisValid = analysisValid(s)

	for key, v := range doc {
		switch key {
		case "filename", "timestamp", "geo_area_code",
			model.RGIMain, model.RGIKmer, model.MLST, model.LMAT:
			continue
		}
		flatten(s.Fields, key, v)
	}
	return s, nil
}

// analysisValid names the analyses that produced results: "None", a single
// field, fields joined with " and ", or "all".
func analysisValid(s model.Sample) string {
	var present []string
	for _, field := range model.AnalysisFields {
		if s.Has(field) {
			present = append(present, field)
		}
	}
	switch len(present) {
	case 0:
		return "None"
	case len(model.AnalysisFields):
		return "all"
	default:
		return strings.Join(present, " and ")
	}
}

func parseAnalysis(v any, na string) ([]model.Record, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	records := make([]model.Record, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("entry %d: expected an object, got %T", i, item)
		}
		rec := make(model.Record, len(obj))
		for k, val := range obj {
			if str, ok := val.(string); ok && str == na {
				val = nil
			}
			rec[k] = val
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseTimestamp(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", v)
}

func parseInt(v any) (int, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
		// Whole floats such as 124.0 are accepted.
		f, err := n.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, fmt.Errorf("not an integer: %s", n)
		}
		return int(f), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	case nil:
		return 0, errors.New("missing")
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

// flatten stores nested objects under dotted keys.
func flatten(out map[string]any, prefix string, v any) {
	obj, ok := v.(map[string]any)
	if !ok {
		out[prefix] = v
		return
	}
	for k, child := range obj {
		flatten(out, prefix+"."+k, child)
	}
}
