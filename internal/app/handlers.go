package app

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"card_live_dashboard/internal/model"
	"card_live_dashboard/internal/taxonomy"
)

//go:embed index.html
var indexHTML []byte

// Handler serves the dashboard under the configured base path.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", a.handleIndex)
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /api/summary", a.handleSummary)
	mux.HandleFunc("GET /api/samples", a.handleSamples)
	mux.HandleFunc("GET /api/counts", a.handleCounts)
	mux.HandleFunc("GET /api/taxonomy", a.handleTaxonomySearch)
	mux.HandleFunc("GET /api/taxonomy/{taxid}", a.handleTaxon)

	base := a.cfg.URLBasePathname
	if base == "/" || base == "" {
		return mux
	}
	return http.StripPrefix(strings.TrimSuffix(base, "/"), mux)
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "CARD:Live Dashboard"})
}

func (a *App) handleSummary(w http.ResponseWriter, r *http.Request) {
	data, loadedAt := a.snapshot()
	body := map[string]any{
		"samples":   data.Len(),
		"loaded_at": loadedAt,
		"taxonomy":  a.taxa != nil,
	}
	if latest, ok := data.LatestUpdate(); ok {
		body["latest_update"] = latest
	}
	writeJSON(w, http.StatusOK, body)
}

// GET /api/samples?start=2020-07-01&end=2020-08-01
func (a *App) handleSamples(w http.ResponseWriter, r *http.Request) {
	data, err := a.selected(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": data.Len(), "samples": data.Samples()})
}

// GET /api/counts?by=geo_area_code
func (a *App) handleCounts(w http.ResponseWriter, r *http.Request) {
	data, err := a.selected(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	by := r.URL.Query().Get("by")
	if by == "" {
		by = "geo_area_code"
	}
	counts, err := data.CountBy(by)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"by": by, "counts": counts})
}

// GET /api/taxonomy/{taxid}
func (a *App) handleTaxon(w http.ResponseWriter, r *http.Request) {
	if a.taxa == nil {
		writeError(w, http.StatusServiceUnavailable, "taxonomy database not available, run cardlive-init")
		return
	}
	taxID, err := strconv.ParseInt(r.PathValue("taxid"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "taxid must be an integer")
		return
	}
	lineage, err := a.taxa.Lineage(taxID)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"taxon": lineage[len(lineage)-1], "lineage": lineage})
}

// GET /api/taxonomy?name=Escherichia+coli
func (a *App) handleTaxonomySearch(w http.ResponseWriter, r *http.Request) {
	if a.taxa == nil {
		writeError(w, http.StatusServiceUnavailable, "taxonomy database not available, run cardlive-init")
		return
	}
	name := r.URL.Query().Get("name")
	if strings.TrimSpace(name) == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}
	ids, err := a.taxa.TaxIDs(name)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "taxids": ids})
}

func (a *App) selected(r *http.Request) (*model.Data, error) {
	data, _ := a.snapshot()
	q := r.URL.Query()
	if q.Get("start") == "" && q.Get("end") == "" {
		return data, nil
	}
	start, err := parseTime(q.Get("start"), time.Time{})
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	end, err := parseTime(q.Get("end"), time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}
	if end.Before(start) {
		return nil, errors.New("end is before start")
	}
	return data.SelectByTime(start, end), nil
}

func parseTime(v string, fallback time.Time) (time.Time, error) {
	if v == "" {
		return fallback, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

func writeTaxonomyError(w http.ResponseWriter, err error) {
	if errors.Is(err, taxonomy.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": msg})
}
