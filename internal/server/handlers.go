package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"arboreal/harvest/internal/aggregate"
	"arboreal/harvest/internal/arboreal"
	"arboreal/harvest/internal/blob"
	"arboreal/harvest/internal/export"
	"arboreal/harvest/internal/table"
)

const (
	headerSamples = "X-Harvest-Samples"
	headerSkipped = "X-Harvest-Skipped"
)

type uploadResp struct {
	Key     string `json:"key"`
	URL     string `json:"url"`
	Samples int    `json:"samples"`
	Skipped int    `json:"skipped"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// upstreamFor validates the caller's key and returns a client for it.
func (s *Server) upstreamFor(r *http.Request) (Upstream, error) {
	key := r.Header.Get("Authorization")
	if err := arboreal.ValidateAPIKey(key); err != nil {
		return nil, err
	}
	if s.opts.NewUpstream == nil {
		return nil, errors.New("no upstream configured")
	}
	return s.opts.NewUpstream(key), nil
}

// GET /api/samples
func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	up, err := s.upstreamFor(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	samples, err := aggregate.LoadSamples(r.Context(), up)
	if err != nil {
		s.logger.Warn("sample list failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	records := samples.Records()
	if records == nil {
		records = []*table.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// POST /api/downloads
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { s.metrics.Duration.Observe(time.Since(start).Seconds()) }()

	up, err := s.upstreamFor(r)
	if err != nil {
		s.metrics.Downloads.WithLabelValues(statusBadRequest).Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	upload, _ := strconv.ParseBool(r.URL.Query().Get("upload"))
	if upload && s.opts.Store == nil {
		s.metrics.Downloads.WithLabelValues(statusBadRequest).Inc()
		writeError(w, http.StatusBadRequest, "uploads are not configured")
		return
	}

	samples, err := aggregate.LoadSamples(r.Context(), up)
	if err != nil {
		s.metrics.Downloads.WithLabelValues(statusUpstreamError).Inc()
		s.logger.Warn("sample list failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	agg := aggregate.New(aggregate.Options{Concurrency: s.opts.Concurrency, Logger: s.logger})
	res, err := agg.Aggregate(r.Context(), samples, up)
	if err != nil {
		var se *aggregate.StructuralError
		status, label := http.StatusInternalServerError, statusError
		if errors.As(err, &se) {
			status, label = http.StatusBadGateway, statusUpstreamError
		}
		s.metrics.Downloads.WithLabelValues(label).Inc()
		writeError(w, status, err.Error())
		return
	}
	processed := res.Samples.Len() - res.Skipped
	s.metrics.Samples.WithLabelValues("processed").Add(float64(processed))
	s.metrics.Samples.WithLabelValues("skipped").Add(float64(res.Skipped))

	data, err := export.Archive(res.Tables())
	if err != nil {
		s.metrics.Downloads.WithLabelValues(statusError).Inc()
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("building archive: %v", err))
		return
	}

	if upload {
		key := blob.ArchiveKey(s.opts.UploadPrefix, start)
		if _, err := s.opts.Store.Put(r.Context(), key, bytes.NewReader(data), blob.PutOptions{ContentType: export.ContentType}); err != nil {
			s.metrics.Downloads.WithLabelValues(statusError).Inc()
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		url, err := s.opts.Store.PresignURL(r.Context(), key, blob.DefaultExpiry)
		if err != nil {
			s.metrics.Downloads.WithLabelValues(statusError).Inc()
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		s.metrics.Downloads.WithLabelValues(statusOK).Inc()
		writeJSON(w, http.StatusCreated, uploadResp{Key: key, URL: url, Samples: res.Samples.Len(), Skipped: res.Skipped})
		return
	}

	s.metrics.Downloads.WithLabelValues(statusOK).Inc()
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.ArchiveName))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set(headerSamples, strconv.Itoa(res.Samples.Len()))
	w.Header().Set(headerSkipped, strconv.Itoa(res.Skipped))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
