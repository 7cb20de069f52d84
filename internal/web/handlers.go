package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/masterfile/internal/core"
)

// handleHealth reports liveness and whether a publication is running.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"activePublications": s.service.PublicationsActive(),
	})
}

// handleListDatasets returns the dataset catalog in report order.
func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ListDatasets())
}

// handleSnapshot returns the current primary snapshot for editing.
// Datasets with synthetic keys include the row key column.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.LoadSnapshot(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		respondError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handlePreview diffs the posted snapshot against the current primary.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var edited core.Snapshot
	if !s.decodeBody(w, r, &edited) {
		return
	}

	preview, err := s.service.Preview(r.Context(), chi.URLParam(r, "key"), &edited)
	if err != nil {
		respondError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// publishRequest is the body of POST /api/publish.
type publishRequest struct {
	Operator string                    `json:"operator"`
	Datasets map[string]*core.Snapshot `json:"datasets"`
}

// handlePublish publishes every posted dataset in one batch.
//
// 200 means the batch was committed. On failure the error body carries the
// publication result, since some datasets may have been published anyway.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var body publishRequest
	if !s.decodeBody(w, r, &body) {
		return
	}
	if len(body.Datasets) == 0 {
		respondBadRequest(w, r, "no datasets to publish")
		return
	}
	for key, snap := range body.Datasets {
		if snap == nil {
			respondBadRequest(w, r, fmt.Sprintf("dataset %q has no snapshot", key))
			return
		}
	}

	result, err := s.service.Publish(r.Context(), core.PublishRequest{
		Edits:    s.orderEdits(body.Datasets),
		Operator: body.Operator,
	})
	if err != nil {
		respondError(w, r, err, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// orderEdits lists edits in catalog order so reports and logs are stable.
// Unknown keys go last; the service rejects them per dataset.
func (s *Server) orderEdits(datasets map[string]*core.Snapshot) []core.DatasetEdit {
	edits := make([]core.DatasetEdit, 0, len(datasets))
	seen := make(map[string]bool, len(datasets))
	for _, info := range s.service.ListDatasets() {
		if snap, ok := datasets[info.Key]; ok {
			edits = append(edits, core.DatasetEdit{Dataset: info.Key, Edited: snap})
			seen[info.Key] = true
		}
	}

	var unknown []string
	for key := range datasets {
		if !seen[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		edits = append(edits, core.DatasetEdit{Dataset: key, Edited: datasets[key]})
	}
	return edits
}

// handleCounter returns today's counter and the next subject.
func (s *Server) handleCounter(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.CounterStatus(r.Context())
	if err != nil {
		respondError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleListBackups lists a dataset's backups, newest first.
func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListBackups(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		respondError(w, r, err, nil)
		return
	}
	if items == nil {
		items = []core.ArtifactInfo{}
	}
	writeJSON(w, http.StatusOK, items)
}

// handleDownloadBackup streams one backup file.
func (s *Server) handleDownloadBackup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	data, contentType, err := s.service.ReadBackup(r.Context(), chi.URLParam(r, "key"), name)
	if err != nil {
		respondError(w, r, err, nil)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// decodeBody reads a size-limited JSON body into v. It writes the error
// response and returns false when the body is unusable.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
				Error:   "request body too large",
				Message: fmt.Sprintf("The request exceeds %d bytes", tooLarge.Limit),
				Action:  "Publish fewer datasets per request or raise SERVER_MAX_BODY_SIZE",
				Code:    "REQ004",
			})
			return false
		}
		respondBadRequest(w, r, "invalid JSON: "+err.Error())
		return false
	}
	return true
}
