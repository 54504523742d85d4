package optimize

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kilianp07/railsched/core/conflict"
	"github.com/kilianp07/railsched/core/model"
	"github.com/kilianp07/railsched/core/optimizer"
	"github.com/kilianp07/railsched/core/realtime"
	"github.com/kilianp07/railsched/core/runlog"
	"github.com/kilianp07/railsched/infra/dataset"
	"github.com/kilianp07/railsched/pkg/export"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type optimizeRequest struct {
	model.Snapshot
	Overrides map[string]any `json:"overrides,omitempty"`
}

type disruptionRequest struct {
	realtime.Disruption
	Snapshot *model.Snapshot `json:"snapshot,omitempty"`
}

type conflictsRequest struct {
	model.Snapshot
	Conditions map[string]conflict.Conditions `json:"conditions,omitempty"`
}

type datasetStatus struct {
	Loaded   bool `json:"loaded"`
	Trains   int  `json:"trains"`
	Sections int  `json:"sections"`
	Usages   int  `json:"train_sections"`
}

type statusResponse struct {
	Status        string        `json:"status"`
	UptimeSeconds float64       `json:"uptime_seconds"`
	DefaultMethod string        `json:"default_method"`
	Methods       []string      `json:"methods"`
	Dataset       datasetStatus `json:"dataset"`
	RunLog        bool          `json:"run_log"`
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// snapshotOrDefault returns snap, or the default dataset when snap has no
// work.
func (s *Server) snapshotOrDefault(snap model.Snapshot) model.Snapshot {
	if d, ok := s.defaultDataset(); ok {
		return snap.OrDefault(d)
	}
	return snap
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	snap := s.snapshotOrDefault(req.Snapshot)
	if err := dataset.Validate(snap); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.runner.RunRequest(r.Context(), optimizer.Request{
		Snapshot:  snap,
		Method:    r.URL.Query().Get("method"),
		Overrides: req.Overrides,
	})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, res)
		return
	}
	s.record(r.Context(), res, "api", snap)

	if r.URL.Query().Get("format") == "csv" {
		if !res.Success {
			writeJSON(w, http.StatusUnprocessableEntity, res)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.RunID+".csv"))
		if err := export.WriteCSV(w, res); err != nil {
			s.log.Errorf("csv export %s: %v", res.RunID, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDisruption(w http.ResponseWriter, r *http.Request) {
	var req disruptionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if err := validate.Struct(req.Disruption); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var base model.Snapshot
	if req.Snapshot != nil {
		base = *req.Snapshot
	}
	base = s.snapshotOrDefault(base)
	if err := dataset.Validate(base); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	out, err := s.reopt.Handle(r.Context(), base, req.Disruption)
	switch {
	case errors.Is(err, realtime.ErrUnknownTrain):
		writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.record(r.Context(), out.Result, "disruption", out.Snapshot)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	var snap model.Snapshot
	if err := decode(r, &snap); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	snap = s.snapshotOrDefault(snap)
	writeJSON(w, http.StatusOK, s.runner.Engine().Rank(snap.Trains))
}

// handleConflicts reports over-capacity sections and the proceed or hold
// decision of every train involved. GET analyzes the default dataset.
func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	var req conflictsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	snap := s.snapshotOrDefault(req.Snapshot)
	if err := dataset.Validate(snap); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	for id, c := range req.Conditions {
		if err := c.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("conditions %s: %w", id, err))
			return
		}
	}
	rep := conflict.Analyze(s.runner.Engine(), snap, req.Conditions)
	if len(rep.Alerts) > 0 {
		s.log.Infow("section conflicts detected", map[string]any{
			"alerts":    len(rep.Alerts),
			"decisions": len(rep.Decisions),
		})
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, errors.New("run log disabled"))
		return
	}
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	recs, err := s.store.Query(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if recs == nil {
		recs = []runlog.LogRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func parseQuery(r *http.Request) (runlog.LogQuery, error) {
	v := r.URL.Query()
	q := runlog.LogQuery{Method: v.Get("method"), TrainID: v.Get("train_id")}
	if s := v.Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, fmt.Errorf("start: %w", err)
		}
		q.Start = t
	}
	if s := v.Get("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, fmt.Errorf("end: %w", err)
		}
		q.End = t
	}
	if s := v.Get("success"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return q, fmt.Errorf("success: %w", err)
		}
		q.Success = &b
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, fmt.Errorf("limit must be a non-negative integer")
		}
		q.Limit = n
	}
	return q, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := statusResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(s.started).Seconds(),
		DefaultMethod: s.runner.Config().Method,
		Methods:       s.runner.Methods(),
		RunLog:        s.store != nil,
	}
	if d, ok := s.defaultDataset(); ok {
		st.Dataset = datasetStatus{Loaded: true, Trains: len(d.Trains), Sections: len(d.Sections), Usages: len(d.Usages)}
	}
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
