package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/san-kum/trainsim/internal/config"
	"github.com/san-kum/trainsim/internal/dynamo"
	"github.com/san-kum/trainsim/internal/export"
	"github.com/san-kum/trainsim/internal/params"
	"github.com/san-kum/trainsim/internal/store"
)

func (s *Server) serverStatus(w http.ResponseWriter, r *http.Request) {
	st := s.app.Sim.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "running",
		"version":    Version,
		"uptime_s":   time.Since(s.started).Seconds(),
		"simulation": st.State,
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func getGroup[T any](get func() (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := get()
		if err != nil {
			writeErrorBody(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// writeErrorBody is writeError for handlers without a Server.
func writeErrorBody(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), ErrorBody{Error: err.Error()})
}

func setGroup[T any](s *Server, name string, set func(T) error, get func() (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var v T
		if err := decode(r, &v); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := set(v); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.logger.Info("parameters updated", "group", name)
		getGroup(get)(w, r)
	}
}

// parameterSet is the full parameter set; groups never set are null.
type parameterSet struct {
	Train      *params.TrainParameters      `json:"train"`
	Electrical *params.ElectricalParameters `json:"electrical"`
	Running    *params.RunningParameters    `json:"running"`
	Track      *params.TrackParameters      `json:"track"`
}

func ptr[T any](v T, err error) *T {
	if err != nil {
		return nil
	}
	return &v
}

func (s *Server) getParameters(w http.ResponseWriter, r *http.Request) {
	ps := s.app.Params
	writeJSON(w, http.StatusOK, parameterSet{
		Train:      ptr(ps.Train()),
		Electrical: ptr(ps.Electrical()),
		Running:    ptr(ps.Running()),
		Track:      ptr(ps.Track()),
	})
}

func (s *Server) setParameters(w http.ResponseWriter, r *http.Request) {
	var snap params.Snapshot
	if err := decode(r, &snap); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.app.Params.Load(snap); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("parameters loaded")
	s.getParameters(w, r)
}

func (s *Server) listPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"presets": config.ListPresets()})
}

func (s *Server) loadPreset(w http.ResponseWriter, r *http.Request) {
	if err := s.app.LoadPreset(chi.URLParam(r, "name")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.getParameters(w, r)
}

func (s *Server) startSimulation(w http.ResponseWriter, r *http.Request) {
	id, err := s.app.Start()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": id})
}

func (s *Server) simulationStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Sim.Status())
}

func (s *Server) simulationResults(w http.ResponseWriter, r *http.Request) {
	res, err := s.app.Sim.Results()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := store.ExportJSON(w, res); err != nil {
		s.logger.Error("encode results", "err", err)
	}
}

func (s *Server) cancelSimulation(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Sim.Cancel(); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.app.Sim.Status())
}

func (s *Server) resetSimulation(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Sim.Reset(); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Sim.Status())
}

func (s *Server) results(w http.ResponseWriter, r *http.Request) (store.Result, bool) {
	res, err := s.app.Sim.Results()
	if errors.Is(err, dynamo.ErrNotAvailable) {
		err = dynamo.ErrNoResults
	}
	if err != nil {
		s.writeError(w, r, err)
		return store.Result{}, false
	}
	return res, true
}

func (s *Server) exportResults(w http.ResponseWriter, r *http.Request) {
	res, ok := s.results(w, r)
	if !ok {
		return
	}
	data, err := store.ExportCSV(res.Samples)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "simulation_"+res.RunID+".csv"))
	_, _ = w.Write(data)
}

func (s *Server) exportChart(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	res, ok := s.results(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	switch format {
	case "html":
		if err := export.WriteHTML(&buf, res.RunID, res.Samples); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	case "png", "svg":
		var track params.TrackParameters
		if run, ok := s.app.Sim.Run(); ok && run.ID == res.RunID {
			track = run.Params.Track
		}
		p, err := export.SpeedProfile("speed profile "+res.RunID, res.Samples, export.Limits(track))
		if err == nil {
			err = export.WriteChart(&buf, p, format)
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ct := "image/png"
		if format == "svg" {
			ct = "image/svg+xml"
		}
		w.Header().Set("Content-Type", ct)
	default:
		writeJSON(w, http.StatusNotFound, ErrorBody{Error: fmt.Sprintf("unknown chart format %q", format)})
		return
	}
	_, _ = buf.WriteTo(w)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.app.Archive.List()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	meta, err := s.app.Archive.Load(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) getRunSamples(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	samples, err := s.app.Archive.LoadSamples(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "simulation_"+id+".csv"))
	if err := store.WriteCSV(w, samples); err != nil {
		s.logger.Error("write samples", "run", id, "err", err)
	}
}
