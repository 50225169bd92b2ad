package server

import (
	"net/http"

	"github.com/jonathan/transcript-archiver/internal/types"
)

var errSchedulerDisabled = types.NewError(types.KindConfiguration, "scheduler is disabled", nil)

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		s.writeError(w, r, errSchedulerDisabled)
		return
	}
	jobs := s.scheduler.ListJobs()
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		s.writeError(w, r, errSchedulerDisabled)
		return
	}
	var req types.CreateJobRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Frequency == "" {
		req.Frequency = types.FrequencyDaily
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, extractValidationErrors(err))
		return
	}

	job, err := s.scheduler.CreateJob(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, map[string]any{"job": job})
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		s.writeError(w, r, errSchedulerDisabled)
		return
	}
	id := r.PathValue("id")
	if err := s.scheduler.RemoveJob(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "Job removed", "id": id})
}

// handleRunJob fires a job in the background without touching its cadence.
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		s.writeError(w, r, errSchedulerDisabled)
		return
	}
	id := r.PathValue("id")
	if err := s.scheduler.RunNow(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusAccepted, map[string]string{"message": "Job started", "id": id})
}
