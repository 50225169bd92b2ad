package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/transcript-archiver/internal/pipeline"
	"github.com/jonathan/transcript-archiver/internal/types"
)

// handleDownload starts a background run and returns its ID.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req types.DownloadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, extractValidationErrors(err))
		return
	}

	cfg, err := s.runConfig(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	id := s.pipeline.Start(cfg)
	s.logger.Info("run accepted",
		"run_id", id,
		"channel", cfg.ChannelQuery,
		"video_ids", len(types.SplitVideoIDs(cfg.VideoIDs)),
		"folder", cfg.Folder)
	s.jsonResponse(w, http.StatusAccepted, types.StartRunResponse{TaskID: id, Status: string(types.RunPending)})
}

// runConfig converts a download request into pipeline settings.
func (s *Server) runConfig(req types.DownloadRequest) (pipeline.Config, error) {
	cfg := pipeline.Config{
		ChannelQuery: strings.TrimSpace(req.Channel),
		VideoIDs:     strings.Join(types.SplitVideoIDs(req.VideoIDs), ","),
		Folder:       strings.TrimSpace(req.Folder),
		Delay:        s.cfg.Download.Delay,
		MaxItems:     req.Limit,
		APIKey:       strings.TrimSpace(req.APIKey),
	}
	if req.AfterDate != "" {
		after, err := time.ParseInLocation(types.DateLayout, req.AfterDate, s.cfg.Scheduler.Location())
		if err != nil {
			return cfg, &ErrValidation{Field: "after_date", Message: "must be YYYY-MM-DD"}
		}
		cfg.AfterDate = &after
	}
	if req.Delay != nil {
		cfg.Delay = time.Duration(*req.Delay * float64(time.Second))
	}
	return cfg, nil
}

// handleProgress returns a snapshot of one run.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	progress, _, ok := s.runs.Get(r.PathValue("id"))
	if !ok {
		s.writeError(w, r, types.NewError(types.KindNotFound, "run not found", nil))
		return
	}
	s.jsonResponse(w, http.StatusOK, progress)
}

// handleProgressStream pushes run snapshots as server-sent events until the
// run reaches a terminal status or the client goes away.
func (s *Server) handleProgressStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, _, ok := s.runs.Get(id); !ok {
		s.writeError(w, r, types.NewError(types.KindNotFound, "run not found", nil))
		return
	}

	stream, err := newProgressStream(w, s.cfg.Server.CORSOrigin)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	var sent uint64
	if last, err := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64); err == nil {
		sent = last
	}
	for {
		progress, version, ok := s.runs.Get(id)
		if !ok {
			_ = stream.Error("run expired")
			return
		}
		if version != sent {
			if err := stream.Progress(version, progress); err != nil {
				s.logger.Debug("progress stream closed", "run_id", id, "error", err)
				return
			}
			sent = version
		}
		if progress.Status.Terminal() {
			_ = stream.Complete(progress)
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// handleListRuns lists known runs, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	list := s.runs.List()
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"runs":  list,
		"total": len(list),
	})
}
