package server

import (
	"net/http"
	"strings"

	"github.com/jonathan/transcript-archiver/internal/rendering"
	"github.com/jonathan/transcript-archiver/internal/types"
)

// channelPreviewSize is how many transcripts each channel overview carries.
const channelPreviewSize = 5

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.store.ListChannels(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	overviews := make([]types.ChannelOverview, 0, len(channels))
	for _, ch := range channels {
		items, err := s.store.List(r.Context(), ch)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		preview := items
		if len(preview) > channelPreviewSize {
			preview = preview[:channelPreviewSize]
		}
		overviews = append(overviews, types.ChannelOverview{
			Name:            ch,
			TranscriptCount: len(items),
			Transcripts:     preview,
		})
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"channels": overviews})
}

func (s *Server) handleListTranscripts(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.List(r.Context(), r.URL.Query().Get("channel"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"transcripts": items,
		"total":       len(items),
	})
}

func (s *Server) handleListDetailed(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"transcripts": items,
		"total":       len(items),
	})
}

func (s *Server) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(r.Context(), r.PathValue("channel"), r.PathValue("name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"transcript": rec})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.writeError(w, r, &ErrValidation{Field: "q", Message: "query parameter required"})
		return
	}
	results, err := s.store.Search(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"results": results,
		"total":   len(results),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"stats": stats})
}

// handleCombine merges the selected transcripts into one Markdown document.
// The document is returned as text/markdown unless ?format=json is given.
func (s *Server) handleCombine(w http.ResponseWriter, r *http.Request) {
	var req types.CombineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, extractValidationErrors(err))
		return
	}

	records := make([]*types.TranscriptRecord, 0, len(req.Transcripts))
	for _, ref := range req.Transcripts {
		rec, err := s.store.Get(r.Context(), ref.Channel, ref.Name)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		records = append(records, rec)
	}

	doc, err := rendering.RenderCombined(records, s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		s.jsonResponse(w, http.StatusOK, map[string]any{
			"markdown": doc,
			"count":    len(records),
		})
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="combined_transcripts.md"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(doc)); err != nil {
		s.logger.Debug("write combined document", "error", err)
	}
}

func (s *Server) handleInitStorage(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Init(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("storage initialized", "backend", s.cfg.Storage.Backend)
	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "Storage initialized"})
}
