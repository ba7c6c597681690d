package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/lecture-pipeline/internal/pipeline"
	"github.com/jonathan/lecture-pipeline/internal/store"
	"github.com/jonathan/lecture-pipeline/internal/types"
)

// createJobRequest is the payload for POST /jobs
type createJobRequest struct {
	SourceRef   string            `json:"source_ref" validate:"required"`
	AgentConfig types.AgentConfig `json:"agent_config"`
}

// handleCreateJob accepts a document reference, persists a queued job and
// hands it to the queue (or an in-process goroutine when no queue is wired).
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, pipeline.CodeValidation, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.writeError(w, err)
		return
	}

	job, err := s.orchestrator.CreateJob(r.Context(), req.SourceRef, req.AgentConfig)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(r.Context(), job.ID.String()); err != nil {
			log.Printf("enqueue job %s: %v", job.ID, err)
			s.errorResponse(w, http.StatusInternalServerError, pipeline.CodeInternal, "failed to enqueue job")
			return
		}
	} else {
		go func() {
			// Detached from the request context: processing outlives the response.
			if err := s.orchestrator.ProcessJob(context.Background(), job.ID); err != nil {
				log.Printf("process job %s: %v", job.ID, err)
			}
		}()
	}

	s.jsonResponse(w, http.StatusAccepted, job)
}

// handleGetJob returns the current job record with its stage states.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}

	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

// handleGetPlayback assembles the single payload a playback client needs:
// document and audio references, the segmented script, and the word timing
// track. Only completed jobs have one.
func (s *Server) handleGetPlayback(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}

	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if job.Status != types.JobStatusCompleted {
		s.errorResponse(w, http.StatusConflict, codeConflict, "job is not completed")
		return
	}

	data, err := s.assemblePlayback(r, job)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, data)
}

// assemblePlayback joins the stored stage artifacts into PlaybackData.
func (s *Server) assemblePlayback(r *http.Request, job *types.Job) (*types.PlaybackData, error) {
	var segments []types.Segment
	if _, err := s.store.LoadArtifact(r.Context(), job.ID, store.ArtifactSegments, &segments); err != nil {
		return nil, err
	}
	var blocks []types.ScriptBlock
	if _, err := s.store.LoadArtifact(r.Context(), job.ID, store.ArtifactScript, &blocks); err != nil {
		return nil, err
	}
	var synthesis types.SynthesisResult
	if _, err := s.store.LoadArtifact(r.Context(), job.ID, store.ArtifactSynthesis, &synthesis); err != nil {
		return nil, err
	}

	// Attach blocks to their segments, preserving block order within each.
	bySegment := make(map[string][]types.ScriptBlock)
	for _, b := range blocks {
		bySegment[b.SegmentID] = append(bySegment[b.SegmentID], b)
	}
	for i := range segments {
		segments[i].Blocks = bySegment[segments[i].ID]
	}

	return &types.PlaybackData{
		PDFURL:      job.SourceRef,
		AudioURL:    synthesis.AudioRef,
		Script:      types.Script{Segments: segments},
		WordTimings: synthesis.WordTimings,
	}, nil
}

// jobID parses the {id} path value, writing the error response itself.
func (s *Server) jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, pipeline.CodeValidation, "invalid job ID format")
		return uuid.Nil, false
	}
	return id, true
}
