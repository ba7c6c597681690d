package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonathan/lecture-pipeline/internal/types"
)

// SSEWriter helps write Server-Sent Events
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter creates a new SSE writer
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends an SSE event
func (s *SSEWriter) WriteEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteError sends an error event
func (s *SSEWriter) WriteError(message string) {
	s.WriteEvent("error", map[string]string{"error": message}) //nolint:errcheck
}

// WriteComplete sends a completion event
func (s *SSEWriter) WriteComplete(jobID, status string) {
	s.WriteEvent("complete", map[string]string{ //nolint:errcheck
		"job_id": jobID,
		"status": status,
	})
}

// eventPollInterval is how often the events stream re-reads the job record.
const eventPollInterval = 500 * time.Millisecond

// handleJobEvents streams stage transitions for a job as SSE until the job
// reaches a terminal state or the client disconnects. Transitions are derived
// by polling the store, so the stream works regardless of which process runs
// the pipeline.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}

	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.writeError(w, err)
		return
	}

	seen := stageSnapshot(job)
	sse.WriteEvent("status", job) //nolint:errcheck
	if job.Terminal() {
		sse.WriteComplete(job.ID.String(), string(job.Status))
		return
	}

	ticker := time.NewTicker(eventPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		job, err = s.store.GetJob(r.Context(), id)
		if err != nil {
			sse.WriteError(err.Error())
			return
		}

		for _, st := range job.Stages {
			if seen[st.Name] == st.Status {
				continue
			}
			seen[st.Name] = st.Status
			sse.WriteEvent("progress", map[string]string{ //nolint:errcheck
				"job_id": job.ID.String(),
				"stage":  string(st.Name),
				"status": string(st.Status),
			})
		}

		if job.Terminal() {
			if job.Error != nil {
				sse.WriteEvent("job_error", job.Error) //nolint:errcheck
			}
			sse.WriteComplete(job.ID.String(), string(job.Status))
			return
		}
	}
}

func stageSnapshot(job *types.Job) map[types.StageName]types.StageStatus {
	seen := make(map[types.StageName]types.StageStatus, len(job.Stages))
	for _, st := range job.Stages {
		seen[st.Name] = st.Status
	}
	return seen
}
