// Package statusapi exposes a running pipeline's FlowStatus over
// HTTP, adapted from the teacher's media manifest server: same
// embedded http.Server / once-guarded Interrupt shape, different
// payload.
package statusapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/flowpipe/flowpipe/pipeline"
)

// Server exposes a pipeline's flow status for operators: plain text at
// GET /status, JSON at GET /status.json.
type Server struct {
	http.Server
	pl            *pipeline.Pipeline
	interruptOnce sync.Once
}

// NewServer builds a status server over pl. Call ListenAndServe to
// start serving.
func NewServer(pl *pipeline.Pipeline) *Server {
	return &Server{pl: pl}
}

type statusPayload struct {
	Snapshot string `json:"snapshot"`
}

func (s *Server) handleStatus(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(rw, s.pl.FlowStatus())
}

func (s *Server) handleStatusJSON(rw http.ResponseWriter, r *http.Request) {
	buf, err := json.Marshal(statusPayload{Snapshot: s.pl.FlowStatus()})
	if err != nil {
		http.Error(rw, "failed to encode status", http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.Write(buf)
}

// ListenAndServe starts the status server on addr. It blocks until
// the server is shut down.
func (s *Server) ListenAndServe(addr string) error {
	log.Println("Starting status HTTP server on " + addr)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /status.json", s.handleStatusJSON)
	s.Handler = mux
	s.Addr = addr

	return s.Server.ListenAndServe()
}

// Interrupt gracefully shuts the server down, falling back to a hard
// close if graceful shutdown doesn't complete in time.
func (s *Server) Interrupt(err error) {
	s.interruptOnce.Do(func() {
		log.Printf("Interrupting status HTTP server: %v\n", err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.Server.Shutdown(ctx); err != nil {
			s.Server.Close()
		}

		log.Println("status HTTP server shutdown complete")
	})
}
