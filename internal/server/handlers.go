package server

import (
	"net/http"

	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
)

// handleHealthz handles the health check request.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type toolResponse struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// handleListTools handles the list tools request.
func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	tools := make([]toolResponse, 0, len(jobsmodel.Tools))
	for _, t := range jobsmodel.Tools {
		tools = append(tools, toolResponse{
			Name:  t.ToString(),
			Label: t.Label(),
		})
	}

	w.Header().Set("Cache-Control", terminalCacheControl)
	writeJSON(w, http.StatusOK, tools)
}

// handleListHosts handles the list hosts request.
func (s *Server) handleListHosts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.hosts.List())
}
