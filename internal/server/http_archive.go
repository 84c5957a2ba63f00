package server

import "net/http"

// handleArchiveExport handles POST /v1/archive/export.
// Runs one export to the configured destinations.
func (s *NewsServer) handleArchiveExport(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "archive export is not configured")
		return
	}
	res, err := s.archive.RunOnce(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
