package server

import (
	"errors"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"scenesub/internal/logging"
	"scenesub/internal/preflight"
	"scenesub/internal/services"
	"scenesub/internal/textutil"
)

const defaultJobListLimit = 50

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	if !textutil.IsPlainFileName(name) {
		writeError(w, http.StatusNotFound, "subtitle not found")
		return
	}

	path := filepath.Join(s.cfg.Paths.SubtitleDir, name)
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "subtitle not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "subtitle not found")
		return
	}

	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Type", "application/x-subrip")
	http.ServeContent(w, r, name, info.ModTime(), file)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	limit := defaultJobListLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	list, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, r, services.Wrap(services.ErrTransient, "server", "list jobs", "Job listing failed", err))
		return
	}
	writeJSON(w, http.StatusOK, jobListResponse{Jobs: list})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	job, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, services.Wrap(services.ErrTransient, "server", "get job", "Job lookup failed", err))
		return
	}
	if job == nil {
		s.writeServiceError(w, r, services.Wrap(services.ErrNotFound, "server", "get job", "job not found", nil))
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{Job: *job})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Counts(r.Context())
	if err != nil {
		s.writeServiceError(w, r, services.Wrap(services.ErrTransient, "server", "status", "Job counts failed", err))
		return
	}
	statuses := preflight.CheckSystemDeps(s.cfg)
	deps := make([]dependencyStatus, len(statuses))
	for i, dep := range statuses {
		deps[i] = dependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Path:        dep.Path,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Running:      true,
		PID:          os.Getpid(),
		Uptime:       formatUptime(s.started),
		DatabasePath: s.store.Path(),
		LockPath:     s.cfg.LockPath(),
		Model:        s.pipeline.Model(),
		Threshold:    s.cfg.Scenes.Threshold,
		Jobs:         counts,
		Dependencies: deps,
	})
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := services.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context(), s.logger).Error("request failed", logging.Error(err))
	}
	writeError(w, status, err.Error())
}
