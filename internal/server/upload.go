package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"scenesub/internal/contenthash"
	"scenesub/internal/fileutil"
	"scenesub/internal/jobs"
	"scenesub/internal/logging"
	"scenesub/internal/services"
	"scenesub/internal/subtitles"
	"scenesub/internal/textutil"
)

const uploadField = "video"

type savedUpload struct {
	path     string
	baseName string
	hash     string
	size     int64
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes())

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %d MiB limit", s.cfg.Server.MaxUploadMiB))
		case errors.Is(err, http.ErrMissingFile) && r.MultipartForm != nil && hasValue(r.MultipartForm, uploadField):
			// A file part with an empty filename is parsed as a plain value.
			writeError(w, http.StatusBadRequest, "No selected file")
		default:
			writeError(w, http.StatusBadRequest, "No video file provided")
		}
		return
	}
	defer file.Close()
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	if strings.TrimSpace(header.Filename) == "" {
		writeError(w, http.StatusBadRequest, "No selected file")
		return
	}
	safeName := textutil.SecureFileName(header.Filename)
	if safeName == "" {
		writeError(w, http.StatusBadRequest, "Invalid file name")
		return
	}

	threshold, err := s.formThreshold(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	language := strings.TrimSpace(r.FormValue("language"))
	if language == "" {
		language = s.cfg.Transcription.Language
	}

	ctx := r.Context()
	logger := logging.WithContext(ctx, s.logger)

	upload, err := s.saveUpload(file, safeName)
	if err != nil {
		logger.Error("failed to save upload", logging.Error(err), logging.String("file", safeName))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer func() {
		if err := fileutil.RemoveIfExists(upload.path); err != nil {
			logger.Warn("failed to remove upload", logging.Error(err), logging.String("path", upload.path))
		}
	}()

	logger.Info("upload received",
		logging.String("file", safeName),
		logging.Int64("size_bytes", upload.size),
		logging.String("content_hash", upload.hash),
	)

	if reused := s.reuse(ctx, upload, threshold, language); reused != nil {
		logger.Info("reusing stored subtitles",
			logging.String(logging.FieldJobID, reused.ID),
			logging.String("subtitle_file", reused.SubtitlePath),
		)
		writeJSON(w, http.StatusOK, uploadResponse{
			SubtitleFile: filepath.Base(reused.SubtitlePath),
			JobID:        reused.ID,
			Reused:       true,
		})
		return
	}

	job, err := s.store.Create(ctx, jobs.NewJob{
		SourceName:  safeName,
		ContentHash: upload.hash,
		Threshold:   threshold,
		Model:       s.pipeline.Model(),
		Language:    language,
	})
	if err != nil {
		logger.Error("failed to create job", logging.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result, err := s.runJob(services.WithJobID(ctx, job.ID), job, upload, threshold, language)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		SubtitleFile: filepath.Base(result.SubtitlePath),
		JobID:        job.ID,
	})
}

func (s *Server) runJob(ctx context.Context, job *jobs.Job, upload savedUpload, threshold float64, language string) (subtitles.GenerateResult, error) {
	logger := logging.WithContext(ctx, s.logger)
	if err := s.store.MarkRunning(ctx, job.ID); err != nil {
		return subtitles.GenerateResult{}, err
	}

	result, err := s.pipeline.Generate(ctx, subtitles.GenerateRequest{
		SourcePath: upload.path,
		BaseName:   upload.baseName,
		Language:   language,
		Threshold:  threshold,
	})
	if err != nil {
		logging.ErrorWithContext(logger, "subtitle generation failed", "job_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the server log for the failing stage"),
		)
		// The request context may already be cancelled; record the failure regardless.
		if failErr := s.store.Fail(context.WithoutCancel(ctx), job.ID, err.Error()); failErr != nil {
			logger.Warn("failed to record job failure", logging.Error(failErr))
		}
		return subtitles.GenerateResult{}, err
	}

	if err := s.store.Complete(context.WithoutCancel(ctx), job.ID, jobs.Outcome{
		SceneCount:      result.SceneCount,
		CueCount:        result.CueCount,
		ScenesAvailable: result.ScenesAvailable,
		SubtitlePath:    result.SubtitlePath,
		Elapsed:         result.Duration,
	}); err != nil {
		return subtitles.GenerateResult{}, err
	}
	logger.Info("job completed",
		logging.String("subtitle_file", result.SubtitlePath),
		logging.Int("cues", result.CueCount),
		logging.Int("scenes", result.SceneCount),
		logging.Duration("elapsed", result.Duration),
	)
	return result, nil
}

// reuse returns a completed job for identical content and settings whose
// subtitle file still exists.
func (s *Server) reuse(ctx context.Context, upload savedUpload, threshold float64, language string) *jobs.Job {
	if !s.cfg.Server.ReuseResults {
		return nil
	}
	job, err := s.store.FindCompleted(ctx, upload.hash, threshold, s.pipeline.Model(), language)
	if err != nil {
		logging.WithContext(ctx, s.logger).Warn("job reuse lookup failed", logging.Error(err))
		return nil
	}
	if job == nil || job.SubtitlePath == "" {
		return nil
	}
	if _, err := os.Stat(job.SubtitlePath); err != nil {
		return nil
	}
	return job
}

// saveUpload streams the upload into the upload directory while hashing it.
// The stored name carries a unique prefix so concurrent uploads of the same
// file name do not collide; the subtitle keeps the original base name.
func (s *Server) saveUpload(src multipart.File, safeName string) (savedUpload, error) {
	target := filepath.Join(s.cfg.Paths.UploadDir, uuid.NewString()[:8]+"-"+safeName)
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return savedUpload{}, fmt.Errorf("create upload file: %w", err)
	}

	hasher := contenthash.New()
	size, copyErr := io.Copy(io.MultiWriter(dst, hasher), src)
	closeErr := dst.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(target)
		return savedUpload{}, fmt.Errorf("write upload file: %w", errors.Join(copyErr, closeErr))
	}
	return savedUpload{
		path:     target,
		baseName: strings.TrimSuffix(safeName, filepath.Ext(safeName)),
		hash:     contenthash.Hex(hasher),
		size:     size,
	}, nil
}

func (s *Server) formThreshold(r *http.Request) (float64, error) {
	raw := strings.TrimSpace(r.FormValue("threshold"))
	if raw == "" {
		return s.cfg.Scenes.Threshold, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value <= 0 || value > 100 {
		return 0, fmt.Errorf("threshold must be a number in (0, 100], got %q", raw)
	}
	return value, nil
}

func hasValue(form *multipart.Form, key string) bool {
	_, ok := form.Value[key]
	return ok
}
