// Package web exposes the cut and cleanup operations over HTTP.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strconv"

	"stream-cutter/domain/media"
	"stream-cutter/infrastructure/logging"

	"go.uber.org/zap"
)

const multipartMemory = 32 << 20

// CutService runs a single cut
type CutService interface {
	Cut(ctx context.Context, req *media.CutRequest) (*media.CutResult, error)
}

// Sweeper reclaims stale temp files on demand
type Sweeper interface {
	Sweep(ctx context.Context) (*media.SweepResult, error)
}

// OutputRemover deletes a delivered output file
type OutputRemover interface {
	Delete(path string) error
}

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// CleanupResponse is the JSON body of a successful cleanup
type CleanupResponse struct {
	Message    string `json:"message"`
	Deleted    int    `json:"deleted"`
	FreedBytes int64  `json:"freed_bytes"`
}

// Server is the HTTP front end of the cutter
type Server struct {
	cuts         CutService
	sweeper      Sweeper
	outputs      OutputRemover
	maxBodyBytes int64
}

// NewServer creates a new server; maxBodyBytes <= 0 disables the body limit
func NewServer(cuts CutService, sweeper Sweeper, outputs OutputRemover, maxBodyBytes int64) *Server {
	return &Server{
		cuts:         cuts,
		sweeper:      sweeper,
		outputs:      outputs,
		maxBodyBytes: maxBodyBytes,
	}
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/cut", s.handleCut)
	mux.HandleFunc("POST /api/cleanup", s.handleCleanup)

	return logging.Middleware(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCut(w http.ResponseWriter, r *http.Request) {
	logger := logging.WithContext(r.Context())

	if s.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.sendError(w, http.StatusRequestEntityTooLarge, media.ErrTooLarge.UserMessage())
			return
		}
		logger.Debug("invalid multipart form", zap.Error(err))
		s.sendError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "please select a file to upload")
		return
	}
	defer file.Close()
	if header.Size == 0 {
		s.sendError(w, http.StatusBadRequest, "please select a file to upload")
		return
	}

	start, errStart := strconv.ParseFloat(r.FormValue("startTime"), 64)
	end, errEnd := strconv.ParseFloat(r.FormValue("endTime"), 64)
	if errStart != nil || errEnd != nil {
		s.sendError(w, http.StatusBadRequest, media.ErrInvalidRange.UserMessage())
		return
	}

	result, err := s.cuts.Cut(r.Context(), &media.CutRequest{
		Source:              file,
		OriginalFileName:    header.Filename,
		DeclaredContentType: header.Header.Get("Content-Type"),
		SizeBytes:           header.Size,
		StartSeconds:        start,
		EndSeconds:          end,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if cutErr, ok := media.AsCutError(err); ok && cutErr.IsValidation() {
			status = http.StatusBadRequest
		}
		message := "media processing failed"
		if result != nil && result.Message != "" {
			message = result.Message
		}
		s.sendError(w, status, message)
		return
	}

	s.sendOutput(w, r, result)
}

// sendOutput streams a finished cut and deletes it afterwards
func (s *Server) sendOutput(w http.ResponseWriter, r *http.Request, result *media.CutResult) {
	logger := logging.WithContext(r.Context())
	defer func() {
		if err := s.outputs.Delete(result.OutputPath); err != nil {
			logger.Warn("failed to delete delivered output", zap.String("path", result.OutputPath), zap.Error(err))
		}
	}()

	f, err := os.Open(result.OutputPath)
	if err != nil {
		logger.Error("failed to open output", zap.String("path", result.OutputPath), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, media.ErrEmptyOutput.UserMessage())
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", media.ContentTypeFor(result.OutputFileName))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": result.OutputFileName}))
	if result.OutputSize > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(result.OutputSize, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, f); err != nil {
		logger.Warn("failed to stream output", zap.Error(err))
	}
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	result, err := s.sweeper.Sweep(r.Context())
	if err != nil {
		logging.WithContext(r.Context()).Error("on-demand cleanup failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "cleanup failed")
		return
	}

	s.writeJSON(w, http.StatusOK, CleanupResponse{
		Message:    fmt.Sprintf("cleanup completed: %d file(s) deleted", len(result.DeletedFiles)),
		Deleted:    len(result.DeletedFiles),
		FreedBytes: result.FreedBytes,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
