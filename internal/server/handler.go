package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	resumerankErrors "resumerank/internal/errors"
	"resumerank/internal/extract"
	"resumerank/internal/types"
	"resumerank/internal/utils"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

// rankHandler ranks resumes supplied inline as JSON text.
func (s *Server) rankHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	ctx, span := s.Observability.Tracer("resumerank.api").Start(r.Context(), "api.rank")
	defer span.End()

	format, err := s.responseFormat(r)
	if err != nil {
		s.rejectRequest(span, w, err)
		return
	}

	var req types.RankRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.rejectRequest(span, w, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.rejectRequest(span, w, requestValidationError(err))
		return
	}

	docs := make([]extract.RawDocument, len(req.Resumes))
	for i, resume := range req.Resumes {
		docs[i] = extract.RawDocument{Name: resume.Name, Format: "text", Content: resume.Content}
	}

	s.rank(ctx, w, req.JobDescription, docs, format)
}

// rankUploadHandler ranks resume files sent as multipart/form-data. The job
// description is the jobDescription field, either as text or as a file.
func (s *Server) rankUploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	ctx, span := s.Observability.Tracer("resumerank.api").Start(r.Context(), "api.rank_upload")
	defer span.End()

	format, err := s.responseFormat(r)
	if err != nil {
		s.rejectRequest(span, w, err)
		return
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.rejectRequest(span, w, multipartError(err))
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			s.Logger.Warn("Failed to remove multipart temporary files", "error", err)
		}
	}()

	job := r.FormValue("jobDescription")
	if files := r.MultipartForm.File["jobDescription"]; job == "" && len(files) > 0 {
		doc, err := s.extractUpload(files[0])
		if err != nil {
			s.rejectRequest(span, w, err)
			return
		}
		job = doc.Content
	}

	uploads := r.MultipartForm.File["resumes"]
	docs := make([]extract.RawDocument, 0, len(uploads))
	for _, fh := range uploads {
		doc, err := s.extractUpload(fh)
		if err != nil {
			s.rejectRequest(span, w, err)
			return
		}
		docs = append(docs, doc)
	}

	s.rank(ctx, w, job, docs, format)
}

// rank runs the ranking and writes the report in the requested format.
func (s *Server) rank(ctx context.Context, w http.ResponseWriter, job string, docs []extract.RawDocument, format string) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.Int("ranking.resumes", len(docs)),
		attribute.Int("ranking.job_length", len(job)),
		attribute.String("ranking.format", format),
	)

	report, err := s.Ranker.Rank(ctx, job, docs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ranking failed")
		if resumerankErrors.IsType(err, resumerankErrors.ErrorTypeValidation) {
			span.SetAttributes(attribute.String("error.type", "validation"))
		} else {
			s.Logger.LogError(err, "Ranking request failed", "resumes", len(docs))
		}
		writeAppError(w, err)
		return
	}

	span.SetAttributes(
		attribute.String("ranking.report_id", report.ID),
		attribute.Int("ranking.results", len(report.Results)),
		attribute.Int("ranking.failures", len(report.Failures)),
	)

	if err := writeFormatted(w, report, format); err != nil {
		span.RecordError(err)
		s.Logger.LogError(err, "Failed to format ranking report", "format", format)
		writeAppError(w, resumerankErrors.NewInternalError(resumerankErrors.ErrCodeInvalidFormat,
			"failed to format report", err))
	}
}

// extractUpload reads one uploaded file and extracts its text.
func (s *Server) extractUpload(fh *multipart.FileHeader) (extract.RawDocument, error) {
	name := filepath.Base(fh.Filename)
	if s.MaxFileSize > 0 && fh.Size > s.MaxFileSize {
		return extract.RawDocument{}, resumerankErrors.NewValidationError(resumerankErrors.ErrCodeFileTooLarge,
			fmt.Sprintf("File %s is %s, larger than the %s limit", name,
				utils.FormatFileSize(fh.Size), utils.FormatFileSize(s.MaxFileSize)), nil)
	}

	f, err := fh.Open()
	if err != nil {
		return extract.RawDocument{}, resumerankErrors.NewIOError(resumerankErrors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read uploaded file: %s", name), err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return extract.RawDocument{}, resumerankErrors.NewIOError(resumerankErrors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read uploaded file: %s", name), err)
	}

	return s.Extractor.ExtractBytes(name, data), nil
}

// rejectRequest records a client error on the span and writes it.
func (s *Server) rejectRequest(span trace.Span, w http.ResponseWriter, err error) {
	span.RecordError(err)
	span.SetAttributes(attribute.String("error.type", "validation"))
	s.Logger.Debug("Rejected ranking request", "error", err.Error())
	writeAppError(w, err)
}

// requestValidationError turns struct validation failures into the same
// codes the ranker uses for empty input.
func requestValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return resumerankErrors.NewValidationError(resumerankErrors.ErrCodeInvalidRequest,
			"invalid request", err)
	}

	fe := fieldErrs[0]
	switch fe.StructNamespace() {
	case "RankRequest.JobDescription":
		return resumerankErrors.NewValidationError(resumerankErrors.ErrCodeEmptyJobDescription,
			"job description is empty", err)
	case "RankRequest.Resumes":
		return resumerankErrors.NewValidationError(resumerankErrors.ErrCodeEmptyResumeBatch,
			"no resumes were provided", err)
	}
	return resumerankErrors.NewValidationError(resumerankErrors.ErrCodeInvalidRequest,
		fmt.Sprintf("field %s failed the %q rule", fe.Namespace(), fe.Tag()), err)
}

func multipartError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return resumerankErrors.NewValidationError(resumerankErrors.ErrCodeRequestTooLarge,
			fmt.Sprintf("request body too large (limit is %d bytes)", maxBytesErr.Limit), err)
	}
	return resumerankErrors.NewValidationError(resumerankErrors.ErrCodeInvalidRequest,
		"request must be multipart/form-data with a jobDescription field and resumes files", err)
}
