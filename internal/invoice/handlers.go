package invoice

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/zombor/invoice-review/internal/extraction"
	"github.com/zombor/invoice-review/internal/scanning"
	"github.com/zombor/invoice-review/internal/spreadsheet"
)

// maxFormSize bounds multipart uploads; phone photos are large
const maxFormSize = int64(50 << 20)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// writeJSON encodes v with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeReviewError maps service errors onto status codes
func writeReviewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "Document not found")
	case errors.Is(err, ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("Error reviewing document", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func formFiles(r *http.Request) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	files := r.MultipartForm.File["files"]
	return append(files, r.MultipartForm.File["file"]...)
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// handleListDocuments returns a list of all documents
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.service.ListDocuments()
	if err != nil {
		slog.Error("Error listing documents", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// handleUploadDocuments stores each uploaded file and queues it for extraction
func (s *Server) handleUploadDocuments(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload is too large. Maximum size is 50MB.")
			return
		}
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	headers := formFiles(r)
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "No files were selected. Please choose at least one file to upload.")
		return
	}

	uploads := make([]Upload, 0, len(headers))
	for _, header := range headers {
		data, err := readFormFile(header)
		if err != nil {
			slog.Error("Error reading file data", "error", err, "filename", header.Filename)
			writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
			return
		}

		contentType := scanning.ContentTypeFor(header.Filename, header.Header.Get("Content-Type"))
		up, err := s.service.StoreUpload(header.Filename, data, contentType)
		if err != nil {
			slog.Error("Error storing upload", "filename", header.Filename, "error", err)
			writeError(w, http.StatusInternalServerError, "Error storing file. Please try again.")
			return
		}
		uploads = append(uploads, *up)
	}

	if err := s.queue.Enqueue(uploads...); err != nil {
		slog.Error("Error queueing uploads", "count", len(uploads), "error", err)
		writeError(w, http.StatusServiceUnavailable, "Processing queue is not accepting files")
		return
	}

	slog.Info("Uploads queued", "count", len(uploads))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"uploads": uploads,
		"queue":   s.queue.Status(),
	})
}

// handleGetDocument returns a single document
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.GetDocument(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "Document not found")
			return
		}
		slog.Error("Error getting document", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleGetDocumentFile returns the uploaded file for a document
func (s *Server) handleGetDocumentFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetDocumentFile(r.PathValue("id"))
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteDocument deletes a document
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteDocument(r.PathValue("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "Document not found")
			return
		}
		slog.Error("Error deleting document", "error", err)
		writeError(w, http.StatusInternalServerError, "Error deleting document")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleAcceptDocument confirms the extraction without changes
func (s *Server) handleAcceptDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.AcceptDocument(r.PathValue("id"))
	if err != nil {
		writeReviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleEditDocument saves reviewer-corrected fields
func (s *Server) handleEditDocument(w http.ResponseWriter, r *http.Request) {
	var fields extraction.Fields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	doc, err := s.service.EditDocument(r.PathValue("id"), fields)
	if err != nil {
		writeReviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleRejectDocument flags the extraction as unusable
func (s *Server) handleRejectDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.RejectDocument(r.PathValue("id"))
	if err != nil {
		writeReviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleStats returns dashboard statistics and queue status
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats()
	if err != nil {
		slog.Error("Error computing stats", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Stats
		Queue QueueStatus `json:"queue"`
	}{stats, s.queue.Status()})
}

// handleListFailures returns uploads that could not be extracted
func (s *Server) handleListFailures(w http.ResponseWriter, r *http.Request) {
	failures, err := s.service.ListFailures()
	if err != nil {
		slog.Error("Error listing failures", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, failures)
}

// handleQueueStatus returns the ingest queue state
func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.queue.Status())
}

// handleExport returns every document as an XLSX workbook
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.service.ExportWorkbook(&buf); err != nil {
		slog.Error("Error exporting documents", "error", err)
		writeError(w, http.StatusInternalServerError, "Error exporting documents")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="invoices.xlsx"`)
	w.Write(buf.Bytes())
}

// handleCombineSpreadsheets merges the uploaded workbooks into one
func (s *Server) handleCombineSpreadsheets(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	headers := formFiles(r)
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "No files were selected")
		return
	}

	inputs := make([]spreadsheet.Input, 0, len(headers))
	for _, header := range headers {
		data, err := readFormFile(header)
		if err != nil {
			slog.Error("Error reading file data", "error", err, "filename", header.Filename)
			writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
			return
		}
		inputs = append(inputs, spreadsheet.Input{Name: header.Filename, Data: bytes.NewReader(data)})
	}

	var buf bytes.Buffer
	report, err := spreadsheet.Combine(&buf, inputs)
	if err != nil {
		if errors.Is(err, spreadsheet.ErrNoData) {
			writeError(w, http.StatusBadRequest, "None of the files could be read as a spreadsheet")
			return
		}
		slog.Error("Error combining spreadsheets", "error", err)
		writeError(w, http.StatusInternalServerError, "Error combining spreadsheets")
		return
	}

	name := spreadsheet.OutputFilename(r.FormValue("outputFilename"), s.service.idGenerator.Generate())
	slog.Info("Spreadsheets combined",
		"files", report.Files,
		"skipped", len(report.Skipped),
		"rows", report.Rows,
		"output", name,
	)

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(buf.Bytes())
}
