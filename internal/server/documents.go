package server

import (
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"github.com/joseph-ayodele/docforge/internal/common"
	"github.com/joseph-ayodele/docforge/internal/entity"
	"github.com/joseph-ayodele/docforge/internal/export"
	"github.com/joseph-ayodele/docforge/internal/ingest"
	"github.com/joseph-ayodele/docforge/internal/pipeline"
)

const multipartMemory = 32 << 20

type listResponse struct {
	Count int              `json:"count"`
	Items []entity.Summary `json:"items"`
}

type uploadResponse struct {
	Message string                 `json:"message"`
	Results []pipeline.FileOutcome `json:"results"`
}

type deleteResponse struct {
	Success bool  `json:"success"`
	ID      int64 `json:"id"`
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.svc.List(r.Context())
	if err != nil {
		common.LoggerFromContext(r.Context(), s.logger).Error("list documents failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}
	items := make([]entity.Summary, 0, len(docs))
	for _, d := range docs {
		items = append(items, d.Summary())
	}
	writeJSON(w, http.StatusOK, listResponse{Count: len(items), Items: items})
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookup(w, r, "Document not found")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Document not found")
		return
	}
	if _, err := s.svc.Delete(r.Context(), id); err != nil {
		s.writeLookupError(w, r, err, "Document not found")
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Success: true, ID: id})
}

func (s *Server) uploadDocuments(w http.ResponseWriter, r *http.Request) {
	files, ok := s.parseFiles(w, r, "files")
	if !ok {
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	if len(files) == 0 {
		writeMessage(w, http.StatusBadRequest, "No files uploaded")
		return
	}
	if len(files) > s.cfg.MaxFiles {
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("Too many files (max %d)", s.cfg.MaxFiles))
		return
	}

	logger := common.LoggerFromContext(r.Context(), s.logger)
	results := make([]pipeline.FileOutcome, len(files))
	uploads := make([]pipeline.Upload, 0, len(files))
	slots := make([]int, 0, len(files))
	for i, fh := range files {
		u, err := s.save(fh)
		if err != nil {
			logger.Error("save upload failed", "file", fh.Filename, "error", err)
			results[i] = pipeline.FileOutcome{
				Message:          "Error processing file " + fh.Filename + ": " + err.Error(),
				OriginalFileName: fh.Filename,
			}
			continue
		}
		uploads = append(uploads, u)
		slots = append(slots, i)
	}

	for j, out := range s.svc.Ingest(r.Context(), uploads) {
		results[slots[j]] = out
	}
	logger.Info("upload processed", "files", len(files))
	writeJSON(w, http.StatusCreated, uploadResponse{Message: "Files processed", Results: results})
}

// uploadAndConvert ingests a single file and includes per-page OCR output for PDFs.
func (s *Server) uploadAndConvert(w http.ResponseWriter, r *http.Request) {
	files, ok := s.parseFiles(w, r, "file")
	if !ok {
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()
	if len(files) == 0 {
		writeMessage(w, http.StatusBadRequest, "No file uploaded")
		return
	}

	u, err := s.save(files[0])
	if err != nil {
		common.LoggerFromContext(r.Context(), s.logger).Error("save upload failed", "file", files[0].Filename, "error", err)
		writeJSON(w, http.StatusInternalServerError, pipeline.FileOutcome{
			Message:          "Error processing file " + files[0].Filename + ": " + err.Error(),
			OriginalFileName: files[0].Filename,
		})
		return
	}
	out := s.svc.IngestEnhanced(r.Context(), u)
	if !out.Success {
		writeJSON(w, http.StatusInternalServerError, out)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) downloadPDF(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookup(w, r, "PDF not found")
	if !ok {
		return
	}
	f, err := os.Open(doc.PDFPath)
	if err != nil {
		writeMessage(w, http.StatusNotFound, "PDF not found")
		return
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil || st.IsDir() {
		writeMessage(w, http.StatusNotFound, "PDF not found")
		return
	}

	disposition := "inline"
	if v := r.URL.Query().Get("download"); v == "1" || strings.EqualFold(v, "true") {
		disposition = "attachment"
	}
	name := filepath.Base(doc.PDFPath)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": name}))
	http.ServeContent(w, r, name, st.ModTime(), f)
}

func (s *Server) downloadJSON(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookup(w, r, "Document not found")
	if !ok {
		return
	}
	b, err := export.MarshalProjection(export.Project(doc))
	if err != nil {
		common.LoggerFromContext(r.Context(), s.logger).Error("export json failed", "id", doc.ID, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Failed to export document")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (s *Server) downloadXLSX(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookup(w, r, "Document not found")
	if !ok {
		return
	}
	b, err := export.TableXLSX(doc)
	if err != nil {
		if errors.Is(err, common.ErrInvalidInput) {
			writeMessage(w, http.StatusBadRequest, "Document is not a table")
			return
		}
		common.LoggerFromContext(r.Context(), s.logger).Error("export xlsx failed", "id", doc.ID, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Failed to export document")
		return
	}
	name := strings.TrimSuffix(doc.StoredFileName, filepath.Ext(doc.StoredFileName)) + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// parseFiles reads the multipart form and returns the files under field.
// A request that is not multipart counts as having no files.
func (s *Server) parseFiles(w http.ResponseWriter, r *http.Request, field string) ([]*multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeMessage(w, http.StatusRequestEntityTooLarge, "Upload too large")
		case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
			writeMessage(w, http.StatusBadRequest, noFilesMessage(field))
		default:
			common.LoggerFromContext(r.Context(), s.logger).Warn("parse multipart failed", "error", err)
			writeMessage(w, http.StatusBadRequest, "Invalid multipart request")
		}
		return nil, false
	}
	return r.MultipartForm.File[field], true
}

func (s *Server) save(fh *multipart.FileHeader) (pipeline.Upload, error) {
	if err := common.ValidateUpload(common.UploadFile{OriginalName: ingest.SafeName(fh.Filename), Size: fh.Size}, s.cfg.MaxBytes); err != nil {
		return pipeline.Upload{}, err
	}
	src, err := fh.Open()
	if err != nil {
		return pipeline.Upload{}, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()
	return s.uploads.Save(fh.Filename, fh.Header.Get("Content-Type"), src)
}

func noFilesMessage(field string) string {
	if field == "file" {
		return "No file uploaded"
	}
	return "No files uploaded"
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request, notFoundMsg string) (*entity.Document, bool) {
	id, ok := documentID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, notFoundMsg)
		return nil, false
	}
	doc, err := s.svc.Get(r.Context(), id)
	if err != nil {
		s.writeLookupError(w, r, err, notFoundMsg)
		return nil, false
	}
	return doc, true
}

func (s *Server) writeLookupError(w http.ResponseWriter, r *http.Request, err error, notFoundMsg string) {
	status := common.HTTPStatus(err)
	if status == http.StatusNotFound {
		writeMessage(w, status, notFoundMsg)
		return
	}
	common.LoggerFromContext(r.Context(), s.logger).Error("document lookup failed", "error", err)
	writeMessage(w, status, "Internal server error")
}

func documentID(r *http.Request) (int64, bool) {
	id, err := common.ParseDocumentID(mux.Vars(r)["id"])
	return id, err == nil
}
