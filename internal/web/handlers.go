package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/smoky1337/PfotenRegister/internal/core"
	"github.com/smoky1337/PfotenRegister/internal/logging"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// multipartOverhead is allowed on top of the file size limit.
	multipartOverhead = 1 << 20
	// maxMemory is the part of a multipart form buffered in memory.
	maxMemory = 8 << 20

	maxExportRequestSize = 64 << 10
	templateFileName     = "pfotenregister_vorlage.xlsx"
)

// UploadResponse names a stored upload.
type UploadResponse struct {
	File         string `json:"file"`
	OriginalName string `json:"original_name"`
}

// handleUpload stores a multipart workbook in the upload sandbox.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, fmt.Errorf("%w: limit is %d bytes", core.ErrFileTooLarge, maxSize),
				http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, r, fmt.Errorf("%w: %v", errNoFile, err), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	name, err := s.service.SaveUpload(header.Filename, file)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("upload stored",
		"file", name, "original_name", header.Filename, "size", header.Size)
	writeJSON(w, r, http.StatusCreated, UploadResponse{File: name, OriginalName: header.Filename})
}

// handlePreview validates an upload without writing.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	preview, err := s.service.Preview(r.Context(), r.URL.Query().Get("file"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, preview)
}

// handleConfirm imports an upload. Hard validation failures return 422 with
// the offending numbers.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.Confirm(r.Context(), r.URL.Query().Get("file"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleTemplate serves an empty workbook with the header rows of both
// sheets.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	wb, err := core.Template()
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	defer wb.Close()
	writeWorkbook(w, r, wb, templateFileName)
}

// handleExport builds the workbook described by the JSON body. An empty body
// exports every column of both sheets with headers.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	req, err := decodeExportRequest(http.MaxBytesReader(w, r.Body, maxExportRequestSize))
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	wb, err := s.service.Export(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	defer wb.Close()
	writeWorkbook(w, r, wb, s.service.ExportFileName())
}

func decodeExportRequest(body io.Reader) (core.ExportRequest, error) {
	var req core.ExportRequest
	err := json.NewDecoder(body).Decode(&req)
	if errors.Is(err, io.EOF) {
		return fullExport(), nil
	}
	if err != nil {
		return core.ExportRequest{}, fmt.Errorf("%w: %v", core.ErrBadExportRequest, err)
	}
	return req, nil
}

func fullExport() core.ExportRequest {
	req := core.ExportRequest{IncludeHeader: true}
	for _, schema := range core.Schemas() {
		req.Tables = append(req.Tables, core.TableSelection{Table: schema.Name, Columns: schema.Columns()})
	}
	return req
}

func writeWorkbook(w http.ResponseWriter, r *http.Request, wb *core.ExportWorkbook, name string) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := wb.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Warn("workbook write failed", "file", name, "error", err)
	}
}

// GuestList is the listing response.
type GuestList struct {
	Guests []core.GuestSummary `json:"guests"`
	Count  int                 `json:"count"`
}

func (s *Server) handleListGuests(w http.ResponseWriter, r *http.Request) {
	guests, err := s.service.Guests(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if guests == nil {
		guests = []core.GuestSummary{}
	}
	writeJSON(w, r, http.StatusOK, GuestList{Guests: guests, Count: len(guests)})
}

// handleNextNumber allocates a guest number; each call consumes one.
func (s *Server) handleNextNumber(w http.ResponseWriter, r *http.Request) {
	number, err := s.service.NextGuestNumber(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"number": number})
}

// HealthResponse reports liveness and import slot usage.
type HealthResponse struct {
	Status  string                   `json:"status"`
	Imports core.ImportLimiterStatus `json:"imports"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, HealthResponse{Status: "ok", Imports: s.service.ImportStatus()})
}
