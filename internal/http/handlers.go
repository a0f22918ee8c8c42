package http

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	applog "saldo/internal/log"
	"saldo/internal/tabular"
)

// importFormOverhead leaves room for multipart framing around the file.
const importFormOverhead = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":         "ok",
		"requests":       s.tracer.TotalRequests(),
		"active_clients": s.limiter.ActiveClients(),
	}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "error", err)
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	l, err := s.transactions.ListWithBalance(r.Context())
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	NewJSONResponse().Body(toLedgerResponse(l)).Write(w)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		ErrorResponse(http.StatusBadRequest, "malformed request body").Write(w)
		return
	}

	in, err := parseNewTransaction(p)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	tx, err := s.transactions.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/transactions/"+tx.ID).
		Body(toTransactionResponse(tx)).
		Write(w)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		ErrorResponse(http.StatusBadRequest, "missing transaction id").Write(w)
		return
	}

	if err := s.transactions.Delete(r.Context(), id); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.uploads == nil {
		ErrorResponse(http.StatusServiceUnavailable, "imports are disabled").Write(w)
		return
	}

	if limit := s.uploads.MaxBytes(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+importFormOverhead)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, applog.OpImport, tabular.ErrUploadTooLarge)
			return
		}
		ErrorResponse(http.StatusBadRequest, `missing multipart field "file"`).Write(w)
		return
	}
	defer file.Close()

	if !isCSVUpload(header.Filename, header.Header.Get("Content-Type")) {
		ErrorResponse(http.StatusUnsupportedMediaType, "expected a CSV file").Write(w)
		return
	}

	src, err := s.uploads.Save(header.Filename, file)
	if err != nil {
		writeError(w, r, applog.OpImport, err)
		return
	}

	txs, err := s.importer.Import(r.Context(), src)
	if err != nil {
		writeError(w, r, applog.OpImport, err)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Body(map[string]any{
			"imported":     len(txs),
			"transactions": toTransactionsResponse(txs),
		}).
		Write(w)
}

func isCSVUpload(filename, contentType string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/csv") || strings.HasPrefix(ct, "application/vnd.ms-excel")
}
