package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"shipdocs/internal/activities"
	"shipdocs/internal/documents"
	"shipdocs/internal/models"
	"shipdocs/internal/storage"
	"shipdocs/internal/util"
	"shipdocs/internal/workflows"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
)

// ErrGenerationRunning reports a generation workflow already in flight for
// the same PO.
var ErrGenerationRunning = errors.New("generation already running for this purchase order")

type Pipeline interface {
	ProcessUpload(ctx context.Context, in documents.UploadInput) (documents.UploadResult, error)
	Review(ctx context.Context, poID int, refresh bool) (documents.ReviewResult, error)
	Account(ctx context.Context, accountID string) (documents.AccountView, error)
	FileURL(ctx context.Context, docID int) (string, models.Document, error)
	SetupSchemas(ctx context.Context) ([]documents.SetupResult, error)
}

// Generator runs the generation workflow for one PO and waits for it.
type Generator interface {
	Generate(ctx context.Context, in workflows.GenerateInput) (workflows.GenerateOutput, error)
}

type DocumentReader interface {
	Get(ctx context.Context, id int) (models.Document, error)
	List(ctx context.Context, f storage.DocumentFilter) ([]models.Document, error)
}

type SchemaAdmin interface {
	Get(ctx context.Context, templateName string) (models.FormSchemaRecord, error)
	List(ctx context.Context) ([]models.FormSchemaRecord, error)
	Delete(ctx context.Context, templateName string) (bool, error)
	UpdateDescription(ctx context.Context, templateName, description string) error
}

type Catalog interface {
	ListAccounts(ctx context.Context) ([]models.Account, error)
	ListAccountAddresses(ctx context.Context, accountID string) ([]models.Address, error)
	ListSellers(ctx context.Context) ([]models.SellerCompany, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	Stats(ctx context.Context) (models.Stats, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Pipeline    Pipeline
	Generator   Generator
	Documents   DocumentReader
	Schemas     SchemaAdmin
	Catalog     Catalog
	DB          Pinger
	UploadMaxMB int
	Logger      *zap.Logger
}

type Server struct {
	pipeline  Pipeline
	generator Generator
	docs      DocumentReader
	schemas   SchemaAdmin
	catalog   Catalog
	db        Pinger
	maxUpload int64
	log       *zap.Logger
}

func NewServer(d Deps) *Server {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	maxMB := d.UploadMaxMB
	if maxMB <= 0 {
		maxMB = 128
	}
	return &Server{
		pipeline:  d.Pipeline,
		generator: d.Generator,
		docs:      d.Documents,
		schemas:   d.Schemas,
		catalog:   d.Catalog,
		db:        d.DB,
		maxUpload: int64(maxMB) << 20,
		log:       log,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/po/upload", s.handleUpload)
	mux.HandleFunc("/po/", s.handlePOScoped)
	mux.HandleFunc("/documents", s.handleDocuments)
	mux.HandleFunc("/documents/", s.handleDocumentsScoped)
	mux.HandleFunc("/schemas", s.handleSchemas)
	mux.HandleFunc("/schemas/", s.handleSchemasScoped)
	mux.HandleFunc("/accounts", s.handleAccounts)
	mux.HandleFunc("/accounts/", s.handleAccountsScoped)
	mux.HandleFunc("/sellers", s.handleSellers)
	mux.HandleFunc("/products", s.handleProducts)
	mux.HandleFunc("/stats", s.handleStats)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeErr(w, http.StatusServiceUnavailable, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErr(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	fh, ok := uploadedFile(r.MultipartForm)
	if !ok {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no files provided"))
		return
	}
	data, err := readUpload(fh)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	force, _ := strconv.ParseBool(r.FormValue("force_reparse"))
	res, err := s.pipeline.ProcessUpload(r.Context(), documents.UploadInput{
		Filename:     fh.Filename,
		Data:         data,
		AccountID:    strings.TrimSpace(r.FormValue("account_id")),
		ForceReparse: force,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	code := http.StatusCreated
	if res.Reused {
		code = http.StatusOK
	}
	writeJSON(w, code, res)
}

func (s *Server) handlePOScoped(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/po/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	poID, err := strconv.Atoi(parts[0])
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid document id %q", parts[0]))
		return
	}

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		doc, err := s.docs.Get(r.Context(), poID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if doc.DocumentType != models.DocumentTypePO {
			s.fail(w, r, fmt.Errorf("document %d: %w", poID, util.ErrNoPurchaseOrder))
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case len(parts) == 2 && parts[1] == "review":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
		res, err := s.pipeline.Review(r.Context(), poID, refresh)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	case len(parts) == 2 && parts[1] == "generate":
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleGenerate(w, r, poID)
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

type generateRequest struct {
	ShipFromAddressID string          `json:"ship_from_address_id"`
	ShipToAddressID   string          `json:"ship_to_address_id"`
	BillToAddressID   string          `json:"bill_to_address_id"`
	BOLNumber         string          `json:"bol_number"`
	BOLData           json.RawMessage `json:"bol_data"`
	PackingSlipData   json.RawMessage `json:"packing_slip_data"`
	UseSchema         *bool           `json:"use_schema"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, poID int) {
	var req generateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
	}
	useSchema := true
	if req.UseSchema != nil {
		useSchema = *req.UseSchema
	}
	out, err := s.generator.Generate(r.Context(), workflows.GenerateInput{
		POID: poID,
		Addresses: documents.AddressOverrides{
			ShipFromID: strings.TrimSpace(req.ShipFromAddressID),
			ShipToID:   strings.TrimSpace(req.ShipToAddressID),
			BillToID:   strings.TrimSpace(req.BillToAddressID),
		},
		BOLNumber:       strings.TrimSpace(req.BOLNumber),
		BOLData:         nullToEmpty(req.BOLData),
		PackingSlipData: nullToEmpty(req.PackingSlipData),
		UseSchema:       useSchema,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	q := r.URL.Query()
	f := storage.DocumentFilter{
		Type:      models.DocumentType(strings.ToUpper(strings.TrimSpace(q.Get("type")))),
		AccountID: strings.TrimSpace(q.Get("account_id")),
	}
	if f.Type != "" && !f.Type.Valid() {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid document type %q", f.Type))
		return
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		f.Limit = n
	}
	docs, err := s.docs.List(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	for i := range docs {
		docs[i].ParsedData = nil
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleDocumentsScoped(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/documents/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid document id %q", parts[0]))
		return
	}
	switch {
	case len(parts) == 1:
		doc, err := s.docs.Get(r.Context(), id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case len(parts) == 2 && parts[1] == "file":
		u, doc, err := s.pipeline.FileURL(r.Context(), id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if r.URL.Query().Get("redirect") == "true" {
			http.Redirect(w, r, u, http.StatusFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"document_id": doc.DocumentID, "document_name": doc.DocumentName, "url": u})
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

func (s *Server) handleSchemas(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	recs, err := s.schemas.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	for i := range recs {
		recs[i].Schema = nil
	}
	writeJSON(w, http.StatusOK, map[string]any{"schemas": recs})
}

func (s *Server) handleSchemasScoped(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/schemas/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if len(parts) == 1 && parts[0] == "setup" {
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		results, err := s.pipeline.SetupSchemas(r.Context())
		if err != nil {
			s.log.Error("schema setup failed", zap.Error(err))
			writeJSON(w, http.StatusBadGateway, map[string]any{"results": results, "error": toAPIError(http.StatusBadGateway, err)})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
		return
	}
	if len(parts) != 1 {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	name := parts[0]
	switch r.Method {
	case http.MethodGet:
		rec, err := s.schemas.Get(r.Context(), name)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case http.MethodDelete:
		deleted, err := s.schemas.Delete(r.Context(), name)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if !deleted {
			writeErr(w, http.StatusNotFound, fmt.Errorf("schema %s: %w", name, util.ErrNotFound))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": name})
	case http.MethodPatch:
		var req struct {
			Description string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		if err := s.schemas.UpdateDescription(r.Context(), name, strings.TrimSpace(req.Description)); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"template_name": name, "description": strings.TrimSpace(req.Description)})
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	accounts, err := s.catalog.ListAccounts(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (s *Server) handleAccountsScoped(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/accounts/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	accountID := parts[0]
	switch {
	case len(parts) == 1:
		view, err := s.pipeline.Account(r.Context(), accountID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case len(parts) == 2 && parts[1] == "addresses":
		addrs, err := s.catalog.ListAccountAddresses(r.Context(), accountID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"addresses": addrs})
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

func (s *Server) handleSellers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	sellers, err := s.catalog.ListSellers(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"seller_companies": sellers})
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	products, err := s.catalog.ListProducts(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	st, err := s.catalog.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// fail logs server-side failures and writes the coded error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= 500 {
		s.log.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Int("status", code), zap.Error(err))
	} else {
		s.log.Info("request rejected", zap.String("path", r.URL.Path), zap.Int("status", code), zap.Error(err))
	}
	writeErr(w, code, err)
}

// statusFor maps service errors, and the typed failures that come back
// from the generation workflow, to HTTP status codes.
func statusFor(err error) int {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		switch appErr.Type() {
		case activities.ErrTypeNotFound:
			return http.StatusNotFound
		case activities.ErrTypeNoPurchaseOrder, activities.ErrTypeNoExtractableText, activities.ErrTypeMalformedLLMJSON:
			return http.StatusUnprocessableEntity
		case activities.ErrTypeUpstream:
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
	switch {
	case errors.Is(err, ErrGenerationRunning):
		return http.StatusConflict
	case errors.Is(err, util.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, util.ErrNoPurchaseOrder), errors.Is(err, util.ErrNoExtractableText), errors.Is(err, util.ErrMalformedLLMJSON):
		return http.StatusUnprocessableEntity
	case errors.Is(err, util.ErrUpstream), errors.Is(err, util.ErrCircuitOpen):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func pathParts(path, prefix string) []string {
	return strings.Split(strings.Trim(strings.TrimPrefix(path, prefix), "/"), "/")
}

func nullToEmpty(raw json.RawMessage) json.RawMessage {
	if strings.TrimSpace(string(raw)) == "null" {
		return nil
	}
	return raw
}

func uploadedFile(form *multipart.Form) (*multipart.FileHeader, bool) {
	if form == nil {
		return nil, false
	}
	if fhs := form.File["file"]; len(fhs) > 0 {
		return fhs[0], true
	}
	for _, v := range form.File {
		if len(v) > 0 {
			return v[0], true
		}
	}
	return nil, false
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no files provided")
	}
	return data, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "SD-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status == http.StatusBadGateway:
		code = "SD-API-5020"
		msg = "Upstream service unavailable. Retry shortly."
		if errors.Is(err, util.ErrCircuitOpen) || strings.Contains(raw, "circuit open") {
			msg = "Upstream service is failing repeatedly; requests are paused. Retry in a minute."
		}
		return apiError{Code: code, Message: msg}
	case status == http.StatusServiceUnavailable:
		return apiError{
			Code:    "SD-DB-5030",
			Message: "Database connection is unavailable. Check local services and retry.",
		}
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "SD-DB-5001",
				Message: "Database schema is not initialized. Run migrations and retry.",
			}
		case strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "SD-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "SD-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "SD-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "SD-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusMethodNotAllowed:
		code = "SD-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusConflict:
		code = "SD-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusRequestEntityTooLarge:
		code = "SD-API-4013"
		msg = "Uploaded file is too large."
	case status == http.StatusUnprocessableEntity:
		code = "SD-API-4022"
		msg = "The document could not be processed."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		switch {
		case errors.Is(err, ErrGenerationRunning):
			msg = "Documents are already being generated for this purchase order."
		case errors.Is(err, util.ErrNoPurchaseOrder) || strings.Contains(raw, "not a purchase order"):
			msg = "Document is not a purchase order."
		case errors.Is(err, util.ErrNoExtractableText) || strings.Contains(raw, "no extractable text"):
			msg = "No extractable text was found in the purchase order."
		case errors.Is(err, util.ErrMalformedLLMJSON) || strings.Contains(raw, "malformed json"):
			msg = "The language model returned malformed data. Retry generation."
		case strings.Contains(raw, "no files provided"):
			msg = "No file was provided."
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		case strings.Contains(raw, "invalid document id"):
			msg = "Document id must be a number."
		case strings.Contains(raw, "invalid document type"):
			msg = "Document type must be PO, BOL or PACKING_SLIP."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
