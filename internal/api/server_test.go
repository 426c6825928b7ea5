package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"shipdocs/internal/activities"
	"shipdocs/internal/documents"
	"shipdocs/internal/models"
	"shipdocs/internal/storage"
	"shipdocs/internal/util"
	"shipdocs/internal/workflows"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
)

type fakePipeline struct {
	upload    documents.UploadInput
	reused    bool
	reviewErr error
	refreshed bool
}

func (f *fakePipeline) ProcessUpload(ctx context.Context, in documents.UploadInput) (documents.UploadResult, error) {
	f.upload = in
	return documents.UploadResult{Document: models.Document{DocumentID: 1, DocumentName: in.Filename, DocumentType: models.DocumentTypePO}, Reused: f.reused}, nil
}

func (f *fakePipeline) Review(ctx context.Context, poID int, refresh bool) (documents.ReviewResult, error) {
	f.refreshed = refresh
	if f.reviewErr != nil {
		return documents.ReviewResult{}, f.reviewErr
	}
	return documents.ReviewResult{PO: models.Document{DocumentID: poID}, NextBOLNumber: "2024030701"}, nil
}

func (f *fakePipeline) Account(ctx context.Context, accountID string) (documents.AccountView, error) {
	if accountID != "acct-1" {
		return documents.AccountView{}, fmt.Errorf("get account: %w", util.ErrNotFound)
	}
	return documents.AccountView{Account: models.Account{AccountID: accountID}, TotalPOs: 2}, nil
}

func (f *fakePipeline) FileURL(ctx context.Context, docID int) (string, models.Document, error) {
	return "https://files.example/doc.pdf", models.Document{DocumentID: docID, DocumentName: "doc.pdf"}, nil
}

func (f *fakePipeline) SetupSchemas(ctx context.Context) ([]documents.SetupResult, error) {
	return []documents.SetupResult{{TemplateName: "BOL_Template.pdf", NumFields: 12}}, nil
}

type fakeGenerator struct {
	in  workflows.GenerateInput
	err error
}

func (f *fakeGenerator) Generate(ctx context.Context, in workflows.GenerateInput) (workflows.GenerateOutput, error) {
	f.in = in
	if f.err != nil {
		return workflows.GenerateOutput{}, f.err
	}
	return workflows.GenerateOutput{PODocumentID: in.POID}, nil
}

type fakeDocs map[int]models.Document

func (f fakeDocs) Get(ctx context.Context, id int) (models.Document, error) {
	d, ok := f[id]
	if !ok {
		return models.Document{}, fmt.Errorf("get document: %w", util.ErrNotFound)
	}
	return d, nil
}

func (f fakeDocs) List(ctx context.Context, flt storage.DocumentFilter) ([]models.Document, error) {
	var out []models.Document
	for _, d := range f {
		if flt.Type == "" || d.DocumentType == flt.Type {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeSchemas struct {
	description string
}

func (f *fakeSchemas) Get(ctx context.Context, name string) (models.FormSchemaRecord, error) {
	if name != "BOL_Template.pdf" {
		return models.FormSchemaRecord{}, util.ErrNotFound
	}
	return models.FormSchemaRecord{TemplateName: name, Schema: json.RawMessage(`[]`)}, nil
}

func (f *fakeSchemas) List(ctx context.Context) ([]models.FormSchemaRecord, error) {
	return []models.FormSchemaRecord{{TemplateName: "BOL_Template.pdf", NumFields: 3, Schema: json.RawMessage(`[{}]`)}}, nil
}

func (f *fakeSchemas) Delete(ctx context.Context, name string) (bool, error) {
	return name == "BOL_Template.pdf", nil
}

func (f *fakeSchemas) UpdateDescription(ctx context.Context, name, description string) error {
	f.description = description
	return nil
}

type fakeCatalog struct{}

func (fakeCatalog) ListAccounts(ctx context.Context) ([]models.Account, error) {
	return []models.Account{{AccountID: "acct-1"}}, nil
}

func (fakeCatalog) ListAccountAddresses(ctx context.Context, accountID string) ([]models.Address, error) {
	return []models.Address{{AddressID: "a1", AccountID: accountID}}, nil
}

func (fakeCatalog) ListSellers(ctx context.Context) ([]models.SellerCompany, error) {
	return []models.SellerCompany{{CompanyName: "Hanson Chemicals"}}, nil
}

func (fakeCatalog) ListProducts(ctx context.Context) ([]models.Product, error) {
	return nil, errors.New(`relation "products" does not exist`)
}

func (fakeCatalog) Stats(ctx context.Context) (models.Stats, error) {
	return models.Stats{Accounts: 1, PurchaseOrders: 4}, nil
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	pipeline  *fakePipeline
	generator *fakeGenerator
	schemas   *fakeSchemas
	handler   http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{pipeline: &fakePipeline{}, generator: &fakeGenerator{}, schemas: &fakeSchemas{}}
	ts.handler = NewServer(Deps{
		Pipeline:  ts.pipeline,
		Generator: ts.generator,
		Documents: fakeDocs{
			1: {DocumentID: 1, DocumentType: models.DocumentTypePO, DocumentName: "po.pdf", ParsedData: json.RawMessage(`{"chunks":[]}`)},
			2: {DocumentID: 2, DocumentType: models.DocumentTypeBOL, DocumentName: "BOL_po.pdf"},
		},
		Schemas: ts.schemas,
		Catalog: fakeCatalog{},
	}).Routes()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body []byte, contentType string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func errorCode(t *testing.T, body map[string]any) (string, string) {
	t.Helper()
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "missing error object in %v", body)
	return e["code"].(string), e["message"].(string)
}

func multipartBody(t *testing.T, fields map[string]string, filename string, data []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	rec, body := ts.do(t, http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["ok"])

	down := NewServer(Deps{DB: pingerFunc(func(context.Context) error { return errors.New("dial tcp: connection refused") })}).Routes()
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "SD-DB-5030")
}

func TestUploadPurchaseOrder(t *testing.T) {
	ts := newTestServer(t)
	body, ct := multipartBody(t, map[string]string{"account_id": "acct-1", "force_reparse": "true"}, "PO 1.pdf", []byte("%PDF-1.4"))

	rec, out := ts.do(t, http.MethodPost, "/po/upload", body, ct)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "PO 1.pdf", ts.pipeline.upload.Filename)
	require.Equal(t, "acct-1", ts.pipeline.upload.AccountID)
	require.True(t, ts.pipeline.upload.ForceReparse)
	require.Equal(t, []byte("%PDF-1.4"), ts.pipeline.upload.Data)
	require.Equal(t, false, out["reused"])

	ts.pipeline.reused = true
	body, ct = multipartBody(t, nil, "PO 1.pdf", []byte("%PDF-1.4"))
	rec, _ = ts.do(t, http.MethodPost, "/po/upload", body, ct)
	require.Equal(t, http.StatusOK, rec.Code)

	body, ct = multipartBody(t, map[string]string{"account_id": "acct-1"}, "", nil)
	rec, out = ts.do(t, http.MethodPost, "/po/upload", body, ct)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	code, msg := errorCode(t, out)
	require.Equal(t, "SD-API-4001", code)
	require.Equal(t, "No file was provided.", msg)

	rec, out = ts.do(t, http.MethodGet, "/po/upload", nil, "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	code, _ = errorCode(t, out)
	require.Equal(t, "SD-API-4005", code)
}

func TestGetPurchaseOrder(t *testing.T) {
	ts := newTestServer(t)
	rec, out := ts.do(t, http.MethodGet, "/po/1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "po.pdf", out["document_name"])

	rec, out = ts.do(t, http.MethodGet, "/po/2", nil, "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	code, msg := errorCode(t, out)
	require.Equal(t, "SD-API-4022", code)
	require.Equal(t, "Document is not a purchase order.", msg)

	rec, _ = ts.do(t, http.MethodGet, "/po/99", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, out = ts.do(t, http.MethodGet, "/po/abc", nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	_, msg = errorCode(t, out)
	require.Equal(t, "Document id must be a number.", msg)
}

func TestReviewEndpoint(t *testing.T) {
	ts := newTestServer(t)
	rec, out := ts.do(t, http.MethodGet, "/po/1/review?refresh=true", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, ts.pipeline.refreshed)
	require.Equal(t, "2024030701", out["next_bol_number"])

	ts.pipeline.reviewErr = fmt.Errorf("%w: openai: unexpected end of JSON input", util.ErrMalformedLLMJSON)
	rec, out = ts.do(t, http.MethodGet, "/po/1/review", nil, "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	_, msg := errorCode(t, out)
	require.Equal(t, "The language model returned malformed data. Retry generation.", msg)

	ts.pipeline.reviewErr = fmt.Errorf("reducto parse: %w", util.ErrCircuitOpen)
	rec, out = ts.do(t, http.MethodGet, "/po/1/review", nil, "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	code, _ := errorCode(t, out)
	require.Equal(t, "SD-API-5020", code)
}

func TestGenerateEndpoint(t *testing.T) {
	ts := newTestServer(t)
	body := []byte(`{"ship_to_address_id":" a1 ","bol_number":"2024030705","bol_data":{"bol_number":"x"},"packing_slip_data":null}`)
	rec, out := ts.do(t, http.MethodPost, "/po/1/generate", body, "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(1), out["po_document_id"])
	require.Equal(t, 1, ts.generator.in.POID)
	require.Equal(t, "a1", ts.generator.in.Addresses.ShipToID)
	require.Equal(t, "2024030705", ts.generator.in.BOLNumber)
	require.JSONEq(t, `{"bol_number":"x"}`, string(ts.generator.in.BOLData))
	require.Nil(t, ts.generator.in.PackingSlipData)
	require.True(t, ts.generator.in.UseSchema)

	rec, _ = ts.do(t, http.MethodPost, "/po/1/generate", []byte(`{"use_schema":false}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, ts.generator.in.UseSchema)

	rec, _ = ts.do(t, http.MethodPost, "/po/1/generate", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, ts.generator.in.UseSchema)

	rec, out = ts.do(t, http.MethodPost, "/po/1/generate", []byte(`{bad`), "application/json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	_, msg := errorCode(t, out)
	require.Equal(t, "Malformed JSON request body.", msg)
}

func TestGenerateEndpointErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		api  string
	}{
		{"running", fmt.Errorf("%w: generate-po-1", ErrGenerationRunning), http.StatusConflict, "SD-API-4009"},
		{"upstream", temporal.NewNonRetryableApplicationError("reducto edit: status 503", activities.ErrTypeUpstream, nil), http.StatusBadGateway, "SD-API-5020"},
		{"malformed", temporal.NewNonRetryableApplicationError("language model returned malformed JSON", activities.ErrTypeMalformedLLMJSON, nil), http.StatusUnprocessableEntity, "SD-API-4022"},
		{"missing", temporal.NewNonRetryableApplicationError("get document: not found", activities.ErrTypeNotFound, nil), http.StatusNotFound, "SD-API-4004"},
		{"internal", temporal.NewNonRetryableApplicationError("disk full", activities.ErrTypeInternal, nil), http.StatusInternalServerError, "SD-API-5000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.generator.err = tc.err
			rec, out := ts.do(t, http.MethodPost, "/po/1/generate", nil, "")
			require.Equal(t, tc.code, rec.Code)
			code, _ := errorCode(t, out)
			require.Equal(t, tc.api, code)
		})
	}
}

func TestDocumentsEndpoints(t *testing.T) {
	ts := newTestServer(t)
	rec, out := ts.do(t, http.MethodGet, "/documents?type=po", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	docs := out["documents"].([]any)
	require.Len(t, docs, 1)
	require.NotContains(t, docs[0].(map[string]any), "parsed_data")

	rec, out = ts.do(t, http.MethodGet, "/documents?type=invoice", nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	_, msg := errorCode(t, out)
	require.Equal(t, "Document type must be PO, BOL or PACKING_SLIP.", msg)

	rec, _ = ts.do(t, http.MethodGet, "/documents?limit=-3", nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out = ts.do(t, http.MethodGet, "/documents/2", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "BOL", out["document_type"])

	rec, out = ts.do(t, http.MethodGet, "/documents/2/file", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "https://files.example/doc.pdf", out["url"])

	rec, _ = ts.do(t, http.MethodGet, "/documents/2/file?redirect=true", nil, "")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "https://files.example/doc.pdf", rec.Header().Get("Location"))
}

func TestSchemaEndpoints(t *testing.T) {
	ts := newTestServer(t)
	rec, out := ts.do(t, http.MethodGet, "/schemas", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	schemas := out["schemas"].([]any)
	require.Len(t, schemas, 1)
	require.Nil(t, schemas[0].(map[string]any)["schema"])

	rec, _ = ts.do(t, http.MethodGet, "/schemas/BOL_Template.pdf", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = ts.do(t, http.MethodGet, "/schemas/Other.pdf", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = ts.do(t, http.MethodPatch, "/schemas/BOL_Template.pdf", []byte(`{"description":" tuned by ops "}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "tuned by ops", ts.schemas.description)

	rec, out = ts.do(t, http.MethodDelete, "/schemas/BOL_Template.pdf", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "BOL_Template.pdf", out["deleted"])
	rec, _ = ts.do(t, http.MethodDelete, "/schemas/Other.pdf", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, out = ts.do(t, http.MethodPost, "/schemas/setup", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, out["results"].([]any), 1)
}

func TestAccountAndCatalogEndpoints(t *testing.T) {
	ts := newTestServer(t)
	rec, out := ts.do(t, http.MethodGet, "/accounts", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, out["accounts"].([]any), 1)

	rec, out = ts.do(t, http.MethodGet, "/accounts/acct-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(2), out["total_pos"])

	rec, out = ts.do(t, http.MethodGet, "/accounts/missing", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	code, _ := errorCode(t, out)
	require.Equal(t, "SD-API-4004", code)

	rec, out = ts.do(t, http.MethodGet, "/accounts/acct-1/addresses", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, out["addresses"].([]any), 1)

	rec, out = ts.do(t, http.MethodGet, "/sellers", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, out["seller_companies"].([]any), 1)

	rec, out = ts.do(t, http.MethodGet, "/stats", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(4), out["purchase_orders"])

	rec, out = ts.do(t, http.MethodGet, "/products", nil, "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	code, _ = errorCode(t, out)
	require.Equal(t, "SD-DB-5001", code)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	rec, _ := ts.do(t, http.MethodOptions, "/po/upload", nil, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
