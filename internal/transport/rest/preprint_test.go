package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/openscholar/preprintd/internal/domain"
	"github.com/openscholar/preprintd/internal/service/submission"
)

type submissionServiceMock struct {
	SubmitFunc func(ctx context.Context, input submission.SubmitInput) (*domain.Preprint, error)
}

func (m *submissionServiceMock) Submit(ctx context.Context, input submission.SubmitInput) (*domain.Preprint, error) {
	return m.SubmitFunc(ctx, input)
}

type catalogServiceMock struct {
	GetByIDFunc func(ctx context.Context, id uuid.UUID) (*domain.Preprint, error)
	ListFunc    func(ctx context.Context) ([]domain.Preprint, error)
	SearchFunc  func(ctx context.Context, query string) ([]domain.Preprint, error)
	LatestFunc  func(ctx context.Context) ([]domain.Preprint, error)
}

func (m *catalogServiceMock) GetByID(ctx context.Context, id uuid.UUID) (*domain.Preprint, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *catalogServiceMock) List(ctx context.Context) ([]domain.Preprint, error) {
	return m.ListFunc(ctx)
}

func (m *catalogServiceMock) Search(ctx context.Context, query string) ([]domain.Preprint, error) {
	return m.SearchFunc(ctx, query)
}

func (m *catalogServiceMock) Latest(ctx context.Context) ([]domain.Preprint, error) {
	return m.LatestFunc(ctx)
}

func samplePreprint() *domain.Preprint {
	return &domain.Preprint{
		ID:         uuid.New(),
		Title:      "A Study",
		Author:     "Jane Doe",
		Abstract:   "We study.",
		Identifier: "10.1234/AbCdEf123456",
		References: []domain.Reference{
			{Title: "Prior Work.", Link: "https://doi.org/10.1000/x"},
		},
		Status: domain.StatusSubmitted,
	}
}

func newPreprintHandler(subs submissionService, cat catalogService) *PreprintHandler {
	return NewPreprintHandler(subs, cat, 32<<20, testLogger())
}

// multipartBody builds a multipart form with metadata fields and a pdf part.
func multipartBody(t *testing.T, withFile bool) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, value := range map[string]string{
		"title":    "A Study",
		"author":   "Jane Doe",
		"abstract": "We study.",
	} {
		if err := mw.WriteField(field, value); err != nil {
			t.Fatalf("write field %s: %v", field, err)
		}
	}
	if withFile {
		fw, err := mw.CreateFormFile("pdf", "paper.pdf")
		if err != nil {
			t.Fatalf("create file part: %v", err)
		}
		fmt.Fprint(fw, "%PDF fake")
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestPreprintHandler_Submit(t *testing.T) {
	t.Parallel()

	subs := &submissionServiceMock{
		SubmitFunc: func(ctx context.Context, input submission.SubmitInput) (*domain.Preprint, error) {
			if input.Title != "A Study" || input.Filename != "paper.pdf" {
				t.Errorf("unexpected input %+v", input)
			}
			data, err := io.ReadAll(input.Document)
			if err != nil || string(data) != "%PDF fake" {
				t.Errorf("document = %q, err %v", data, err)
			}
			return samplePreprint(), nil
		},
	}
	h := newPreprintHandler(subs, &catalogServiceMock{})

	body, contentType := multipartBody(t, true)
	req := httptest.NewRequest(http.MethodPost, "/submit", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Submit(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp preprintResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Identifier != "10.1234/AbCdEf123456" || len(resp.References) != 1 {
		t.Errorf("response = %+v", resp)
	}
}

func TestPreprintHandler_Submit_MissingFile(t *testing.T) {
	t.Parallel()

	h := newPreprintHandler(&submissionServiceMock{}, &catalogServiceMock{})

	body, contentType := multipartBody(t, false)
	req := httptest.NewRequest(http.MethodPost, "/submit", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Submit(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPreprintHandler_Submit_Anonymous(t *testing.T) {
	t.Parallel()

	subs := &submissionServiceMock{
		SubmitFunc: func(ctx context.Context, input submission.SubmitInput) (*domain.Preprint, error) {
			return nil, domain.ErrUnauthorized
		},
	}
	h := newPreprintHandler(subs, &catalogServiceMock{})

	body, contentType := multipartBody(t, true)
	req := httptest.NewRequest(http.MethodPost, "/submit", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Submit(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestPreprintHandler_Submit_ExtractionFailure(t *testing.T) {
	t.Parallel()

	subs := &submissionServiceMock{
		SubmitFunc: func(ctx context.Context, input submission.SubmitInput) (*domain.Preprint, error) {
			return nil, fmt.Errorf("%w: bad xref", domain.ErrExtraction)
		},
	}
	h := newPreprintHandler(subs, &catalogServiceMock{})

	body, contentType := multipartBody(t, true)
	req := httptest.NewRequest(http.MethodPost, "/submit", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Submit(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestPreprintHandler_Get(t *testing.T) {
	t.Parallel()

	p := samplePreprint()
	cat := &catalogServiceMock{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Preprint, error) {
			if id != p.ID {
				t.Errorf("GetByID called with %v", id)
			}
			return p, nil
		},
	}
	h := newPreprintHandler(&submissionServiceMock{}, cat)

	req := httptest.NewRequest(http.MethodGet, "/preprint/"+p.ID.String(), nil)
	req = mux.SetURLVars(req, map[string]string{"id": p.ID.String()})
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPreprintHandler_Get_BadID(t *testing.T) {
	t.Parallel()

	h := newPreprintHandler(&submissionServiceMock{}, &catalogServiceMock{})

	req := httptest.NewRequest(http.MethodGet, "/preprint/not-a-uuid", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "not-a-uuid"})
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPreprintHandler_Get_NotFound(t *testing.T) {
	t.Parallel()

	cat := &catalogServiceMock{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Preprint, error) {
			return nil, domain.ErrNotFound
		},
	}
	h := newPreprintHandler(&submissionServiceMock{}, cat)

	id := uuid.New().String()
	req := httptest.NewRequest(http.MethodGet, "/preprint/"+id, nil)
	req = mux.SetURLVars(req, map[string]string{"id": id})
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestPreprintHandler_Search_InvalidQuery(t *testing.T) {
	t.Parallel()

	cat := &catalogServiceMock{
		SearchFunc: func(ctx context.Context, query string) ([]domain.Preprint, error) {
			return nil, domain.NewValidationError("query", "invalid characters")
		},
	}
	h := newPreprintHandler(&submissionServiceMock{}, cat)

	req := httptest.NewRequest(http.MethodGet, "/search?query=%3Bdrop", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPreprintHandler_Latest(t *testing.T) {
	t.Parallel()

	cat := &catalogServiceMock{
		LatestFunc: func(ctx context.Context) ([]domain.Preprint, error) {
			return []domain.Preprint{*samplePreprint(), *samplePreprint()}, nil
		},
	}
	h := newPreprintHandler(&submissionServiceMock{}, cat)

	req := httptest.NewRequest(http.MethodGet, "/latestpreprints", nil)
	rec := httptest.NewRecorder()
	h.Latest(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp []preprintResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Errorf("got %d preprints", len(resp))
	}
}

func TestPreprintHandler_List_Empty(t *testing.T) {
	t.Parallel()

	cat := &catalogServiceMock{
		ListFunc: func(ctx context.Context) ([]domain.Preprint, error) {
			return nil, nil
		},
	}
	h := newPreprintHandler(&submissionServiceMock{}, cat)

	req := httptest.NewRequest(http.MethodGet, "/preprints", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	// Empty list serializes as [], not null.
	if body := rec.Body.String(); body != "[]\n" {
		t.Errorf("body = %q, want []", body)
	}
}
