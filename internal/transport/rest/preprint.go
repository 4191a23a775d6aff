package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/openscholar/preprintd/internal/domain"
	"github.com/openscholar/preprintd/internal/service/submission"
)

// submissionService defines the interface needed for the submit endpoint.
type submissionService interface {
	Submit(ctx context.Context, input submission.SubmitInput) (*domain.Preprint, error)
}

// catalogService defines the interface needed for the read endpoints.
type catalogService interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Preprint, error)
	List(ctx context.Context) ([]domain.Preprint, error)
	Search(ctx context.Context, query string) ([]domain.Preprint, error)
	Latest(ctx context.Context) ([]domain.Preprint, error)
}

// PreprintHandler serves submission and catalog REST endpoints.
type PreprintHandler struct {
	submissions  submissionService
	catalog      catalogService
	maxSizeBytes int64
	log          *slog.Logger
}

// NewPreprintHandler creates a PreprintHandler.
func NewPreprintHandler(
	submissions submissionService,
	catalog catalogService,
	maxSizeBytes int64,
	logger *slog.Logger,
) *PreprintHandler {
	return &PreprintHandler{
		submissions:  submissions,
		catalog:      catalog,
		maxSizeBytes: maxSizeBytes,
		log:          logger.With("handler", "preprint"),
	}
}

type referenceResponse struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

type preprintResponse struct {
	ID         string              `json:"id"`
	Title      string              `json:"title"`
	Author     string              `json:"author"`
	Abstract   string              `json:"abstract"`
	Identifier string              `json:"identifier"`
	References []referenceResponse `json:"references"`
	Status     string              `json:"status"`
	CreatedAt  time.Time           `json:"createdAt"`
}

// Submit handles POST /submit. The request is multipart/form-data with
// fields title, author, abstract and a "pdf" file part.
func (h *PreprintHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSizeBytes)

	if err := r.ParseMultipartForm(h.maxSizeBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "document too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("pdf")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing pdf file")
		return
	}
	defer file.Close()

	result, err := h.submissions.Submit(r.Context(), submission.SubmitInput{
		Title:    r.FormValue("title"),
		Author:   r.FormValue("author"),
		Abstract: r.FormValue("abstract"),
		Filename: header.Filename,
		Document: file,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPreprintResponse(result))
}

// Get handles GET /preprint/{id}.
func (h *PreprintHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid preprint id")
		return
	}

	p, err := h.catalog.GetByID(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPreprintResponse(p))
}

// List handles GET /preprints.
func (h *PreprintHandler) List(w http.ResponseWriter, r *http.Request) {
	preprints, err := h.catalog.List(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPreprintResponses(preprints))
}

// Search handles GET /search?query=.
func (h *PreprintHandler) Search(w http.ResponseWriter, r *http.Request) {
	preprints, err := h.catalog.Search(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPreprintResponses(preprints))
}

// Latest handles GET /latestpreprints.
func (h *PreprintHandler) Latest(w http.ResponseWriter, r *http.Request) {
	preprints, err := h.catalog.Latest(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPreprintResponses(preprints))
}

func (h *PreprintHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrExtraction):
		writeError(w, http.StatusUnprocessableEntity, "could not extract text from document")
	default:
		h.log.ErrorContext(r.Context(), "internal error", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func toPreprintResponse(p *domain.Preprint) preprintResponse {
	refs := make([]referenceResponse, 0, len(p.References))
	for _, ref := range p.References {
		refs = append(refs, referenceResponse{Title: ref.Title, Link: ref.Link})
	}
	return preprintResponse{
		ID:         p.ID.String(),
		Title:      p.Title,
		Author:     p.Author,
		Abstract:   p.Abstract,
		Identifier: p.Identifier,
		References: refs,
		Status:     p.Status.String(),
		CreatedAt:  p.CreatedAt,
	}
}

func toPreprintResponses(preprints []domain.Preprint) []preprintResponse {
	out := make([]preprintResponse, 0, len(preprints))
	for i := range preprints {
		out = append(out, toPreprintResponse(&preprints[i]))
	}
	return out
}
