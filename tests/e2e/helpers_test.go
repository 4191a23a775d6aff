//go:build e2e

package e2e_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/openscholar/preprintd/internal/adapter/pdftext"
	"github.com/openscholar/preprintd/internal/adapter/postgres"
	preprintrepo "github.com/openscholar/preprintd/internal/adapter/postgres/preprint"
	"github.com/openscholar/preprintd/internal/adapter/postgres/testhelper"
	tokenrepo "github.com/openscholar/preprintd/internal/adapter/postgres/token"
	userrepo "github.com/openscholar/preprintd/internal/adapter/postgres/user"
	"github.com/openscholar/preprintd/internal/adapter/storage/local"
	authpkg "github.com/openscholar/preprintd/internal/auth"
	"github.com/openscholar/preprintd/internal/config"
	authsvc "github.com/openscholar/preprintd/internal/service/auth"
	"github.com/openscholar/preprintd/internal/service/catalog"
	"github.com/openscholar/preprintd/internal/service/submission"
	"github.com/openscholar/preprintd/internal/transport/middleware"
	"github.com/openscholar/preprintd/internal/transport/rest"
)

// testServer wraps the full-stack HTTP server for E2E tests.
type testServer struct {
	URL    string
	Client *http.Client
	Pool   *pgxpool.Pool
}

// testLogWriter adapts testing.T to io.Writer for slog.
type testLogWriter struct{ t *testing.T }

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// setupTestServer bootstraps the full application stack backed by a real
// PostgreSQL container (shared via testhelper) and a temp-dir file store.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	pool := testhelper.SetupTestDB(t)
	logger := slog.New(slog.NewTextHandler(testLogWriter{t}, nil))

	files, err := local.New(t.TempDir())
	require.NoError(t, err, "create local store")

	users := userrepo.New(pool)
	tokens := tokenrepo.New(pool)
	preprints := preprintrepo.New(pool)

	authCfg := config.AuthConfig{
		JWTSecret:        "e2e-test-secret-e2e-test-secret-32b",
		JWTIssuer:        "preprintd-test",
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  24 * time.Hour,
		PasswordHashCost: 4,
	}
	jwtManager := authpkg.NewJWTManager(authCfg.JWTSecret, authCfg.JWTIssuer, authCfg.AccessTokenTTL)

	authService := authsvc.NewService(logger, users, tokens, postgres.NewTxManager(pool), jwtManager, authCfg)
	submissionService := submission.NewService(
		logger,
		files,
		pdftext.New(),
		preprints,
		submission.NewIdentifierMinter(rand.New(rand.NewSource(time.Now().UnixNano()))),
	)
	catalogService := catalog.NewService(logger, preprints, 50)

	limiter := middleware.NewRateLimiter(config.RateLimitConfig{
		RequestsPerMinute: 6000,
		Burst:             1000,
		CleanupInterval:   time.Minute,
	})
	t.Cleanup(limiter.Stop)

	router := rest.NewRouter(
		logger,
		rest.NewAuthHandler(authService, logger),
		rest.NewPreprintHandler(submissionService, catalogService, 32<<20, logger),
		rest.NewHealthHandler(pool, "e2e"),
		authService,
		config.CORSConfig{AllowedOrigins: "*"},
		limiter,
	)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{
		URL:    srv.URL,
		Client: srv.Client(),
		Pool:   pool,
	}
}

// postJSON sends a JSON POST and decodes the JSON response body.
func postJSON(t *testing.T, ts *testServer, path, bearer string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))

	req, err := http.NewRequest(http.MethodPost, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := ts.Client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	return resp.StatusCode, decodeBody(t, resp.Body)
}

// getJSON sends a GET and decodes the JSON response body into v.
func getJSON(t *testing.T, ts *testServer, path string, v any) int {
	t.Helper()

	resp, err := ts.Client.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func decodeBody(t *testing.T, r io.Reader) map[string]any {
	t.Helper()
	var m map[string]any
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	require.NoError(t, json.Unmarshal(data, &m), "body: %s", data)
	return m
}

// signupTestUser registers a fresh user and returns its access token.
func signupTestUser(t *testing.T, ts *testServer) (token string, email string) {
	t.Helper()

	email = fmt.Sprintf("e2e-%s@example.com", uuid.New().String()[:8])
	status, body := postJSON(t, ts, "/signup", "", map[string]string{
		"email":    email,
		"username": "user-" + uuid.New().String()[:8],
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, status, "signup: %v", body)

	token, _ = body["accessToken"].(string)
	require.NotEmpty(t, token)
	return token, email
}

// submitMultipart uploads a document via POST /submit.
func submitMultipart(t *testing.T, ts *testServer, bearer, title string, document []byte) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", title))
	require.NoError(t, mw.WriteField("author", "E2E Author"))
	require.NoError(t, mw.WriteField("abstract", "An abstract produced for flow testing."))
	fw, err := mw.CreateFormFile("pdf", "paper.pdf")
	require.NoError(t, err)
	_, err = fw.Write(document)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/submit", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := ts.Client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	return resp.StatusCode, decodeBody(t, resp.Body)
}

// buildPDF assembles a minimal single-page PDF whose content stream draws
// the given lines of text. Object offsets in the xref table are computed,
// not hard-coded, so the file is well-formed for any input.
func buildPDF(t *testing.T, lines ...string) []byte {
	t.Helper()

	var content bytes.Buffer
	content.WriteString("BT /F1 12 Tf 72 720 Td 14 TL\n")
	for i, line := range lines {
		if i > 0 {
			content.WriteString("T*\n")
		}
		fmt.Fprintf(&content, "(%s) Tj\n", escapePDFString(line))
	}
	content.WriteString("ET\n")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var pdf bytes.Buffer
	pdf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = pdf.Len()
		fmt.Fprintf(&pdf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefStart := pdf.Len()
	fmt.Fprintf(&pdf, "xref\n0 %d\n", len(objects)+1)
	pdf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&pdf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&pdf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, xrefStart)

	return pdf.Bytes()
}

func escapePDFString(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		switch r {
		case '(', ')', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
