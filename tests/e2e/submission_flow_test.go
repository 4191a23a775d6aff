//go:build e2e

package e2e_test

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var identifierRe = regexp.MustCompile(`^10\.1234/[A-Za-z]{6}[0-9]{6}$`)

// TestE2E_SubmissionFlow drives the whole pipeline: upload a manuscript,
// verify the extracted references and minted identifier, then read the
// record back through every catalog endpoint.
func TestE2E_SubmissionFlow(t *testing.T) {
	ts := setupTestServer(t)
	token, _ := signupTestUser(t, ts)

	marker := "Flow" + uuid.New().String()[:8]
	title := "Submission " + marker
	doc := buildPDF(t,
		"Some introduction text.",
		"References",
		"Smith, J. A Prior Result. https://doi.org/10.1000/prior",
		"Jones, K. Another Paper. 10.2000/xyz42",
	)

	// Submit.
	status, body := submitMultipart(t, ts, token, title, doc)
	require.Equal(t, http.StatusCreated, status, "submit: %v", body)

	identifier, _ := body["identifier"].(string)
	assert.Regexp(t, identifierRe, identifier)

	refs, _ := body["references"].([]any)
	require.Len(t, refs, 2, "references: %v", body["references"])
	first, _ := refs[0].(map[string]any)
	assert.Equal(t, "https://doi.org/10.1000/prior", first["link"])
	second, _ := refs[1].(map[string]any)
	assert.Equal(t, "https://doi.org/10.2000/xyz42", second["link"])

	id, _ := body["id"].(string)
	require.NotEmpty(t, id)

	// Fetch by ID.
	var got map[string]any
	status = getJSON(t, ts, "/preprint/"+id, &got)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, title, got["title"])
	assert.Equal(t, identifier, got["identifier"])
	assert.Equal(t, "Submitted", got["status"])

	// Browse.
	var all []map[string]any
	status = getJSON(t, ts, "/preprints", &all)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, containsID(all, id), "preprint missing from /preprints")

	// Search by title fragment.
	var found []map[string]any
	status = getJSON(t, ts, "/search?query="+url.QueryEscape(marker), &found)
	require.Equal(t, http.StatusOK, status)
	require.True(t, containsID(found, id), "preprint missing from /search")

	// Latest.
	var latest []map[string]any
	status = getJSON(t, ts, "/latestpreprints", &latest)
	require.Equal(t, http.StatusOK, status)
	assert.LessOrEqual(t, len(latest), 10)
	assert.True(t, containsID(latest, id), "preprint missing from /latestpreprints")
}

func TestE2E_Submit_RequiresAuth(t *testing.T) {
	ts := setupTestServer(t)

	doc := buildPDF(t, "References", "Someone. Something. https://example.com/x")
	status, _ := submitMultipart(t, ts, "", "No Auth", doc)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestE2E_Submit_RejectsGarbageDocument(t *testing.T) {
	ts := setupTestServer(t)
	token, _ := signupTestUser(t, ts)

	status, body := submitMultipart(t, ts, token, "Garbage", []byte("this is not a pdf"))
	assert.Equal(t, http.StatusUnprocessableEntity, status, "body: %v", body)
}

func TestE2E_Submit_NoReferencesSection(t *testing.T) {
	ts := setupTestServer(t)
	token, _ := signupTestUser(t, ts)

	doc := buildPDF(t, "A manuscript without any bibliography section at all.")
	status, body := submitMultipart(t, ts, token, "No Refs "+uuid.New().String()[:8], doc)
	require.Equal(t, http.StatusCreated, status, "submit: %v", body)

	refs, _ := body["references"].([]any)
	assert.Empty(t, refs)
}

func TestE2E_Search_RejectsInvalidQuery(t *testing.T) {
	ts := setupTestServer(t)

	resp, err := ts.Client.Get(ts.URL + "/search?query=" + url.QueryEscape("'; drop table"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestE2E_Preprint_NotFound(t *testing.T) {
	ts := setupTestServer(t)

	resp, err := ts.Client.Get(fmt.Sprintf("%s/preprint/%s", ts.URL, uuid.New()))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func containsID(items []map[string]any, id string) bool {
	for _, item := range items {
		if item["id"] == id {
			return true
		}
	}
	return false
}
