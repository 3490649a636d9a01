package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hackerfolio/api/internal/position"
	"hackerfolio/api/internal/store"
)

type apiClient struct {
	t       *testing.T
	handler http.Handler
	token   string
}

func newAPIClient(t *testing.T, env testEnv, email string) apiClient {
	t.Helper()
	env.signUp(t, email)
	session, err := env.svc.SignIn(context.Background(), email, "correct-horse")
	require.NoError(t, err)
	return apiClient{t: t, handler: NewHTTPServer(env.svc, "*", nil).Handler(), token: session.Token}
}

func (c apiClient) do(method, path, body string, out any) int {
	c.t.Helper()
	rr := doJSON(c.t, c.handler, method, path, c.token, body)
	if out != nil && rr.Body.Len() > 0 {
		require.NoError(c.t, json.Unmarshal(rr.Body.Bytes(), out), "body=%s", rr.Body.String())
	}
	return rr.Code
}

type errorBody struct {
	Code    string          `json:"code"`
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
}

func (c apiClient) sectionNames() []string {
	c.t.Helper()
	var payload struct {
		Sections []SectionView `json:"sections"`
	}
	require.Equal(c.t, http.StatusOK, c.do(http.MethodGet, "/api/sections", "", &payload))
	names := make([]string, len(payload.Sections))
	for i, section := range payload.Sections {
		require.Equal(c.t, i, section.Position)
		names[i] = section.Name
	}
	return names
}

func TestHTTPSectionFlow(t *testing.T) {
	env := newTestEnv(t)
	client := newAPIClient(t, env, "ada@example.com")

	var missing errorBody
	assert.Equal(t, http.StatusNotFound, client.do(http.MethodGet, "/api/portfolio", "", &missing))
	assert.Equal(t, "NOT_FOUND", missing.Code)
	assert.Empty(t, client.sectionNames())

	ids := make([]string, 0, 3)
	for _, name := range []string{"A", "B", "C"} {
		var section SectionView
		require.Equal(t, http.StatusCreated, client.do(http.MethodPost, "/api/sections", `{"name":"`+name+`"}`, &section))
		ids = append(ids, section.ID)
	}

	var moved SectionView
	require.Equal(t, http.StatusOK, client.do(http.MethodPost, "/api/sections/"+ids[2]+"/reorder", `{"position":0}`, &moved))
	assert.Equal(t, 0, moved.Position)
	assert.Equal(t, []string{"C", "A", "B"}, client.sectionNames())

	var bounds errorBody
	require.Equal(t, http.StatusUnprocessableEntity, client.do(http.MethodPost, "/api/sections/"+ids[0]+"/reorder", `{"position":3}`, &bounds))
	assert.Equal(t, "VALIDATION_ERROR", bounds.Code)
	assert.JSONEq(t, `{"position":3,"min":0,"max":2}`, string(bounds.Details))
	assert.Equal(t, []string{"C", "A", "B"}, client.sectionNames())

	var required errorBody
	require.Equal(t, http.StatusUnprocessableEntity, client.do(http.MethodPost, "/api/sections/"+ids[0]+"/reorder", `{}`, &required))
	assert.JSONEq(t, `[{"field":"position","message":"is required"}]`, string(required.Details))

	var malformed errorBody
	require.Equal(t, http.StatusBadRequest, client.do(http.MethodPost, "/api/sections", `{"name":`, &malformed))
	assert.Equal(t, "INVALID_BODY", malformed.Code)

	var renamed SectionView
	require.Equal(t, http.StatusOK, client.do(http.MethodPatch, "/api/sections/"+ids[1], `{"name":"Bee","visible":false}`, &renamed))
	assert.Equal(t, "Bee", renamed.Name)
	assert.False(t, renamed.Visible)

	assert.Equal(t, http.StatusNoContent, client.do(http.MethodDelete, "/api/sections/"+ids[0], "", nil))
	assert.Equal(t, []string{"C", "Bee"}, client.sectionNames())

	var portfolio PortfolioView
	require.Equal(t, http.StatusOK, client.do(http.MethodGet, "/api/portfolio", "", &portfolio))
	require.Len(t, portfolio.Sections, 2)
	assert.Equal(t, ids[2], portfolio.Sections[0].ID)
}

func TestHTTPSectionLimitAndLastSectionGuard(t *testing.T) {
	env := newTestEnv(t)
	client := newAPIClient(t, env, "ada@example.com")

	var first SectionView
	require.Equal(t, http.StatusCreated, client.do(http.MethodPost, "/api/sections", `{"name":"S0"}`, &first))

	var guard errorBody
	require.Equal(t, http.StatusConflict, client.do(http.MethodDelete, "/api/sections/"+first.ID, "", &guard))
	assert.Equal(t, "CANNOT_DELETE_LAST_REQUIRED", guard.Code)

	for i := 1; i < 10; i++ {
		require.Equal(t, http.StatusCreated, client.do(http.MethodPost, "/api/sections", fmt.Sprintf(`{"name":"S%d"}`, i), nil))
	}
	var limit errorBody
	require.Equal(t, http.StatusConflict, client.do(http.MethodPost, "/api/sections", `{"name":"S10"}`, &limit))
	assert.Equal(t, "LIMIT_REACHED", limit.Code)
	assert.JSONEq(t, `{"scope":"section","limit":10}`, string(limit.Details))
	assert.Len(t, client.sectionNames(), 10)
}

func TestHTTPComponentFlow(t *testing.T) {
	env := newTestEnv(t)
	client := newAPIClient(t, env, "ada@example.com")

	var section SectionView
	require.Equal(t, http.StatusCreated, client.do(http.MethodPost, "/api/sections", `{"name":"Links"}`, &section))
	base := "/api/sections/" + section.ID + "/components"

	var links ComponentView
	require.Equal(t, http.StatusCreated, client.do(http.MethodPost, base,
		`{"type":"social-links","data":{"links":[{"platform":"github","url":"https://github.com/ada"},{"platform":"email","url":"mailto:ada@example.com"}]}}`, &links))
	assert.Equal(t, 0, links.Position)

	var bio ComponentView
	require.Equal(t, http.StatusCreated, client.do(http.MethodPost, base, `{"type":"bio","data":{"body":"Engineer."}}`, &bio))
	assert.Equal(t, 1, bio.Position)

	var invalid errorBody
	require.Equal(t, http.StatusUnprocessableEntity, client.do(http.MethodPost, base,
		`{"type":"link-list","data":{"links":[{"label":"","url":"ftp://example.com"}]}}`, &invalid))
	assert.Equal(t, "VALIDATION_ERROR", invalid.Code)
	var fields []map[string]string
	require.NoError(t, json.Unmarshal(invalid.Details, &fields))
	assert.NotEmpty(t, fields)

	var reordered ComponentView
	require.Equal(t, http.StatusOK, client.do(http.MethodPost, "/api/components/"+bio.ID+"/reorder", `{"position":0}`, &reordered))
	assert.Equal(t, 0, reordered.Position)

	var updated ComponentView
	require.Equal(t, http.StatusOK, client.do(http.MethodPatch, "/api/components/"+bio.ID, `{"data":{"heading":"About","body":"Engineer and writer."}}`, &updated))
	assert.Equal(t, 0, updated.Position)

	var mismatch errorBody
	require.Equal(t, http.StatusUnprocessableEntity, client.do(http.MethodPatch, "/api/components/"+bio.ID, `{"data":{"content":"text payload"}}`, &mismatch))

	assert.Equal(t, http.StatusNoContent, client.do(http.MethodDelete, "/api/components/"+bio.ID, "", nil))

	var list struct {
		Components []ComponentView `json:"components"`
	}
	require.Equal(t, http.StatusOK, client.do(http.MethodGet, base, "", &list))
	require.Len(t, list.Components, 1)
	assert.Equal(t, links.ID, list.Components[0].ID)
	assert.Equal(t, 0, list.Components[0].Position)
}

func TestHTTPOtherUsersEntitiesAreNotFound(t *testing.T) {
	env := newTestEnv(t)
	owner := newAPIClient(t, env, "owner@example.com")
	other := newAPIClient(t, env, "other@example.com")

	var section SectionView
	require.Equal(t, http.StatusCreated, owner.do(http.MethodPost, "/api/sections", `{"name":"Private"}`, &section))
	var item ComponentView
	require.Equal(t, http.StatusCreated, owner.do(http.MethodPost, "/api/sections/"+section.ID+"/components", `{"type":"text","data":{"content":"hi"}}`, &item))

	cases := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPatch, "/api/sections/" + section.ID, `{"name":"Mine"}`},
		{http.MethodDelete, "/api/sections/" + section.ID, ""},
		{http.MethodPost, "/api/sections/" + section.ID + "/reorder", `{"position":0}`},
		{http.MethodGet, "/api/sections/" + section.ID + "/components", ""},
		{http.MethodPost, "/api/sections/" + section.ID + "/components", `{"type":"text","data":{"content":"x"}}`},
		{http.MethodPatch, "/api/components/" + item.ID, `{"data":{"content":"x"}}`},
		{http.MethodDelete, "/api/components/" + item.ID, ""},
		{http.MethodPost, "/api/components/" + item.ID + "/reorder", `{"position":0}`},
		{http.MethodDelete, "/api/sections/not-a-uuid", ""},
		{http.MethodPatch, "/api/components/123", `{"data":{"content":"x"}}`},
	}
	for _, tc := range cases {
		var body errorBody
		assert.Equal(t, http.StatusNotFound, other.do(tc.method, tc.path, tc.body, &body), "%s %s", tc.method, tc.path)
		assert.Equal(t, "NOT_FOUND", body.Code, "%s %s", tc.method, tc.path)
	}

	assert.Equal(t, []string{"Private"}, owner.sectionNames())
}

func TestHTTPPublishLifecycle(t *testing.T) {
	env := newTestEnv(t)
	client := newAPIClient(t, env, "ada@example.com")

	var missing errorBody
	assert.Equal(t, http.StatusNotFound, client.do(http.MethodPost, "/api/portfolio/publish", "", &missing))

	var created PortfolioView
	require.Equal(t, http.StatusOK, client.do(http.MethodPost, "/api/portfolio", "", &created))
	assert.False(t, created.IsPublished)
	assert.Empty(t, created.Sections)

	var again PortfolioView
	require.Equal(t, http.StatusOK, client.do(http.MethodPost, "/api/portfolio", "", &again))
	assert.Equal(t, created.ID, again.ID)

	var empty errorBody
	assert.Equal(t, http.StatusUnprocessableEntity, client.do(http.MethodPost, "/api/portfolio/publish", "", &empty))

	require.Equal(t, http.StatusCreated, client.do(http.MethodPost, "/api/sections", `{"name":"About"}`, nil))

	var published PortfolioView
	require.Equal(t, http.StatusOK, client.do(http.MethodPost, "/api/portfolio/publish", "", &published))
	assert.True(t, published.IsPublished)
	assert.NotNil(t, published.PublishedAt)

	var unpublished PortfolioView
	require.Equal(t, http.StatusOK, client.do(http.MethodPost, "/api/portfolio/unpublish", "", &unpublished))
	assert.False(t, unpublished.IsPublished)
}

func TestHTTPMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	client := newAPIClient(t, env, "ada@example.com")

	var body errorBody
	assert.Equal(t, http.StatusMethodNotAllowed, client.do(http.MethodPut, "/api/sections", "", &body))
	assert.Equal(t, "METHOD_NOT_ALLOWED", body.Code)
	assert.Equal(t, http.StatusNotFound, client.do(http.MethodGet, "/api/unknown", "", &body))
}

func TestMapErrorStaleMoveIsServerError(t *testing.T) {
	err := fmt.Errorf("move section s1 from 0: %w", position.ErrNotContiguous)
	status, code, _, _ := mapError(err)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "SERVER_ERROR", code)

	status, code, _, _ = mapError(fmt.Errorf("get section: %w", store.ErrNotFound))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", code)
}

func TestHTTPPortfolioTreeRendersEmptyComponents(t *testing.T) {
	env := newTestEnv(t)
	client := newAPIClient(t, env, "ada@example.com")

	var section SectionView
	require.Equal(t, http.StatusCreated, client.do(http.MethodPost, "/api/sections", `{"name":"Empty"}`, &section))

	rr := doJSON(t, client.handler, http.MethodGet, "/api/portfolio", client.token, "")
	require.Equal(t, http.StatusOK, rr.Code)
	payload := decodeMap(t, rr)
	sections, ok := payload["sections"].([]any)
	require.True(t, ok, "sections should be an array: %v", payload["sections"])
	require.Len(t, sections, 1)
	tree, ok := sections[0].(map[string]any)
	require.True(t, ok)
	components, ok := tree["components"].([]any)
	require.True(t, ok, "components should be an array: %v", tree["components"])
	assert.Empty(t, components)

	rr = doJSON(t, client.handler, http.MethodGet, "/api/sections", client.token, "")
	require.Equal(t, http.StatusOK, rr.Code)
	listed, ok := decodeMap(t, rr)["sections"].([]any)
	require.True(t, ok)
	require.Len(t, listed, 1)
	assert.NotContains(t, listed[0], "components")
	assert.Equal(t, section.ID, listed[0].(map[string]any)["id"])
}
