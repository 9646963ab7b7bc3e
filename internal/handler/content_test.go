package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "folio/internal/domain/models/content"
	contentSvc "folio/internal/domain/services/content"
	"folio/internal/events"
	"folio/internal/httputil"
	"folio/internal/repository/memory"
	serviceAuth "folio/internal/service/auth"
	serviceContent "folio/internal/service/content"
)

var editor = models.Actor{ID: "editor-1", Name: "Editor"}

type apiEnv struct {
	server   http.Handler
	services *serviceContent.Services
}

func newAPIEnv(t *testing.T, maintainers ...string) *apiEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()

	services := serviceContent.SetupServices(serviceContent.Repositories{
		Nodes:     memory.NewNodeRepository(store),
		Versions:  memory.NewVersionRepository(store),
		Snapshots: memory.NewSnapshotRepository(store),
		Audit:     memory.NewAuditRepository(store),
		Tx:        memory.NewTransactionManager(store),
	}, serviceContent.Options{Logger: logger})

	mux := http.NewServeMux()
	NewContentHandler(services.Lifecycle, services.Publication, services.Snapshots, logger).Register(mux)
	NewMaintenanceHandler(
		services.Lifecycle,
		services.Snapshots,
		services.Scheduler,
		serviceAuth.NewAllowListAuthorizer(maintainers),
		logger,
	).Register(mux)

	withActor := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := editor
		if id := r.Header.Get("X-Test-Actor"); id != "" {
			actor = models.Actor{ID: id, Name: id}
		}
		mux.ServeHTTP(w, httputil.WithActor(r, actor))
	})
	return &apiEnv{server: withActor, services: services}
}

func (e *apiEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func (e *apiEnv) create(t *testing.T, parentID int64, name string) int64 {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/nodes", map[string]interface{}{
		"parent_id":    parentID,
		"name":         name,
		"content_type": "textPage",
		"properties":   []models.Property{{Alias: "bodyText", Kind: models.PropertyText, Value: "hello"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var record models.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	return record.Node.ID
}

func nodePath(id int64, suffix string) string {
	return "/api/nodes/" + strconv.FormatInt(id, 10) + suffix
}

func TestContentHandler_CreateAndGet(t *testing.T) {
	env := newAPIEnv(t)
	id := env.create(t, models.RootID, "Home")

	rec := env.do(t, http.MethodGet, nodePath(id, ""), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var record models.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "Home", record.Node.Text)
	require.NotNil(t, record.Document)
	assert.False(t, record.Document.HasPublishedVersion)

	rec = env.do(t, http.MethodGet, nodePath(models.RootID, "/children"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var children []models.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &children))

	// The root lists the recycle bin next to the new document
	ids := make([]int64, 0, len(children))
	for _, child := range children {
		ids = append(ids, child.Node.ID)
	}
	assert.ElementsMatch(t, []int64{models.RecycleBinID, id}, ids)
}

func TestContentHandler_Errors(t *testing.T) {
	env := newAPIEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"bad id", http.MethodGet, "/api/nodes/abc", nil, http.StatusBadRequest},
		{"missing node", http.MethodGet, "/api/nodes/424242", nil, http.StatusNotFound},
		{"missing name", http.MethodPost, "/api/nodes", map[string]interface{}{"content_type": "textPage"}, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/nodes", map[string]interface{}{"name": "x", "color": "red"}, http.StatusBadRequest},
		{"bad cascade", http.MethodPost, "/api/nodes/1/publish?cascade=all", nil, http.StatusBadRequest},
		{"bad version id", http.MethodPost, "/api/nodes/1/rollback/nope", nil, http.StatusBadRequest},
		{"snapshot of root missing", http.MethodGet, "/api/nodes/424242/xml", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestContentHandler_PublishServesSnapshot(t *testing.T) {
	env := newAPIEnv(t)
	id := env.create(t, models.RootID, "Home")

	rec := env.do(t, http.MethodGet, nodePath(id, "/xml"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, nodePath(id, "/publish"), nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, nodePath(id, "/xml"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "<?xml"))
	assert.Contains(t, rec.Body.String(), `nodeName="Home"`)
	assert.Contains(t, rec.Body.String(), "<![CDATA[hello]]>")

	rec = env.do(t, http.MethodGet, nodePath(id, "/state"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"state":"published","pending_changes":false}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, nodePath(id, "/publication"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var state models.PublicationState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.True(t, state.Published)

	rec = env.do(t, http.MethodPost, nodePath(id, "/unpublish"), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, nodePath(id, "/xml"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContentHandler_PublishCascade(t *testing.T) {
	env := newAPIEnv(t)
	parent := env.create(t, models.RootID, "Parent")
	child := env.create(t, parent, "Child")

	rec := env.do(t, http.MethodPost, nodePath(parent, "/publish?cascade=subs"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result contentSvc.CascadeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.ElementsMatch(t, []int64{parent, child}, result.Published)
	assert.Empty(t, result.Cancelled)
}

func TestContentHandler_SaveClearsWithNull(t *testing.T) {
	env := newAPIEnv(t)
	id := env.create(t, models.RootID, "Home")

	rec := env.do(t, http.MethodPatch, nodePath(id, ""), map[string]interface{}{
		"name":         "Start",
		"template_id":  1050,
		"release_date": "2030-01-01T00:00:00Z",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var record models.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "Start", record.Document.Current.Text)
	require.NotNil(t, record.Document.Current.TemplateID)
	assert.Equal(t, int64(1050), *record.Document.Current.TemplateID)
	assert.False(t, record.Document.Current.ReleaseDate.IsZero())

	rec = env.do(t, http.MethodPatch, nodePath(id, ""), map[string]interface{}{
		"template_id":  nil,
		"release_date": nil,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	record = models.Record{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "Start", record.Document.Current.Text)
	assert.Nil(t, record.Document.Current.TemplateID)
	assert.True(t, record.Document.Current.ReleaseDate.IsZero())

	rec = env.do(t, http.MethodPatch, nodePath(id, ""), map[string]interface{}{"name": nil})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContentHandler_CancelledOperationIsConflict(t *testing.T) {
	env := newAPIEnv(t)
	id := env.create(t, models.RootID, "Home")
	env.services.Events.Register(events.Publish, events.Before, "veto", func(_ context.Context, e *events.Event) error {
		e.Cancel()
		return nil
	}, 0)

	rec := env.do(t, http.MethodPost, nodePath(id, "/publish"), nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, true, problem["cancelled"])

	rec = env.do(t, http.MethodGet, nodePath(id, "/state"), nil)
	assert.JSONEq(t, `{"state":"draft","pending_changes":false}`, rec.Body.String())
}

func TestContentHandler_TrashRestoreAndDelete(t *testing.T) {
	env := newAPIEnv(t)
	id := env.create(t, models.RootID, "Old")

	rec := env.do(t, http.MethodPost, nodePath(id, "/trash"), nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, nodePath(id, "/state"), nil)
	assert.JSONEq(t, `{"state":"trashed","pending_changes":false}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, nodePath(id, "/restore"), nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, nodePath(id, ""), nil)
	var record models.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, models.RootID, record.Node.ParentID)
	assert.False(t, record.Node.Trashed)

	rec = env.do(t, http.MethodDelete, nodePath(id, ""), nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	rec = env.do(t, http.MethodGet, nodePath(id, ""), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContentHandler_CopyMoveAndHistory(t *testing.T) {
	env := newAPIEnv(t)
	src := env.create(t, models.RootID, "Source")
	dst := env.create(t, models.RootID, "Destination")

	rec := env.do(t, http.MethodPost, nodePath(src, "/copy"), map[string]interface{}{
		"destination_id":     dst,
		"relate_to_original": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var copied models.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &copied))
	assert.Equal(t, dst, copied.Node.ParentID)
	assert.NotEqual(t, src, copied.Node.ID)

	rec = env.do(t, http.MethodPost, nodePath(src, "/move"), map[string]interface{}{"parent_id": dst})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, nodePath(dst, "/children"), nil)
	var children []models.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &children))
	assert.Len(t, children, 2)

	rec = env.do(t, http.MethodGet, nodePath(src, "/versions"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var versions []models.Version
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &versions))
	require.Len(t, versions, 1)

	rec = env.do(t, http.MethodPost, nodePath(src, "/rollback/"+versions[0].ID.String()), nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, nodePath(src, "/audit"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var audit []models.AuditEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &audit))

	actions := make([]models.AuditAction, 0, len(audit))
	for _, entry := range audit {
		actions = append(actions, entry.Action)
	}
	assert.Contains(t, actions, models.AuditNew)
	assert.Contains(t, actions, models.AuditMove)
	assert.Contains(t, actions, models.AuditRollback)
}
