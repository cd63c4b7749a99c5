package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/starford/modelstore/internal/catalog"
	"github.com/starford/modelstore/internal/notify"
	"github.com/starford/modelstore/internal/recordservice"
	"github.com/starford/modelstore/internal/registry"
	"github.com/starford/modelstore/internal/store"
	"github.com/starford/modelstore/internal/testutil"
)

// testEnv sets up a temp schema dir holding the person schema, a SQLite
// catalog, the store and the router.
func testEnv(t *testing.T, authToken string, opts ...store.Option) http.Handler {
	t.Helper()
	_, src := testutil.TestSchemaDir(t, map[string]string{"people.yaml": testutil.PersonSchema})
	db := testutil.TestDB(t)
	reg := registry.New()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	loader := catalog.NewLoader(db, src, reg, logger)
	if err := loader.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	opts = append(opts, store.WithLogger(logger))
	st := store.New(reg, opts...)
	records := recordservice.New(st, notify.NewHub(), recordservice.WithLogger(logger))
	t.Cleanup(func() { _ = records.Close(t.Context()) })

	h := NewHandler(st, records, reg, loader)
	return NewRouter(h, authToken != "", authToken, nil)
}

func do(t *testing.T, router http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestListModels(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/models", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[ModelListResponse](t, w)
	if len(resp.Models) != 1 || resp.Models[0] != "person" {
		t.Errorf("models = %v, want [person]", resp.Models)
	}
}

func TestDescribeModel(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/models/Person", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	desc := decode[ModelDescription](t, w)
	if desc.Name != "person" {
		t.Errorf("name = %q, want person", desc.Name)
	}
	if !desc.FirstClass {
		t.Error("declared model should be first-class")
	}
	if _, ok := desc.Attributes["name"]; !ok {
		t.Errorf("attributes = %v, want name", desc.Attributes)
	}
	if desc.Relationships["pets"].Kind != "hasMany" {
		t.Errorf("pets = %+v", desc.Relationships["pets"])
	}

	w = do(t, router, http.MethodGet, "/models/ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown model = %d, want 404", w.Code)
	}
}

func TestModelExists(t *testing.T) {
	router := testEnv(t, "")

	for _, tc := range []struct {
		name string
		want bool
	}{
		{"person", true},
		{"PERSON", true},
		{"ghost", false},
	} {
		w := do(t, router, http.MethodGet, "/models/"+tc.name+"/exists", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tc.name, w.Code)
		}
		if got := decode[ExistsResponse](t, w); got.Exists != tc.want {
			t.Errorf("%s: exists = %v, want %v", tc.name, got.Exists, tc.want)
		}
	}
}

func TestRelationshipMeta(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/models/person/relationships/pets", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var meta struct {
		Key  string `json:"key"`
		Kind string `json:"kind"`
		Type string `json:"type"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &meta)
	if meta.Key != "pets" || meta.Kind != "hasMany" || meta.Type != "pet" {
		t.Errorf("meta = %+v", meta)
	}

	w = do(t, router, http.MethodGet, "/models/person/relationships/owner", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown relationship = %d, want 404", w.Code)
	}
}

func TestPluggableDefinitionsFromCatalog(t *testing.T) {
	_, src := testutil.TestSchemaDir(t, map[string]string{"people.yaml": testutil.PersonSchema})
	db := testutil.TestDB(t)
	reg := registry.New()
	loader := catalog.NewLoader(db, src, reg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	if err := loader.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	st := store.New(reg, store.WithPluggableSchema(true), store.WithSchemaDefinitionService(db))
	router := NewRouter(NewHandler(st, recordservice.New(st, notify.NewHub()), reg, loader), false, "", nil)

	w := do(t, router, http.MethodGet, "/models/person/attributes", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	attrs := decode[map[string]map[string]any](t, w)
	if attrs["age"]["default_value"] != float64(0) {
		t.Errorf("age = %v, want default_value 0", attrs["age"])
	}
	if attrs["name"]["type"] != "string" {
		t.Errorf("name = %v", attrs["name"])
	}

	w = do(t, router, http.MethodGet, "/models/ghost/attributes", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown model = %d, want 404", w.Code)
	}

	// Records created before a schema rewrite accept the new attribute.
	body, _ := json.Marshal(RecordRequest{ID: "1", Attributes: map[string]any{"name": "Chris"}})
	if w = do(t, router, http.MethodPost, "/records/person", body); w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", w.Code, w.Body.String())
	}
	rewritten := strings.Replace(testutil.PersonSchema, "attributes:\n", "attributes:\n  email: {type: string}\n", 1)
	if w = do(t, router, http.MethodPut, "/schemas/people.yaml", []byte(rewritten)); w.Code != http.StatusOK {
		t.Fatalf("put schema = %d, body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodGet, "/models/person", nil)
	desc := decode[ModelDescription](t, w)
	if !desc.FirstClass {
		t.Error("person should stay first-class")
	}
	if _, ok := desc.Attributes["email"]; !ok {
		t.Errorf("attributes = %v, want email", desc.Attributes)
	}
	body, _ = json.Marshal(RecordRequest{Attributes: map[string]any{"email": "chris@example.com"}})
	if w = do(t, router, http.MethodPatch, "/records/person/1", body); w.Code != http.StatusOK {
		t.Fatalf("update email = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode[RecordDetail](t, w); got.Attributes["email"] != "chris@example.com" {
		t.Errorf("attributes = %v", got.Attributes)
	}
}

func TestRecordLifecycle(t *testing.T) {
	router := testEnv(t, "")

	body, _ := json.Marshal(RecordRequest{ID: "1", Attributes: map[string]any{"name": "Chris"}})
	w := do(t, router, http.MethodPost, "/records/person", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", w.Code, w.Body.String())
	}
	created := decode[RecordDetail](t, w)
	if created.Attributes["name"] != "Chris" {
		t.Errorf("name = %v", created.Attributes["name"])
	}
	if created.Attributes["age"] != float64(0) {
		t.Errorf("age = %v, want default 0", created.Attributes["age"])
	}

	body, _ = json.Marshal(RecordRequest{Attributes: map[string]any{"age": 41}})
	w = do(t, router, http.MethodPatch, "/records/person/1", body)
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", w.Code, w.Body.String())
	}

	body, _ = json.Marshal(RecordRequest{Attributes: map[string]any{"name": "Wes"}})
	w = do(t, router, http.MethodPut, "/records/person/1", body)
	if w.Code != http.StatusOK {
		t.Fatalf("push = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/records/person/1", nil)
	got := decode[RecordDetail](t, w)
	if got.Attributes["name"] != "Wes" || got.Attributes["age"] != float64(41) {
		t.Errorf("attributes = %v", got.Attributes)
	}

	w = do(t, router, http.MethodGet, "/records", nil)
	if list := decode[RecordListResponse](t, w); len(list.Records) != 1 {
		t.Errorf("records = %v, want one", list.Records)
	}

	w = do(t, router, http.MethodDelete, "/records/person/1", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("unload = %d, want 204", w.Code)
	}
	w = do(t, router, http.MethodGet, "/records/person/1", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after unload = %d, want 404", w.Code)
	}
}

func TestRecordErrors(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/records/person", []byte("{"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON = %d, want 400", w.Code)
	}

	body, _ := json.Marshal(RecordRequest{Attributes: map[string]any{"name": "x"}})
	w = do(t, router, http.MethodPost, "/records/ghost", body)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown type = %d, want 404", w.Code)
	}

	w = do(t, router, http.MethodPost, "/records/person", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}
	created := decode[RecordDetail](t, w)
	if created.ID == "" {
		t.Error("missing id should be generated")
	}

	body, _ = json.Marshal(RecordRequest{Attributes: map[string]any{"nickname": "C"}})
	w = do(t, router, http.MethodPatch, "/records/person/"+created.ID, body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("undeclared attribute = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodDelete, "/records/person/404", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unload unknown = %d, want 404", w.Code)
	}
}

func TestSchemaSources(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodPut, "/schemas/pets/pet.yaml", []byte("model: pet\nattributes:\n  species: {type: string}\n"))
	if w.Code != http.StatusOK {
		t.Fatalf("put = %d, body = %s", w.Code, w.Body.String())
	}
	if resp := decode[SchemaWriteResponse](t, w); !slices.Equal(resp.Models, []string{"pet"}) {
		t.Errorf("models = %v, want [pet]", resp.Models)
	}

	w = do(t, router, http.MethodGet, "/models", nil)
	if resp := decode[ModelListResponse](t, w); !slices.Equal(resp.Models, []string{"person", "pet"}) {
		t.Errorf("models = %v", resp.Models)
	}

	w = do(t, router, http.MethodGet, "/schemas", nil)
	list := decode[SchemaListResponse](t, w)
	if len(list.Schemas) != 2 {
		t.Fatalf("schemas = %v, want 2", list.Schemas)
	}

	w = do(t, router, http.MethodDelete, "/schemas/pets/pet.yaml", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}
	w = do(t, router, http.MethodGet, "/models", nil)
	if resp := decode[ModelListResponse](t, w); !slices.Equal(resp.Models, []string{"person"}) {
		t.Errorf("models after delete = %v", resp.Models)
	}

	w = do(t, router, http.MethodDelete, "/schemas/pets/pet.yaml", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("delete missing = %d, want 404", w.Code)
	}
}

func TestSchemaSourceValidation(t *testing.T) {
	router := testEnv(t, "")

	for _, tc := range []struct {
		name, path, body string
	}{
		{"syntax", "bad.yaml", "model: [\n"},
		{"invalid kind", "bad.yaml", "model: a\nrelationships:\n  b: {kind: manyToMany, type: b}\n"},
		{"unsupported", "notes.txt", "hello"},
		{"escape", "..%2Fescape.yaml", "model: x\n"},
	} {
		w := do(t, router, http.MethodPut, "/schemas/"+tc.path, []byte(tc.body))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400 (body %s)", tc.name, w.Code, w.Body.String())
		}
	}

	w := do(t, router, http.MethodGet, "/schemas", nil)
	if list := decode[SchemaListResponse](t, w); len(list.Schemas) != 1 {
		t.Errorf("rejected sources were written: %v", list.Schemas)
	}
}

func TestAuthMiddleware(t *testing.T) {
	router := testEnv(t, "secret")

	w := do(t, router, http.MethodGet, "/models", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/models", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/models", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestLifecycleViolationMapsTo503(t *testing.T) {
	_, src := testutil.TestSchemaDir(t, map[string]string{"people.yaml": testutil.PersonSchema})
	reg := registry.New()
	loader := catalog.NewLoader(testutil.TestDB(t), src, reg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	if err := loader.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	st := store.New(reg, store.WithStrictLifecycle(true))
	router := NewRouter(NewHandler(st, recordservice.New(st, notify.NewHub()), reg, nil), false, "", nil)
	st.BeginDestroy()
	st.Destroy()

	w := do(t, router, http.MethodGet, "/models/person", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("destroyed store = %d, want 503", w.Code)
	}
	body := decode[errResponse](t, w)
	if body.Code != "lifecycle_violation" || body.Op != "modelFor" {
		t.Errorf("body = %+v", body)
	}
	if !strings.Contains(body.Error, "destroyed") {
		t.Errorf("error = %q", body.Error)
	}

	w = do(t, router, http.MethodGet, "/schemas", nil)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("unmanaged schemas = %d, want 501", w.Code)
	}
}

func TestAuthMiddleware_EventsQueryToken(t *testing.T) {
	events := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	_, src := testutil.TestSchemaDir(t, nil)
	reg := registry.New()
	st := store.New(reg)
	loader := catalog.NewLoader(testutil.TestDB(t), src, reg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	router := NewRouter(NewHandler(st, recordservice.New(st, notify.NewHub()), reg, loader), true, "secret", events)

	if w := do(t, router, http.MethodGet, "/events?access_token=secret", nil); w.Code != http.StatusOK {
		t.Errorf("events with query token = %d, want 200", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/events?access_token=nope", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("events with wrong token = %d, want 401", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/models?access_token=secret", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("query token outside /events = %d, want 401", w.Code)
	}
}
