package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/conceptlab-backend/internal/concepts"
	"github.com/yungbote/conceptlab-backend/internal/data/repos"
	"github.com/yungbote/conceptlab-backend/internal/data/repos/testutil"
	types "github.com/yungbote/conceptlab-backend/internal/domain"
	httpH "github.com/yungbote/conceptlab-backend/internal/http/handlers"
	httpMW "github.com/yungbote/conceptlab-backend/internal/http/middleware"
	"github.com/yungbote/conceptlab-backend/internal/http/response"
	"github.com/yungbote/conceptlab-backend/internal/services"
	"github.com/yungbote/conceptlab-backend/internal/signals"
)

type fakeEmbedding struct {
	name string
}

func (f *fakeEmbedding) Name() string { return f.name }

func (f *fakeEmbedding) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		var sum float32
		for _, r := range t {
			sum += float32(r)
		}
		out[i] = []float32{sum / 1000, float32(len(t)) / 10}
	}
	return out, nil
}

func newTestRouter(t *testing.T, namespace string, authSecret string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)

	registry := signals.NewRegistry()
	if err := registry.Register(&fakeEmbedding{name: "fake-embed"}); err != nil {
		t.Fatalf("register embedding: %v", err)
	}
	if err := registry.Register(signals.NewSentenceSplitter()); err != nil {
		t.Fatalf("register splitter: %v", err)
	}

	conceptRepo := repos.NewConceptRepo(db, log)
	modelRepo := repos.NewConceptModelRepo(db, log)
	rowRepo := repos.NewDatasetRowRepo(db, log)
	datasetSvc := services.NewDatasetService(log, rowRepo)
	modelSvc := services.NewConceptModelService(db, log, conceptRepo, modelRepo, concepts.ModelDeps{
		Registry: registry,
		Selector: datasetSvc,
		Splitter: signals.NewSentenceSplitter(),
		Rand:     rand.New(rand.NewSource(7)),
	})
	conceptSvc := services.NewConceptService(db, log, conceptRepo, modelSvc)

	var auth *httpMW.AuthMiddleware
	if authSecret != "" {
		auth = httpMW.NewAuthMiddleware(log, authSecret)
	}

	router := NewRouter(RouterConfig{
		Log:            log,
		AuthMiddleware: auth,
		ConceptHandler: httpH.NewConceptHandler(log, conceptSvc, modelSvc),
		ModelHandler:   httpH.NewConceptModelHandler(log, modelSvc),
		HealthHandler:  httpH.NewHealthHandler(),
	})

	t.Cleanup(func() {
		db.Where("namespace = ?", namespace).Delete(&types.ConceptModel{})
		db.Where("namespace = ?", namespace).Delete(&types.Concept{})
		db.Where("namespace = ?", namespace).Delete(&types.DatasetRow{})
	})
	return router
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response: %v (body=%s)", err, rec.Body.String())
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env response.ErrorEnvelope
	decodeBody(t, rec, &env)
	return env.Error.Code
}

func TestHealthcheck(t *testing.T) {
	r := newTestRouter(t, "http-health", "")

	rec := doJSON(t, r, http.MethodGet, "/healthcheck", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=%d got=%d", http.StatusOK, rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Fatalf("body: want=%q got=%q", "ok", rec.Body.String())
	}
}

func TestConceptLifecycleOverHTTP(t *testing.T) {
	ns := "http-life"
	r := newTestRouter(t, ns, "")
	base := "/api/v1/concepts"

	rec := doJSON(t, r, http.MethodPost, base+"/create", gin.H{
		"namespace": ns, "name": "toxicity", "type": "text", "description": "toxic language",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	var created concepts.Concept
	decodeBody(t, rec, &created)
	if created.Version != 0 || created.ConceptName != "toxicity" {
		t.Fatalf("created concept: want version=0 name=toxicity got=%+v", created)
	}

	rec = doJSON(t, r, http.MethodPost, base+"/create", gin.H{
		"namespace": ns, "name": "toxicity", "type": "text",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate create status: want=409 got=%d", rec.Code)
	}
	if code := errorCode(t, rec); code != "already_exists" {
		t.Fatalf("duplicate create code: want=already_exists got=%q", code)
	}

	rec = doJSON(t, r, http.MethodPost, base+"/create", gin.H{
		"namespace": ns, "name": "faces", "type": "audio",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad type status: want=400 got=%d", rec.Code)
	}
	if code := errorCode(t, rec); code != "invalid_argument" {
		t.Fatalf("bad type code: want=invalid_argument got=%q", code)
	}

	path := fmt.Sprintf("%s/%s/toxicity", base, ns)
	rec = doJSON(t, r, http.MethodPost, path, concepts.ConceptUpdate{
		Insert: []concepts.ExampleIn{
			{Label: true, Text: "you are awful"},
			{Label: false, Text: "have a nice day"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("edit status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	var edited concepts.Concept
	decodeBody(t, rec, &edited)
	if edited.Version != 1 || len(edited.Data) != 2 {
		t.Fatalf("edited concept: want version=1 size=2 got version=%d size=%d", edited.Version, len(edited.Data))
	}

	rec = doJSON(t, r, http.MethodPost, path, concepts.ConceptUpdate{Remove: []string{"no-such-id"}})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("remove missing id status: want=404 got=%d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, path, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status: want=200 got=%d", rec.Code)
	}
	var got concepts.Concept
	decodeBody(t, rec, &got)
	if got.Version != 1 || len(got.Data) != 2 {
		t.Fatalf("get concept: want version=1 size=2 got version=%d size=%d", got.Version, len(got.Data))
	}

	rec = doJSON(t, r, http.MethodGet, path+"?draft=nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown draft status: want=404 got=%d", rec.Code)
	}
	if code := errorCode(t, rec); code != "draft_not_found" {
		t.Fatalf("unknown draft code: want=draft_not_found got=%q", code)
	}

	rec = doJSON(t, r, http.MethodGet, base, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status: want=200 got=%d", rec.Code)
	}
	var infos []services.ConceptInfo
	decodeBody(t, rec, &infos)
	var found *services.ConceptInfo
	for i := range infos {
		if infos[i].Namespace == ns && infos[i].Name == "toxicity" {
			found = &infos[i]
		}
	}
	if found == nil {
		t.Fatalf("list: concept %s/toxicity missing", ns)
	}
	if !found.ACLs.Read || !found.ACLs.Write {
		t.Fatalf("list acls: want read/write true got %+v", found.ACLs)
	}
	if len(found.Drafts) != 1 || found.Drafts[0] != concepts.DraftMain {
		t.Fatalf("list drafts: want [main] got %v", found.Drafts)
	}

	rec = doJSON(t, r, http.MethodDelete, path, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status: want=200 got=%d", rec.Code)
	}
	rec = doJSON(t, r, http.MethodGet, path, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status: want=404 got=%d", rec.Code)
	}
	if code := errorCode(t, rec); code != "not_found" {
		t.Fatalf("get after delete code: want=not_found got=%q", code)
	}
}

func TestDraftFlowOverHTTP(t *testing.T) {
	ns := "http-draft"
	r := newTestRouter(t, ns, "")
	base := "/api/v1/concepts"

	rec := doJSON(t, r, http.MethodPost, base+"/create", gin.H{
		"namespace": ns, "name": "spam", "type": "text",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create status: want=200 got=%d", rec.Code)
	}

	path := fmt.Sprintf("%s/%s/spam", base, ns)
	rec = doJSON(t, r, http.MethodPost, path, concepts.ConceptUpdate{
		Insert: []concepts.ExampleIn{
			{Label: true, Text: "buy cheap pills"},
			{Label: true, Text: "limited time offer", Draft: "train"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("edit status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, r, http.MethodGet, path+"?draft=train", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get draft status: want=200 got=%d", rec.Code)
	}
	var view concepts.Concept
	decodeBody(t, rec, &view)
	if len(view.Data) != 2 {
		t.Fatalf("draft view size: want=2 got=%d", len(view.Data))
	}

	rec = doJSON(t, r, http.MethodPost, path+"/merge_draft", gin.H{"draft": "nope"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("merge unknown draft status: want=404 got=%d", rec.Code)
	}
	if code := errorCode(t, rec); code != "draft_not_found" {
		t.Fatalf("merge unknown draft code: want=draft_not_found got=%q", code)
	}

	rec = doJSON(t, r, http.MethodPost, path+"/merge_draft", gin.H{"draft": "train"})
	if rec.Code != http.StatusOK {
		t.Fatalf("merge status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	var merged concepts.Concept
	decodeBody(t, rec, &merged)
	if merged.Version != 2 {
		t.Fatalf("merged version: want=2 got=%d", merged.Version)
	}
	for id, ex := range merged.Data {
		if ex.Draft != "" && ex.Draft != concepts.DraftMain {
			t.Fatalf("example %s kept draft %q after merge", id, ex.Draft)
		}
	}
}

func TestModelEndpointsOverHTTP(t *testing.T) {
	ns := "http-model"
	r := newTestRouter(t, ns, "")
	base := "/api/v1/concepts"

	rec := doJSON(t, r, http.MethodPost, base+"/create", gin.H{
		"namespace": ns, "name": "urgency", "type": "text",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create status: want=200 got=%d", rec.Code)
	}
	path := fmt.Sprintf("%s/%s/urgency", base, ns)
	rec = doJSON(t, r, http.MethodPost, path, concepts.ConceptUpdate{
		Insert: []concepts.ExampleIn{{Label: true, Text: "respond immediately"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("edit status: want=200 got=%d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodPost, path+"/model/fake-embed", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("explicit create status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	var createdInfo services.ConceptModelInfo
	decodeBody(t, rec, &createdInfo)
	if createdInfo.Version != -1 || createdInfo.EmbeddingName != "fake-embed" {
		t.Fatalf("created model info: want version=-1 embedding=fake-embed got=%+v", createdInfo)
	}

	rec = doJSON(t, r, http.MethodPost, path+"/model/fake-embed", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate model create status: want=409 got=%d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, path+"/model/fake-embed", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get model status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	var info services.ConceptModelInfo
	decodeBody(t, rec, &info)
	if info.Version != 1 {
		t.Fatalf("synced model version: want=1 got=%d", info.Version)
	}

	rec = doJSON(t, r, http.MethodGet, path+"/model", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list models status: want=200 got=%d", rec.Code)
	}
	var list []services.ConceptModelInfo
	decodeBody(t, rec, &list)
	if len(list) != 1 || list[0].Version != 1 {
		t.Fatalf("model list: want one entry at version 1 got %+v", list)
	}

	rec = doJSON(t, r, http.MethodGet, path+"/column_infos", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("column infos status: want=200 got=%d", rec.Code)
	}
	var colInfos []concepts.ConceptColumnInfo
	decodeBody(t, rec, &colInfos)
	if len(colInfos) != 0 {
		t.Fatalf("column infos: want empty got %+v", colInfos)
	}

	scorePath := path + "/model/fake-embed/score"
	first := "act now before it is gone"
	second := "see you next week"
	rec = doJSON(t, r, http.MethodPost, scorePath, gin.H{
		"examples": []gin.H{{"text": first}, {"text": second}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("score status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	var scored struct {
		Scores []struct {
			Spans []struct {
				Start int     `json:"start"`
				End   int     `json:"end"`
				Score float64 `json:"score"`
			} `json:"spans"`
		} `json:"scores"`
		ModelSynced bool `json:"model_synced"`
	}
	decodeBody(t, rec, &scored)
	if scored.ModelSynced {
		t.Fatalf("score after explicit sync: want model_synced=false got=true")
	}
	if len(scored.Scores) != 2 {
		t.Fatalf("score count: want=2 got=%d", len(scored.Scores))
	}
	for i, want := range []string{first, second} {
		spans := scored.Scores[i].Spans
		if len(spans) != 1 {
			t.Fatalf("score %d spans: want=1 got=%d", i, len(spans))
		}
		if spans[0].Start != 0 || spans[0].End != len(want) {
			t.Fatalf("score %d span: want [0,%d) got [%d,%d)", i, len(want), spans[0].Start, spans[0].End)
		}
		if spans[0].Score < 0 || spans[0].Score >= 1 {
			t.Fatalf("score %d out of range: %v", i, spans[0].Score)
		}
	}

	rec = doJSON(t, r, http.MethodPost, path, concepts.ConceptUpdate{
		Insert: []concepts.ExampleIn{{Label: false, Text: "no rush at all"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("second edit status: want=200 got=%d", rec.Code)
	}
	rec = doJSON(t, r, http.MethodPost, scorePath, gin.H{
		"examples": []gin.H{{"text": first}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("score after edit status: want=200 got=%d", rec.Code)
	}
	decodeBody(t, rec, &scored)
	if !scored.ModelSynced {
		t.Fatalf("score after edit: want model_synced=true got=false")
	}

	rec = doJSON(t, r, http.MethodPost, scorePath, gin.H{
		"examples":    []gin.H{{"text": first}},
		"sensitivity": "bogus",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad sensitivity status: want=400 got=%d", rec.Code)
	}
	if code := errorCode(t, rec); code != "invalid_argument" {
		t.Fatalf("bad sensitivity code: want=invalid_argument got=%q", code)
	}

	rec = doJSON(t, r, http.MethodPost, scorePath, gin.H{
		"examples": []gin.H{{"text": first}},
		"draft":    "nope",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("score unknown draft status: want=404 got=%d", rec.Code)
	}
	if code := errorCode(t, rec); code != "draft_not_found" {
		t.Fatalf("score unknown draft code: want=draft_not_found got=%q", code)
	}

	rec = doJSON(t, r, http.MethodPost, path+"/model/"+signals.SentenceSplitterName+"/score", gin.H{
		"examples": []gin.H{{"text": first}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("splitter score status: want=400 got=%d", rec.Code)
	}
	if code := errorCode(t, rec); code != "unsupported_modality" {
		t.Fatalf("splitter score code: want=unsupported_modality got=%q", code)
	}

	rec = doJSON(t, r, http.MethodGet, path+"/model/missing-embed", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown signal status: want=404 got=%d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, fmt.Sprintf("%s/%s/absent/model", base, ns), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("models of missing concept status: want=404 got=%d", rec.Code)
	}
}

func TestAuthOverHTTP(t *testing.T) {
	ns := "http-auth"
	secret := "test-secret"
	r := newTestRouter(t, ns, secret)
	base := "/api/v1/concepts"

	rec := doJSON(t, r, http.MethodGet, "/healthcheck", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthcheck with auth on: want=200 got=%d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, base, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list status: want=401 got=%d", rec.Code)
	}
	if code := errorCode(t, rec); code != "unauthorized" {
		t.Fatalf("unauthenticated list code: want=unauthorized got=%q", code)
	}

	claims := jwt.RegisteredClaims{
		Subject:   "tester",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, base, nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("bearer list status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, r, http.MethodGet, base+"?token="+signed, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("query token list status: want=200 got=%d", rec.Code)
	}

	badSigned, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("sign bad token: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, base, nil)
	req.Header.Set("Authorization", "Bearer "+badSigned)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad signature status: want=401 got=%d", rec.Code)
	}
}
