package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyboard-ai-api/internal/application/pipeline"
	"storyboard-ai-api/internal/domain/entity"
	"storyboard-ai-api/internal/domain/service"
)

type stubGenerator struct {
	imageErr error

	mu       sync.Mutex
	lastRefs []service.ReferenceImage
}

func (s *stubGenerator) storyboardRefs() []service.ReferenceImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRefs
}

func (s *stubGenerator) GenerateScreenplay(ctx context.Context, in service.ScreenplayInput) (*service.ScreenplayOutput, error) {
	return &service.ScreenplayOutput{Scenes: []entity.Scene{{SceneNumber: 1, Title: "Night Train", Description: "INT. TRAIN - NIGHT"}}}, nil
}

func (s *stubGenerator) ExtractCharacters(ctx context.Context, scenes []entity.Scene, maxCharacters int) ([]service.CharacterProfile, error) {
	return []service.CharacterProfile{{Name: "Mara", Description: "conductor"}}, nil
}

func (s *stubGenerator) ExtractLocations(ctx context.Context, scenes []entity.Scene) ([]string, error) {
	return []string{"a night train"}, nil
}

func (s *stubGenerator) GenerateCharacterImage(ctx context.Context, in service.CharacterImageInput) (*service.InlineImage, error) {
	if s.imageErr != nil {
		return nil, s.imageErr
	}
	return &service.InlineImage{MimeType: "image/png", Data: "aGVsbG8="}, nil
}

func (s *stubGenerator) GenerateLocationImage(ctx context.Context, in service.LocationImageInput) (*service.InlineImage, error) {
	return &service.InlineImage{MimeType: "image/png", Data: "aGVsbG8="}, nil
}

func (s *stubGenerator) GenerateShotlist(ctx context.Context, scenes []entity.Scene) ([]entity.Shot, error) {
	return []entity.Shot{{SceneNumber: 1, ShotNumber: 1, Description: "wide"}}, nil
}

func (s *stubGenerator) GenerateStoryboardImage(ctx context.Context, in service.StoryboardImageInput) (*service.StoryboardImage, error) {
	s.mu.Lock()
	s.lastRefs = in.References
	s.mu.Unlock()
	return &service.StoryboardImage{Image: service.InlineImage{MimeType: "image/png", Data: "aGVsbG8="}}, nil
}

type stubChecker struct {
	err error
}

func (s stubChecker) HealthCheck(ctx context.Context) error { return s.err }

type envelope struct {
	Code      int             `json:"code"`
	Data      json.RawMessage `json:"data"`
	ErrorCode string          `json:"error_code"`
}

func newTestRouter(ws *pipeline.Workspace) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	project := NewProjectHandler(ws)
	r.GET("/project", project.GetProject)
	r.PATCH("/project/settings", project.UpdateSettings)
	r.GET("/project/export", project.Export)
	r.POST("/project/import", project.Import)
	r.POST("/project/stages/advance", project.Advance)

	characters := NewCharacterHandler(ws)
	r.POST("/characters", characters.Add)
	r.PATCH("/characters/:id", characters.Patch)
	r.POST("/characters/:id/generate", characters.Generate)

	storyboard := NewStoryboardHandler(ws)
	r.GET("/storyboard/panels/:index/references", storyboard.References)
	r.POST("/storyboard/panels/:index/regenerate", storyboard.Regenerate)

	jobs := NewJobHandler(ws)
	r.GET("/jobs/:id", jobs.GetJob)
	return r
}

func doRequest(r http.Handler, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestProjectImportExport(t *testing.T) {
	ws := pipeline.NewWorkspace(&stubGenerator{}, nil, pipeline.Options{})
	r := newTestRouter(ws)

	doc := []byte(`{"title":"Night Train","genre":"Drama","maxCharacters":2,"maxScenes":3,"storyConcept":"a heist",` +
		`"screenplay":[],"characters":[{"id":"char-1","name":"Mara","description":"conductor","age":"","personality":"",` +
		`"appearance":"","hair":"","skin":"","outfit":"","accessories":""}],"shotlist":[],"storyboard":[],` +
		`"styleGuide":"noir","artStyle":"Anime style","aspectRatio":"4:3","sceneSettings":[]}`)
	w := doRequest(r, http.MethodPost, "/project/import", "application/json", doc)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doRequest(r, http.MethodGet, "/project/export", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	var exported entity.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &exported))
	assert.Equal(t, "Night Train", exported.Title)
	assert.Equal(t, "4:3", exported.AspectRatio)
	require.Len(t, exported.Characters, 1)
	assert.Equal(t, "char-1", exported.Characters[0].ID)
}

func TestProjectImportRejectsUnknownFields(t *testing.T) {
	ws := pipeline.NewWorkspace(&stubGenerator{}, nil, pipeline.Options{})
	r := newTestRouter(ws)

	w := doRequest(r, http.MethodPost, "/project/import", "application/json", []byte(`{"title":"x","bogus":1}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "4101", decode(t, w).ErrorCode)

	w = doRequest(r, http.MethodGet, "/project", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, string(decode(t, w).Data), `"title":"x"`)
}

func TestUpdateSettingsValidatesAspectRatio(t *testing.T) {
	ws := pipeline.NewWorkspace(&stubGenerator{}, nil, pipeline.Options{})
	r := newTestRouter(ws)

	w := doRequest(r, http.MethodPatch, "/project/settings", "application/json", []byte(`{"aspectRatio":"2:1"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodPatch, "/project/settings", "application/json", []byte(`{"title":"Pilot"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Pilot", ws.Project().Title)
}

func TestAdvanceLockedStage(t *testing.T) {
	ws := pipeline.NewWorkspace(&stubGenerator{}, nil, pipeline.Options{})
	r := newTestRouter(ws)

	w := doRequest(r, http.MethodPost, "/project/stages/advance", "", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "4104", decode(t, w).ErrorCode)
	assert.Equal(t, entity.StageProject, ws.CurrentStage())
}

func TestCharacterAddAndPatch(t *testing.T) {
	ws := pipeline.NewWorkspace(&stubGenerator{}, nil, pipeline.Options{})
	r := newTestRouter(ws)

	w := doRequest(r, http.MethodPost, "/characters", "application/json", []byte(`{"name":"Mara","description":"conductor"}`))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ch entity.Character
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &ch))
	require.NotEmpty(t, ch.ID)

	w = doRequest(r, http.MethodPatch, "/characters/"+ch.ID, "application/json", []byte(`{"outfit":"uniform"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "uniform", ws.Project().Characters[0].Outfit)

	w = doRequest(r, http.MethodPatch, "/characters/"+ch.ID, "application/json-patch+json",
		[]byte(`[{"op":"replace","path":"/hair","value":"silver"}]`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "silver", ws.Project().Characters[0].Hair)
	assert.Equal(t, "uniform", ws.Project().Characters[0].Outfit)

	w = doRequest(r, http.MethodPatch, "/characters/missing", "application/json", []byte(`{"hair":"red"}`))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, http.MethodPatch, "/characters/"+ch.ID, "application/json", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCharacterGenerateWait(t *testing.T) {
	ws := pipeline.NewWorkspace(&stubGenerator{}, nil, pipeline.Options{})
	r := newTestRouter(ws)
	ch, err := ws.AddCharacter(context.Background(), "Mara", "conductor")
	require.NoError(t, err)

	w := doRequest(r, http.MethodPost, "/characters/"+ch.ID+"/generate?wait=true", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var job entity.GenerationJob
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &job))
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, ch.ID, job.TargetID)
	assert.NotEmpty(t, ws.Project().Characters[0].ImageURL)

	w = doRequest(r, http.MethodGet, "/jobs/"+job.ID, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doRequest(r, http.MethodGet, "/jobs/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCharacterGenerateAsyncFailure(t *testing.T) {
	ws := pipeline.NewWorkspace(&stubGenerator{imageErr: errors.New("quota")}, nil, pipeline.Options{})
	r := newTestRouter(ws)
	ch, err := ws.AddCharacter(context.Background(), "Mara", "")
	require.NoError(t, err)

	w := doRequest(r, http.MethodPost, "/characters/"+ch.ID+"/generate", "", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var job entity.GenerationJob
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &job))

	require.Eventually(t, func() bool {
		snap, err := ws.Job(job.ID)
		return err == nil && snap.Status == entity.JobStatusFailed && !ws.Project().Characters[0].IsGenerating
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, ws.Project().Characters[0].ImageURL)

	w = doRequest(r, http.MethodPost, "/characters/missing/generate", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPanelIndexValidation(t *testing.T) {
	ws := pipeline.NewWorkspace(&stubGenerator{}, nil, pipeline.Options{})
	r := newTestRouter(ws)

	w := doRequest(r, http.MethodGet, "/storyboard/panels/abc/references", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodGet, "/storyboard/panels/7/references", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPanelRegenerateWithUploads(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{}
	ws := pipeline.NewWorkspace(gen, nil, pipeline.Options{})
	_, err := ws.Import(ctx, []byte(`{"shotlist":[{"sceneNumber":1,"shotNumber":1,"description":"wide"}],`+
		`"storyboard":[{"shot":{"sceneNumber":1,"shotNumber":1,"description":"wide"}}]}`))
	require.NoError(t, err)
	r := newTestRouter(ws)

	body := []byte(`{"edits":{"shot":{"description":"close-up"}},"uploads":["data:image/jpeg;base64,cmVm"]}`)
	w := doRequest(r, http.MethodPost, "/storyboard/panels/0/regenerate", "application/json", body)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	require.Eventually(t, func() bool {
		p := ws.Project()
		return p.Storyboard[0].HasImage() && !p.Storyboard[0].IsGenerating
	}, 2*time.Second, 5*time.Millisecond)

	p := ws.Project()
	assert.Equal(t, "close-up", p.Storyboard[0].Shot.Description)
	assert.Equal(t, "wide", p.Shotlist[0].Description, "panel edits never touch the shotlist")
	assert.Empty(t, p.Storyboard[0].ReferenceImageIDs, "uploads are not persisted")

	refs := gen.storyboardRefs()
	require.Len(t, refs, 1)
	assert.Equal(t, service.ReferenceKindUpload, refs[0].Kind)
	assert.Equal(t, "image/jpeg", refs[0].Image.MimeType)
	assert.Equal(t, "cmVm", refs[0].Image.Data)

	w = doRequest(r, http.MethodPost, "/storyboard/panels/0/regenerate", "application/json",
		[]byte(`{"uploads":["not a data url"]}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "1001", decode(t, w).ErrorCode)
}

func TestReadiness(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	ok := NewHealthHandler("test", map[string]HealthChecker{"postgres": stubChecker{}})
	bad := NewHealthHandler("test", map[string]HealthChecker{"redis": stubChecker{err: errors.New("down")}})
	r.GET("/ready", ok.Ready)
	r.GET("/ready-bad", bad.Ready)
	r.GET("/health", ok.Health)

	w := doRequest(r, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodGet, "/ready-bad", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "down")

	w = doRequest(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"test"`)
}
