package imagegen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyboard-ai-api/internal/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(context.Background(), &config.ImageConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL + "/",
		APIVersion: "v1beta",
		ImageModel: "imagen",
		EditModel:  "flash-image",
	})
	require.NoError(t, err)
	return c
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func predictParameters(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	params, ok := body["parameters"].(map[string]any)
	require.True(t, ok, "parameters missing: %v", body)
	return params
}

func TestGenerate_PredictRequest(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/imagen:predict", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		body = decodeBody(t, r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"predictions":[{"bytesBase64Encoded":"QUJD","mimeType":"image/png"}]}`))
	})

	img, err := c.Generate(context.Background(), "a cat", "21:9", "16:9")
	require.NoError(t, err)
	assert.Equal(t, "QUJD", img.Data)
	assert.Equal(t, "image/png", img.MimeType)

	instances, ok := body["instances"].([]any)
	require.True(t, ok)
	require.Len(t, instances, 1)
	assert.Equal(t, "a cat", instances[0].(map[string]any)["prompt"])
	params := predictParameters(t, body)
	assert.EqualValues(t, 1, params["sampleCount"])
	assert.Equal(t, "16:9", params["aspectRatio"])
}

func TestGenerate_AspectRatioClamp(t *testing.T) {
	cases := map[string]string{
		"3:4":  "3:4",
		"4:3":  "4:3",
		"9:16": "9:16",
		"16:9": "16:9",
		"1:1":  "16:9",
		"":     "16:9",
	}
	for in, want := range cases {
		var body map[string]any
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			body = decodeBody(t, r)
			_, _ = w.Write([]byte(`{"predictions":[{"bytesBase64Encoded":"QUJD"}]}`))
		})

		img, err := c.Generate(context.Background(), "p", in, "16:9")
		require.NoError(t, err, in)
		assert.Equal(t, "image/png", img.MimeType, in)
		assert.Equal(t, want, predictParameters(t, body)["aspectRatio"], in)
	}
}

func TestGenerate_ErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"denied","status":"PERMISSION_DENIED"}}`))
	})

	_, err := c.Generate(context.Background(), "p", "16:9", "16:9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestGenerate_NoPredictions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"predictions":[]}`))
	})

	_, err := c.Generate(context.Background(), "p", "16:9", "16:9")
	assert.Error(t, err)
}

func TestGenerate_ModelNotConfigured(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	c.imageModel = ""

	_, err := c.Generate(context.Background(), "p", "16:9", "16:9")
	require.Error(t, err)
	assert.False(t, called)
}

func TestGenerateWithReferences(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/flash-image:generateContent", r.URL.Path)
		body = decodeBody(t, r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"here"},{"inlineData":{"mimeType":"image/png","data":"WFla"}}]}}]}`))
	})

	img, err := c.GenerateWithReferences(context.Background(), []Part{
		{Text: "draw"},
		{Image: &Image{MimeType: "image/jpeg", Data: "AAAA"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "WFla", img.Data)
	assert.Equal(t, "image/png", img.MimeType)

	contents, ok := body["contents"].([]any)
	require.True(t, ok)
	require.Len(t, contents, 1)
	parts, ok := contents[0].(map[string]any)["parts"].([]any)
	require.True(t, ok)
	require.Len(t, parts, 2)
	assert.Equal(t, "draw", parts[0].(map[string]any)["text"])
	inline, ok := parts[1].(map[string]any)["inlineData"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", inline["mimeType"])
	assert.Equal(t, "AAAA", inline["data"])

	genCfg, ok := body["generationConfig"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"IMAGE", "TEXT"}, genCfg["responseModalities"])
}

func TestGenerateWithReferences_TextOnlyResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"sorry"}]}}]}`))
	})

	_, err := c.GenerateWithReferences(context.Background(), []Part{{Text: "draw"}})
	assert.Error(t, err)
}

func TestGenerateWithReferences_BadImageData(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := c.GenerateWithReferences(context.Background(), []Part{
		{Text: "draw"},
		{Image: &Image{MimeType: "image/png", Data: "not base64!"}},
	})
	require.Error(t, err)
	assert.False(t, called)
}
