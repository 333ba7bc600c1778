package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/katalogcu/partalog/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractText(t *testing.T) {
	var got struct {
		Model          string            `json:"model"`
		ResponseFormat map[string]string `json:"response_format"`
		Messages       []struct {
			Content []contentPart `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"is_parts_list\":true}"}}]}`))
	}))
	defer server.Close()

	o := New("sk-test", server.URL, server.Client())
	text, err := o.ExtractText(context.Background(), providers.Config{
		Model:  "gpt-4o",
		Prompt: "classify",
		Image:  []byte("\x89PNG\r\n\x1a\n0000"),
		JSON:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"is_parts_list":true}`, text)

	assert.Equal(t, "gpt-4o", got.Model)
	assert.Equal(t, "json_object", got.ResponseFormat["type"])
	require.Len(t, got.Messages, 1)
	require.Len(t, got.Messages[0].Content, 2)
	assert.Equal(t, "classify", got.Messages[0].Content[0].Text)
	assert.True(t, strings.HasPrefix(got.Messages[0].Content[1].ImageURL.URL, "data:image/png;base64,"))
}

func TestExtractTextRequiresKey(t *testing.T) {
	_, err := New("", "", nil).ExtractText(context.Background(), providers.Config{})
	assert.Error(t, err)
}

func TestExtractTextNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	_, err := New("sk-test", server.URL, nil).ExtractText(context.Background(), providers.Config{})
	assert.ErrorContains(t, err, "no choices")
}
