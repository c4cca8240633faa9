package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openresearch/orchestrator/internal/prompts"
)

func TestGenerate_RendersPromptAndPostsIt(t *testing.T) {
	var received generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(generateResponse{Text: "three questions here"})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, prompts.NewRegistry(zap.NewNop()), zap.NewNop())

	out, err := c.Generate(context.Background(), prompts.Clarification, map[string]string{
		"query": "quantum computing",
	})
	require.NoError(t, err)
	assert.Equal(t, "three questions here", out)
	assert.Contains(t, received.Prompt, "Original Query: quantum computing",
		"the prompt is rendered before it goes over the wire")
}

func TestGenerate_ServerErrorWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, prompts.NewRegistry(zap.NewNop()), zap.NewNop())

	_, err := c.Generate(context.Background(), prompts.Clarification, map[string]string{"query": "q"})
	require.Error(t, err)

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, prompts.Clarification, genErr.Prompt)
	assert.Contains(t, genErr.Error(), "503")
}

func TestGenerate_UnknownPromptFailsBeforeRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should reach the service for an unknown prompt")
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, prompts.NewRegistry(zap.NewNop()), zap.NewNop())

	_, err := c.Generate(context.Background(), "bogus_prompt", nil)
	assert.Error(t, err)
}

func TestGenerate_UnreachableService(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, prompts.NewRegistry(zap.NewNop()), zap.NewNop())

	_, err := c.Generate(context.Background(), prompts.Clarification, map[string]string{"query": "q"})
	var genErr *GenerationError
	assert.ErrorAs(t, err, &genErr)
}
