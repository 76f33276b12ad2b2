package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sagehive/sagehive/pkg/domain"
	"github.com/sagehive/sagehive/pkg/llm"
)

func TestNewOllamaClient(t *testing.T) {
	client := llm.NewOllamaClient("http://localhost:11434", "llama3.2", nil)
	if client == nil {
		t.Error("Expected client, got nil")
	}

	opts := &llm.OllamaOptions{
		Temperature: 0.8,
		MaxTokens:   1500,
		TopP:        0.95,
		TopK:        50,
	}
	clientWithOpts := llm.NewOllamaClient("http://localhost:11434", "llama3.2", opts)
	if clientWithOpts == nil {
		t.Error("Expected client with options, got nil")
	}
}

func TestOllamaClient_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Expected path /api/chat, got %s", r.URL.Path)
		}

		if r.Method != "POST" {
			t.Errorf("Expected POST method, got %s", r.Method)
		}

		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}

		if req["model"] != "test-model" {
			t.Errorf("Expected model test-model, got %v", req["model"])
		}

		messages, ok := req["messages"].([]interface{})
		if !ok || len(messages) != 2 {
			t.Errorf("Expected system + user messages, got %v", req["messages"])
		}

		response := map[string]interface{}{
			"message": map[string]interface{}{
				"role":    "assistant",
				"content": "Test response",
			},
			"done":              true,
			"eval_count":        50,
			"prompt_eval_count": 30,
			"total_duration":    1000000000,
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			t.Errorf("Failed to encode response: %v", err)
		}
	}))
	defer server.Close()

	client := llm.NewOllamaClient(server.URL, "test-model", nil)

	ctx := context.Background()
	response, err := client.Complete(ctx, domain.CompletionRequest{
		SystemPrompt: "You are a research assistant.",
		UserPrompt:   "Test message",
		Temperature:  0.7,
		MaxTokens:    2000,
	})

	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if response == nil {
		t.Fatal("Expected response, got nil")
	}

	if response.Content != "Test response" {
		t.Errorf("Expected content 'Test response', got %s", response.Content)
	}

	if response.Usage.CompletionTokens != 50 {
		t.Errorf("Expected 50 completion tokens, got %d", response.Usage.CompletionTokens)
	}

	if response.Usage.PromptTokens != 30 {
		t.Errorf("Expected 30 prompt tokens, got %d", response.Usage.PromptTokens)
	}
}

func TestOllamaClient_CompleteJSONMode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}

		if req["format"] != "json" {
			t.Errorf("Expected format json, got %v", req["format"])
		}

		response := map[string]interface{}{
			"message": map[string]interface{}{
				"role":    "assistant",
				"content": `{"focus_areas":["technical","conceptual"]}`,
			},
			"done": true,
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := llm.NewOllamaClient(server.URL, "test-model", nil)

	response, err := client.Complete(context.Background(), domain.CompletionRequest{
		UserPrompt: "Classify this query",
		JSONMode:   true,
	})

	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(response.Content), &parsed); err != nil {
		t.Errorf("Expected valid JSON content, got %s", response.Content)
	}
}

func TestOllamaClient_CompleteServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("model not loaded"))
	}))
	defer server.Close()

	client := llm.NewOllamaClient(server.URL, "test-model", nil)

	_, err := client.Complete(context.Background(), domain.CompletionRequest{
		UserPrompt: "Test message",
	})

	if err == nil {
		t.Fatal("Expected error for server failure, got nil")
	}
}

func TestOllamaClient_CheckHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("Expected path /api/tags, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := llm.NewOllamaClient(server.URL, "test-model", nil)

	if err := client.CheckHealth(context.Background()); err != nil {
		t.Errorf("Expected healthy, got %v", err)
	}
}

func TestOllamaClient_ListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"models": []map[string]interface{}{
				{"name": "llama3.2"},
				{"name": "qwen2.5"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := llm.NewOllamaClient(server.URL, "test-model", nil)

	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}

	if len(models) != 2 {
		t.Errorf("Expected 2 models, got %d", len(models))
	}
}
