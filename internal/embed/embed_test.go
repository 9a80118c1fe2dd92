package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/vector"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.EmbeddingConfig
		wantNil  bool
		wantType string
		wantErr  bool
	}{
		{name: "none", cfg: config.EmbeddingConfig{Provider: "none"}, wantNil: true},
		{name: "hash", cfg: config.EmbeddingConfig{Provider: "hash", Dimensions: 64}, wantType: "*embed.Hash"},
		{name: "openai", cfg: config.EmbeddingConfig{Provider: "openai", APIKey: "sk-test"}, wantType: "*embed.OpenAI"},
		{name: "openai without key", cfg: config.EmbeddingConfig{Provider: "openai"}, wantErr: true},
		{name: "unknown", cfg: config.EmbeddingConfig{Provider: "cohere"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.wantNil {
				if e != nil {
					t.Errorf("embedder = %T, want nil", e)
				}
				return
			}
			switch e.(type) {
			case *Hash:
				if tt.wantType != "*embed.Hash" {
					t.Errorf("got *Hash, want %s", tt.wantType)
				}
			case *OpenAI:
				if tt.wantType != "*embed.OpenAI" {
					t.Errorf("got *OpenAI, want %s", tt.wantType)
				}
			default:
				t.Errorf("unexpected type %T", e)
			}
		})
	}
}

func TestHash_Deterministic(t *testing.T) {
	h := NewHash(128)
	ctx := context.Background()
	a, err := h.Embed(ctx, "Siemens F0001 overcurrent")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := h.Embed(ctx, "siemens   f0001 OVERCURRENT")
	if len(a) != 128 {
		t.Fatalf("len = %d, want 128", len(a))
	}
	if vector.Cosine(a, b) < 0.999 {
		t.Errorf("same tokens should embed identically, cosine = %v", vector.Cosine(a, b))
	}
}

func TestHash_Similarity(t *testing.T) {
	h := NewHash(256)
	ctx := context.Background()
	q, _ := h.Embed(ctx, "F0001 overcurrent on conveyor drive")
	near, _ := h.Embed(ctx, "F0001 overcurrent after motor swap")
	far, _ := h.Embed(ctx, "hydraulic pressure relief valve chatter")
	if vector.Cosine(q, near) <= vector.Cosine(q, far) {
		t.Errorf("overlapping text should be closer: near=%v far=%v", vector.Cosine(q, near), vector.Cosine(q, far))
	}
}

func TestHash_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHash(8).Embed(ctx, "x"); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestTokens(t *testing.T) {
	got := Tokens("S7-1500: F0001, (overcurrent)!")
	want := []string{"s7", "1500", "f0001", "overcurrent"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Tokens = %v, want %v", got, want)
	}
}

func TestOpenAI_Embed(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		gotModel, _ = req["model"].(string)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.25,0.5,0.75]}],"model":"text-embedding-3-small","usage":{"prompt_tokens":3,"total_tokens":3}}`))
	}))
	defer srv.Close()

	e, err := NewOpenAI(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatal(err)
	}
	v, err := e.Embed(context.Background(), "F0001")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(v) != 3 || v[1] != 0.5 {
		t.Errorf("vector = %v", v)
	}
	if gotModel != "text-embedding-3-small" {
		t.Errorf("model = %q, want default", gotModel)
	}
}

func TestOpenAI_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	e, _ := NewOpenAI(OpenAIOptions{APIKey: "sk-bad", BaseURL: srv.URL + "/v1"})
	if _, err := e.Embed(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "embed: openai") {
		t.Errorf("err = %v, want wrapped openai error", err)
	}
}
