package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func pngBase64(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{G: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestHTTPBackendRoundTrip(t *testing.T) {
	var gotLoad map[string]interface{}
	var gotGen map[string]interface{}
	encoded := pngBase64(t, 16, 8)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models/load", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotLoad)
		json.NewEncoder(w).Encode(map[string]string{"model_id": "kandinsky-2"})
	})
	mux.HandleFunc("/v1/text2img", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotGen)
		json.NewEncoder(w).Encode(map[string][]string{
			"images": {encoded, "data:image/png;base64," + encoded},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	b, err := NewHTTPBackend(HTTPConfig{URL: server.URL + "/"})
	if err != nil {
		t.Fatalf("NewHTTPBackend failed: %v", err)
	}

	h, err := b.Initialize(context.Background(), "cuda", TaskText2Img)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if gotLoad["device"] != "cuda" || gotLoad["task_type"] != "text2img" {
		t.Errorf("load body = %v", gotLoad)
	}

	images, err := h.Generate(context.Background(), Text2ImgArgs{
		Prompt:     "a red fox",
		NumSteps:   75,
		BatchSize:  1,
		PriorSteps: "4",
		Seed:       42,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("len(images) = %d, want 2", len(images))
	}
	if images[0].Bounds().Dx() != 16 || images[0].Bounds().Dy() != 8 {
		t.Errorf("bounds = %v", images[0].Bounds())
	}

	if gotGen["model_id"] != "kandinsky-2" {
		t.Errorf("model_id = %v", gotGen["model_id"])
	}
	if _, ok := gotGen["prior_steps"].(string); !ok {
		t.Errorf("prior_steps 应以字符串发送, got %T", gotGen["prior_steps"])
	}
	if gotGen["batch_size"] != float64(1) || gotGen["seed"] != float64(42) {
		t.Errorf("gen body = %v", gotGen)
	}
}

func TestHTTPBackendAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"model crashed"}`))
	}))
	defer server.Close()

	b, _ := NewHTTPBackend(HTTPConfig{URL: server.URL})
	h := &httpHandle{backend: b}

	_, err := h.Generate(context.Background(), Text2ImgArgs{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError || apiErr.Message != "model crashed" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestHTTPBackendLoadRetries(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"model_id":"m"}`))
	}))
	defer server.Close()

	b, _ := NewHTTPBackend(HTTPConfig{
		URL: server.URL,
		Retry: RetryPolicy{
			MaxRetries:           2,
			InitialDelay:         5 * time.Millisecond,
			MaxDelay:             20 * time.Millisecond,
			BackoffMultiplier:    2.0,
			RetryableStatusCodes: []int{http.StatusServiceUnavailable},
		},
	})

	if _, err := b.Initialize(context.Background(), "cpu", TaskText2Img); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if requests != 2 {
		t.Errorf("requests = %d, want 2", requests)
	}
}

func TestHTTPBackendGenerateDoesNotRetry(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	b, _ := NewHTTPBackend(HTTPConfig{URL: server.URL, Retry: DefaultRetryPolicy()})
	h := &httpHandle{backend: b}

	if _, err := h.Generate(context.Background(), Text2ImgArgs{}); err == nil {
		t.Fatal("Expected error")
	}
	if requests != 1 {
		t.Errorf("生成请求不应重试, requests = %d", requests)
	}
}

func TestNewHTTPBackendMissingURL(t *testing.T) {
	if _, err := NewHTTPBackend(HTTPConfig{}); err == nil {
		t.Error("Expected error for missing url")
	}
}

func TestDecodeBase64ImageInvalid(t *testing.T) {
	if _, err := decodeBase64Image("not base64!"); err == nil {
		t.Error("Expected error")
	}
}
