package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"pic2catalog-server/modules/common/config"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, "produto.png")
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/generate_catalog", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newTestRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func pipelineResponses() []string {
	return []string{validCatalogJSON, reviewsJSON(5), validSummaryJSON}
}

func TestHandleGenerate(t *testing.T) {
	gen := &fakeGenerator{responses: pipelineResponses()}
	router := newTestRouter(NewHandler(newTestService(gen), HandlerOptions{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "file", pngBytes(t)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Errorf("missing X-Request-ID")
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"catalog_info", "reviews_info"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("response missing %q", key)
		}
	}

	var info ProductInfo
	json.Unmarshal(rec.Body.Bytes(), &info)
	if info.CatalogInfo.ProductName != "Tênis de Corrida Veloz" || len(info.ReviewsInfo.Reviews) != 5 {
		t.Errorf("unexpected body: %+v", info)
	}

	if _, mime, _ := gen.requests[0].Prompt.Image(); mime != "image/png" {
		t.Errorf("image mime = %q, want image/png", mime)
	}
}

func TestHandleGenerateErrors(t *testing.T) {
	tests := []struct {
		name       string
		handler    *Handler
		req        func(t *testing.T) *http.Request
		wantStatus int
		wantKind   string
		wantDetail string
	}{
		{
			name: "configuration error",
			handler: NewHandler(nil, HandlerOptions{
				ConfigErr: &config.ConfigurationError{Setting: "GCP_PROJECT", Err: config.ErrMissingProject},
			}),
			req:        func(t *testing.T) *http.Request { return uploadRequest(t, "file", pngBytes(t)) },
			wantStatus: http.StatusInternalServerError,
			wantKind:   KindConfiguration,
			wantDetail: "GCP_PROJECT environment variable not set",
		},
		{
			name:       "missing file field",
			handler:    NewHandler(newTestService(&fakeGenerator{}), HandlerOptions{}),
			req:        func(t *testing.T) *http.Request { return uploadRequest(t, "photo", pngBytes(t)) },
			wantStatus: http.StatusBadRequest,
			wantKind:   KindUpload,
		},
		{
			name:       "not an image",
			handler:    NewHandler(newTestService(&fakeGenerator{}), HandlerOptions{}),
			req:        func(t *testing.T) *http.Request { return uploadRequest(t, "file", []byte("hello, world")) },
			wantStatus: http.StatusBadRequest,
			wantKind:   KindUpload,
		},
		{
			name:       "upload too large",
			handler:    NewHandler(newTestService(&fakeGenerator{}), HandlerOptions{MaxUploadBytes: 16}),
			req:        func(t *testing.T) *http.Request { return uploadRequest(t, "file", pngBytes(t)) },
			wantStatus: http.StatusBadRequest,
			wantKind:   KindUpload,
		},
		{
			name:       "generation failure",
			handler:    NewHandler(newTestService(&fakeGenerator{errs: []error{errors.New("boom")}}), HandlerOptions{}),
			req:        func(t *testing.T) *http.Request { return uploadRequest(t, "file", pngBytes(t)) },
			wantStatus: http.StatusBadGateway,
			wantKind:   KindGeneration,
			wantDetail: "Error processing image:",
		},
		{
			name:       "unparseable model output",
			handler:    NewHandler(newTestService(&fakeGenerator{responses: []string{"not json"}}), HandlerOptions{}),
			req:        func(t *testing.T) *http.Request { return uploadRequest(t, "file", pngBytes(t)) },
			wantStatus: http.StatusBadGateway,
			wantKind:   KindGeneration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newTestRouter(tt.handler).ServeHTTP(rec, tt.req(t))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			var body ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", body.Kind, tt.wantKind)
			}
			if !strings.Contains(body.Detail, tt.wantDetail) {
				t.Errorf("detail = %q, want it to contain %q", body.Detail, tt.wantDetail)
			}
		})
	}
}

func TestHandleGenerateGuard(t *testing.T) {
	guarded := false
	h := NewHandler(newTestService(&fakeGenerator{}), HandlerOptions{
		Guard: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				guarded = true
				w.WriteHeader(http.StatusTooManyRequests)
			})
		},
	})

	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, uploadRequest(t, "file", pngBytes(t)))
	if !guarded || rec.Code != http.StatusTooManyRequests {
		t.Errorf("guard not applied: guarded=%v status=%d", guarded, rec.Code)
	}
}

func TestHandleInfo(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(NewHandler(nil, HandlerOptions{})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/info", nil))

	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["message"] != WelcomeMessage {
		t.Errorf("message = %q", body["message"])
	}
}

func TestHandleSchema(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(NewHandler(nil, HandlerOptions{})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schema", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"catalog_info", "reviews_info", "Nome do Produto", "pontos_fortes"} {
		if !strings.Contains(body, want) {
			t.Errorf("schema missing %q", want)
		}
	}
}

func dialStream(t *testing.T, h *Handler) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(newTestRouter(h))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/catalog"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestStream(t *testing.T) {
	gen := &fakeGenerator{responses: pipelineResponses()}
	conn := dialStream(t, NewHandler(newTestService(gen), HandlerOptions{}))

	if err := conn.WriteMessage(websocket.BinaryMessage, pngBytes(t)); err != nil {
		t.Fatal(err)
	}

	var stages []string
	for {
		var msg StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.RequestID == "" {
			t.Errorf("message without request id: %+v", msg)
		}
		if msg.Type == MessageStage {
			stages = append(stages, msg.Stage)
			continue
		}
		if msg.Type != MessageResult {
			t.Fatalf("got %+v, want result", msg)
		}
		if msg.Result == nil || msg.Result.CatalogInfo.ProductName == "" {
			t.Errorf("empty result")
		}
		break
	}

	want := []string{StageCatalog, StageReviews, StageSummary}
	if strings.Join(stages, ",") != strings.Join(want, ",") {
		t.Errorf("stages = %v, want %v", stages, want)
	}
}

func TestStreamErrors(t *testing.T) {
	t.Run("configuration", func(t *testing.T) {
		conn := dialStream(t, NewHandler(nil, HandlerOptions{
			ConfigErr: &config.ConfigurationError{Setting: "GCP_PROJECT", Err: config.ErrMissingProject},
		}))

		var msg StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatal(err)
		}
		if msg.Type != MessageError || msg.Kind != KindConfiguration {
			t.Errorf("got %+v", msg)
		}
	})

	t.Run("text frame", func(t *testing.T) {
		conn := dialStream(t, NewHandler(newTestService(&fakeGenerator{}), HandlerOptions{}))
		conn.WriteMessage(websocket.TextMessage, []byte("hello"))

		var msg StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatal(err)
		}
		if msg.Type != MessageError || msg.Kind != KindUpload {
			t.Errorf("got %+v", msg)
		}
	})

	t.Run("oversized frame", func(t *testing.T) {
		gen := &fakeGenerator{}
		conn := dialStream(t, NewHandler(newTestService(gen), HandlerOptions{MaxUploadBytes: 16}))
		if err := conn.WriteMessage(websocket.BinaryMessage, bytes.Repeat([]byte{0x89}, 64)); err != nil {
			t.Fatal(err)
		}

		var msg StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatal(err)
		}
		if msg.Type != MessageError || msg.Kind != KindUpload {
			t.Errorf("got %+v", msg)
		}
		if !strings.Contains(msg.Message, "exceeds upload limit") {
			t.Errorf("message = %q", msg.Message)
		}
		gen.mu.Lock()
		defer gen.mu.Unlock()
		if len(gen.requests) != 0 {
			t.Errorf("generator called %d times for a rejected upload", len(gen.requests))
		}
	})

	t.Run("generation", func(t *testing.T) {
		gen := &fakeGenerator{errs: []error{errors.New("boom")}}
		conn := dialStream(t, NewHandler(newTestService(gen), HandlerOptions{}))
		conn.WriteMessage(websocket.BinaryMessage, pngBytes(t))

		for {
			var msg StreamMessage
			if err := conn.ReadJSON(&msg); err != nil {
				t.Fatal(err)
			}
			if msg.Type == MessageStage {
				continue
			}
			if msg.Type != MessageError || msg.Kind != KindGeneration {
				t.Errorf("got %+v", msg)
			}
			break
		}
	})
}
