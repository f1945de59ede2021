package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ByLCY/quotecard/background"
	"github.com/ByLCY/quotecard/card"
	"github.com/ByLCY/quotecard/layout"
	canvasrenderer "github.com/ByLCY/quotecard/renderer/canvas"
)

// newTestHandler 使用默认 1080x1080 样式与内置字体，且不配置访问密钥。
func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	style := layout.DefaultStyle()
	style.Quote.Font.Src = "embed:go-regular"
	style.Author.Font.Src = "embed:go-regular"
	r := canvasrenderer.NewRenderer(".")
	return New(&card.Generator{
		Style:       style,
		Typesetter:  r,
		Renderer:    r,
		Backgrounds: &background.Unsplash{},
	}, nil)
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v (%q)", err, rec.Body.String())
	}
	msg, ok := body["error"]
	if !ok {
		t.Fatalf("response lacks error key: %v", body)
	}
	return msg
}

func TestHome(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if rec.Body.String() != LivenessMessage {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestGenerateWithoutCredentialReturnsPNG(t *testing.T) {
	h := newTestHandler(t)
	rec := post(t, h, `{"text":"Stay hungry","author":"Jobs"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("unexpected content type %q", ct)
	}
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode PNG: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 1080, 1080) {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	// 左上角远离文字，应为纯色回退背景 (30,30,30)
	r, g, b, _ := img.At(5, 5).RGBA()
	if r>>8 != 30 || g>>8 != 30 || b>>8 != 30 {
		t.Fatalf("expected dark gray fallback, got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestGenerateValidation(t *testing.T) {
	h := newTestHandler(t)
	for _, body := range []string{
		`{"author":"Jobs"}`,
		`{"text":"Stay hungry"}`,
		`{"text":"","author":""}`,
		`{}`,
	} {
		rec := post(t, h, body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rec.Code)
		}
		if msg := decodeError(t, rec); msg != "Missing text or author" {
			t.Fatalf("%s: unexpected message %q", body, msg)
		}
	}
}

func TestGenerateInvalidJSON(t *testing.T) {
	h := newTestHandler(t)
	rec := post(t, h, `{"text":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := decodeError(t, rec); !strings.HasPrefix(msg, "invalid JSON body") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestGenerateInternalErrorIs500(t *testing.T) {
	style := layout.DefaultStyle()
	style.Width = 0 // 布局阶段必然失败
	r := canvasrenderer.NewRenderer(".")
	h := New(&card.Generator{Style: style, Typesetter: r, Renderer: r}, nil)

	rec := post(t, h, `{"text":"Stay hungry","author":"Jobs"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if msg := decodeError(t, rec); msg == "" {
		t.Fatalf("expected error message")
	}
}

func TestPanicIsRecoveredAs500(t *testing.T) {
	h := New(nil, nil) // nil generator panics inside the handler
	rec := post(t, h, `{"text":"Stay hungry","author":"Jobs"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	decodeError(t, rec)
}

func TestWrongMethod(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/generate", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Config{Addr: "127.0.0.1:0"}, http.NotFoundHandler(), nil)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestRunInvalidAddr(t *testing.T) {
	if err := Run(context.Background(), Config{Addr: "not-an-addr"}, http.NotFoundHandler(), nil); err == nil {
		t.Fatalf("expected listen error")
	}
}
