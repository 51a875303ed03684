package hfdatasets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/kailas-cloud/lookbook/internal/domain"
)

// fakeServer serves a split of n rows; row i has text "item i".
func fakeServer(t *testing.T, n int, nullText map[int]bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/rows" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("dataset") != "acme/captions" || q.Get("split") != "train" || q.Get("config") != "default" {
			http.Error(w, "bad dataset", http.StatusBadRequest)
			return
		}
		offset, _ := strconv.Atoi(q.Get("offset"))
		length, _ := strconv.Atoi(q.Get("length"))

		type row struct {
			RowIdx int            `json:"row_idx"`
			Row    map[string]any `json:"row"`
		}
		out := struct {
			Rows         []row `json:"rows"`
			NumRowsTotal int   `json:"num_rows_total"`
		}{Rows: []row{}, NumRowsTotal: n}
		for i := offset; i < offset+length && i < n; i++ {
			cells := map[string]any{
				"image": map[string]any{"src": fmt.Sprintf("https://cdn.example/%d.jpg", i), "height": 10, "width": 10},
				"text":  fmt.Sprintf("item %d", i),
			}
			if nullText[i] {
				cells["text"] = nil
			}
			out.Rows = append(out.Rows, row{RowIdx: i, Row: cells})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(baseURL string) *Client {
	return New(Config{BaseURL: baseURL, Dataset: "acme/captions", Attempts: 2})
}

func TestRow(t *testing.T) {
	srv, _ := fakeServer(t, 5, nil)
	row, err := newTestClient(srv.URL).Row(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.Index != 3 || row.Text != "item 3" || row.ImageURL != "https://cdn.example/3.jpg" {
		t.Errorf("unexpected row %+v", row)
	}
}

func TestRow_OutOfRange(t *testing.T) {
	srv, _ := fakeServer(t, 5, nil)
	_, err := newTestClient(srv.URL).Row(context.Background(), 9)
	if !errors.Is(err, domain.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestTexts_PagesWholeSplit(t *testing.T) {
	srv, calls := fakeServer(t, 230, map[int]bool{101: true})
	texts, err := newTestClient(srv.URL).Texts(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(texts) != 230 {
		t.Fatalf("expected 230 texts, got %d", len(texts))
	}
	if texts[0] != "item 0" || texts[229] != "item 229" {
		t.Errorf("texts out of order: %q .. %q", texts[0], texts[229])
	}
	if texts[101] != "" {
		t.Errorf("null cells must become empty text, got %q", texts[101])
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 page requests, got %d", got)
	}
}

func TestTexts_Limit(t *testing.T) {
	srv, calls := fakeServer(t, 500, nil)
	texts, err := newTestClient(srv.URL).Texts(context.Background(), 120)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(texts) != 120 || texts[119] != "item 119" {
		t.Errorf("unexpected texts: len=%d", len(texts))
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected 2 page requests, got %d", got)
	}
}

func TestRows_InvalidArgs(t *testing.T) {
	c := newTestClient("http://127.0.0.1:0")
	for _, tc := range []struct{ offset, length int }{{-1, 1}, {0, 0}, {0, MaxPageSize + 1}} {
		if _, _, err := c.Rows(context.Background(), tc.offset, tc.length); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("Rows(%d, %d): expected ErrInvalidRequest, got %v", tc.offset, tc.length, err)
		}
	}
}

func TestRows_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "dataset not found", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, _, err := newTestClient(srv.URL).Rows(context.Background(), 0, 1); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call for a 404, got %d", calls.Load())
	}
}

func TestRows_ServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"rows":[{"row_idx":0,"row":{"text":"ok","image":{"src":"u"}}}],"num_rows_total":1}`))
	}))
	defer srv.Close()

	rows, total, err := newTestClient(srv.URL).Rows(context.Background(), 0, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(rows) != 1 || rows[0].Text != "ok" {
		t.Errorf("unexpected result %+v total=%d", rows, total)
	}
	if calls.Load() != 2 {
		t.Errorf("expected a retry, got %d calls", calls.Load())
	}
}

func TestRows_SendsToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"rows":[],"num_rows_total":0}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Token: "hf_secret"})
	if _, _, err := c.Rows(context.Background(), 0, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auth != "Bearer hf_secret" {
		t.Errorf("unexpected Authorization header %q", auth)
	}
}
