package artifact

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestDownloadLocation(t *testing.T) {
	tests := []struct {
		template string
		ref      Ref
		want     string
	}{
		{"https://dl.example.com/api/v1/crates", Ref{Name: "serde", Version: "1.0.0"}, "https://dl.example.com/api/v1/crates/serde/1.0.0/download"},
		{"https://dl.example.com/{crate}/{crate}-{version}.crate", Ref{Name: "foo", Version: "0.1.0"}, "https://dl.example.com/foo/foo-0.1.0.crate"},
		{"https://dl.example.com/{prefix}/{crate}", Ref{Name: "abc", Version: "1.0.0"}, "https://dl.example.com/3/a/abc"},
		{"https://dl.example.com/{lowerprefix}/{crate}", Ref{Name: "SeRdE", Version: "1.0.0"}, "https://dl.example.com/se/rd/SeRdE"},
		{"https://dl.example.com/{sha256-checksum}", Ref{Name: "x", Version: "1.0.0", Checksum: "abcd"}, "https://dl.example.com/abcd"},
	}
	for _, tt := range tests {
		if got := NewDownload(tt.template, nil).Location(tt.ref); got != tt.want {
			t.Errorf("Location(%q) = %q, want %q", tt.template, got, tt.want)
		}
	}
}

func TestDownloadFileURL(t *testing.T) {
	tempDir := t.TempDir()
	crateDir := filepath.Join(tempDir, "foo")
	if err := os.MkdirAll(crateDir, 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(crateDir, "foo-0.1.0.crate"), []byte("bytes"), 0644); err != nil {
		t.Fatalf("Failed to write archive: %v", err)
	}
	d := NewDownload("file://"+tempDir+"/{crate}/{crate}-{version}.crate", nil)

	rc, err := d.Open(context.Background(), Ref{Name: "foo", Version: "0.1.0"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "bytes" {
		t.Errorf("read %q", data)
	}

	if _, err := d.Open(context.Background(), Ref{Name: "foo", Version: "9.9.9"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing file error = %v, want ErrNotFound", err)
	}
}

func TestFetcherRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "secret" {
			t.Errorf("missing token header")
		}
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, "crate bytes")
	}))
	defer server.Close()

	f := NewFetcher(WithHTTPClient(server.Client()), WithBaseDelay(time.Millisecond), WithToken("secret"))
	defer f.Close()

	body, err := f.Fetch(context.Background(), server.URL+"/foo")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != "crate bytes" {
		t.Errorf("body = %q", data)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server saw %d calls, want 3", got)
	}
}

func TestFetcherNotFoundIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	f := NewFetcher(WithHTTPClient(server.Client()), WithBaseDelay(time.Millisecond))
	defer f.Close()

	_, err := NewDownload(server.URL+"/{crate}/{version}", NewBreakerFetcher(f)).Open(context.Background(), Ref{Name: "foo", Version: "0.1.0"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Open() = %v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), server.URL+"/foo/0.1.0") {
		t.Errorf("error %q does not name the URL", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server saw %d calls, want 1", got)
	}
}

func TestBreakerTripsAfterRepeatedFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := NewFetcher(WithHTTPClient(server.Client()), WithMaxRetries(0))
	b := NewBreakerFetcher(f)
	defer b.Close()

	for i := 0; i < 5; i++ {
		if _, err := b.Fetch(context.Background(), server.URL+"/x"); err == nil {
			t.Fatalf("Fetch %d succeeded against failing server", i)
		}
	}
	host := strings.TrimPrefix(server.URL, "http://")
	if !b.Tripped(host) {
		t.Fatalf("breaker for %s not tripped after 5 failures", host)
	}
	if _, err := b.Fetch(context.Background(), server.URL+"/x"); !errors.Is(err, ErrUpstreamDown) {
		t.Errorf("Fetch with open breaker = %v, want ErrUpstreamDown", err)
	}
}
