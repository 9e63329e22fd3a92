package parser

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	vexora "github.com/PeterKuehne/vexora"
)

func TestClientParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/parse" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("multipart form: %v", err)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		if hdr.Filename != "contract.docx" {
			t.Errorf("uploaded filename = %q", hdr.Filename)
		}

		json.NewEncoder(w).Encode(ParsedDocument{
			DocumentID: "srv-1",
			Metadata:   vexora.DocumentMeta{Filename: "contract.docx", PageCount: 4},
			Blocks: []vexora.ContentBlock{
				{Type: vexora.BlockParagraph, Content: "clause one", Position: 0, PageNumber: 1},
			},
			FullText: "clause one",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	doc, err := c.Parse(context.Background(), "contract.docx", []byte("binary"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.DocumentID != "srv-1" {
		t.Errorf("DocumentID = %q", doc.DocumentID)
	}
	if len(doc.Blocks) != 1 || doc.Blocks[0].Content != "clause one" {
		t.Errorf("blocks = %+v", doc.Blocks)
	}
	if doc.Metadata.PageCount != 4 {
		t.Errorf("PageCount = %d", doc.Metadata.PageCount)
	}
}

func TestClientParseFillsMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(ParsedDocument{
			Blocks: []vexora.ContentBlock{{Type: vexora.BlockParagraph, Content: "text"}},
		})
	}))
	defer srv.Close()

	doc, err := NewClient(srv.URL).Parse(context.Background(), "a.docx", []byte("x"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.DocumentID == "" {
		t.Error("DocumentID not assigned")
	}
	if doc.Metadata.Filename != "a.docx" {
		t.Errorf("Filename = %q", doc.Metadata.Filename)
	}
}

func TestClientParseHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("overloaded"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Parse(context.Background(), "a.docx", []byte("x"))
	var herr *vexora.ErrHTTP
	if !errors.As(err, &herr) {
		t.Fatalf("error = %v (%T), want *vexora.ErrHTTP", err, err)
	}
	if herr.Status != http.StatusServiceUnavailable {
		t.Errorf("Status = %d", herr.Status)
	}
	if herr.Body != "overloaded" {
		t.Errorf("Body = %q", herr.Body)
	}
	if herr.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v", herr.RetryAfter)
	}
}

func TestRetryAfterHeader(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"12", 12 * time.Second},
		{"0", 0},
		{"-3", 0},
		{"Wed, 21 Oct 2026 07:28:00 GMT", 0},
	}
	for _, tt := range tests {
		if got := retryAfter(tt.in); got != tt.want {
			t.Errorf("retryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
