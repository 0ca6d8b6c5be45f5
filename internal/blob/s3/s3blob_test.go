package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alanyoungcy/dockside/internal/domain"
	"github.com/alanyoungcy/dockside/internal/store/memory"
)

type fakeWriter struct {
	objects map[string][]byte
	types   map[string]string
	fail    error
	// truncate makes Stat report one byte short, like a torn upload.
	truncate bool
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{objects: map[string][]byte{}, types: map[string]string{}}
}

func (w *fakeWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	if w.fail != nil {
		return w.fail
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.objects[path] = b
	w.types[path] = contentType
	return nil
}

func (w *fakeWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return w.Put(ctx, path, data, "multipart")
}

func (w *fakeWriter) Stat(_ context.Context, path string) (domain.BlobInfo, error) {
	b, ok := w.objects[path]
	if !ok {
		return domain.BlobInfo{}, domain.ErrNotFound
	}
	size := int64(len(b))
	if w.truncate {
		size--
	}
	return domain.BlobInfo{Path: path, Size: size, ContentType: w.types[path]}, nil
}

func seedTrades(t *testing.T, store *memory.TradeStore, base time.Time) {
	t.Helper()
	for i := 0; i < 4; i++ {
		err := store.Insert(context.Background(), domain.Trade{
			ID:        fmt.Sprintf("t%d", i),
			SessionID: "alice",
			DockID:    "harbor",
			ItemID:    domain.ItemWater,
			Side:      domain.TradeSideBuy,
			Outcome:   domain.TradeOutcomeFilled,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
}

func TestArchiveTrades(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	trades := memory.NewTradeStore()
	audit := memory.NewAuditStore()
	seedTrades(t, trades, base)

	w := newFakeWriter()
	a := NewArchiver(w, w, trades, audit, "")
	cutoff := base.Add(150 * time.Minute)

	n, err := a.ArchiveTrades(ctx, cutoff)
	if err != nil {
		t.Fatalf("ArchiveTrades: %v", err)
	}
	if n != 3 {
		t.Fatalf("archived = %d, want 3", n)
	}

	path := "archive/trades/2026-03-01T023000Z.jsonl"
	body, ok := w.objects[path]
	if !ok {
		t.Fatalf("no object at %s; have %v", path, w.objects)
	}
	if w.types[path] != jsonlContentType {
		t.Errorf("content type = %q", w.types[path])
	}

	var ids []string
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		var tr domain.Trade
		if err := json.Unmarshal(sc.Bytes(), &tr); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		ids = append(ids, tr.ID)
	}
	if strings.Join(ids, ",") != "t0,t1,t2" {
		t.Errorf("archived ids = %v", ids)
	}

	left, _ := trades.ListBefore(ctx, base.Add(24*time.Hour))
	if len(left) != 1 || left[0].ID != "t3" {
		t.Errorf("remaining = %+v", left)
	}

	entries, _ := audit.List(ctx, domain.ListOpts{})
	if len(entries) != 1 || entries[0].Event != "archive_trades" || entries[0].Detail["path"] != path {
		t.Errorf("audit = %+v", entries)
	}

	n, err = a.ArchiveTrades(ctx, cutoff)
	if err != nil || n != 0 {
		t.Errorf("second run = %d, %v; want 0, nil", n, err)
	}
}

func TestArchiveKeepsRowsWhenUploadFails(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	trades := memory.NewTradeStore()
	seedTrades(t, trades, base)

	w := newFakeWriter()
	w.fail = errors.New("bucket gone")
	a := NewArchiver(w, w, trades, memory.NewAuditStore(), "cold")

	if _, err := a.ArchiveTrades(ctx, base.Add(24*time.Hour)); err == nil {
		t.Fatal("expected upload error")
	}
	left, _ := trades.ListBefore(ctx, base.Add(24*time.Hour))
	if len(left) != 4 {
		t.Errorf("rows deleted despite failed upload: %d left", len(left))
	}
}

func TestArchiveKeepsRowsWhenUploadUnverified(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	trades := memory.NewTradeStore()
	seedTrades(t, trades, base)

	w := newFakeWriter()
	w.truncate = true
	a := NewArchiver(w, w, trades, memory.NewAuditStore(), "cold")

	_, err := a.ArchiveTrades(ctx, base.Add(24*time.Hour))
	if err == nil || !strings.Contains(err.Error(), "verify") {
		t.Fatalf("error = %v, want verify failure", err)
	}
	left, _ := trades.ListBefore(ctx, base.Add(24*time.Hour))
	if len(left) != 4 {
		t.Errorf("rows deleted despite unverified upload: %d left", len(left))
	}

	missing := newFakeWriter()
	a = NewArchiver(newFakeWriter(), missing, trades, memory.NewAuditStore(), "cold")
	if _, err := a.ArchiveTrades(ctx, base.Add(24*time.Hour)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestBatches(t *testing.T) {
	paths := []string{"a", "b", "c", "d", "e"}
	got := batches(paths, 2)
	if len(got) != 3 || len(got[0]) != 2 || len(got[2]) != 1 || got[2][0] != "e" {
		t.Fatalf("batches = %v", got)
	}
	if len(batches(nil, 2)) != 0 {
		t.Fatal("empty input produced batches")
	}
	if got := batches(paths[:2], 2); len(got) != 1 {
		t.Fatalf("exact batch split into %d", len(got))
	}
}

func TestArchiveAudit(t *testing.T) {
	ctx := context.Background()
	audit := memory.NewAuditStore()
	for _, ev := range []string{"session_login", "trade_buy"} {
		if err := audit.Log(ctx, ev, map[string]any{"session_id": "alice"}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	w := newFakeWriter()
	a := NewArchiver(w, w, memory.NewTradeStore(), audit, "cold")
	cutoff := time.Now().Add(time.Hour)

	n, err := a.ArchiveAudit(ctx, cutoff)
	if err != nil || n != 2 {
		t.Fatalf("ArchiveAudit = %d, %v", n, err)
	}
	if len(w.objects) != 1 {
		t.Fatalf("objects = %v", w.objects)
	}
	for path := range w.objects {
		if !strings.HasPrefix(path, "cold/audit/") {
			t.Errorf("path = %s", path)
		}
	}

	rest, _ := audit.List(ctx, domain.ListOpts{})
	if len(rest) != 1 || rest[0].Event != "archive_audit" {
		t.Errorf("audit after archive = %+v", rest)
	}
}

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		in     string
		useSSL bool
		want   string
	}{
		{"https://s3.example.com", false, "https://s3.example.com"},
		{"minio:9000", false, "http://minio:9000"},
		{"minio:9000", true, "https://minio:9000"},
	}
	for _, tt := range tests {
		if got := normaliseEndpoint(tt.in, tt.useSSL); got != tt.want {
			t.Errorf("normaliseEndpoint(%q, %v) = %q, want %q", tt.in, tt.useSSL, got, tt.want)
		}
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(fmt.Errorf("wrap: %w", &types.NoSuchKey{})) {
		t.Error("NoSuchKey not detected")
	}
	if !isNotFound(&types.NotFound{}) {
		t.Error("NotFound not detected")
	}
	if isNotFound(errors.New("boom")) {
		t.Error("plain error treated as not found")
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(context.Background(), ClientConfig{Region: "us-east-1"}); err == nil {
		t.Error("expected error without bucket")
	}
	if _, err := New(context.Background(), ClientConfig{Bucket: "b"}); err == nil {
		t.Error("expected error without region")
	}
}
