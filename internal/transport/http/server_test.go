package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/qakkaio/qakka/internal/facade"
	"github.com/qakkaio/qakka/internal/queueregistry"
	"github.com/qakkaio/qakka/internal/shard"
	"github.com/qakkaio/qakka/internal/store"
	pebblestore "github.com/qakkaio/qakka/internal/storage/pebble"
	"github.com/qakkaio/qakka/internal/sweeper"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	if err != nil {
		t.Fatalf("pebblestore.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := store.New(db)
	allocator := shard.New(s, shard.Config{MaxShardSize: 1000, AdvanceWindow: time.Minute, Interval: time.Hour}, nil, nil)
	sw := sweeper.New(sweeper.Config{Interval: time.Hour, DefaultLeaseSeconds: 1}, nil)
	f := facade.New(db, s, allocator, sw, nil, nil, facade.Config{
		LocalRegion:  "us-east",
		RefreshBatch: 10,
		BufferTarget: 10,
		LeaseSeconds: 1,
	}, nil)
	f.Start()
	t.Cleanup(f.Stop)

	return NewServer(f, nil, nil)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestCreateAndSendRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	createBody, _ := json.Marshal(queueregistry.Queue{Name: "orders", LocalRegion: "us-east"})
	req := httptest.NewRequest(http.MethodPost, "/v1/queues/", bytes.NewReader(createBody))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create queue status = %d, body = %s", rec.Code, rec.Body)
	}

	sendBody, _ := json.Marshal(sendMessageRequest{
		SourceRegion: "us-east",
		DestRegion:   "us-east",
		Blob:         []byte("hello"),
		ContentType:  "text/plain",
	})
	req = httptest.NewRequest(http.MethodPost, "/v1/queues/orders/messages/", bytes.NewReader(sendBody))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("send status = %d, body = %s", rec.Code, rec.Body)
	}

	var sent sendMessageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &sent); err != nil {
		t.Fatalf("decode send response: %v", err)
	}
	if sent.MessageID == "" {
		t.Fatalf("expected a messageId in response")
	}
}

func TestDeleteUnknownQueueReturnsNotFound(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodDelete, "/v1/queues/missing/", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d, body = %s", rec.Code, http.StatusNotFound, rec.Body)
	}
}
