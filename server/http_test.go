package server

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/saiset-co/sai-interaction/activity"
	"github.com/saiset-co/sai-interaction/catalog"
	"github.com/saiset-co/sai-interaction/events"
	"github.com/saiset-co/sai-interaction/health"
	"github.com/saiset-co/sai-interaction/kv"
	"github.com/saiset-co/sai-interaction/logger"
	"github.com/saiset-co/sai-interaction/recency"
	"github.com/saiset-co/sai-interaction/session"
	"github.com/saiset-co/sai-interaction/store"
	"github.com/saiset-co/sai-interaction/types"
	"github.com/saiset-co/sai-interaction/utils"
)

type fakeConfig struct {
	config *types.ServiceConfig
}

func (f *fakeConfig) Load() error                              { return nil }
func (f *fakeConfig) GetConfig() *types.ServiceConfig          { return f.config }
func (f *fakeConfig) GetValue(string, interface{}) interface{} { return nil }
func (f *fakeConfig) GetAs(string, interface{}) error          { return nil }

type testEnv struct {
	client  *http.Client
	records types.RecordStore
	recency *recency.Tracker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	nop := logger.NewNop()
	ctx := context.Background()

	kvStore, err := kv.NewMemoryKV(ctx, nop, &types.KVConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("NewMemoryKV: %v", err)
	}

	records, err := store.NewMemoryStore(ctx, nop, &types.StoreConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	if err := records.Start(); err != nil {
		t.Fatalf("store Start: %v", err)
	}
	t.Cleanup(func() { _ = records.Stop() })

	broker, err := events.NewChannelBroker(ctx, nop, &types.EventsConfig{Enabled: true})
	if err != nil {
		t.Fatalf("NewChannelBroker: %v", err)
	}

	tracker := recency.NewTracker(kvStore, nop, nil)
	broadcaster := activity.NewBroadcaster(records, nil, nop)

	consumer := events.NewConsumer(tracker, broadcaster, nop)
	if err := consumer.Register(broker); err != nil {
		t.Fatalf("consumer Register: %v", err)
	}

	if err := broker.Start(); err != nil {
		t.Fatalf("broker Start: %v", err)
	}
	t.Cleanup(func() { _ = broker.Stop() })

	healthManager := health.NewManager(ctx, nop)
	if err := healthManager.Start(); err != nil {
		t.Fatalf("health Start: %v", err)
	}
	t.Cleanup(func() { _ = healthManager.Stop() })

	srv := NewServer(ctx, &fakeConfig{config: &types.ServiceConfig{
		Name:    "test",
		Version: "test",
		Server:  &types.ServerConfig{Host: "localhost", Port: 8080},
	}}, nop, Dependencies{
		Catalog:   catalog.NewCache(kvStore, records, nop, nil),
		Recency:   tracker,
		Sessions:  session.NewStore(nop),
		Publisher: events.NewPublisher(broker, nop, "test"),
		Activity:  broadcaster,
		Records:   records,
		Health:    healthManager,
	})

	listener := fasthttputil.NewInmemoryListener()
	go func() {
		_ = fasthttp.Serve(listener, srv.Handler())
	}()
	t.Cleanup(func() { _ = listener.Close() })

	client := &http.Client{
		Transport: &http.Transport{
			DialContext: func(context.Context, string, string) (net.Conn, error) {
				return listener.Dial()
			},
		},
	}

	return &testEnv{client: client, records: records, recency: tracker}
}

func (e *testEnv) do(t *testing.T, method, path string, body []byte) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, "http://test"+path, reader)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	return resp.StatusCode, data
}

func TestProductEndpoints(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodGet, "/api/products/prod-1", nil)
	if status != http.StatusNotFound {
		t.Fatalf("got %d, want 404", status)
	}

	if _, err := env.records.Create(context.Background(), "products",
		types.Document{"id": "prod-1", "name": "Widget", "price": 10.0}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	status, body := env.do(t, http.MethodGet, "/api/products/prod-1", nil)
	if status != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", status, body)
	}

	var doc types.Document
	if err := utils.Unmarshal(body, &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if doc["name"] != "Widget" {
		t.Errorf("got %v, want Widget", doc["name"])
	}

	// The update must invalidate the cached entry so the next read sees the
	// new price.
	status, _ = env.do(t, http.MethodPut, "/api/products/prod-1", []byte(`{"price": 12.5}`))
	if status != http.StatusOK {
		t.Fatalf("got %d, want 200", status)
	}

	status, body = env.do(t, http.MethodGet, "/api/products/prod-1", nil)
	if status != http.StatusOK {
		t.Fatalf("got %d, want 200", status)
	}
	if err := utils.Unmarshal(body, &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if doc["price"] != 12.5 {
		t.Errorf("got price %v, want 12.5", doc["price"])
	}
}

func TestProductUpdateMissing(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodPut, "/api/products/ghost", []byte(`{"price": 1}`))
	if status != http.StatusNotFound {
		t.Errorf("got %d, want 404", status)
	}
}

func TestInteractionEndpoint(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodPost, "/api/interactions",
		[]byte(`{"type":"RECENTLY_VIEWED","user_id":"user-1","product_id":"prod-1"}`))
	if status != http.StatusAccepted {
		t.Fatalf("got %d, want 202", status)
	}

	// The consumer folds the event into the recency set asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for {
		recent := env.recency.ListRecent(context.Background(), "user-1")
		if len(recent) == 1 && recent[0] == "prod-1" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("recency never updated, got %v", recent)
		}
		time.Sleep(10 * time.Millisecond)
	}

	status, body := env.do(t, http.MethodGet, "/api/users/user-1/recent", nil)
	if status != http.StatusOK {
		t.Fatalf("got %d, want 200", status)
	}

	var recent struct {
		UserID   string   `json:"user_id"`
		Products []string `json:"products"`
	}
	if err := utils.Unmarshal(body, &recent); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(recent.Products) != 1 || recent.Products[0] != "prod-1" {
		t.Errorf("got %v, want [prod-1]", recent.Products)
	}
}

func TestInteractionEndpointRejectsInvalid(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodPost, "/api/interactions",
		[]byte(`{"type":"RECENTLY_VIEWED","user_id":"user-1"}`))
	if status != http.StatusBadRequest {
		t.Errorf("got %d, want 400", status)
	}

	status, _ = env.do(t, http.MethodPost, "/api/interactions", []byte(`{not json`))
	if status != http.StatusBadRequest {
		t.Errorf("got %d, want 400", status)
	}
}

func TestSessionEndpoints(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodPost, "/api/sessions/cart:alice", []byte(`{"items": 3}`))
	if status != http.StatusOK {
		t.Fatalf("got %d, want 200", status)
	}

	status, _ = env.do(t, http.MethodPatch, "/api/sessions/cart:alice",
		[]byte(`{"field":"items","value":5}`))
	if status != http.StatusOK {
		t.Fatalf("got %d, want 200", status)
	}

	status, body := env.do(t, http.MethodGet, "/api/sessions?prefix=cart:", nil)
	if status != http.StatusOK {
		t.Fatalf("got %d, want 200", status)
	}

	var listing struct {
		Sessions map[string]map[string]interface{} `json:"sessions"`
	}
	if err := utils.Unmarshal(body, &listing); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if listing.Sessions["cart:alice"]["items"] != float64(5) {
		t.Errorf("got %v, want 5", listing.Sessions["cart:alice"]["items"])
	}

	status, _ = env.do(t, http.MethodDelete, "/api/sessions/cart:alice", nil)
	if status != http.StatusNoContent {
		t.Fatalf("got %d, want 204", status)
	}

	// Updating a deleted session must not resurrect it.
	status, _ = env.do(t, http.MethodPatch, "/api/sessions/cart:alice",
		[]byte(`{"field":"items","value":1}`))
	if status != http.StatusNotFound {
		t.Errorf("got %d, want 404", status)
	}
}

func TestPurchaseInteractionCreatesActivity(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodPost, "/api/interactions",
		[]byte(`{"type":"PURCHASE","user_id":"user-1","product_id":"prod-9"}`))
	if status != http.StatusAccepted {
		t.Fatalf("got %d, want 202", status)
	}

	// The consumer persists the activity asynchronously.
	var listing struct {
		Activities []types.ActivityRecord `json:"activities"`
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, body := env.do(t, http.MethodGet, "/api/users/user-1/activities", nil)
		if err := utils.Unmarshal(body, &listing); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if len(listing.Activities) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("activity never persisted, got %v", listing.Activities)
		}
		time.Sleep(10 * time.Millisecond)
	}

	record := listing.Activities[0]
	if record.Type != types.InteractionPurchase {
		t.Errorf("got type %q, want %q", record.Type, types.InteractionPurchase)
	}
	if record.UserID != "user-1" {
		t.Errorf("got user %q, want user-1", record.UserID)
	}
}

func TestActivitiesEndpoint(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/users/user-1/activities", nil)
	if status != http.StatusOK {
		t.Fatalf("got %d, want 200", status)
	}

	var listing struct {
		UserID     string                 `json:"user_id"`
		Activities []types.ActivityRecord `json:"activities"`
	}
	if err := utils.Unmarshal(body, &listing); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(listing.Activities) != 0 {
		t.Errorf("got %v, want empty", listing.Activities)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/health", nil)
	if status != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", status, body)
	}

	var report types.HealthReport
	if err := utils.Unmarshal(body, &report); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if report.Status != types.StatusHealthy {
		t.Errorf("got status %q, want healthy", report.Status)
	}
}

func TestUnknownRouteAndMethods(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodGet, "/nope", nil)
	if status != http.StatusNotFound {
		t.Errorf("got %d, want 404", status)
	}

	status, _ = env.do(t, http.MethodDelete, "/api/products/prod-1", nil)
	if status != http.StatusMethodNotAllowed {
		t.Errorf("got %d, want 405", status)
	}
}
