package notification_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geonotify/geonotify/internal/device"
	"github.com/geonotify/geonotify/internal/notification"
	"github.com/geonotify/geonotify/internal/provider/resilience"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	fail map[string]error
}

func (f *fakeSender) Send(_ context.Context, d *device.Device, _ notification.PushMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[d.Endpoint]; ok {
		return err
	}
	f.sent = append(f.sent, d.Endpoint)
	return nil
}

func registerDevice(t *testing.T, repo *device.InMemoryRepository, id, subjectID, endpoint string) {
	t.Helper()
	_, err := repo.Upsert(context.Background(), &device.Device{
		ID:        id,
		SubjectID: subjectID,
		Platform:  device.PlatformFCM,
		Endpoint:  endpoint,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
}

func testEvent() *notification.Event {
	return &notification.Event{
		ID:        "evt_1",
		SubjectID: "s1",
		ZoneID:    "z1",
		Kind:      notification.KindEscalation,
		Title:     "RESCUE ALERT - CRITICAL",
		Body:      "Ana is inside Crater",
		Timestamp: time.Now(),
	}
}

func TestPushDispatcher_IsolatesEndpointFailures(t *testing.T) {
	repo := device.NewInMemoryRepository()
	registerDevice(t, repo, "d1", "r1", "tok-ok-1")
	registerDevice(t, repo, "d2", "r1", "tok-expired")
	registerDevice(t, repo, "d3", "r2", "tok-ok-2")

	sender := &fakeSender{fail: map[string]error{"tok-expired": notification.ErrEndpointGone}}
	d := notification.NewPushDispatcher(repo, sender, notification.PushConfig{Logger: zerolog.Nop()})

	results := d.Deliver(context.Background(), []string{"r1", "r2", "r3"}, testEvent())
	require.Len(t, results, 3)

	assert.Equal(t, "r1", results[0].RecipientID)
	assert.Equal(t, 1, results[0].Delivered)
	require.Len(t, results[0].Failures, 1)
	assert.ErrorIs(t, &results[0].Failures[0], notification.ErrEndpointGone)

	assert.True(t, results[1].OK())
	assert.Equal(t, 1, results[1].Delivered)

	// No endpoints is not a failure.
	assert.True(t, results[2].OK())
	assert.Equal(t, 0, results[2].Delivered)

	assert.ElementsMatch(t, []string{"tok-ok-1", "tok-ok-2"}, sender.sent)

	// The expired endpoint was pruned.
	devices, err := repo.ListBySubject(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "d1", devices[0].ID)

	assert.Len(t, notification.Failures(results), 1)
}

func TestPushDispatcher_HangingGatewayDoesNotBlockFanOut(t *testing.T) {
	release := make(chan struct{})
	var delivered sync.Map
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Endpoint string `json:"endpoint"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if strings.Contains(req.Endpoint, "hang") {
			select {
			case <-r.Context().Done():
			case <-release:
			}
			return
		}
		delivered.Store(req.Endpoint, true)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()
	defer close(release)

	repo := device.NewInMemoryRepository()
	registerDevice(t, repo, "d1", "r1", "tok-hang")
	registerDevice(t, repo, "d2", "r1", "tok-ok-1")
	registerDevice(t, repo, "d3", "r2", "tok-ok-2")
	registerDevice(t, repo, "d4", "r3", "tok-ok-3")

	sender := notification.NewGatewaySender(notification.GatewayConfig{
		URL:    server.URL,
		Client: resilience.NewClient(fastClientConfig()),
		Logger: zerolog.Nop(),
	})
	d := notification.NewPushDispatcher(repo, sender, notification.PushConfig{
		Concurrency: 2,
		SendTimeout: 100 * time.Millisecond,
		Logger:      zerolog.Nop(),
	})

	start := time.Now()
	results := d.Deliver(context.Background(), []string{"r1", "r2", "r3"}, testEvent())
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 2*time.Second, "fan-out waited on the hanging endpoint")
	require.Len(t, results, 3)

	assert.Equal(t, 1, results[0].Delivered)
	require.Len(t, results[0].Failures, 1)
	assert.Equal(t, "d1", results[0].Failures[0].Endpoint)
	assert.ErrorIs(t, &results[0].Failures[0], notification.ErrDeliveryTimeout)

	assert.True(t, results[1].OK())
	assert.True(t, results[2].OK())

	for _, endpoint := range []string{"tok-ok-1", "tok-ok-2", "tok-ok-3"} {
		_, ok := delivered.Load(endpoint)
		assert.True(t, ok, endpoint)
	}

	// A timed out endpoint is not pruned.
	devices, err := repo.ListBySubject(context.Background(), "r1")
	require.NoError(t, err)
	assert.Len(t, devices, 2)
}

type blockingSender struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
}

func (b *blockingSender) Send(ctx context.Context, _ *device.Device, _ notification.PushMessage) error {
	b.mu.Lock()
	b.inFlight++
	if b.inFlight > b.maxInFlight {
		b.maxInFlight = b.inFlight
	}
	b.mu.Unlock()

	select {
	case <-time.After(20 * time.Millisecond):
	case <-ctx.Done():
	}

	b.mu.Lock()
	b.inFlight--
	b.mu.Unlock()
	return nil
}

func TestPushDispatcher_BoundsConcurrency(t *testing.T) {
	repo := device.NewInMemoryRepository()
	for _, endpoint := range []string{"a", "b", "c", "d", "e", "f"} {
		registerDevice(t, repo, "d"+endpoint, "r1", "tok-"+endpoint)
	}

	sender := &blockingSender{}
	d := notification.NewPushDispatcher(repo, sender, notification.PushConfig{Concurrency: 3, Logger: zerolog.Nop()})

	results := d.Deliver(context.Background(), []string{"r1"}, testEvent())
	require.Len(t, results, 1)
	assert.Equal(t, 6, results[0].Delivered)
	assert.LessOrEqual(t, sender.maxInFlight, 3)
	assert.GreaterOrEqual(t, sender.maxInFlight, 1)
}

func TestPubSubDispatcher(t *testing.T) {
	var (
		gotData  []byte
		gotAttrs map[string]string
	)
	d := notification.NewPubSubDispatcherFunc(func(_ context.Context, data []byte, attrs map[string]string) error {
		gotData = data
		gotAttrs = attrs
		return nil
	}, zerolog.Nop())

	results := d.Deliver(context.Background(), []string{"r1", "r2"}, testEvent())
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Delivered)
	assert.True(t, results[1].OK())

	assert.Equal(t, "escalation", gotAttrs["kind"])
	var decoded notification.Event
	require.NoError(t, json.Unmarshal(gotData, &decoded))
	assert.Equal(t, []string{"r1", "r2"}, decoded.Recipients)
}

func TestPubSubDispatcher_PublishFailure(t *testing.T) {
	d := notification.NewPubSubDispatcherFunc(func(context.Context, []byte, map[string]string) error {
		return errors.New("topic not found")
	}, zerolog.Nop())

	results := d.Deliver(context.Background(), []string{"r1"}, testEvent())
	require.Len(t, results, 1)
	require.Len(t, results[0].Failures, 1)
	assert.Equal(t, "pubsub", results[0].Failures[0].Endpoint)
}

func TestMultiDispatcher_RoutesByKind(t *testing.T) {
	var published int
	pubsubD := notification.NewPubSubDispatcherFunc(func(context.Context, []byte, map[string]string) error {
		published++
		return nil
	}, zerolog.Nop())

	repo := device.NewInMemoryRepository()
	registerDevice(t, repo, "d1", "r1", "tok-1")
	sender := &fakeSender{}

	multi := notification.NewMultiDispatcher(
		notification.Route{Dispatcher: notification.NewPushDispatcher(repo, sender, notification.PushConfig{Logger: zerolog.Nop()})},
		notification.Route{Dispatcher: pubsubD, Kinds: []notification.Kind{notification.KindEscalation}},
	)

	results := multi.Deliver(context.Background(), []string{"r1"}, testEvent())
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Delivered)
	assert.Equal(t, 1, published)

	entered := testEvent()
	entered.Kind = notification.KindEntered
	results = multi.Deliver(context.Background(), []string{"r1"}, entered)
	assert.Equal(t, 1, results[0].Delivered)
	assert.Equal(t, 1, published)
}

func TestMultiDispatcher_DisabledRoute(t *testing.T) {
	repo := device.NewInMemoryRepository()
	registerDevice(t, repo, "d1", "r1", "tok-1")
	sender := &fakeSender{}

	pushOn := false
	multi := notification.NewMultiDispatcher(notification.Route{
		Dispatcher: notification.NewPushDispatcher(repo, sender, notification.PushConfig{Logger: zerolog.Nop()}),
		Enabled:    func(context.Context) bool { return pushOn },
	})

	results := multi.Deliver(context.Background(), []string{"r1"}, testEvent())
	require.Len(t, results, 1)
	assert.Equal(t, "r1", results[0].RecipientID)
	assert.Zero(t, results[0].Delivered)
	assert.Empty(t, results[0].Failures)
	assert.Empty(t, sender.sent)

	pushOn = true
	results = multi.Deliver(context.Background(), []string{"r1"}, testEvent())
	assert.Equal(t, 1, results[0].Delivered)
}

func TestGatewaySender(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		if strings.Contains(string(body), "expired") {
			w.WriteHeader(http.StatusGone)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	recorder := &requestRecorder{}
	sender := notification.NewGatewaySender(notification.GatewayConfig{
		URL:     server.URL,
		Client:  resilience.NewClient(fastClientConfig()),
		Metrics: recorder,
		Logger:  zerolog.Nop(),
	})

	p256, auth := "p256", "auth"
	d := &device.Device{ID: "d1", Platform: device.PlatformWebPush, Endpoint: "https://push.example/abc", P256DH: &p256, Auth: &auth}

	err := sender.Send(context.Background(), d, notification.PushMessage{Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, "WEBPUSH", received["platform"])
	assert.NotNil(t, received["keys"])

	d.Endpoint = "https://push.example/expired"
	err = sender.Send(context.Background(), d, notification.PushMessage{Title: "t"})
	assert.ErrorIs(t, err, notification.ErrEndpointGone)

	require.Len(t, recorder.errs, 2)
	assert.NoError(t, recorder.errs[0])
	assert.ErrorIs(t, recorder.errs[1], notification.ErrEndpointGone)
}

type requestRecorder struct {
	errs []error
}

func (r *requestRecorder) RecordRequest(_, _ string, _ time.Duration, err error) {
	r.errs = append(r.errs, err)
}

func fastClientConfig() resilience.ClientConfig {
	cfg := resilience.DefaultClientConfig("push-gateway-test")
	cfg.InitialInterval = 5 * time.Millisecond
	cfg.MaxInterval = 10 * time.Millisecond
	return cfg
}
