package broadcast

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"aquasim-server/internal/shared/errors"
	"aquasim-server/internal/telemetry"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewEventEnvelope(t *testing.T) {
	rec := telemetry.TruchaRecord{ElapsedSeconds: 15, LengthCm: 2.5}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))

	event, err := NewEvent(telemetry.KindTrucha, rec, now)
	require.NoError(t, err)
	assert.Equal(t, "TruchaDataUpdate", event.Name)
	assert.Equal(t, telemetry.KindTrucha, event.Topic)
	assert.Equal(t, time.UTC, event.PublishedAt.Location())

	var decoded telemetry.TruchaRecord
	require.NoError(t, json.Unmarshal(event.Data, &decoded))
	assert.Equal(t, int64(15), decoded.ElapsedSeconds)
	assert.Equal(t, 2.5, decoded.LengthCm)

	_, err = NewEvent(telemetry.KindLechuga, func() {}, now)
	assert.Error(t, err)
}

func TestHubDeliversOnlyToTopic(t *testing.T) {
	hub := NewHub(quietLogger())
	truchas, cancelT := hub.Subscribe(telemetry.KindTrucha, 1)
	defer cancelT()
	lechugas, cancelL := hub.Subscribe(telemetry.KindLechuga, 1)
	defer cancelL()

	require.NoError(t, hub.Publish(context.Background(), telemetry.KindTrucha, telemetry.TruchaRecord{ElapsedSeconds: 30}))

	select {
	case event := <-truchas:
		assert.Equal(t, "TruchaDataUpdate", event.Name)
	default:
		t.Fatal("expected trucha event")
	}

	select {
	case event := <-lechugas:
		t.Fatalf("unexpected lechuga event %+v", event)
	default:
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub(quietLogger())
	_, cancel := hub.Subscribe(telemetry.KindLechuga, 1)
	defer cancel()

	for i := 0; i < 3; i++ {
		require.NoError(t, hub.Publish(context.Background(), telemetry.KindLechuga, telemetry.LechugaRecord{}))
	}
	assert.Equal(t, int64(2), hub.Dropped())
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub(quietLogger())
	events, cancel := hub.Subscribe(telemetry.KindTrucha, 0)
	assert.Equal(t, 1, hub.Subscribers(telemetry.KindTrucha))

	cancel()
	cancel()
	assert.Equal(t, 0, hub.Subscribers(telemetry.KindTrucha))

	_, open := <-events
	assert.False(t, open)
	assert.NotPanics(t, func() {
		_ = hub.Publish(context.Background(), telemetry.KindTrucha, telemetry.TruchaRecord{})
	})
}

func TestHubPublishHonoursCancelledContext(t *testing.T) {
	hub := NewHub(quietLogger())
	events, cancelSub := hub.Subscribe(telemetry.KindTrucha, 1)
	defer cancelSub()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, hub.Publish(ctx, telemetry.KindTrucha, telemetry.TruchaRecord{}), context.Canceled)
	select {
	case event := <-events:
		t.Fatalf("unexpected event %+v", event)
	default:
	}
}

func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisFailuresAreExternal(t *testing.T) {
	client := unreachableRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	publisher := NewRedisPublisher(client, "aquasim:", quietLogger())
	assert.Equal(t, "aquasim:truchas", publisher.Channel(telemetry.KindTrucha))
	err := publisher.Publish(ctx, telemetry.KindTrucha, telemetry.TruchaRecord{ElapsedSeconds: 15})
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeExternal, errors.GetType(err))

	relay := NewRelay(client, "aquasim:", NewHub(quietLogger()), quietLogger())
	err = relay.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeExternal, errors.GetType(err))
}

func TestStreamHandlerRejectsUnknownKind(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/api/stream/{kind}", NewStreamHandler(NewHub(quietLogger())))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stream/algae", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stream/truchas", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStreamHandlerWritesEvents(t *testing.T) {
	hub := NewHub(quietLogger())
	mux := http.NewServeMux()
	mux.Handle("/api/stream/{kind}", NewStreamHandler(hub))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/stream/lechugas", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	require.Eventually(t, func() bool { return hub.Subscribers(telemetry.KindLechuga) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(ctx, telemetry.KindLechuga, telemetry.LechugaRecord{ElapsedSeconds: 45, HeightCm: 1.2}))

	reader := bufio.NewReader(resp.Body)
	var eventLine, dataLine string
	for dataLine == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		switch {
		case strings.HasPrefix(line, "event: "):
			eventLine = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			dataLine = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}

	assert.Equal(t, "LechugaDataUpdate", eventLine)
	var got telemetry.LechugaRecord
	require.NoError(t, json.Unmarshal([]byte(dataLine), &got))
	assert.Equal(t, int64(45), got.ElapsedSeconds)
	assert.Equal(t, 1.2, got.HeightCm)
}
