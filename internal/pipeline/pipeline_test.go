package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vocacare-intake-go/internal/detector"
	"vocacare-intake-go/internal/envelope"
	"vocacare-intake-go/internal/logger"
	"vocacare-intake-go/internal/metrics"
	"vocacare-intake-go/internal/webhook"
)

const recognized = `{"body": {"data": {"conversation_id": "conv_1", "analysis": {"data_collection_results": {
  "Name": {"value": "Puneet Sankhla"}, "Age": {"value": 22}, "Address ": {"value": "Indore"}
}, "transcript_summary": "fever"}}}, "timestamp": %d}`

type fakeSource struct {
	mu    sync.Mutex
	calls int
	fetch func(ctx context.Context, call int) (*envelope.Envelope, error)
}

func (f *fakeSource) FetchLatest(ctx context.Context) (*envelope.Envelope, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	return f.fetch(ctx, n)
}

type recorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *recorder) Publish(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func mustParse(t *testing.T, body string) *envelope.Envelope {
	t.Helper()
	env, err := envelope.Parse([]byte(body))
	require.NoError(t, err)
	return env
}

func newPipeline(src Source) (*Pipeline, *recorder) {
	p := New(src, Options{Interval: 5 * time.Millisecond, Logger: logger.Discard()})
	rec := &recorder{}
	p.Subscribe(rec)
	return p, rec
}

func TestPipeline_InitialState(t *testing.T) {
	p, _ := newPipeline(&fakeSource{})
	assert.Equal(t, detector.PollState{}, p.State())
}

func TestPipeline_PublishesRecognizedDelivery(t *testing.T) {
	src := &fakeSource{fetch: func(context.Context, int) (*envelope.Envelope, error) {
		return envelope.Parse([]byte(fmt.Sprintf(recognized, 1000)))
	}}
	p, rec := newPipeline(src)

	p.tick(context.Background())

	require.Equal(t, 1, rec.count())
	u := rec.updates[0]
	assert.Equal(t, "Puneet Sankhla", u.Record.Name.Value())
	assert.Equal(t, json.Number("22"), u.Record.Age.Value())
	assert.Equal(t, "Indore", u.Record.Address.Value())
	assert.Equal(t, "", u.Record.Gender.Value())
	assert.Equal(t, envelope.NumberStamp(1000), u.Delivery)

	var data map[string]any
	require.NoError(t, json.Unmarshal(u.Conversation, &data))
	assert.Equal(t, "fever", data["analysis"].(map[string]any)["transcript_summary"])

	assert.Equal(t, envelope.NumberStamp(1000), p.State().LastSeenTimestamp)
}

func TestPipeline_DuplicateTimestampPublishesOnce(t *testing.T) {
	src := &fakeSource{fetch: func(context.Context, int) (*envelope.Envelope, error) {
		return envelope.Parse([]byte(fmt.Sprintf(recognized, 1000)))
	}}
	p, rec := newPipeline(src)

	p.tick(context.Background())
	p.tick(context.Background())

	assert.Equal(t, 1, rec.count())
}

func TestPipeline_OutcomesPerDelivery(t *testing.T) {
	tests := []struct {
		name      string
		bodies    []string
		outcomes  []string
		published int
	}{
		{
			name:      "new timestamps publish each time",
			bodies:    []string{fmt.Sprintf(recognized, 1), fmt.Sprintf(recognized, 2), fmt.Sprintf(recognized, 1)},
			outcomes:  []string{metrics.OutcomePublished, metrics.OutcomePublished, metrics.OutcomePublished},
			published: 3,
		},
		{
			name:      "no analysis key is rejected",
			bodies:    []string{`{"body": {"data": {}}, "timestamp": 5}`},
			outcomes:  []string{metrics.OutcomeRejected},
			published: 0,
		},
		{
			name:      "backend has no data yet",
			bodies:    []string{`{"status": "no_data", "message": "No webhook data received yet"}`},
			outcomes:  []string{metrics.OutcomeNoData},
			published: 0,
		},
		{
			name:      "rejected delivery still consumes its timestamp",
			bodies:    []string{`{"body": {}, "timestamp": 9}`, fmt.Sprintf(recognized, 9)},
			outcomes:  []string{metrics.OutcomeRejected, metrics.OutcomeDuplicate},
			published: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, rec := newPipeline(&fakeSource{})
			for i, body := range tt.bodies {
				got := p.handle(context.Background(), mustParse(t, body), p.log.WithTick())
				assert.Equal(t, tt.outcomes[i], got, "delivery %d", i)
			}
			assert.Equal(t, tt.published, rec.count())
		})
	}
}

func TestPipeline_FetchErrorsLeaveStateAlone(t *testing.T) {
	src := &fakeSource{fetch: func(context.Context, int) (*envelope.Envelope, error) {
		return nil, errors.New("connection refused")
	}}
	p, rec := newPipeline(src)

	for i := 0; i < 3; i++ {
		p.tick(context.Background())
	}
	assert.Equal(t, 0, rec.count())
	assert.True(t, p.State().LastSeenTimestamp.IsZero())
}

func TestPipeline_EmptyBodyIsNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	log := logger.NewWith(logger.Options{Environment: "test", Level: "debug", Output: &buf})
	p := New(webhook.NewClient(srv.URL, time.Second), Options{Interval: time.Hour, Logger: log})
	rec := &recorder{}
	p.Subscribe(rec)

	p.tick(context.Background())

	assert.Equal(t, 0, rec.count())
	assert.NotContains(t, buf.String(), `"level":"warning"`)
	assert.NotContains(t, buf.String(), "poll fetch failed")
	assert.Contains(t, buf.String(), "backend returned an empty body")
	assert.True(t, p.State().LastSeenTimestamp.IsZero())
}

func TestPipeline_RepeatedTogglesDoNotAccumulateTasks(t *testing.T) {
	src := &fakeSource{fetch: func(_ context.Context, call int) (*envelope.Envelope, error) {
		return envelope.Parse([]byte(fmt.Sprintf(recognized, call)))
	}}
	p, _ := newPipeline(src)
	defer p.Close()

	for i := 0; i < 50; i++ {
		p.SetEnabled(true)
		p.SetEnabled(false)
	}

	require.Eventually(t, func() bool {
		p.SetEnabled(true)
		p.SetEnabled(false)
		p.mu.Lock()
		defer p.mu.Unlock()
		return len(p.stopped) <= 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPipeline_SurvivesFailuresWhileEnabled(t *testing.T) {
	src := &fakeSource{fetch: func(_ context.Context, call int) (*envelope.Envelope, error) {
		if call < 4 {
			return nil, fmt.Errorf("transient failure %d", call)
		}
		return envelope.Parse([]byte(fmt.Sprintf(recognized, 42)))
	}}
	p, rec := newPipeline(src)

	p.SetEnabled(true)
	defer p.Close()

	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, time.Millisecond)
	assert.True(t, p.State().Enabled)
}

func TestPipeline_StopDiscardsInFlightResponse(t *testing.T) {
	inFlight := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	src := &fakeSource{fetch: func(context.Context, int) (*envelope.Envelope, error) {
		once.Do(func() { close(inFlight) })
		<-release // ignores ctx on purpose: the response arrives late
		return envelope.Parse([]byte(fmt.Sprintf(recognized, 1000)))
	}}
	p, rec := newPipeline(src)

	p.SetEnabled(true)
	<-inFlight
	p.SetEnabled(false)
	close(release)

	assert.Never(t, func() bool { return rec.count() > 0 }, 50*time.Millisecond, time.Millisecond)
	assert.Equal(t, detector.PollState{}, p.State())
	p.Close()
}

func TestPipeline_ToggleAndRestart(t *testing.T) {
	var calls atomic.Int32
	src := &fakeSource{fetch: func(_ context.Context, call int) (*envelope.Envelope, error) {
		calls.Add(1)
		return envelope.Parse([]byte(fmt.Sprintf(recognized, call)))
	}}
	p, rec := newPipeline(src)

	assert.True(t, p.Toggle())
	require.Eventually(t, func() bool { return rec.count() >= 1 }, time.Second, time.Millisecond)
	assert.False(t, p.Toggle())
	p.Close()

	n := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, calls.Load(), "no fetch after polling is disabled")

	p.SetEnabled(true)
	require.Eventually(t, func() bool { return calls.Load() > n }, time.Second, time.Millisecond)
	p.Close()
	assert.False(t, p.State().Enabled)
}

func TestPipeline_AgainstBackend(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch hits.Add(1) {
		case 1:
			http.Error(w, "waking up", http.StatusServiceUnavailable)
		case 2:
			fmt.Fprint(w, `{"status": "no_data", "message": "No webhook data received yet"}`)
		default:
			fmt.Fprintf(w, recognized, 1730000000000)
		}
	}))
	defer srv.Close()

	p, rec := newPipeline(webhook.NewClient(srv.URL, time.Second))
	p.SetEnabled(true)
	require.Eventually(t, func() bool { return hits.Load() >= 5 }, 2*time.Second, time.Millisecond)
	p.Close()

	assert.Equal(t, 1, rec.count(), "one delivery, published once")
	assert.Equal(t, envelope.NumberStamp(1730000000000), p.State().LastSeenTimestamp)
}
