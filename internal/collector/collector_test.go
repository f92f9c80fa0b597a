package collector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canaryhq/canary-agent/internal/metrics"
	"github.com/canaryhq/canary-agent/internal/plugin"
	"github.com/canaryhq/canary-agent/internal/remote"
	"github.com/canaryhq/canary-agent/internal/settings"
)

// scriptedPlugin returns a pre-programmed sequence of outcomes, one per
// call to Collect, holding the last outcome once the script is exhausted.
type scriptedPlugin struct {
	plugin.BasePlugin
	name    string
	script  []func() (plugin.Snapshot, error)
	calls   int32
	events  []plugin.Event
	isSlow  bool
}

func (p *scriptedPlugin) Name() string      { return p.name }
func (p *scriptedPlugin) Spec() plugin.Spec { return plugin.Spec{Fields: map[string]plugin.FieldType{"value": plugin.Any()}} }
func (p *scriptedPlugin) DiffUpdates() bool { return true }
func (p *scriptedPlugin) IsSlow() bool      { return p.isSlow }
func (p *scriptedPlugin) EmitsEvents() bool { return false }
func (p *scriptedPlugin) Prepare(ctx context.Context, s plugin.SettingsView) error { return nil }
func (p *scriptedPlugin) Collect(ctx context.Context, s plugin.SettingsView) (plugin.Snapshot, error) {
	i := atomic.AddInt32(&p.calls, 1) - 1
	if int(i) >= len(p.script) {
		i = int32(len(p.script) - 1)
	}
	return p.script[i]()
}
func (p *scriptedPlugin) PendingEvents() []plugin.Event {
	ev := p.events
	p.events = nil
	return ev
}

func newTestLoop(t *testing.T, serverURL string, cfg *settings.Settings) (*Loop, *plugin.Registry) {
	t.Helper()
	reg := plugin.NewRegistry()
	m := metrics.NewRegistry(prometheus.NewRegistry())
	client := remote.New(nil, m.Remote)
	store := settings.NewStore(cfg)
	loop := New(reg, client, store, m, nil, "test-host", "1.0.0-test")
	return loop, reg
}

func baseSettings(serverURL string) *settings.Settings {
	s := settings.Default()
	s.APIBaseURL = serverURL
	s.APIKeyValue = "key123"
	s.ServerIDVal = "X"
	s.CollectIntervalS = 30
	s.SlowCollectIntervalS = 30
	return s
}

func TestLoop_FirstRunSyncFixture(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/server/X/ping":
			json.NewEncoder(w).Encode(map[string]string{"ping": "pong"})
		case "/v1/server/X/sync":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"settings": map[string]interface{}{"collect_interval_s": 30},
			})
		}
	}))
	defer srv.Close()

	loop, reg := newTestLoop(t, srv.URL, baseSettings(srv.URL))
	reg.Register(&scriptedPlugin{
		name: "meta",
		script: []func() (plugin.Snapshot, error){
			func() (plugin.Snapshot, error) {
				return plugin.Snapshot{"hostname": plugin.Item{"value": "h1"}}, nil
			},
		},
	})

	require.NoError(t, loop.Init(context.Background()))

	states, ok := gotBody["states"].(map[string]interface{})
	require.True(t, ok)
	metaSnap, ok := states["meta"].(map[string]interface{})
	require.True(t, ok)
	hostname := metaSnap["hostname"].(map[string]interface{})
	assert.Equal(t, "h1", hostname["value"])
	assert.Equal(t, 30, loop.Store.Snapshot().CollectIntervalS)
}

func TestLoop_SteadyStateDiffFixture(t *testing.T) {
	var gotPayload map[string][]interface{}
	var mu sync.Mutex

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/server/X/ping":
			json.NewEncoder(w).Encode(map[string]string{"ping": "pong"})
		case "/v1/server/X/sync":
			json.NewEncoder(w).Encode(map[string]interface{}{"settings": map[string]interface{}{}})
		case "/v1/server/X/state":
			mu.Lock()
			json.NewDecoder(r.Body).Decode(&gotPayload)
			mu.Unlock()
			json.NewEncoder(w).Encode(map[string]interface{}{"settings": map[string]interface{}{}})
		}
	}))
	defer srv.Close()

	loop, reg := newTestLoop(t, srv.URL, baseSettings(srv.URL))
	p := &scriptedPlugin{
		name: "meta",
		script: []func() (plugin.Snapshot, error){
			func() (plugin.Snapshot, error) {
				return plugin.Snapshot{"hostname": plugin.Item{"value": "h1"}}, nil
			},
			func() (plugin.Snapshot, error) {
				return plugin.Snapshot{"hostname": plugin.Item{"value": "h2"}}, nil
			},
		},
	}
	reg.Register(p)

	require.NoError(t, loop.Init(context.Background()))

	loop.tick = 1
	loop.runTick(context.Background(), time.Now())

	mu.Lock()
	defer mu.Unlock()
	entries := gotPayload["meta"]
	require.Len(t, entries, 1)
	pair := entries[0].([]interface{})
	assert.Equal(t, "DIFF", pair[0])
}

func TestLoop_PluginFailsThenRecoversTriggersSync(t *testing.T) {
	var payloads []map[string][]interface{}
	var mu sync.Mutex

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/server/X/ping":
			json.NewEncoder(w).Encode(map[string]string{"ping": "pong"})
		case "/v1/server/X/sync":
			json.NewEncoder(w).Encode(map[string]interface{}{"settings": map[string]interface{}{}})
		case "/v1/server/X/state":
			var body map[string][]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			mu.Lock()
			payloads = append(payloads, body)
			mu.Unlock()
			json.NewEncoder(w).Encode(map[string]interface{}{"settings": map[string]interface{}{}})
		}
	}))
	defer srv.Close()

	loop, reg := newTestLoop(t, srv.URL, baseSettings(srv.URL))
	p := &scriptedPlugin{
		name: "meta",
		script: []func() (plugin.Snapshot, error){
			func() (plugin.Snapshot, error) { return nil, assertError{} },
			func() (plugin.Snapshot, error) {
				return plugin.Snapshot{"hostname": plugin.Item{"value": "h1"}}, nil
			},
		},
	}
	reg.Register(p)

	require.NoError(t, loop.Init(context.Background()))
	// Init's own collection already consumed script[0]; reset the counter
	// so the first steady-state tick replays the failing call deliberately.
	p.calls = 0

	loop.tick = 1
	loop.runTick(context.Background(), time.Now())
	loop.tick = 2
	loop.runTick(context.Background(), time.Now())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, payloads, 2)

	firstEntries := payloads[0]["meta"]
	require.Len(t, firstEntries, 1)
	assert.Equal(t, "ERROR", firstEntries[0].([]interface{})[0])

	secondEntries := payloads[1]["meta"]
	require.Len(t, secondEntries, 1)
	assert.Equal(t, "SYNC", secondEntries[0].([]interface{})[0])
}

type assertError struct{}

func (assertError) Error() string { return "collect failed" }

func TestLoop_SlowCadenceRunsOnlyOnMultipleOfTheRatio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/server/X/ping" {
			json.NewEncoder(w).Encode(map[string]string{"ping": "pong"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"settings": map[string]interface{}{}})
	}))
	defer srv.Close()

	cfg := baseSettings(srv.URL)
	cfg.CollectIntervalS = 30
	cfg.SlowCollectIntervalS = 90 // slowEvery = 90/30 = 3

	loop, reg := newTestLoop(t, srv.URL, cfg)

	fast := &scriptedPlugin{
		name: "fast",
		script: []func() (plugin.Snapshot, error){
			func() (plugin.Snapshot, error) { return plugin.Snapshot{"k": plugin.Item{"value": "v"}}, nil },
		},
	}
	slow := &scriptedPlugin{
		name:   "hardware",
		isSlow: true,
		script: []func() (plugin.Snapshot, error){
			func() (plugin.Snapshot, error) { return plugin.Snapshot{"k": plugin.Item{"value": "v"}}, nil },
		},
	}
	reg.Register(fast)
	reg.Register(slow)

	require.NoError(t, loop.Init(context.Background()))

	// Init's own collection already invoked Collect on both plugins once;
	// reset the counters so each tick below is evaluated from a clean
	// baseline.
	fast.calls = 0
	slow.calls = 0

	wantSlowCalls := map[int]int32{0: 1, 1: 1, 2: 1, 3: 2}
	for tick := 0; tick <= 3; tick++ {
		loop.tick = tick
		loop.runTick(context.Background(), time.Now())

		assert.Equal(t, int32(tick+1), atomic.LoadInt32(&fast.calls), "fast plugin should run every tick")
		assert.Equal(t, wantSlowCalls[tick], atomic.LoadInt32(&slow.calls), "slow plugin call count at tick %d", tick)
	}
}

func TestLoop_GracefulShutdownSendsNotificationOnce(t *testing.T) {
	var shutdownCalls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/server/X/shutdown":
			atomic.AddInt32(&shutdownCalls, 1)
			json.NewEncoder(w).Encode(map[string]interface{}{})
		default:
			json.NewEncoder(w).Encode(map[string]interface{}{"settings": map[string]interface{}{}})
		}
	}))
	defer srv.Close()

	loop, _ := newTestLoop(t, srv.URL, baseSettings(srv.URL))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, loop.Run(ctx))
	assert.Equal(t, int32(1), atomic.LoadInt32(&shutdownCalls))
}
