package fleet

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/dropDatabas3/fleetconsole/internal/cache"
	"github.com/dropDatabas3/fleetconsole/internal/devserver"
	"github.com/dropDatabas3/fleetconsole/internal/transport"
	"github.com/dropDatabas3/fleetconsole/internal/wire/schema"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// keep-alives del http.Client y el janitor de go-cache.
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreAnyFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

// countingCaller cuenta llamadas por acción.
type countingCaller struct {
	next  Caller
	mu    sync.Mutex
	calls map[string]int
}

func (c *countingCaller) Call(ctx context.Context, endpoint, reqType, respType string, fields map[string]any) *transport.Result {
	c.mu.Lock()
	if c.calls == nil {
		c.calls = map[string]int{}
	}
	c.calls[endpoint]++
	c.mu.Unlock()
	return c.next.Call(ctx, endpoint, reqType, respType, fields)
}

func (c *countingCaller) count(action string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[action]
}

func newTestClient(t *testing.T, cc cache.Client) (*Client, *countingCaller, *devserver.Server) {
	t.Helper()
	dev := devserver.New(devserver.Options{Logger: zap.NewNop()})
	srv := httptest.NewServer(dev.Handler())
	t.Cleanup(srv.Close)

	inv, err := transport.NewInvoker(transport.Options{
		Sender: transport.NewHTTPSender(transport.HTTPOptions{BaseURL: srv.URL}),
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)

	caller := &countingCaller{next: inv}
	c := New(Options{Caller: caller, Cache: cc, Logger: zap.NewNop()})
	t.Cleanup(func() { _ = c.Close() })
	return c, caller, dev
}

func TestClient_EndToEndApplyRemove(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestClient(t, nil)

	groups, err := c.ListAgentGroups(ctx)
	require.NoError(t, err)
	require.Empty(t, groups)

	require.NoError(t, c.CreateConfig(ctx, ConfigDetail{Name: "c1", Detail: "inputs: []"}))
	require.NoError(t, c.CreateAgentGroup(ctx, AgentGroup{Name: "g1"}))

	require.NoError(t, c.ApplyConfigToAgentGroup(ctx, "c1", "g1"))
	applied, err := c.GetAppliedConfigsForAgentGroup(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, []string{"c1"}, applied)

	require.NoError(t, c.RemoveConfigFromAgentGroup(ctx, "c1", "g1"))
	applied, err = c.GetAppliedConfigsForAgentGroup(ctx, "g1")
	require.NoError(t, err)
	require.Empty(t, applied)
}

func TestClient_CRUD(t *testing.T) {
	ctx := context.Background()
	c, _, dev := newTestClient(t, nil)

	require.NoError(t, c.CreateAgentGroup(ctx, AgentGroup{Name: "edge", Value: "edge"}))
	require.NoError(t, c.UpdateAgentGroup(ctx, AgentGroup{Name: "edge", Value: "edge-v2"}))
	g, err := c.GetAgentGroup(ctx, "edge")
	require.NoError(t, err)
	require.Equal(t, "edge-v2", g.Value)
	require.NotNil(t, g.Raw)

	require.NoError(t, c.CreateConfig(ctx, ConfigDetail{Name: "nginx", Detail: `{"a":1}`}))
	require.NoError(t, c.UpdateConfig(ctx, ConfigDetail{Name: "nginx", Detail: `{"a":2}`}))
	cd, err := c.GetConfig(ctx, "nginx")
	require.NoError(t, err)
	require.Equal(t, int64(1), cd.Version)
	require.Equal(t, `{"a":2}`, cd.Detail)

	dev.Store().AddAgent(devserver.Agent{
		InstanceID: "i-1", AgentType: "logtail", Hostname: "h1", Tags: []string{"edge-v2"},
		Extras: map[string][]byte{"zone": []byte("a")},
	})
	agents, err := c.ListAgents(ctx, "edge")
	require.NoError(t, err)
	require.Len(t, agents, 1)
	require.Equal(t, "i-1", agents[0].InstanceID)
	require.Equal(t, "h1", agents[0].Hostname)
	require.Equal(t, map[string]string{"zone": "a"}, agents[0].Extras)

	require.NoError(t, c.DeleteConfig(ctx, "nginx"))
	_, err = c.GetConfig(ctx, "nginx")
	require.ErrorIs(t, err, transport.ErrApplication)

	require.NoError(t, c.DeleteAgentGroup(ctx, "edge"))
	groups, err := c.ListAgentGroups(ctx)
	require.NoError(t, err)
	require.Empty(t, groups)
}

func TestClient_ListingCacheInvalidation(t *testing.T) {
	ctx := context.Background()
	c, caller, _ := newTestClient(t, cache.NewMemory("", time.Minute))

	require.NoError(t, c.CreateAgentGroup(ctx, AgentGroup{Name: "g1"}))
	require.NoError(t, c.CreateConfig(ctx, ConfigDetail{Name: "c1"}))

	for i := 0; i < 3; i++ {
		_, err := c.GetAppliedConfigsForAgentGroup(ctx, "g1")
		require.NoError(t, err)
	}
	require.Equal(t, 1, caller.count(schema.GetAppliedConfigsForAgentGroup))

	// Una mutación invalida el listado afectado.
	require.NoError(t, c.ApplyConfigToAgentGroup(ctx, "c1", "g1"))
	applied, err := c.GetAppliedConfigsForAgentGroup(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, []string{"c1"}, applied)
	require.Equal(t, 2, caller.count(schema.GetAppliedConfigsForAgentGroup))

	// Fresh saltea el cache.
	_, err = c.GetAppliedConfigsForAgentGroup(Fresh(ctx), "g1")
	require.NoError(t, err)
	require.Equal(t, 3, caller.count(schema.GetAppliedConfigsForAgentGroup))
}

func TestClient_FailedCallReturnsCallError(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestClient(t, nil)

	err := c.ApplyConfigToAgentGroup(ctx, "c1", "missing")
	require.Error(t, err)
	ce, ok := transport.AsCallError(err)
	require.True(t, ok)
	require.Equal(t, 404, ce.StatusCode)
	require.Contains(t, ce.Message, "missing")
}

func TestFanOut_ByIndexAndFirstError(t *testing.T) {
	errB := errors.New("b failed")
	errC := errors.New("c failed")
	var running atomic.Int32
	var peak atomic.Int32

	batch := FanOut(context.Background(), []string{"a", "b", "c", "d"}, func(_ context.Context, k string) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		switch k {
		case "b":
			return errB
		case "c":
			return errC
		}
		return nil
	})

	require.Len(t, batch.Outcomes, 4)
	for i, k := range []string{"a", "b", "c", "d"} {
		require.Equal(t, k, batch.Outcomes[i].Key)
	}
	require.ErrorIs(t, batch.FirstError(), errB)
	require.Equal(t, []string{"b", "c"}, batch.Failed())
	require.Equal(t, []string{"a", "d"}, batch.Succeeded())
	require.Greater(t, peak.Load(), int32(1), "calls must run concurrently")
}

func TestFanOut_Empty(t *testing.T) {
	batch := FanOut(context.Background(), nil, func(context.Context, string) error { return errors.New("x") })
	require.NoError(t, batch.FirstError())
	require.Empty(t, batch.Outcomes)
}

type blockingCaller struct {
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingCaller) Call(_ context.Context, endpoint, _, respType string, _ map[string]any) *transport.Result {
	b.calls.Add(1)
	<-b.release
	return &transport.Result{Action: endpoint, OK: true, StatusCode: 200, Data: transport.Record{
		"configDetail": map[string]any{"name": "c1", "version": int64(4)},
	}}
}

func TestClient_GetConfigDeduplicates(t *testing.T) {
	bc := &blockingCaller{release: make(chan struct{})}
	c := New(Options{Caller: bc, Logger: zap.NewNop()})

	var wg sync.WaitGroup
	results := make([]*ConfigDetail, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cd, err := c.GetConfig(context.Background(), "c1")
			if err != nil {
				t.Errorf("GetConfig: %v", err)
				return
			}
			results[i] = cd
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(bc.release)
	wg.Wait()

	require.Equal(t, int32(1), bc.calls.Load())
	for _, cd := range results {
		require.NotNil(t, cd)
		require.Equal(t, int64(4), cd.Version)
	}
}

func TestClient_GetConfigCancelOnlyAffectsItsCaller(t *testing.T) {
	bc := &blockingCaller{release: make(chan struct{})}
	c := New(Options{Caller: bc, Logger: zap.NewNop()})

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.GetConfig(ctxA, "c1")
		errA <- err
	}()
	require.Eventually(t, func() bool { return bc.calls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		cd  *ConfigDetail
		err error
	}
	resB := make(chan result, 1)
	go func() {
		cd, err := c.GetConfig(context.Background(), "c1")
		resB <- result{cd, err}
	}()

	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)

	close(bc.release)
	got := <-resB
	require.NoError(t, got.err)
	require.Equal(t, int64(4), got.cd.Version)
	require.Equal(t, int32(1), bc.calls.Load())
}

// warnCaller agrega warnings a cada Result de next.
type warnCaller struct {
	next     Caller
	warnings []string
}

func (w warnCaller) Call(ctx context.Context, endpoint, reqType, respType string, fields map[string]any) *transport.Result {
	res := w.next.Call(ctx, endpoint, reqType, respType, fields)
	res.Warnings = append(res.Warnings, w.warnings...)
	return res
}

func TestCollectWarnings_SurfacesResultWarnings(t *testing.T) {
	c, caller, _ := newTestClient(t, nil)
	c.caller = warnCaller{next: caller, warnings: []string{transport.WarnCorrelationMismatch}}

	ctx, w := CollectWarnings(context.Background())
	_, err := c.ListConfigs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"ListConfigs: " + transport.WarnCorrelationMismatch}, w.List())

	// Sin colector las advertencias se ignoran.
	_, err = c.ListConfigs(context.Background())
	require.NoError(t, err)
	require.Len(t, w.List(), 1)
}

func TestWarnings_NilList(t *testing.T) {
	var w *Warnings
	require.Nil(t, w.List())
}
