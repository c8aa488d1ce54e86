package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dropDatabas3/fleetconsole/internal/devserver"
	"github.com/dropDatabas3/fleetconsole/internal/fleet"
	"github.com/dropDatabas3/fleetconsole/internal/transport"
)

func startServer(t *testing.T) {
	t.Helper()
	srv := httptest.NewServer(devserver.New(devserver.Options{Logger: zap.NewNop()}).Handler())
	t.Cleanup(srv.Close)

	t.Setenv("FLEET_BASE_URL", srv.URL)
	t.Setenv("LOG_ENV", "silent")
	t.Setenv("CACHE_KIND", "none")
	t.Setenv("FLEET_OUT", "")
	t.Setenv("FLEET_CONFIG", "")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{}
	root := newRootCmd(a)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	a.printWarnings(&errOut)
	a.close()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, "fleetctl %s", strings.Join(args, " "))
	return out
}

func TestGroups_CreateListGet(t *testing.T) {
	startServer(t)

	mustRun(t, "groups", "create", "g1", "--value", "linux")
	mustRun(t, "groups", "create", "g2")

	out := mustRun(t, "groups", "list")
	require.Contains(t, out, "NAME")
	require.Contains(t, out, "g1")
	require.Contains(t, out, "linux")

	out = mustRun(t, "groups", "get", "g1", "--out", "json")
	var g fleet.AgentGroup
	require.NoError(t, json.Unmarshal([]byte(out), &g))
	require.Equal(t, fleet.AgentGroup{Name: "g1", Value: "linux"}, g)
}

func TestConfigs_DetailFile(t *testing.T) {
	startServer(t)
	p := filepath.Join(t.TempDir(), "c1.jsonc")
	require.NoError(t, os.WriteFile(p, []byte(`{"inputs": [] // vacío
}`), 0o600))

	mustRun(t, "configs", "create", "c1", "--detail-file", p)
	out := mustRun(t, "configs", "get", "c1", "--out", "json")

	var cd fleet.ConfigDetail
	require.NoError(t, json.Unmarshal([]byte(out), &cd))
	require.Equal(t, "c1", cd.Name)
	require.JSONEq(t, `{"inputs":[]}`, cd.Detail)

	_, err := run(t, "configs", "create", "c2", "--detail", "x", "--detail-file", p)
	require.Error(t, err)
}

func TestGetUnknown_ReturnsCallError(t *testing.T) {
	startServer(t)

	_, err := run(t, "groups", "get", "nope")
	ce, ok := transport.AsCallError(err)
	require.True(t, ok, "got %v", err)
	require.Equal(t, int32(devserver.StatusNotFound), ce.AppStatus)
}

func TestAssoc_AddAndRemove(t *testing.T) {
	startServer(t)
	mustRun(t, "configs", "create", "c1", "--detail", "a: 1")
	for _, g := range []string{"g1", "g2", "g3"} {
		mustRun(t, "groups", "create", g)
	}
	mustRun(t, "apply", "c1", "g1")

	out := mustRun(t, "assoc", "add", "--config", "c1")
	require.Regexp(t, `g1\s+true`, out)
	require.Regexp(t, `g2\s+false`, out)

	mustRun(t, "assoc", "add", "--config", "c1", "g2", "g3")
	out = mustRun(t, "applied", "groups", "c1", "--out", "json")
	var names []string
	require.NoError(t, json.Unmarshal([]byte(out), &names))
	require.Equal(t, []string{"g1", "g2", "g3"}, names)

	out = mustRun(t, "assoc", "remove", "--config", "c1", "g1", "g3")
	require.Contains(t, out, "* g2")

	out = mustRun(t, "applied", "configs", "g1")
	require.Empty(t, strings.TrimSpace(out))
}

func TestAssoc_RemoveUnknownMember(t *testing.T) {
	startServer(t)
	mustRun(t, "groups", "create", "g1")

	_, err := run(t, "assoc", "remove", "--group", "g1", "c9")
	require.Error(t, err)
	require.Contains(t, err.Error(), "c9")
}

func TestApply_ReportsPartialFailure(t *testing.T) {
	startServer(t)
	mustRun(t, "configs", "create", "c1")
	mustRun(t, "groups", "create", "g1")

	out, err := run(t, "apply", "c1", "g1", "missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "1 of 2 failed")
	require.Contains(t, out, "g1\tok")
	require.Contains(t, out, "missing\tFAILED")
}

func TestRaw_Call(t *testing.T) {
	startServer(t)
	mustRun(t, "configs", "create", "c1", "--detail", "k: v")

	out := mustRun(t, "raw", "GetConfig", `{"configName":"c1"}`)
	require.Contains(t, out, "configDetail.detail=k: v")

	_, err := run(t, "raw", "Nope")
	require.Error(t, err)
}

// warnCaller agrega warnings a cada Result de next.
type warnCaller struct {
	next     fleet.Caller
	warnings []string
}

func (w warnCaller) Call(ctx context.Context, endpoint, reqType, respType string, fields map[string]any) *transport.Result {
	res := w.next.Call(ctx, endpoint, reqType, respType, fields)
	res.Warnings = append(res.Warnings, w.warnings...)
	return res
}

func TestPrintWarnings_OnePerLine(t *testing.T) {
	srv := httptest.NewServer(devserver.New(devserver.Options{Logger: zap.NewNop()}).Handler())
	t.Cleanup(srv.Close)
	inv, err := transport.NewInvoker(transport.Options{
		Sender: transport.NewHTTPSender(transport.HTTPOptions{BaseURL: srv.URL}),
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	fc := fleet.New(fleet.Options{
		Caller: warnCaller{next: inv, warnings: []string{transport.WarnCorrelationMismatch}},
		Logger: zap.NewNop(),
	})

	a := &app{}
	var ctx context.Context
	ctx, a.warnings = fleet.CollectWarnings(context.Background())
	_, err = fc.ListAgentGroups(ctx)
	require.NoError(t, err)
	_, err = fc.ListConfigs(ctx)
	require.NoError(t, err)

	var buf bytes.Buffer
	a.printWarnings(&buf)
	require.Equal(t,
		"warning: ListAgentGroups: "+transport.WarnCorrelationMismatch+"\n"+
			"warning: ListConfigs: "+transport.WarnCorrelationMismatch+"\n",
		buf.String())
}

func TestPrintWarnings_NoneWithoutCommand(t *testing.T) {
	var buf bytes.Buffer
	(&app{}).printWarnings(&buf)
	require.Empty(t, buf.String())
}
