package transport_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dropDatabas3/fleetconsole/internal/devserver"
	"github.com/dropDatabas3/fleetconsole/internal/transport"
	"github.com/dropDatabas3/fleetconsole/internal/wire/normalize"
	"github.com/dropDatabas3/fleetconsole/internal/wire/schema"
)

type senderFunc func(ctx context.Context, endpoint string, body []byte) (*transport.Reply, error)

func (f senderFunc) Send(ctx context.Context, endpoint string, body []byte) (*transport.Reply, error) {
	return f(ctx, endpoint, body)
}

func newDevInvoker(t *testing.T, opts devserver.Options) *transport.Invoker {
	t.Helper()
	opts.Logger = zap.NewNop()
	srv := httptest.NewServer(devserver.New(opts).Handler())
	t.Cleanup(srv.Close)

	inv, err := transport.NewInvoker(transport.Options{
		Sender: transport.NewHTTPSender(transport.HTTPOptions{BaseURL: srv.URL, BasePath: opts.BasePath}),
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	return inv
}

func call(inv *transport.Invoker, action string, fields map[string]any) *transport.Result {
	return inv.Call(context.Background(), action, schema.RequestType(action), schema.ResponseType(action), fields)
}

func TestCall_OK(t *testing.T) {
	inv := newDevInvoker(t, devserver.Options{})

	res := call(inv, schema.ListAgentGroups, nil)
	require.True(t, res.OK, "err=%v", res.Err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Empty(t, res.Warnings)
	require.Empty(t, res.Data.List("agentGroups"))

	res = call(inv, schema.CreateAgentGroup, map[string]any{
		"agentGroup": map[string]any{"name": "g1", "value": "prod"},
	})
	require.True(t, res.OK, "err=%v", res.Error())
	require.NoError(t, res.Error())

	res = call(inv, schema.ListAgentGroups, nil)
	require.True(t, res.OK)
	groups := res.Data.List("agentGroups")
	require.Len(t, groups, 1)
	require.Equal(t, "g1", groups[0].String("name"))
	require.Equal(t, normalize.Text("g1"), groups[0]["name"])
}

func TestCall_ApplicationFailure(t *testing.T) {
	inv := newDevInvoker(t, devserver.Options{BasePath: "/api/v2"})

	res := call(inv, schema.GetConfig, map[string]any{"configName": "missing"})
	require.False(t, res.OK)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	require.NotNil(t, res.Data, "error envelope must still be decoded")
	require.Contains(t, res.Message(), "missing")

	err := res.Error()
	require.ErrorIs(t, err, transport.ErrApplication)
	ce, ok := transport.AsCallError(err)
	require.True(t, ok)
	require.Equal(t, devserver.StatusNotFound, ce.AppStatus)
	require.Equal(t, schema.GetConfig, ce.Action)
	require.Contains(t, ce.Error(), "404")
}

func TestCall_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	inv, err := transport.NewInvoker(transport.Options{
		Sender: transport.NewHTTPSender(transport.HTTPOptions{BaseURL: url}),
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)

	res := call(inv, schema.ListConfigs, nil)
	require.False(t, res.OK)
	require.Equal(t, 0, res.StatusCode)
	require.Nil(t, res.Data)
	require.ErrorIs(t, res.Error(), transport.ErrTransport)
}

func TestCall_EncodeErrorSendsNothing(t *testing.T) {
	sent := 0
	inv, err := transport.NewInvoker(transport.Options{
		Sender: senderFunc(func(context.Context, string, []byte) (*transport.Reply, error) {
			sent++
			return nil, errors.New("unreachable")
		}),
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)

	res := call(inv, schema.GetConfig, map[string]any{"nope": "x"})
	require.False(t, res.OK)
	require.ErrorIs(t, res.Err, transport.ErrEncode)
	require.ErrorIs(t, res.Err, schema.ErrUnknownField)
	require.Zero(t, sent)
}

func TestCall_UndecodableBody(t *testing.T) {
	inv, err := transport.NewInvoker(transport.Options{
		Sender: senderFunc(func(context.Context, string, []byte) (*transport.Reply, error) {
			return &transport.Reply{StatusCode: 500, StatusText: "Internal Server Error", Body: []byte{0xff, 0xff, 0xff}}, nil
		}),
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)

	res := call(inv, schema.ListConfigs, nil)
	require.False(t, res.OK)
	require.Equal(t, 500, res.StatusCode)
	require.Nil(t, res.Data)
	require.ErrorIs(t, res.Error(), transport.ErrDecode)
}

func TestCall_CorrelationMismatchKeepsData(t *testing.T) {
	reg := schema.Default()
	inv, err := transport.NewInvoker(transport.Options{
		Sender: senderFunc(func(_ context.Context, endpoint string, _ []byte) (*transport.Reply, error) {
			body, err := reg.Encode(schema.ResponseType(endpoint), map[string]any{
				"requestId":   []byte("someone-else"),
				"configNames": []string{"c1"},
			})
			if err != nil {
				return nil, err
			}
			return &transport.Reply{StatusCode: 200, StatusText: "OK", Body: body}, nil
		}),
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)

	res := call(inv, schema.GetAppliedConfigsForAgentGroup, map[string]any{"groupName": "g1"})
	require.True(t, res.OK)
	require.Equal(t, []string{transport.WarnCorrelationMismatch}, res.Warnings)
	require.Equal(t, []string{"c1"}, res.Data.Strings("configNames"))
}

func TestCall_DoubleEncodedText(t *testing.T) {
	inv := newDevInvoker(t, devserver.Options{DoubleEncodeText: true})

	res := call(inv, schema.CreateAgentGroup, map[string]any{
		"agentGroup": map[string]any{"name": "edge", "value": "dGVzdA=="},
	})
	require.True(t, res.OK, "err=%v", res.Error())

	res = call(inv, schema.GetAgentGroup, map[string]any{"groupName": "edge"})
	require.True(t, res.OK)
	ag := res.Data.Record("agentGroup")
	require.Equal(t, "edge", ag.String("name"))
	// value es opaco: el servidor no lo codifica y el cliente no lo decodifica.
	require.Equal(t, "dGVzdA==", ag.String("value"))
}

func TestHTTPSender_RequestShape(t *testing.T) {
	var gotPath, gotCT, gotAccept, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		gotCT, gotAccept = r.Header.Get("Content-Type"), r.Header.Get("Accept")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := transport.NewHTTPSender(transport.HTTPOptions{BaseURL: srv.URL + "/", BasePath: "api/"})
	reply, err := s.Send(context.Background(), "ListConfigs", []byte{})
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, reply.StatusCode)
	require.Equal(t, "/api/User/ListConfigs", gotPath)
	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, transport.ContentType, gotCT)
	require.Equal(t, transport.ContentType, gotAccept)
}

func TestHTTPSender_ResponseTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	s := transport.NewHTTPSender(transport.HTTPOptions{BaseURL: srv.URL, MaxResponseBytes: 16})
	_, err := s.Send(context.Background(), "ListConfigs", nil)
	require.ErrorIs(t, err, transport.ErrResponseTooLarge)
}
