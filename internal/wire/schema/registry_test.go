package schema

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestDefault_HasEveryAction(t *testing.T) {
	reg := Default()
	require.Len(t, reg.Actions(), 15)
	for _, a := range reg.Actions() {
		_, err := reg.Lookup(RequestType(a))
		require.NoError(t, err, a)
		_, err = reg.Lookup(ResponseType(a))
		require.NoError(t, err, a)
	}
	require.Contains(t, reg.Types(), "ConfigDetail")
}

func TestEncodeDecode_Nested(t *testing.T) {
	reg := Default()
	in := map[string]any{
		"requestId": []byte("tok-1"),
		"commonResponse": map[string]any{
			"status":       int32(0),
			"errorMessage": []byte{},
		},
		"agents": []map[string]any{{
			"instanceId":  []byte("a-1"),
			"agentType":   "collector",
			"startupTime": 1700000000,
			"attributes": map[string]any{
				"hostname": []byte("web-1"),
				"extras":   map[string][]byte{"zone": []byte("eu")},
			},
		}},
	}

	b, err := reg.Encode(ResponseType(ListAgents), in)
	require.NoError(t, err)
	out, err := reg.Decode(ResponseType(ListAgents), b)
	require.NoError(t, err)

	agents := out["agents"].([]any)
	require.Len(t, agents, 1)
	agent := agents[0].(map[string]any)
	attrs := agent["attributes"].(map[string]any)

	want := map[string]any{
		"capabilities":  uint64(0),
		"instanceId":    []byte("a-1"),
		"agentType":     "collector",
		"attributes":    attrs,
		"runningStatus": "",
		"startupTime":   int64(1700000000),
		"flags":         uint64(0),
		"opaque":        []byte{},
	}
	if diff := cmp.Diff(want, agent); diff != "" {
		t.Fatalf("agent mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, []byte("web-1"), attrs["hostname"])
	require.Equal(t, map[string]any{"zone": []byte("eu")}, attrs["extras"])
	require.Equal(t, []byte("tok-1"), out["requestId"])
}

func TestDecode_EmptyRepeatedIsEmptySlice(t *testing.T) {
	reg := Default()
	out, err := reg.Decode(ResponseType(GetAppliedConfigsForAgentGroup), nil)
	require.NoError(t, err)
	require.NotNil(t, out["configNames"])
	require.Empty(t, out["configNames"])
	_, hasCommon := out["commonResponse"]
	require.False(t, hasCommon, "unset messages are omitted")
}

func TestEncode_AcceptsStringForBytesAndJSONNumbers(t *testing.T) {
	reg := Default()
	b, err := reg.Encode(RequestType(UpdateConfig), map[string]any{
		"requestId":    "tok",
		"configDetail": map[string]any{"name": []byte("c1"), "version": float64(3), "detail": "a: 1"},
	})
	require.NoError(t, err)

	out, err := reg.Decode(RequestType(UpdateConfig), b)
	require.NoError(t, err)
	cd := out["configDetail"].(map[string]any)
	require.Equal(t, "c1", cd["name"])
	require.Equal(t, int64(3), cd["version"])
	require.Equal(t, []byte("a: 1"), cd["detail"])
}

func TestEncode_Errors(t *testing.T) {
	reg := Default()

	_, err := reg.Encode("NopeRequest", nil)
	require.ErrorIs(t, err, ErrUnknownType)

	_, err = reg.Encode(RequestType(GetConfig), map[string]any{"configNme": "c1"})
	require.ErrorIs(t, err, ErrUnknownField)

	_, err = reg.Encode(RequestType(GetConfig), map[string]any{"configName": 12})
	require.ErrorIs(t, err, ErrFieldKind)

	_, err = reg.Encode(RequestType(CreateConfig), map[string]any{"configDetail": "c1"})
	require.ErrorIs(t, err, ErrFieldKind)

	_, err = reg.Encode(RequestType(UpdateConfig), map[string]any{"configDetail": map[string]any{"version": 1.5}})
	require.ErrorIs(t, err, ErrFieldKind)
}

func TestEncode_IntegerOutOfRange(t *testing.T) {
	reg := Default()
	status := func(v any) map[string]any {
		return map[string]any{"commonResponse": map[string]any{"status": v}}
	}

	for _, v := range []any{int64(1) << 40, int64(math.MinInt32) - 1, float64(math.MaxInt32) + 1, uint64(math.MaxUint32)} {
		_, err := reg.Encode(ResponseType(GetConfig), status(v))
		require.ErrorIs(t, err, ErrFieldKind, "status %v", v)
	}

	b, err := reg.Encode(ResponseType(GetConfig), status(int64(math.MinInt32)))
	require.NoError(t, err)
	out, err := reg.Decode(ResponseType(GetConfig), b)
	require.NoError(t, err)
	require.Equal(t, int32(math.MinInt32), out["commonResponse"].(map[string]any)["status"])

	// uint64 que no entra en int64 no se reinterpreta como negativo.
	_, err = reg.Encode(RequestType(UpdateConfig), map[string]any{
		"configDetail": map[string]any{"version": uint64(math.MaxUint64)},
	})
	require.ErrorIs(t, err, ErrFieldKind)
}

func TestNewRegistry_ExtraOpaqueDeduped(t *testing.T) {
	reg, err := NewRegistry("detail", "token", "", "token")
	require.NoError(t, err)
	require.Equal(t, append(append([]string{}, defaultOpaque...), "token"), reg.OpaqueFields())
}
