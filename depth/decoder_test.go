package depth

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanTurko/depthstream-go/internal/testutil"
	"github.com/IvanTurko/depthstream-go/sdkerr"
	"github.com/IvanTurko/depthstream-go/ws"
)

const ethbtcFrame = `{"stream":"ethbtc@depth5","data":{"lastUpdateId":100,"bids":[["0.0523","1.2"]],"asks":[["0.0525","0.8"]]}}`

func textFrame(payload string) ws.Frame {
	return ws.Frame{Kind: ws.TextFrame, Payload: []byte(payload)}
}

func TestDecodeFrame_Valid(t *testing.T) {
	env, err := DecodeFrame(textFrame(ethbtcFrame))

	require.NoError(t, err)
	assert.Equal(t, "ethbtc@depth5", env.Stream)
	assert.Equal(t, uint64(100), env.Data.LastUpdateID)

	require.Len(t, env.Data.Bids, 1)
	require.Len(t, env.Data.Asks, 1)
	testutil.AssertDecimalEqual(t, env.Data.Bids[0].Price, "0.0523")
	testutil.AssertDecimalEqual(t, env.Data.Bids[0].Size, "1.2")
	testutil.AssertDecimalEqual(t, env.Data.Asks[0].Price, "0.0525")
	testutil.AssertDecimalEqual(t, env.Data.Asks[0].Size, "0.8")
}

func TestDecodeFrame_UnequalSides(t *testing.T) {
	payload := `{
		"stream": "bnbeth@depth5@100ms",
		"data": {
			"lastUpdateId": 160,
			"bids": [["0.0024", "10"], ["0.0023", "100"], ["0.0022", "5.5"]],
			"asks": [["0.0026", "100"]]
		}
	}`

	env, err := DecodeFrame(textFrame(payload))

	require.NoError(t, err)
	require.Len(t, env.Data.Bids, 3)
	require.Len(t, env.Data.Asks, 1)
	testutil.AssertDecimalEqual(t, env.Data.Bids[0].Price, "0.0024")
	testutil.AssertDecimalEqual(t, env.Data.Bids[1].Price, "0.0023")
	testutil.AssertDecimalEqual(t, env.Data.Bids[2].Price, "0.0022")
	testutil.AssertDecimalEqual(t, env.Data.Asks[0].Price, "0.0026")
}

func TestDecodeFrame_EmptySides(t *testing.T) {
	env, err := DecodePayload([]byte(`{"stream":"ethbtc@depth5","data":{"lastUpdateId":1,"bids":[],"asks":[]}}`))

	require.NoError(t, err)
	assert.Empty(t, env.Data.Bids)
	assert.Empty(t, env.Data.Asks)
}

func TestDecodeFrame_ExtraFieldsIgnored(t *testing.T) {
	payload := `{"stream":"ethbtc@depth5","data":{"e":"depth","lastUpdateId":7,"bids":[["1","2"]],"asks":[["3","4"]]},"ts":1}`

	env, err := DecodePayload([]byte(payload))

	require.NoError(t, err)
	assert.Equal(t, uint64(7), env.Data.LastUpdateID)
}

func TestDecodeFrame_UnsupportedFrameKind(t *testing.T) {
	kinds := []ws.FrameKind{ws.BinaryFrame, ws.PingFrame, ws.PongFrame, ws.CloseFrame}

	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			env, err := DecodeFrame(ws.Frame{Kind: kind, Payload: []byte(ethbtcFrame)})

			assert.Nil(t, env)
			assert.ErrorIs(t, err, sdkerr.ErrUnsupportedFrameKind)
			assert.ErrorContains(t, err, kind.String())
			assert.True(t, sdkerr.IsRecoverable(err))
		})
	}
}

func TestDecodeFrame_SchemaMismatch(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		msg     string
	}{
		{"not json", `hello`, "not a JSON document"},
		{"truncated", `{"stream":"ethbtc@depth5","data":{`, "not a JSON document"},
		{"array payload", `[1,2,3]`, "envelope"},
		{"null payload", `null`, `missing field "stream"`},
		{"missing stream", `{"data":{"lastUpdateId":1,"bids":[],"asks":[]}}`, `missing field "stream"`},
		{"empty stream", `{"stream":"","data":{"lastUpdateId":1,"bids":[],"asks":[]}}`, `"stream" is empty`},
		{"stream not a string", `{"stream":5,"data":{"lastUpdateId":1,"bids":[],"asks":[]}}`, "envelope"},
		{"missing data", `{"stream":"ethbtc@depth5"}`, `missing field "data"`},
		{"null data", `{"stream":"ethbtc@depth5","data":null}`, `missing field "data"`},
		{"data not an object", `{"stream":"ethbtc@depth5","data":[1]}`, "data"},
		{"missing lastUpdateId", `{"stream":"s","data":{"bids":[],"asks":[]}}`, `missing field "data.lastUpdateId"`},
		{"negative lastUpdateId", `{"stream":"s","data":{"lastUpdateId":-1,"bids":[],"asks":[]}}`, "data"},
		{"fractional lastUpdateId", `{"stream":"s","data":{"lastUpdateId":1.5,"bids":[],"asks":[]}}`, "data"},
		{"missing bids", `{"stream":"s","data":{"lastUpdateId":1,"asks":[]}}`, `missing field "data.bids"`},
		{"missing asks", `{"stream":"s","data":{"lastUpdateId":1,"bids":[]}}`, `missing field "data.asks"`},
		{"asks not a sequence", `{"stream":"s","data":{"lastUpdateId":1,"bids":[],"asks":{"a":1}}}`, "data.asks"},
		{"numeric price", `{"stream":"s","data":{"lastUpdateId":1,"bids":[[0.1,"1"]],"asks":[]}}`, "data.bids"},
		{"short level", `{"stream":"s","data":{"lastUpdateId":1,"bids":[],"asks":[["0.1"]]}}`, "data.asks[0]: level has 1 elements"},
		{"long level", `{"stream":"s","data":{"lastUpdateId":1,"bids":[["1","2"],["1","2","3"]],"asks":[]}}`, "data.bids[1]: level has 3 elements"},
		{"upper-case keys", `{"STREAM":"x","DATA":{"LASTUPDATEID":1,"BIDS":[],"ASKS":[]}}`, `missing field "stream"`},
		{"upper-case data keys", `{"stream":"x","data":{"LastUpdateId":1,"Bids":[],"Asks":[]}}`, `missing field "data.lastUpdateId"`},
		{"null price", `{"stream":"s","data":{"lastUpdateId":1,"bids":[[null,"1"]],"asks":[]}}`, "data.bids[0]: price is not a string"},
		{"numeric size", `{"stream":"s","data":{"lastUpdateId":1,"bids":[],"asks":[["1",2]]}}`, "data.asks[0]: size is not a string"},
		{"null level", `{"stream":"s","data":{"lastUpdateId":1,"bids":[null],"asks":[]}}`, "data.bids[0]: level has 0 elements"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := DecodeFrame(textFrame(tt.payload))

			assert.Nil(t, env)
			assert.ErrorIs(t, err, sdkerr.ErrSchemaMismatch)
			assert.ErrorContains(t, err, tt.msg)
			assert.True(t, sdkerr.IsRecoverable(err))
		})
	}
}

func TestDecodeFrame_MalformedNumber(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		where   string
		token   string
	}{
		{"bad bid price", `{"stream":"s","data":{"lastUpdateId":1,"bids":[["abc","1"]],"asks":[]}}`, "data.bids[0]", "abc"},
		{"bad ask size", `{"stream":"s","data":{"lastUpdateId":1,"bids":[],"asks":[["1","2"],["1",""]]}}`, "data.asks[1]", ""},
		{"negative size", `{"stream":"s","data":{"lastUpdateId":1,"bids":[["1","-2"]],"asks":[]}}`, "data.bids[0]", "-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := DecodeFrame(textFrame(tt.payload))

			assert.Nil(t, env)
			assert.ErrorIs(t, err, sdkerr.ErrMalformedNumber)
			assert.ErrorContains(t, err, tt.where)
			assert.ErrorContains(t, err, fmt.Sprintf("%q", tt.token))
			assert.True(t, sdkerr.IsRecoverable(err))
		})
	}
}

func TestDecodeFrame_LevelCounts(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("N bids and M asks decode to N bids and M asks in order", prop.ForAll(
		func(n, m int, id uint64) bool {
			payload := map[string]any{
				"stream": "ethbtc@depth20",
				"data": map[string]any{
					"lastUpdateId": id,
					"bids":         levels(n, 100),
					"asks":         levels(m, 200),
				},
			}
			raw, err := json.Marshal(payload)
			if err != nil {
				return false
			}

			env, err := DecodeFrame(textFrame(string(raw)))
			if err != nil {
				return false
			}
			if env.Data.LastUpdateID != id || len(env.Data.Bids) != n || len(env.Data.Asks) != m {
				return false
			}
			for i, o := range env.Data.Bids {
				if o.Price.IntPart() != int64(100+i) {
					return false
				}
			}
			for i, o := range env.Data.Asks {
				if o.Price.IntPart() != int64(200+i) {
					return false
				}
			}
			return len(env.Data.Pairs()) == min(n, m)
		},
		gen.IntRange(0, 20),
		gen.IntRange(0, 20),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}

func levels(n, base int) [][]string {
	out := make([][]string, n)
	for i := range out {
		out[i] = []string{fmt.Sprintf("%d.5", base+i), strings.Repeat("1", i%5+1)}
	}
	return out
}
