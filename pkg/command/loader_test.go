package command

import (
	"errors"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_JSONKeepsFileOrder(t *testing.T) {
	data := []byte(`{
	"zebra": "last alphabetically",
	"open {app}": "Opening {0}",
	"apple": "first alphabetically"
}`)

	defs, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, []Definition{
		{Pattern: "zebra", Response: "last alphabetically"},
		{Pattern: "open {app}", Response: "Opening {0}"},
		{Pattern: "apple", Response: "first alphabetically"},
	}, defs)
}

func TestParse_YAML(t *testing.T) {
	data := []byte("what time is it: It is time\nset volume {value}: Volume {value}\n")

	defs, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "set volume {value}", defs[1].Pattern)
}

func TestParse_KeepsDuplicates(t *testing.T) {
	defs, err := Parse([]byte(`{"hi": "one", "hi": "two"}`))
	require.NoError(t, err)
	require.Len(t, defs, 2)

	reg, err := Compile(defs)
	require.NoError(t, err)
	assert.Equal(t, "two", Resolve("hi", reg, DefaultFuzzyCutoff).Response)
}

func TestParse_NonASCII(t *testing.T) {
	defs, err := Parse([]byte(`{"привет": "hello", "caf\u00e9": "coffee"}`))
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "привет", defs[0].Pattern)
	assert.Equal(t, "café", defs[1].Pattern)
}

func TestParse_JSONEscapes(t *testing.T) {
	// json.dumps output with its default ASCII escaping.
	data := []byte(`{"hello": "hi \ud83d\ude00", "\u043f\u0440\u0438\u0432\u0435\u0442": "ok", "open\/close": "toggled"}`)

	defs, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, []Definition{
		{Pattern: "hello", Response: "hi 😀"},
		{Pattern: "привет", Response: "ok"},
		{Pattern: "open/close", Response: "toggled"},
	}, defs)
}

func TestParse_JSONScalarsAndBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("\n  {\"volume\": 5, \"mute\": true}\n")...)

	defs, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, []Definition{
		{Pattern: "volume", Response: "5"},
		{Pattern: "mute", Response: "true"},
	}, defs)
}

func TestParse_JSONTrailingData(t *testing.T) {
	_, err := Parse([]byte(`{"a": "b"} {"c": "d"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedFile))
}

func TestParse_Empty(t *testing.T) {
	defs, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, defs)

	defs, err = Parse([]byte("{}"))
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"array", `["a", "b"]`},
		{"object value", `{"a": {"b": "c"}}`},
		{"null value", `{"a": null}`},
		{"array value", `{"a": ["b"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedFile))
		})
	}

	_, err := Parse([]byte(`{"a": `))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/etc/voxcmd/commands.json", []byte(`{"ping": "pong"}`), 0o644))

	defs, err := Load(fsys, "/etc/voxcmd/commands.json")
	require.NoError(t, err)
	assert.Equal(t, []Definition{{Pattern: "ping", Response: "pong"}}, defs)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), "/nope/commands.json")
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
