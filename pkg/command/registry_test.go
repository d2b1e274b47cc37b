package command

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_PreservesOrder(t *testing.T) {
	reg, err := Compile([]Definition{
		{Pattern: "open {app}", Response: "Opening {0}"},
		{Pattern: "what time is it", Response: "It is late"},
		{Pattern: "stop", Response: "Stopping"},
	})
	require.NoError(t, err)

	require.Equal(t, 3, reg.Len())
	entries := reg.Entries()
	assert.Equal(t, "open {app}", entries[0].Key)
	assert.Equal(t, "what time is it", entries[1].Key)
	assert.Equal(t, "stop", entries[2].Key)
	assert.Empty(t, reg.Rejected())
}

func TestCompile_SkipsInvalidPatterns(t *testing.T) {
	reg, err := Compile([]Definition{
		{Pattern: "set {level", Response: "broken"},
		{Pattern: "lights on", Response: "Lights on"},
		{Pattern: "}", Response: "broken"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, reg.Len())
	rejected := reg.Rejected()
	require.Len(t, rejected, 2)
	assert.Equal(t, "set {level", rejected[0].Pattern)
	assert.Equal(t, "}", rejected[1].Pattern)

	_, ok := reg.Lookup("set {level")
	assert.False(t, ok)
}

func TestCompile_EmptyIsFatal(t *testing.T) {
	reg, err := Compile(nil)
	assert.Nil(t, reg)
	assert.True(t, errors.Is(err, ErrRegistryEmpty))

	reg, err = Compile([]Definition{{Pattern: "{", Response: "x"}})
	assert.Nil(t, reg)
	require.True(t, errors.Is(err, ErrRegistryEmpty))

	var empty *RegistryEmptyError
	require.True(t, errors.As(err, &empty))
	assert.Len(t, empty.Rejected, 1)
	assert.Contains(t, err.Error(), "1 rejected")
}

func TestCompile_DuplicateKeyLastResponseWins(t *testing.T) {
	reg, err := Compile([]Definition{
		{Pattern: "hello", Response: "first"},
		{Pattern: "bye", Response: "Bye"},
		{Pattern: "hello", Response: "second"},
	})
	require.NoError(t, err)

	require.Equal(t, 2, reg.Len())
	entries := reg.Entries()
	assert.Equal(t, "hello", entries[0].Key, "keeps first position")
	assert.Equal(t, "second", entries[0].Template.String())

	res := Resolve("hello", reg, DefaultFuzzyCutoff)
	assert.Equal(t, Exact, res.Kind)
	assert.Equal(t, "second", res.Response)
}

func TestRegistry_EntriesIsCopy(t *testing.T) {
	reg, err := Compile([]Definition{{Pattern: "a", Response: "b"}})
	require.NoError(t, err)

	entries := reg.Entries()
	entries[0].Key = "mutated"

	e, ok := reg.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "a", e.Key)
}
