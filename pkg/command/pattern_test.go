package command

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompilePattern_Literal(t *testing.T) {
	p, err := CompilePattern("turn on the lights")
	require.NoError(t, err)

	assert.False(t, p.Parameterized())
	assert.Empty(t, p.Fields())

	groups, ok := p.Match("turn on the lights")
	assert.True(t, ok)
	assert.Empty(t, groups)

	_, ok = p.Match("please turn on the lights")
	assert.False(t, ok, "must match the whole utterance")
	_, ok = p.Match("turn on the lights now")
	assert.False(t, ok, "must match the whole utterance")
}

func TestCompilePattern_Placeholders(t *testing.T) {
	p, err := CompilePattern("set {device} to {level}")
	require.NoError(t, err)

	assert.True(t, p.Parameterized())
	assert.Equal(t, []string{"device", "level"}, p.Fields())

	groups, ok := p.Match("set volume to 7")
	require.True(t, ok)
	assert.Equal(t, []string{"volume", "7"}, groups)
}

func TestCompilePattern_GreedyCapture(t *testing.T) {
	p, err := CompilePattern("{a} and {b}")
	require.NoError(t, err)

	groups, ok := p.Match("x and y and z")
	require.True(t, ok)
	assert.Equal(t, []string{"x and y", "z"}, groups)
}

func TestCompilePattern_PlaceholderNeedsText(t *testing.T) {
	p, err := CompilePattern("say {}")
	require.NoError(t, err)
	assert.Equal(t, []string{""}, p.Fields())

	_, ok := p.Match("say ")
	assert.False(t, ok)

	groups, ok := p.Match("say hello")
	require.True(t, ok)
	assert.Equal(t, []string{"hello"}, groups)
}

func TestCompilePattern_MetacharactersAreLiteral(t *testing.T) {
	p, err := CompilePattern("what is 2+2?")
	require.NoError(t, err)

	_, ok := p.Match("what is 2+2?")
	assert.True(t, ok)
	_, ok = p.Match("what is 22")
	assert.False(t, ok)

	p, err = CompilePattern("open (a|b) {x}.txt")
	require.NoError(t, err)
	groups, ok := p.Match("open (a|b) notes.txt")
	require.True(t, ok)
	assert.Equal(t, []string{"notes"}, groups)
	_, ok = p.Match("open a notes.txt")
	assert.False(t, ok)
}

func TestCompilePattern_AnyPlaceholderName(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		input   string
		fields  []string
		groups  []string
	}{
		{"cyrillic", "громкость {уровень}", "громкость пять", []string{"уровень"}, []string{"пять"}},
		{"spaces", "play {song name}", "play yellow submarine", []string{"song name"}, []string{"yellow submarine"}},
		{"punctuation", "set {a.b}", "set 3", []string{"a.b"}, []string{"3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := CompilePattern(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.fields, p.Fields())

			groups, ok := p.Match(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.groups, groups)
		})
	}
}

func TestCompilePattern_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"unterminated", "set {level"},
		{"stray close", "set level}"},
		{"nested", "set {a{b}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := CompilePattern(tt.pattern)
			require.Error(t, err)
			assert.Nil(t, p)
			assert.True(t, errors.Is(err, ErrInvalidPattern))

			var invalid *InvalidPatternError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, tt.pattern, invalid.Pattern)
		})
	}
}
