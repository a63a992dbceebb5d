package cmd

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleWriterFormatsCommands(t *testing.T) {
	out := &bytes.Buffer{}
	logger := zerolog.New(NewConsoleWriter(out))

	logger.Info().Str("cmd", "pip install .[test]").Bool("dry", true).Msg("pip install '.[test]'")

	assert.Contains(t, out.String(), "$ (dry run) pip install '.[test]'")
	assert.Contains(t, out.String(), "\x1b[32m")
}

func TestConsoleWriterKeepsBracketsVerbatim(t *testing.T) {
	out := &bytes.Buffer{}
	logger := zerolog.New(NewConsoleWriter(out))

	logger.Error().Str("error", "no match for [red] in C:\\dist").Msg("pip install '.[dev,test]'")

	assert.Contains(t, out.String(), "Error: pip install '.[dev,test]'\nno match for [red] in C:\\dist")
	assert.NotContains(t, out.String(), `\[`)
}

func TestConsoleWriterFormatsErrors(t *testing.T) {
	out := &bytes.Buffer{}
	logger := zerolog.New(NewConsoleWriter(out))

	logger.Error().Str("error", "exit status 1").Msg("Failed command build")

	assert.Contains(t, out.String(), "Error: Failed command build\nexit status 1")
	assert.Contains(t, out.String(), "\x1b[31m")
}

func TestConsoleWriterVerbose(t *testing.T) {
	out := &bytes.Buffer{}
	writer := NewConsoleWriter(out)
	writer.Verbose = true

	event := []byte(`{"level":"debug","path":"dist","message":"removing"}`)
	n, err := writer.Write(event)
	require.NoError(t, err)
	assert.Equal(t, len(event), n)
	assert.Contains(t, out.String(), "  path: dist\n")
}

func TestConsoleWriterRejectsInvalidJSON(t *testing.T) {
	_, err := NewConsoleWriter(&bytes.Buffer{}).Write([]byte("not json"))
	assert.Error(t, err)
}
