package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":          "report.pdf",
		"../../etc/passwd":    "passwd",
		"spec sheet (v2).png": "spec-sheet-v2-.png",
		"  ":                  "output",
		"..":                  "output",
		"日本語.txt":             "txt",
	}
	for in, want := range cases {
		require.Equal(t, want, sanitizeFilename(in), "input %q", in)
	}
}

func TestOpenSinkStdout(t *testing.T) {
	var buf bytes.Buffer
	for _, path := range []string{"", " ", "-"} {
		sink, err := openSink(&buf, path)
		require.NoError(t, err)
		require.Same(t, &buf, sink.writer)
		require.Empty(t, sink.path)
		require.NoError(t, sink.close())
	}
}

func TestOpenSinkCreatesParentDirs(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "dir", "out.json")

	sink, err := openSink(&bytes.Buffer{}, target)
	require.NoError(t, err)
	_, err = sink.writer.Write([]byte("{}"))
	require.NoError(t, err)
	require.NoError(t, sink.close())

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "{}", string(data))
}

func TestEnsureOutDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mirror")

	abs, err := ensureOutDir(dir)
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(abs))
	info, err := os.Stat(abs)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestWriteFailure(t *testing.T) {
	envelope := errors.NewErrorEnvelope("NOT_FOUND", "No issue.").WithCorrelationID("corr-1")
	envelope, err := envelope.WithContext(map[string]interface{}{
		"wrapped_error": "GET /issues/PROJ-9: 404",
		"more_info":     "check the issue key",
	})
	require.NoError(t, err)

	var brief bytes.Buffer
	writeFailure(&brief, envelope, foundry.ExitFileNotFound, false)
	require.Equal(t, "Error: No issue.\n  cause: GET /issues/PROJ-9: 404\n  more info: check the issue key\n", brief.String())

	var detailed bytes.Buffer
	writeFailure(&detailed, envelope, foundry.ExitFileNotFound, true)
	require.Contains(t, detailed.String(), "Exit Code: ")
	require.Contains(t, detailed.String(), "Correlation: corr-1")
}

func TestWriteFailureSkipsDuplicateCause(t *testing.T) {
	envelope := errors.NewErrorEnvelope("INTERNAL", "boom")
	envelope, err := envelope.WithContext(map[string]interface{}{"wrapped_error": "boom"})
	require.NoError(t, err)

	var buf bytes.Buffer
	writeFailure(&buf, envelope, foundry.ExitFailure, false)
	require.Equal(t, "Error: boom\n", buf.String())
}
