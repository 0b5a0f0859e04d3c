package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeblew999/geoform/internal/server"
)

func testOptions(t *testing.T) *Options {
	t.Helper()
	return &Options{
		Host:         "localhost",
		Port:         8086,
		DataDir:      t.TempDir(),
		FetchTimeout: "0s",
		CacheTTL:     "1m",
		LogLevel:     "error",
		LogFormat:    "text",
	}
}

func TestWithServer_ReturnsErrorsAfterClosing(t *testing.T) {
	opts := testOptions(t)
	boom := errors.New("boom")

	var ran bool
	err := withServer(context.Background(), opts, func(*server.Server) error {
		ran = true
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.True(t, ran)

	// The data dir is free again for the next command.
	require.NoError(t, withServer(context.Background(), opts, func(*server.Server) error { return nil }))
}

func TestWithServer_BadOptions(t *testing.T) {
	opts := testOptions(t)
	opts.CacheTTL = "soon"
	err := withServer(context.Background(), opts, func(*server.Server) error {
		t.Fatal("must not run")
		return nil
	})
	require.ErrorContains(t, err, "--cache-ttl")

	opts = testOptions(t)
	opts.Config = filepath.Join(t.TempDir(), "geoform.yaml")
	require.NoError(t, os.WriteFile(opts.Config, []byte("colour: red\n"), 0o644))
	require.Error(t, withServer(context.Background(), opts, func(*server.Server) error { return nil }))
}

func TestListProjections(t *testing.T) {
	opts := testOptions(t)
	opts.Config = filepath.Join(t.TempDir(), "geoform.yaml")
	require.NoError(t, os.WriteFile(opts.Config, []byte(`
projections:
  - code: EPSG:32632
    definition: +proj=utm +zone=32 +datum=WGS84 +units=m +no_defs
`), 0o644))

	var out bytes.Buffer
	require.NoError(t, listProjections(context.Background(), opts, &out))
	require.Contains(t, out.String(), "EPSG:4326")
	require.Contains(t, out.String(), "EPSG:32632   utm")
}

func TestExportSpec(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, exportSpec(context.Background(), testOptions(t), false, &out))
	require.Contains(t, out.String(), `"openapi"`)

	out.Reset()
	require.NoError(t, exportSpec(context.Background(), testOptions(t), true, &out))
	require.Contains(t, out.String(), "openapi:")
}

func TestImportFile_MissingFile(t *testing.T) {
	var out bytes.Buffer
	err := importFile(context.Background(), testOptions(t), filepath.Join(t.TempDir(), "nope.geojson"), "", &out)
	require.Error(t, err)
	require.Empty(t, out.String())
}
