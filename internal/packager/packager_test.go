package packager_test

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/deploy"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/packager"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestBuild_Deterministic(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"lambda_function.py": "def lambda_handler(event, context):\n    return []\n",
		"util/helpers.py":    "VERSION = 1\n",
	})

	first, err := packager.Build(src, nil, "lambda_function.py")
	require.NoError(t, err)
	second, err := packager.Build(src, nil, "lambda_function.py")
	require.NoError(t, err)

	assert.Equal(t, first.Checksum, second.Checksum)
	assert.True(t, bytes.Equal(first.Data, second.Data), "archives must be byte-identical")
	assert.Equal(t, first.Size, int64(len(first.Data)))
}

func TestBuild_ChecksumTracksContent(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"lambda_function.py": "a = 1\n"})

	before, err := packager.Build(src, nil, "lambda_function.py")
	require.NoError(t, err)

	writeTree(t, src, map[string]string{"lambda_function.py": "a = 2\n"})
	after, err := packager.Build(src, nil, "lambda_function.py")
	require.NoError(t, err)

	assert.NotEqual(t, before.Checksum, after.Checksum)
}

func TestBuild_MergesDependencies(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"lambda_function.py": "import boto3\n"})

	deps := t.TempDir()
	writeTree(t, deps, map[string]string{
		"boto3/__init__.py":    "",
		"lambda_function.py":   "overridden by source\n",
		"botocore/__init__.py": "",
	})

	artifact, err := packager.Build(src, []string{deps}, "lambda_function.py")
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(artifact.Data), int64(len(artifact.Data)))
	require.NoError(t, err)

	entries := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		var buf bytes.Buffer
		_, err = buf.ReadFrom(rc)
		require.NoError(t, err)
		rc.Close()
		entries[f.Name] = buf.String()
	}

	assert.Contains(t, entries, "boto3/__init__.py")
	assert.Contains(t, entries, "botocore/__init__.py")
	// The source tree wins on a path collision.
	assert.Equal(t, "import boto3\n", entries["lambda_function.py"])
}

func TestBuild_SkipsBytecode(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"lambda_function.py":              "x = 1\n",
		"__pycache__/lambda_function.pyc": "binary",
		"module.pyc":                      "binary",
	})

	artifact, err := packager.Build(src, nil, "lambda_function.py")
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(artifact.Data), int64(len(artifact.Data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "lambda_function.py", zr.File[0].Name)
}

func TestBuild_MissingEntryPoint(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"other.py": ""})

	_, err := packager.Build(src, nil, "lambda_function.py")
	var pkgErr *deploy.PackagingError
	require.ErrorAs(t, err, &pkgErr)
	assert.Contains(t, pkgErr.Reason, "entry point")
}

func TestBuild_MissingSourceDir(t *testing.T) {
	_, err := packager.Build(filepath.Join(t.TempDir(), "nope"), nil, "lambda_function.py")
	var pkgErr *deploy.PackagingError
	require.True(t, errors.As(err, &pkgErr))
}
