// Package packager builds deployable code bundles. Builds are
// deterministic: identical source and dependency trees produce
// byte-identical archives, so the checksum doubles as a cache key.
package packager

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/deploy"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/function"
)

// Archive entries carry a fixed timestamp; the content hash must not
// move just because the build ran at a different moment.
var epoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Build packages the source tree and its dependency directories into
// one artifact. Dependencies land next to the source files at the
// archive root; on a path collision the source tree wins.
func Build(sourceDir string, depDirs []string, entryPoint string) (*function.Artifact, error) {
	if _, err := os.Stat(sourceDir); err != nil {
		return nil, &deploy.PackagingError{Path: sourceDir, Reason: "source directory not readable", Cause: err}
	}
	if entryPoint != "" {
		if _, err := os.Stat(filepath.Join(sourceDir, entryPoint)); err != nil {
			return nil, &deploy.PackagingError{Path: filepath.Join(sourceDir, entryPoint), Reason: "entry point missing", Cause: err}
		}
	}

	files := map[string]string{}
	for _, dir := range depDirs {
		if err := collect(dir, files); err != nil {
			return nil, err
		}
	}
	if err := collect(sourceDir, files); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		if err := addEntry(zw, name, files[name]); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, &deploy.PackagingError{Path: sourceDir, Reason: "failed to finalize archive", Cause: err}
	}

	sum := sha256.Sum256(buf.Bytes())
	return &function.Artifact{
		Checksum: hex.EncodeToString(sum[:]),
		Size:     int64(buf.Len()),
		Data:     buf.Bytes(),
		BuiltAt:  time.Now(),
	}, nil
}

func collect(dir string, files map[string]string) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if name == "__pycache__" || (strings.HasPrefix(name, ".") && path != dir) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(name, ".pyc") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = path
		return nil
	})
	if err != nil {
		return &deploy.PackagingError{Path: dir, Reason: "failed to walk directory", Cause: err}
	}
	return nil
}

func addEntry(zw *zip.Writer, name, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &deploy.PackagingError{Path: path, Reason: "failed to read file", Cause: err}
	}
	info, err := os.Stat(path)
	if err != nil {
		return &deploy.PackagingError{Path: path, Reason: "failed to stat file", Cause: err}
	}

	hdr := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: epoch,
	}
	// Mode bits collapse to two classes so a checkout with odd
	// permissions still hashes the same.
	if info.Mode()&0o111 != 0 {
		hdr.SetMode(0o755)
	} else {
		hdr.SetMode(0o644)
	}

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return &deploy.PackagingError{Path: path, Reason: "failed to create archive entry", Cause: err}
	}
	if _, err := w.Write(data); err != nil {
		return &deploy.PackagingError{Path: path, Reason: "failed to write archive entry", Cause: err}
	}
	return nil
}
