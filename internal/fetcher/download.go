// Package fetcher downloads and unpacks the bulk data files the pipeline
// consumes: state board of elections archives and census shapefiles.
package fetcher

import (
	"archive/zip"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DownloadZip fetches a ZIP archive, extracts it into destDir, and
// returns the extraction directory. An archive already present on disk
// with content is reused instead of re-downloaded; the statewide files
// run to hundreds of megabytes.
func DownloadZip(ctx context.Context, client *http.Client, url, destDir string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	log := zap.L().With(
		zap.String("component", "fetcher"),
		zap.String("url", url),
	)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "fetcher: create dest dir")
	}

	parts := strings.Split(url, "/")
	zipName := parts[len(parts)-1]
	zipPath := filepath.Join(destDir, zipName)

	if info, err := os.Stat(zipPath); err == nil && info.Size() > 0 {
		log.Debug("archive already downloaded", zap.String("path", zipPath))
	} else {
		log.Info("downloading archive")
		if err := DownloadFile(ctx, client, url, zipPath); err != nil {
			return "", eris.Wrap(err, "fetcher: download archive")
		}
	}

	extractDir := filepath.Join(destDir, strings.TrimSuffix(zipName, ".zip"))
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return "", eris.Wrap(err, "fetcher: create extract dir")
	}
	if err := ExtractZip(zipPath, extractDir); err != nil {
		return "", eris.Wrap(err, "fetcher: extract archive")
	}

	return extractDir, nil
}

// DownloadFile downloads a URL to a local file.
func DownloadFile(ctx context.Context, client *http.Client, url, dest string) error {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return eris.Wrap(err, "fetcher: build request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return eris.Wrap(err, "fetcher: download")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("fetcher: download returned status %d", resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return eris.Wrap(err, "fetcher: create file")
	}
	defer f.Close() //nolint:errcheck

	if _, err := io.Copy(f, resp.Body); err != nil {
		return eris.Wrap(err, "fetcher: write file")
	}

	return nil
}

// ExtractZip extracts a ZIP archive flat into the destination directory.
func ExtractZip(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrap(err, "fetcher: open zip")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		destPath := filepath.Join(destDir, filepath.Base(f.Name))

		rc, err := f.Open()
		if err != nil {
			return eris.Wrapf(err, "fetcher: open zip entry %s", f.Name)
		}

		out, err := os.Create(destPath)
		if err != nil {
			_ = rc.Close()
			return eris.Wrapf(err, "fetcher: create %s", destPath)
		}

		if _, err := io.Copy(out, rc); err != nil {
			_ = out.Close()
			_ = rc.Close()
			return eris.Wrapf(err, "fetcher: extract %s", f.Name)
		}
		_ = out.Close()
		_ = rc.Close()
	}

	return nil
}

// FindFile returns the first file under dir (recursively) whose name has
// the given suffix.
func FindFile(dir, suffix string) (string, error) {
	var found string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if found == "" && !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), suffix) {
			found = path
		}
		return nil
	})
	if err != nil {
		return "", eris.Wrap(err, "fetcher: walk dir")
	}
	if found == "" {
		return "", eris.Errorf("fetcher: no %s file found in %s", suffix, dir)
	}
	return found, nil
}
