package exports

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// downloadClient shares one HTTP client across archive downloads.
var downloadClient = &http.Client{Timeout: 10 * time.Minute}

// DownloadArchive streams the export ZIP at rawURL into destRoot and
// extracts it into a sibling directory named after the archive. Returns
// the extraction directory.
func DownloadArchive(ctx context.Context, rawURL, destRoot string) (string, error) {
	if err := os.MkdirAll(destRoot, 0o755); err != nil {
		return "", eris.Wrapf(err, "exports: create %s", destRoot)
	}

	name := archiveName(rawURL)
	zipPath := filepath.Join(destRoot, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "exports: create download request")
	}

	resp, err := downloadClient.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "exports: download archive")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("exports: download status %d from %s", resp.StatusCode, rawURL)
	}

	f, err := os.Create(zipPath)
	if err != nil {
		return "", eris.Wrapf(err, "exports: create %s", zipPath)
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", eris.Wrapf(err, "exports: write %s", zipPath)
	}

	extractDir := filepath.Join(destRoot, strings.TrimSuffix(name, ".zip"))
	if err := ExtractZIP(zipPath, extractDir); err != nil {
		return "", err
	}

	zap.L().Info("export extracted",
		zap.String("archive", zipPath),
		zap.Int64("bytes", n),
		zap.String("dir", extractDir),
	)
	return extractDir, nil
}

// ExtractZIP extracts every entry of the archive into destDir.
func ExtractZIP(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	// ErrInsecurePath still yields a usable reader; the per-entry guard
	// below rejects the offending names.
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return eris.Wrapf(err, "exports: open archive %s", zipPath)
	}
	defer r.Close() //nolint:errcheck

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return eris.Wrapf(err, "exports: create %s", destDir)
	}

	for _, f := range r.File {
		if err := extractEntry(f, destDir); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(f *zip.File, destDir string) error {
	destPath := filepath.Join(destDir, f.Name)

	// Guard against zip slip.
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return eris.Errorf("exports: illegal archive path %q", f.Name)
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return eris.Wrapf(err, "exports: create %s", destPath)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return eris.Wrapf(err, "exports: create %s", filepath.Dir(destPath))
	}

	src, err := f.Open()
	if err != nil {
		return eris.Wrapf(err, "exports: open archive entry %s", f.Name)
	}
	defer src.Close() //nolint:errcheck

	dst, err := os.Create(destPath)
	if err != nil {
		return eris.Wrapf(err, "exports: create %s", destPath)
	}

	_, err = io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return eris.Wrapf(err, "exports: extract %s", f.Name)
	}
	return nil
}

func archiveName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "export.zip"
	}
	name, err := url.PathUnescape(filepath.Base(u.Path))
	if err != nil || name == "" || name == "." || name == "/" {
		return "export.zip"
	}
	return name
}
