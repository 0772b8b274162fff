package ingest

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotZip reports that an uploaded payload is not a valid zip archive.
var ErrNotZip = errors.New("payload is not a valid zip archive")

// maxFileSize bounds a single extracted file, guarding against zip bombs.
const maxFileSize = 512 << 20

// extractZip unpacks the archive bytes into dir. Entry paths are confined to
// dir so a crafted archive cannot write outside it.
func extractZip(data []byte, dir string) error {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotZip, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating extraction dir: %w", err)
	}

	for _, file := range reader.File {
		if err := extractZipEntry(file, dir); err != nil {
			return err
		}
	}

	return nil
}

func extractZipEntry(file *zip.File, dir string) error {
	path, err := confinedPath(dir, file.Name)
	if err != nil {
		return err
	}

	if file.FileInfo().IsDir() {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating dir %s: %w", file.Name, err)
		}

		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating parent dir of %s: %w", file.Name, err)
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("opening archive entry %s: %w", file.Name, err)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", file.Name, err)
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, io.LimitReader(src, maxFileSize)); err != nil {
		return fmt.Errorf("extracting %s: %w", file.Name, err)
	}

	return nil
}

// confinedPath joins an archive entry name onto dir, rejecting entries that
// would escape it.
func confinedPath(dir, name string) (string, error) {
	path := filepath.Join(dir, filepath.FromSlash(name))

	if !strings.HasPrefix(path, filepath.Clean(dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry escapes extraction dir: %s", name)
	}

	return path, nil
}
