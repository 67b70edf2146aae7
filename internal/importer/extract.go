package importer

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"berth/internal/api"
	"berth/pkg/logging"
)

// extract unpacks the zip archive at bundle into dir. Entries escaping dir
// and link entries are rejected with a ValidationError.
func extract(id, bundle, dir string) error {
	// A reader returned together with an error only flags insecure entry
	// names, which are checked entry by entry below.
	r, err := zip.OpenReader(bundle)
	if r == nil {
		if errors.Is(err, zip.ErrFormat) {
			return api.NewValidationError("bundle", id, "not a zip archive")
		}
		return fmt.Errorf("open bundle: %w", err)
	}
	defer r.Close()

	r.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())

	base := filepath.Clean(dir) + string(os.PathSeparator)
	for _, f := range r.File {
		target := filepath.Join(dir, f.Name)
		if filepath.IsAbs(f.Name) || !strings.HasPrefix(target+string(os.PathSeparator), base) {
			return api.NewValidationError("bundle", id, fmt.Sprintf("entry %q escapes the archive root", f.Name))
		}

		mode := f.Mode()
		switch {
		case mode&fs.ModeSymlink != 0:
			return api.NewValidationError("bundle", id, fmt.Sprintf("entry %q is a link", f.Name))
		case mode.IsDir():
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create %s: %w", f.Name, err)
			}
		default:
			if err := extractFile(f, target); err != nil {
				return err
			}
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create parent of %s: %w", f.Name, err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("read %s: %w", f.Name, err)
	}
	defer src.Close()

	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0644
	}
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create %s: %w", f.Name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("write %s: %w", f.Name, err)
	}
	return dst.Close()
}

// move renames src to dest, copying when the rename fails, for example
// because the temp directory is on another device.
func move(src, dest string) error {
	renameErr := os.Rename(src, dest)
	if renameErr == nil {
		return nil
	}
	logging.Debug("Import", "Rename of %s failed, copying instead: %v", src, renameErr)

	if err := copyTree(src, dest); err != nil {
		_ = os.RemoveAll(dest)
		return fmt.Errorf("move %s: %w", filepath.Base(src), errors.Join(renameErr, err))
	}
	return os.RemoveAll(src)
}

// copyTree copies the directory tree at src to dest, keeping file modes and
// recreating symbolic links.
func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		case info.Mode()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		default:
			return copyFile(path, target, info.Mode().Perm())
		}
	})
}

func copyFile(src, dest string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
