package registry

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
)

// tarGzDir archives every regular file under dir into an in-memory
// tar.gz, with paths relative to dir. Run log bundles are small, so
// buffering in memory keeps the push path simple.
func tarGzDir(dir string) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		hdr := &tar.Header{
			Name:    filepath.ToSlash(rel),
			Mode:    int64(info.Mode().Perm()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to archive directory", goerr.V("dir", dir))
	}

	if err := tw.Close(); err != nil {
		return nil, goerr.Wrap(err, "failed to finalize tar")
	}
	if err := gz.Close(); err != nil {
		return nil, goerr.Wrap(err, "failed to finalize gzip")
	}
	return buf.Bytes(), nil
}
