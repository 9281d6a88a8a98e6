package dataset

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Archive writes the dataset as a zip to w. Entry names are relative to the
// dataset directory (train/images/..., val/labels/...).
func (s *Store) Archive(name string, w io.Writer) error {
	dir, err := s.dir(name)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil || rel == "." {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			_, err := zw.Create(rel + "/")
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = rel
		hdr.Method = zip.Deflate

		dst, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(dst, f)
		return err
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("dataset: archive %q: %w", name, err)
	}
	return zw.Close()
}
