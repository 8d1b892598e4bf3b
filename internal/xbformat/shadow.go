package xbformat

import (
	"io"
	"os"
)

// Shadow is a byte-level backup of a single file: copy the whole file
// aside before a mutating closure runs, restore it verbatim if the
// closure fails.
type Shadow struct {
	path       string
	backupPath string
	checksum   uint64
}

// BeginShadow copies path to a sibling ".xbbak" file and records its
// checksum, so Restore can detect the backup itself was corrupted during
// the rollback window.
func BeginShadow(path string) (*Shadow, error) {
	const op = "xbformat.BeginShadow"
	backupPath := path + ".xbbak"

	src, err := os.Open(path)
	if err != nil {
		return nil, Wrap(KindIO, op, "open "+path, err)
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return nil, Wrap(KindIO, op, "create "+backupPath, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(backupPath)
		return nil, Wrap(KindIO, op, "copy "+path+" -> "+backupPath, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(backupPath)
		return nil, Wrap(KindIO, op, "close "+backupPath, err)
	}

	sum, err := FileChecksum(backupPath)
	if err != nil {
		os.Remove(backupPath)
		return nil, err
	}

	return &Shadow{path: path, backupPath: backupPath, checksum: sum}, nil
}

// Restore verifies the backup's checksum is unchanged, then overwrites path
// with the backup's bytes and deletes the backup file.
func (s *Shadow) Restore() error {
	const op = "xbformat.Shadow.Restore"
	sum, err := FileChecksum(s.backupPath)
	if err != nil {
		return err
	}
	if sum != s.checksum {
		return New(KindIO, op, "transaction backup "+s.backupPath+" checksum mismatch, refusing to restore")
	}

	src, err := os.Open(s.backupPath)
	if err != nil {
		return Wrap(KindIO, op, "open "+s.backupPath, err)
	}
	defer src.Close()

	dst, err := os.Create(s.path)
	if err != nil {
		return Wrap(KindIO, op, "recreate "+s.path, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return Wrap(KindIO, op, "restore "+s.path, err)
	}
	if err := dst.Close(); err != nil {
		return Wrap(KindIO, op, "close "+s.path, err)
	}
	return os.Remove(s.backupPath)
}

// Discard deletes the backup file without restoring, used after a
// successful transaction closure.
func (s *Shadow) Discard() error {
	const op = "xbformat.Shadow.Discard"
	if err := os.Remove(s.backupPath); err != nil && !os.IsNotExist(err) {
		return Wrap(KindIO, op, "remove "+s.backupPath, err)
	}
	return nil
}
