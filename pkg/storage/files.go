package storage

import (
	"bufio"
	"io"
	"os"

	"runsort/pkg/common"
	"runsort/pkg/storage/runfile"
)

// MoveFile renames src to dst, copying when a rename is not possible
// (for example across file systems).
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := CopyFile(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil && !os.IsNotExist(err) {
		return common.WrapIO("remove", src, err)
	}
	return nil
}

func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return common.WrapIO("open", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return common.WrapIO("create", dst, err)
	}
	w := bufio.NewWriterSize(out, runfile.BufferSize)
	if _, err := io.Copy(w, in); err != nil {
		out.Close()
		os.Remove(dst)
		return common.WrapIO("copy", dst, err)
	}
	if err := w.Flush(); err != nil {
		out.Close()
		os.Remove(dst)
		return common.WrapIO("flush", dst, err)
	}
	return common.WrapIO("close", dst, out.Close())
}
