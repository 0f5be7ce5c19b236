package fuzzutil

import (
	"errors"
	"fmt"
	"os"
)

// WriteNewFile writes data to a file at path that must not exist yet. The
// data is assembled by the caller beforehand, so a failed write removes the
// partial file and leaves nothing behind.
func WriteNewFile(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	switch {
	case errors.Is(err, os.ErrExist):
		return fmt.Errorf("refusing to overwrite %s", path)

	case err != nil:
		return err
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)

		return err
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)

		return err
	}

	return nil
}
