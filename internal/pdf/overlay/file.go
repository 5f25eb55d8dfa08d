package overlay

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	pdferrors "github.com/a3tai/mcp-pdf-forms/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/security"
)

// WriteFile persists data at destination. It refuses to replace the source
// file unless overwrite is set. The data goes to a temporary file in the
// destination directory first and is renamed into place only once it has
// been written completely, so a failed save never leaves a partial file.
func WriteFile(fs afero.Fs, sourcePath, destination string, data []byte, overwrite bool) error {
	same, err := security.SameFile(fs, sourcePath, destination)
	if err != nil {
		return pdferrors.WrapError(pdferrors.ErrorTypeIO, "cannot compare source and destination", err).
			WithFile(destination)
	}
	if same && !overwrite {
		return pdferrors.NewPDFError(pdferrors.ErrorTypeSamePath,
			"destination is the source file; pass overwrite to replace it").WithFile(destination)
	}

	dir := filepath.Dir(destination)
	if info, err := fs.Stat(dir); err != nil || !info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is not a directory", dir)
		}
		return pdferrors.WrapError(pdferrors.ErrorTypeIO, "destination directory is not usable", err).
			WithFile(destination)
	}

	tmp, err := afero.TempFile(fs, dir, "."+filepath.Base(destination)+".*.tmp")
	if err != nil {
		return pdferrors.WrapError(pdferrors.ErrorTypeIO, "failed to create temporary file", err).WithFile(destination)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return pdferrors.WrapError(pdferrors.ErrorTypeIO, "failed to write output", err).WithFile(destination)
	}
	if err := tmp.Sync(); err != nil {
		return pdferrors.WrapError(pdferrors.ErrorTypeIO, "failed to flush output", err).WithFile(destination)
	}
	if err := tmp.Close(); err != nil {
		return pdferrors.WrapError(pdferrors.ErrorTypeIO, "failed to close output", err).WithFile(destination)
	}
	if err := fs.Rename(tmpName, destination); err != nil {
		_ = fs.Remove(tmpName)
		committed = true
		return pdferrors.WrapError(pdferrors.ErrorTypeIO, "failed to move output into place", err).WithFile(destination)
	}
	committed = true
	return nil
}
