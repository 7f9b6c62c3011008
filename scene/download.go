package scene

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Downloader receives exported files.
type Downloader interface {
	Download(name string, data []byte) error
}

type DownloaderFunc func(name string, data []byte) error

func (f DownloaderFunc) Download(name string, data []byte) error { return f(name, data) }

// DirDownloader writes exports into Dir, replacing files of the same name.
type DirDownloader struct {
	Dir string
}

func (d DirDownloader) Download(name string, data []byte) error {
	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}
	target := filepath.Join(d.Dir, filepath.Base(name))
	if err := os.WriteFile(target, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	logrus.WithField("path", target).Info("Export written")
	return nil
}
