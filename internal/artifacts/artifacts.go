// Package artifacts writes field crops and thumbnails under a document's
// output directory.
package artifacts

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/platinummonkey/fieldscan/internal/imaging"
)

// Directory names below a document output directory.
const (
	CropsDir      = "crops"
	ThumbnailsDir = "thumbnails"
	LogsDir       = "logs"
)

// FileSink saves crops as crops/{name}.jpg and thumbnails as
// thumbnails/thumb_{name}.jpg.
type FileSink struct {
	// MaxThumbnail bounds both thumbnail sides; zero means imaging.ThumbnailSize.
	MaxThumbnail int
}

// NewFileSink returns a sink with the default thumbnail bound.
func NewFileSink() *FileSink {
	return &FileSink{MaxThumbnail: imaging.ThumbnailSize}
}

// PrepareDirs creates the crops, thumbnails and logs directories.
func PrepareDirs(outputDir string) error {
	for _, d := range []string{CropsDir, ThumbnailsDir, LogsDir} {
		if err := os.MkdirAll(filepath.Join(outputDir, d), 0755); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", d, err)
		}
	}
	return nil
}

// CropPath returns where the crop for name is written.
func CropPath(outputDir, name string) string {
	return filepath.Join(outputDir, CropsDir, name+".jpg")
}

// ThumbnailPath returns where the thumbnail for name is written.
func ThumbnailPath(outputDir, name string) string {
	return filepath.Join(outputDir, ThumbnailsDir, "thumb_"+name+".jpg")
}

// Save implements pipeline.ArtifactSink.
func (s *FileSink) Save(outputDir, name string, region image.Image) (string, error) {
	if region == nil || region.Bounds().Empty() {
		return "", imaging.ErrEmptyImage
	}
	if err := imaging.SaveJPEG(CropPath(outputDir, name), region); err != nil {
		return "", err
	}

	max := s.MaxThumbnail
	if max <= 0 {
		max = imaging.ThumbnailSize
	}
	thumb := ThumbnailPath(outputDir, name)
	if err := imaging.SaveJPEG(thumb, imaging.Thumbnail(region, max)); err != nil {
		return "", err
	}
	return thumb, nil
}
