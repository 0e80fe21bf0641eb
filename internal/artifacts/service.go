package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"printshop-workflow/internal/config"
)

// Service stores uploaded design files and renders preview thumbnails for
// the dashboards. Chooses S3 when a bucket is configured, local disk
// otherwise.
type Service struct {
	uploader   Uploader
	thumbWidth int
	log        zerolog.Logger
}

func NewService(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Service, error) {
	var uploader Uploader
	if cfg.ArtifactS3Bucket != "" {
		client, err := newS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		uploader = &s3Uploader{client: client, bucket: cfg.ArtifactS3Bucket}
	} else {
		uploader = &localUploader{baseDir: cfg.ArtifactLocalDir, baseURL: cfg.ArtifactBaseURL}
	}

	width := cfg.ThumbnailWidth
	if width <= 0 {
		width = 320
	}
	return &Service{uploader: uploader, thumbWidth: width, log: log}, nil
}

// Upload is a single stored design file.
type Upload struct {
	Filename    string
	ContentType string
	Body        []byte
}

// SaveDesignFiles stores each upload under the job's prefix and returns the
// artifact URLs. Image uploads also get a thumbnail rendered next to the
// original; thumbnail failures are logged and skipped, never fatal.
func (s *Service) SaveDesignFiles(ctx context.Context, jobID int64, uploads []Upload) ([]string, error) {
	urls := make([]string, 0, len(uploads))
	for _, up := range uploads {
		key := fmt.Sprintf("designs/%d/%d_%s", jobID, time.Now().UnixMilli(), sanitizeName(up.Filename))
		url, err := s.uploader.Upload(ctx, key, up.Body, up.ContentType)
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", up.Filename, err)
		}
		urls = append(urls, url)

		if strings.HasPrefix(up.ContentType, "image/") {
			if err := s.saveThumbnail(ctx, key, up.Body); err != nil {
				s.log.Warn().Err(err).Str("key", key).Msg("render thumbnail")
			}
		}
	}
	return urls, nil
}

func (s *Service) saveThumbnail(ctx context.Context, key string, body []byte) error {
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	thumb := imaging.Resize(img, s.thumbWidth, 0, imaging.Lanczos)

	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return fmt.Errorf("encode thumbnail: %w", err)
	}

	ext := path.Ext(key)
	thumbKey := strings.TrimSuffix(key, ext) + "_thumb.jpg"
	_, err = s.uploader.Upload(ctx, thumbKey, buf.Bytes(), "image/jpeg")
	return err
}

func sanitizeName(name string) string {
	name = path.Base(name)
	name = strings.ReplaceAll(name, " ", "_")
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}
