package service

import (
	"bytes"
	"context"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

// mirrorMultipartThreshold is the size above which the mirror switches to a
// multipart upload.
const mirrorMultipartThreshold = 8 << 20

// Gateway is the remote side of a submission, as seen by decorators.
type Gateway interface {
	UploadImage(ctx context.Context, token string, img domain.Image) (string, error)
	CreateMarket(ctx context.Context, token string, req domain.CreateMarketRequest) error
}

// ImageMirror copies every image to object storage before forwarding the
// upload. A failed copy is logged and never blocks the upload.
type ImageMirror struct {
	next   Gateway
	blobs  domain.BlobWriter
	logger *slog.Logger
	now    func() time.Time
}

// NewImageMirror wraps next.
func NewImageMirror(next Gateway, blobs domain.BlobWriter, logger *slog.Logger) *ImageMirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageMirror{next: next, blobs: blobs, logger: logger, now: time.Now}
}

// UploadImage mirrors img then uploads it.
func (m *ImageMirror) UploadImage(ctx context.Context, token string, img domain.Image) (string, error) {
	key := m.objectKey(img.Name)
	ct := img.DetectContentType()
	var err error
	if len(img.Data) > mirrorMultipartThreshold {
		err = m.blobs.PutMultipart(ctx, key, bytes.NewReader(img.Data), ct, 0)
	} else {
		err = m.blobs.Put(ctx, key, bytes.NewReader(img.Data), ct)
	}
	if err != nil {
		m.logger.WarnContext(ctx, "image_mirror: copy failed",
			slog.String("key", key),
			slog.Any("error", err),
		)
	} else {
		m.logger.DebugContext(ctx, "image_mirror: copied", slog.String("key", key), slog.Int("bytes", len(img.Data)))
	}
	return m.next.UploadImage(ctx, token, img)
}

// CreateMarket forwards unchanged.
func (m *ImageMirror) CreateMarket(ctx context.Context, token string, req domain.CreateMarketRequest) error {
	return m.next.CreateMarket(ctx, token, req)
}

// objectKey builds market-images/<yyyy-mm-dd>/<uuid>-<name>.
func (m *ImageMirror) objectKey(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "image"
	}
	return path.Join("market-images", m.now().UTC().Format("2006-01-02"), uuid.NewString()+"-"+name)
}
