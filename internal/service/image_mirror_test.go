package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

type blobCall struct {
	path        string
	body        string
	contentType string
	multipart   bool
}

type fakeBlobs struct {
	calls []blobCall
	err   error
}

func (b *fakeBlobs) Put(_ context.Context, p string, data io.Reader, ct string) error {
	body, _ := io.ReadAll(data)
	b.calls = append(b.calls, blobCall{path: p, body: string(body), contentType: ct})
	return b.err
}

func (b *fakeBlobs) PutMultipart(_ context.Context, p string, data io.Reader, ct string, _ int64) error {
	body, _ := io.ReadAll(data)
	b.calls = append(b.calls, blobCall{path: p, body: string(body), contentType: ct, multipart: true})
	return b.err
}

func TestImageMirror_CopiesThenUploads(t *testing.T) {
	blobs := &fakeBlobs{}
	next := &fakeClient{base: "app"}
	m := NewImageMirror(next, blobs, nil)
	m.now = func() time.Time { return time.Date(2026, 3, 4, 23, 0, 0, 0, time.UTC) }

	name, err := m.UploadImage(context.Background(), "tok", domain.Image{Name: "../evil/cover.png", Data: []byte("\x89PNG\r\n\x1a\n")})
	require.NoError(t, err)
	assert.Equal(t, "f-app", name)

	require.Len(t, blobs.calls, 1)
	c := blobs.calls[0]
	assert.True(t, strings.HasPrefix(c.path, "market-images/2026-03-04/"), c.path)
	assert.True(t, strings.HasSuffix(c.path, "-cover.png"), c.path)
	assert.Equal(t, "image/png", c.contentType)
	assert.False(t, c.multipart)
}

func TestImageMirror_FailureDoesNotBlockUpload(t *testing.T) {
	blobs := &fakeBlobs{err: errors.New("bucket gone")}
	m := NewImageMirror(&fakeClient{base: "com"}, blobs, nil)

	name, err := m.UploadImage(context.Background(), "tok", domain.Image{Name: "a.jpg", Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, "f-com", name)
	assert.NoError(t, m.CreateMarket(context.Background(), "tok", domain.CreateMarketRequest{}))
}

func TestImageMirror_LargeImagesUseMultipart(t *testing.T) {
	blobs := &fakeBlobs{}
	m := NewImageMirror(&fakeClient{}, blobs, nil)
	_, err := m.UploadImage(context.Background(), "tok", domain.Image{Name: "big.png", ContentType: "image/png", Data: make([]byte, mirrorMultipartThreshold+1)})
	require.NoError(t, err)
	require.Len(t, blobs.calls, 1)
	assert.True(t, blobs.calls[0].multipart)
	assert.Equal(t, "image/png", blobs.calls[0].contentType)
}
