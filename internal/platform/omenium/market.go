package omenium

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"

	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

// UploadImage sends img as the multipart "file" field and returns the
// filename the server stored it under. An empty filename is returned as is;
// deciding whether that is fatal is up to the caller.
func (c *Client) UploadImage(ctx context.Context, token string, img domain.Image) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	name := filepath.Base(img.Name)
	if name == "." || name == "/" || name == "" {
		name = "image"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", img.DetectContentType())
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("omenium: upload image: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return "", fmt.Errorf("omenium: upload image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("omenium: upload image: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, pathUpload, token, mw.FormDataContentType(), &buf)
	if err != nil {
		return "", fmt.Errorf("omenium: upload image: %w", err)
	}
	var res uploadResponse
	if err := json.Unmarshal(unwrap(body), &res); err != nil {
		return "", fmt.Errorf("omenium: decode upload: %w", err)
	}
	return res.Filename, nil
}

// CreateMarket posts a market creation request. Any 2xx is success.
func (c *Client) CreateMarket(ctx context.Context, token string, req domain.CreateMarketRequest) error {
	if _, err := c.doJSON(ctx, http.MethodPost, pathCreate, token, req); err != nil {
		return fmt.Errorf("omenium: create market: %w", err)
	}
	return nil
}
