package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// Cloudinary хранит изображения в Cloudinary.
type Cloudinary struct {
	cld *cloudinary.Cloudinary
}

// NewCloudinary создаёт клиент Cloudinary по имени облака и паре ключей.
func NewCloudinary(cloudName, apiKey, apiSecret string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("create cloudinary client: %w", err)
	}
	cld.Config.URL.Secure = true

	return &Cloudinary{cld: cld}, nil
}

// Upload загружает объект и возвращает его https-ссылку.
func (c *Cloudinary) Upload(ctx context.Context, publicID string, r io.Reader) (string, error) {
	res, err := c.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID:     publicID,
		Overwrite:    api.Bool(true),
		ResourceType: "auto",
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", publicID, err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("upload %s: %s", publicID, res.Error.Message)
	}
	if res.SecureURL == "" {
		return "", errors.New("upload " + publicID + ": empty secure url")
	}

	return res.SecureURL, nil
}

// Delete удаляет объект по его ссылке доставки.
func (c *Cloudinary) Delete(ctx context.Context, rawURL string) error {
	publicID, ok := PublicIDFromURL(rawURL)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotManaged, rawURL)
	}

	res, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("destroy %s: %w", publicID, err)
	}
	if res.Result != "ok" {
		if res.Error.Message != "" {
			return fmt.Errorf("destroy %s: %s", publicID, res.Error.Message)
		}
		return fmt.Errorf("destroy %s: result %q", publicID, res.Result)
	}

	return nil
}
