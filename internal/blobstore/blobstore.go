// Package blobstore предоставляет доступ к удалённому хранилищу изображений.
package blobstore

import (
	"context"
	"errors"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotManaged возвращается, если ссылка не указывает на объект этого хранилища.
var ErrNotManaged = errors.New("url is not managed by blob store")

// Store определяет контракт хранилища двоичных объектов.
type Store interface {
	// Upload сохраняет объект под идентификатором publicID и возвращает постоянную ссылку на него.
	Upload(ctx context.Context, publicID string, r io.Reader) (string, error)
	// Delete удаляет объект, на который указывает ссылка.
	Delete(ctx context.Context, rawURL string) error
}

// NewPublicID строит идентификатор вида <folder>/<YYYYMMDD_HHMMSS>_<8 hex>.
func NewPublicID(folder string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	name := now.Format("20060102_150405") + "_" + suffix
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

// PublicIDFromURL извлекает идентификатор объекта из ссылки доставки Cloudinary:
// https://res.cloudinary.com/<cloud>/image/upload/v123/<folder>/<name>.<ext> -> <folder>/<name>.
func PublicIDFromURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || !strings.HasSuffix(u.Host, "cloudinary.com") {
		return "", false
	}

	_, rest, ok := strings.Cut(u.Path, "/upload/")
	if !ok || rest == "" {
		return "", false
	}

	if version, tail, found := strings.Cut(rest, "/"); found && isVersion(version) {
		rest = tail
	}

	id := strings.TrimSuffix(rest, path.Ext(rest))
	if id == "" {
		return "", false
	}
	return id, true
}

func isVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, c := range s[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
