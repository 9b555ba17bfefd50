// Package docstore предоставляет доступ к удалённому документному хранилищу:
// коллекции документов, адресуемые по имени коллекции и идентификатору.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound возвращается, если документ отсутствует.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists возвращается при создании документа с занятым идентификатором.
	ErrAlreadyExists = errors.New("document already exists")
)

// Fields: содержимое документа. Идентификатор в документ не входит.
type Fields map[string]any

type serverTimestamp struct{}

// ServerTimestamp: значение поля, которое хранилище заменяет своим текущим временем при записи.
var ServerTimestamp = serverTimestamp{}

// Document: прочитанный документ вместе с его идентификатором.
type Document struct {
	ID     string
	Fields Fields
}

// Decode раскладывает поля документа в структуру по json-тегам.
func (d Document) Decode(v any) error {
	raw, err := json.Marshal(d.Fields)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", d.ID, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

// ToFields переводит значение в поля документа из простых JSON-типов.
func ToFields(v any) (Fields, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	var f Fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return f, nil
}

// Store: контракт документного хранилища.
type Store interface {
	// Get читает документ. ErrNotFound, если его нет.
	Get(ctx context.Context, collection, id string) (Document, error)
	// List возвращает все документы коллекции.
	List(ctx context.Context, collection string) ([]Document, error)
	// Where возвращает документы, у которых поле field равно value.
	Where(ctx context.Context, collection, field string, value any) ([]Document, error)
	// Create записывает новый документ с идентификатором, выданным хранилищем.
	Create(ctx context.Context, collection string, fields Fields) (string, error)
	// Set записывает документ целиком, заменяя существующий.
	Set(ctx context.Context, collection, id string, fields Fields) error
	// Update меняет указанные поля существующего документа. ErrNotFound, если его нет.
	Update(ctx context.Context, collection, id string, fields Fields) error
	// Delete удаляет документ. Отсутствие документа ошибкой не считается.
	Delete(ctx context.Context, collection, id string) error
	Close() error
}

// splitTimestamps отделяет поля со значением ServerTimestamp от остальных.
func splitTimestamps(fields Fields) (Fields, []string) {
	plain := make(Fields, len(fields))
	var stamps []string
	for k, v := range fields {
		if _, ok := v.(serverTimestamp); ok {
			stamps = append(stamps, k)
			continue
		}
		plain[k] = v
	}
	return plain, stamps
}
