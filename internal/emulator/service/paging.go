package service

import (
	"encoding/base64"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
)

// page cuts one page out of items. Page tokens encode the offset of the next
// item; a token is only meaningful for the listing that produced it.
func page[T any](items []T, size, defaultSize, maxSize int, token string) ([]T, string, error) {
	offset := 0
	if token != "" {
		raw, err := base64.RawURLEncoding.DecodeString(token)
		if err == nil {
			offset, err = strconv.Atoi(string(raw))
		}
		if err != nil || offset < 0 {
			return nil, "", apperrors.Newf(apperrors.ErrInvalidArgument, "invalid page token %q", token)
		}
	}
	if size <= 0 {
		size = defaultSize
	}
	if maxSize > 0 && size > maxSize {
		size = maxSize
	}
	if offset >= len(items) {
		return nil, "", nil
	}
	end := len(items)
	if size > 0 && offset+size < end {
		end = offset + size
	}
	next := ""
	if end < len(items) {
		next = base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(end)))
	}
	return items[offset:end], next, nil
}

// paginate pages items with the configured page size bounds.
func paginate[T any](s *Service, items []T, size int32, token string) ([]T, string, error) {
	return page(items, int(size), s.cfg.DefaultPageSize, s.cfg.MaxPageSize, token)
}
