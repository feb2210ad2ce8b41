package mstore

import (
	"encoding/base64"

	"github.com/ValentinKolb/cloudstore/lib/datastore"
)

// Continuation tokens encode the sort cursor of the last item of a page. The next page
// starts with the first item after that cursor, so writes between two requests neither
// repeat nor skip items that existed before.

func encodeToken(cursor string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(cursor))
}

func decodeToken(token string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(b) == 0 {
		return "", datastore.NewError(datastore.RetCInvalidOperation, "invalid page token")
	}
	return string(b), nil
}

// paginate cuts one page out of items, which must be sorted by cursor (descending if desc).
func paginate[T any](items []T, cursor func(T) string, token string, size int, desc bool) (datastore.Page[T], error) {
	start := 0
	if token != "" {
		after, err := decodeToken(token)
		if err != nil {
			return datastore.Page[T]{}, err
		}
		for start < len(items) {
			c := cursor(items[start])
			if (!desc && c > after) || (desc && c < after) {
				break
			}
			start++
		}
	}

	end := min(start+size, len(items))
	page := datastore.Page[T]{Items: make([]T, 0, end-start)}
	page.Items = append(page.Items, items[start:end]...)
	if end < len(items) {
		page.NextPageToken = encodeToken(cursor(items[end-1]))
	}
	return page, nil
}
