package model

import (
	"encoding/base64"
	"fmt"
	"strconv"
)

/**
* Cursors are opaque to the caller. Internally they encode the insertion
* sequence of the last record on the previous page, scoped to the calling
* profile's own records, so they stay stable under unrelated writes.
 */
func EncodeCursor(seq int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(seq)))
}

func DecodeCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor: %w", err)
	}
	seq, err := strconv.Atoi(string(decoded))
	if err != nil {
		return 0, fmt.Errorf("invalid cursor: %w", err)
	}
	return seq, nil
}
