package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// WatchCursor marks the last watch of a page; watches are ordered by
// creation time, then key
type WatchCursor struct {
	CreatedAt time.Time
	Key       string
}

func DecodeWatchCursor(cursorStr string) (*WatchCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	decodedParts := strings.SplitN(string(decoded), "|", 2)
	if len(decodedParts) != 2 {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var createdAt int64
	_, err = fmt.Sscanf(decodedParts[0], "%d", &createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid createdAt in cursor: %w", err)
	}

	return &WatchCursor{
		CreatedAt: time.Unix(0, createdAt),
		Key:       decodedParts[1],
	}, nil
}

func EncodeWatchCursor(cursor *WatchCursor) string {
	cs := fmt.Sprintf("%d|%s", cursor.CreatedAt.UnixNano(), cursor.Key)
	return base64.StdEncoding.EncodeToString([]byte(cs))
}

// after reports whether a watch sorts strictly after the cursor
func (c *WatchCursor) after(createdAt time.Time, key string) bool {
	if !createdAt.Equal(c.CreatedAt) {
		return createdAt.After(c.CreatedAt)
	}
	return key > c.Key
}
