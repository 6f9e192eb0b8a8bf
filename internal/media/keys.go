package media

import (
	"errors"
	"strconv"
	"strings"
)

const (
	defaultPrefixLen = 2
	defaultExtension = "jpg"
)

// ErrEmptyArticleID is returned when a key is requested for a blank id.
var ErrEmptyArticleID = errors.New("article id is required")

// KeyScheme maps article ids onto sharded storage keys of the form
// "<prefix>/<id>.<ext>". The mapping is pure and stable across restarts.
type KeyScheme struct {
	PrefixLen int
	Extension string
}

// NewKeyScheme normalises the shard prefix length and file extension.
func NewKeyScheme(prefixLen int, ext string) KeyScheme {
	if prefixLen < 1 {
		prefixLen = defaultPrefixLen
	}
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = defaultExtension
	}
	return KeyScheme{PrefixLen: prefixLen, Extension: ext}
}

// Derive returns the storage key for id.
func (k KeyScheme) Derive(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrEmptyArticleID
	}

	prefixLen := k.PrefixLen
	if prefixLen < 1 {
		prefixLen = defaultPrefixLen
	}
	ext := strings.TrimPrefix(k.Extension, ".")
	if ext == "" {
		ext = defaultExtension
	}

	prefix := id
	if len(id) > prefixLen {
		prefix = id[:prefixLen]
	}

	var b strings.Builder
	b.Grow(len(prefix) + len(id) + len(ext) + 2)
	b.WriteString(prefix)
	b.WriteByte('/')
	b.WriteString(id)
	b.WriteByte('.')
	b.WriteString(ext)
	return b.String(), nil
}

// ArticleIDString renders a numeric article id in the form used for keys.
func ArticleIDString(id int64) string {
	return strconv.FormatInt(id, 10)
}
