package models

import (
	"strings"
	"time"
)

// AssetType discriminates uploaded profile assets.
type AssetType string

const (
	AssetBackgroundImage AssetType = "backgroundImage"
	AssetAvatar          AssetType = "avatar"
	AssetAudio           AssetType = "audio"
	AssetCursor          AssetType = "cursor"
)

const (
	MaxImageBytes = 5 << 20
	MaxAudioBytes = 10 << 20
)

var imageMIMETypes = []string{"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp"}

// AssetRule holds the upload limits of an asset type and the settings key that
// receives the resulting URL.
type AssetRule struct {
	MaxBytes  int64
	MIMETypes []string
	URLKey    string
}

var AssetRules = map[AssetType]AssetRule{
	AssetBackgroundImage: {MaxBytes: MaxImageBytes, MIMETypes: imageMIMETypes, URLKey: "backgroundUrl"},
	AssetAvatar:          {MaxBytes: MaxImageBytes, MIMETypes: imageMIMETypes, URLKey: "avatarUrl"},
	AssetCursor: {
		MaxBytes:  MaxImageBytes,
		MIMETypes: []string{"image/png", "image/x-icon", "image/vnd.microsoft.icon", "image/svg+xml"},
		URLKey:    "cursorUrl",
	},
	AssetAudio: {
		MaxBytes:  MaxAudioBytes,
		MIMETypes: []string{"audio/mpeg", "audio/wav", "audio/mp3", "audio/ogg", "audio/m4a"},
		URLKey:    "audioUrl",
	},
}

// Allows reports whether contentType is on the rule's allow-list. Parameters
// such as "; charset=" are ignored.
func (r AssetRule) Allows(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	for _, allowed := range r.MIMETypes {
		if ct == allowed {
			return true
		}
	}
	return false
}

// Asset is a stored upload.
type Asset struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"user_id" db:"user_id"`
	Type        AssetType  `json:"type" db:"type"`
	FileName    string     `json:"file_name" db:"file_name"`
	ContentType string     `json:"content_type" db:"content_type"`
	Size        int64      `json:"size" db:"size"`
	StorageKey  string     `json:"-" db:"storage_key"`
	URL         string     `json:"url" db:"url"`
	CreatedAt   *time.Time `json:"created_at" db:"created_at"`
}
