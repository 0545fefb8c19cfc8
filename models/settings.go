package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrUnknownField      = errors.New("unknown setting")
	ErrInvalidValue      = errors.New("invalid setting value")
	ErrMalformedSettings = errors.New("malformed settings payload")
)

// FieldKind describes the value type and validation class of a setting.
type FieldKind string

const (
	KindText  FieldKind = "text"
	KindColor FieldKind = "color"
	KindInt   FieldKind = "int"
	KindBool  FieldKind = "bool"
	KindURL   FieldKind = "url"
)

type Namespace string

const (
	NamespaceTheme    Namespace = "theme"
	NamespaceProfile  Namespace = "profile"
	NamespaceEffects  Namespace = "effects"
	NamespaceAssets   Namespace = "assets"
	NamespaceAudio    Namespace = "audio"
	NamespaceDiscord  Namespace = "discord"
	NamespaceSecurity Namespace = "security"
)

// FieldSpec maps a client setting key to its wire name and validation class.
// Min and Max are only meaningful for KindInt.
type FieldSpec struct {
	Key       string
	Wire      string
	Kind      FieldKind
	Namespace Namespace
	Min       int
	Max       int
}

// Fields is the full registry of customization and account settings.
var Fields = []FieldSpec{
	{Key: "theme", Wire: "theme", Kind: KindText, Namespace: NamespaceTheme},
	{Key: "accentColor", Wire: "accent_color", Kind: KindColor, Namespace: NamespaceTheme},
	{Key: "textColor", Wire: "text_color", Kind: KindColor, Namespace: NamespaceTheme},
	{Key: "backgroundColor", Wire: "background_color", Kind: KindColor, Namespace: NamespaceTheme},
	{Key: "iconColor", Wire: "icon_color", Kind: KindColor, Namespace: NamespaceTheme},

	{Key: "username", Wire: "username", Kind: KindText, Namespace: NamespaceProfile},
	{Key: "displayName", Wire: "display_name", Kind: KindText, Namespace: NamespaceProfile},
	{Key: "email", Wire: "email", Kind: KindText, Namespace: NamespaceProfile},
	{Key: "bio", Wire: "bio", Kind: KindText, Namespace: NamespaceProfile},
	{Key: "description", Wire: "description", Kind: KindText, Namespace: NamespaceProfile},

	{Key: "backgroundEffect", Wire: "background_effect", Kind: KindText, Namespace: NamespaceEffects},
	{Key: "usernameEffect", Wire: "username_effect", Kind: KindText, Namespace: NamespaceEffects},
	{Key: "profileOpacity", Wire: "profile_opacity", Kind: KindInt, Namespace: NamespaceEffects, Min: 0, Max: 100},
	{Key: "profileBlur", Wire: "profile_blur", Kind: KindInt, Namespace: NamespaceEffects, Min: 0, Max: 50},
	{Key: "profileGradient", Wire: "profile_gradient", Kind: KindBool, Namespace: NamespaceEffects},
	{Key: "glowUsername", Wire: "glow_username", Kind: KindBool, Namespace: NamespaceEffects},
	{Key: "glowSocials", Wire: "glow_socials", Kind: KindBool, Namespace: NamespaceEffects},
	{Key: "glowBadges", Wire: "glow_badges", Kind: KindBool, Namespace: NamespaceEffects},
	{Key: "monochromeIcons", Wire: "monochrome_icons", Kind: KindBool, Namespace: NamespaceEffects},
	{Key: "swapBoxColors", Wire: "swap_box_colors", Kind: KindBool, Namespace: NamespaceEffects},

	{Key: "backgroundUrl", Wire: "background_url", Kind: KindURL, Namespace: NamespaceAssets},
	{Key: "avatarUrl", Wire: "avatar_url", Kind: KindURL, Namespace: NamespaceAssets},
	{Key: "audioUrl", Wire: "audio_url", Kind: KindURL, Namespace: NamespaceAudio},
	{Key: "cursorUrl", Wire: "cursor_url", Kind: KindURL, Namespace: NamespaceAssets},

	{Key: "volumeLevel", Wire: "volume_level", Kind: KindInt, Namespace: NamespaceAudio, Min: 0, Max: 100},
	{Key: "volumeControl", Wire: "volume_control", Kind: KindBool, Namespace: NamespaceAudio},

	{Key: "discordPresence", Wire: "discord_presence", Kind: KindBool, Namespace: NamespaceDiscord},
	{Key: "discordAvatarDecoration", Wire: "discord_avatar_decoration", Kind: KindBool, Namespace: NamespaceDiscord},
	{Key: "useDiscordAvatar", Wire: "use_discord_avatar", Kind: KindBool, Namespace: NamespaceDiscord},

	{Key: "twoFactorEnabled", Wire: "two_factor_enabled", Kind: KindBool, Namespace: NamespaceSecurity},
	{Key: "sessionTimeout", Wire: "session_timeout", Kind: KindInt, Namespace: NamespaceSecurity, Min: 5, Max: 1440},
}

var (
	fieldsByKey  = make(map[string]FieldSpec, len(Fields))
	fieldsByWire = make(map[string]FieldSpec, len(Fields))
)

func init() {
	for _, f := range Fields {
		fieldsByKey[f.Key] = f
		fieldsByWire[f.Wire] = f
	}
}

// LookupField returns the field registered for a client key.
func LookupField(key string) (FieldSpec, bool) {
	f, ok := fieldsByKey[key]
	return f, ok
}

// LookupWireField returns the field registered for a snake_case wire name.
func LookupWireField(wire string) (FieldSpec, bool) {
	f, ok := fieldsByWire[wire]
	return f, ok
}

// FieldsIn returns the specs belonging to a namespace, in registry order.
func FieldsIn(ns Namespace) []FieldSpec {
	var out []FieldSpec
	for _, f := range Fields {
		if f.Namespace == ns {
			out = append(out, f)
		}
	}
	return out
}

// Values is a settings object keyed by client (camelCase) key. Values are
// always string, int or bool once normalized.
type Values map[string]any

// DefaultSettings returns a fully populated settings object.
func DefaultSettings() Values {
	return Values{
		"theme":           "dark",
		"accentColor":     "#58A4B0",
		"textColor":       "#FFFFFF",
		"backgroundColor": "#0D1117",
		"iconColor":       "#FFFFFF",

		"username":    "",
		"displayName": "",
		"email":       "",
		"bio":         "",
		"description": "",

		"backgroundEffect": "none",
		"usernameEffect":   "none",
		"profileOpacity":   90,
		"profileBlur":      0,
		"profileGradient":  false,
		"glowUsername":     false,
		"glowSocials":      false,
		"glowBadges":       false,
		"monochromeIcons":  false,
		"swapBoxColors":    false,

		"backgroundUrl": "",
		"avatarUrl":     "",
		"audioUrl":      "",
		"cursorUrl":     "",

		"volumeLevel":   50,
		"volumeControl": true,

		"discordPresence":         false,
		"discordAvatarDecoration": false,
		"useDiscordAvatar":        false,

		"twoFactorEnabled": false,
		"sessionTimeout":   30,
	}
}

// Clone returns a copy that shares no state with v.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Canonical serializes v with sorted keys. Two objects are equal exactly when
// their canonical forms are equal.
func (v Values) Canonical() string {
	b, err := json.Marshal(map[string]any(v))
	if err != nil {
		// only string, int and bool are ever stored
		return fmt.Sprintf("%v", map[string]any(v))
	}
	return string(b)
}

func (v Values) Equal(other Values) bool {
	return v.Canonical() == other.Canonical()
}

// ToWire renames every known key to its snake_case server name.
func (v Values) ToWire() map[string]any {
	wire := make(map[string]any, len(v))
	for k, val := range v {
		if f, ok := fieldsByKey[k]; ok {
			wire[f.Wire] = val
		}
	}
	return wire
}

// FromWire merges a server settings object over DefaultSettings. Unknown wire
// keys and nulls are ignored; a value of the wrong JSON type fails the whole
// payload.
func FromWire(wire map[string]any) (Values, error) {
	out := DefaultSettings()
	for name, raw := range wire {
		f, ok := fieldsByWire[name]
		if !ok || raw == nil {
			continue
		}
		val, err := NormalizeValue(f, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedSettings, name, err)
		}
		out[f.Key] = val
	}
	return out, nil
}

// NormalizeValue coerces value to the Go type used for the field's kind.
func NormalizeValue(f FieldSpec, value any) (any, error) {
	switch f.Kind {
	case KindText, KindColor, KindURL:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects a string, got %T", ErrInvalidValue, f.Key, value)
		}
		return s, nil
	case KindBool:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects a boolean, got %T", ErrInvalidValue, f.Key, value)
		}
		return b, nil
	case KindInt:
		n, ok := toInt(value)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects an integer, got %v", ErrInvalidValue, f.Key, value)
		}
		return n, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownField, f.Key)
}

func toInt(value any) (int, bool) {
	switch n := value.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// ValidationErrors maps a setting key to a human readable message.
type ValidationErrors map[string]string

func (e ValidationErrors) Clone() ValidationErrors {
	out := make(ValidationErrors, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Settings is the persisted settings record of a user.
type Settings struct {
	ID        string     `json:"id" db:"id"`
	UserID    string     `json:"user_id" db:"user_id"`
	Values    Values     `json:"settings" db:"data"`
	CreatedAt *time.Time `json:"created_at" db:"created_at"`
	UpdatedAt *time.Time `json:"updated_at" db:"updated_at"`
}
