package validation

import (
	"testing"

	"biolink/models"

	"github.com/stretchr/testify/assert"
)

func TestValidate_Defaults(t *testing.T) {
	assert.Empty(t, Validate(models.DefaultSettings()))
}

func TestValidate_OpacityOutOfRange(t *testing.T) {
	values := models.DefaultSettings()
	values["accentColor"] = "#58A4B0"
	values["profileOpacity"] = 150

	errs := Validate(values)

	assert.Equal(t, models.ValidationErrors{"profileOpacity": "Opacity must be between 0 and 100"}, errs)
}

func TestValidate_Colors(t *testing.T) {
	cases := map[string]bool{
		"":         true,
		"#58A4B0":  true,
		"#abcdef":  true,
		"58A4B0":   false,
		"#58A4B":   false,
		"#58A4B0F": false,
		"#GGGGGG":  false,
		"red":      false,
	}
	for color, valid := range cases {
		msg := ValidateField("textColor", color)
		if valid {
			assert.Empty(t, msg, "color %q should be valid", color)
		} else {
			assert.Equal(t, colorMessage, msg, "color %q should be invalid", color)
		}
	}
}

func TestValidate_Ranges(t *testing.T) {
	assert.Empty(t, ValidateField("profileBlur", 0))
	assert.Empty(t, ValidateField("profileBlur", 50))
	assert.Equal(t, "Blur must be between 0 and 50", ValidateField("profileBlur", 51))
	assert.Equal(t, "Volume must be between 0 and 100", ValidateField("volumeLevel", -1))
	assert.Empty(t, ValidateField("volumeLevel", 100))
	assert.Equal(t, "Opacity must be between 0 and 100", ValidateField("profileOpacity", 101))
}

func TestValidate_URLs(t *testing.T) {
	assert.Empty(t, ValidateField("avatarUrl", ""))
	assert.Empty(t, ValidateField("avatarUrl", "https://cdn.example.com/a.png"))
	assert.Equal(t, urlMessage, ValidateField("avatarUrl", "/uploads/a.png"))
	assert.Equal(t, urlMessage, ValidateField("audioUrl", "not a url"))
}

func TestValidate_ProfileText(t *testing.T) {
	assert.Empty(t, ValidateField("email", ""))
	assert.Empty(t, ValidateField("email", "someone@example.com"))
	assert.Equal(t, emailMessage, ValidateField("email", "someone"))
	assert.Empty(t, ValidateField("username", "link_bio"))
	assert.Equal(t, usernameMessage, ValidateField("username", "a"))
}

func TestValidate_WrongType(t *testing.T) {
	errs := Validate(models.Values{"profileOpacity": "ninety"})
	assert.Contains(t, errs, "profileOpacity")
	assert.Equal(t, "Unknown setting", ValidateField("nope", 1))
}
