package icebreaker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/synastry-app/synastry-api/internal/model"
)

func TestDescribe(t *testing.T) {
	u := model.User{
		DisplayName:   "Alice",
		SunSign:       "Pisces",
		MoonSign:      "Leo",
		AscendantSign: "Virgo",
	}
	assert.Equal(t, "Alice, sun Pisces, moon Leo, ascendant Virgo", describe(u))
}

func TestDescribe_NoChart(t *testing.T) {
	assert.Equal(t, "Bob", describe(model.User{DisplayName: "Bob"}))
}

func TestFallback(t *testing.T) {
	assert.NotEmpty(t, Fallback())
}

func TestNew_DefaultModel(t *testing.T) {
	g := New("test-key", "")
	assert.Equal(t, "claude-haiku-4-5-20251001", g.model)
}
