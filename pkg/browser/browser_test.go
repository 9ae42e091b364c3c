package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinrunner/pkg/fingerprint"
	"pinrunner/pkg/logger"
)

func TestSanitizeFlagsDropsWebSecurity(t *testing.T) {
	tl := logger.NewTestLogger()

	got := sanitizeFlags([]string{
		"--disable-web-security",
		"window-size=1280,800",
		"  ",
		"mute-audio",
	}, tl)

	require.Len(t, got, 2)
	assert.Equal(t, "window-size", got[0].name)
	assert.Equal(t, []string{"1280", "800"}, got[0].values)
	assert.Equal(t, "mute-audio", got[1].name)
	assert.Empty(t, got[1].values)

	msg, ok := tl.FindMessage("dropping forbidden browser flag")
	require.True(t, ok)
	assert.Equal(t, "disable-web-security", msg.Fields["flag"])
}

func TestCookieExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	assert.False(t, Cookie{Expires: 0}.Expired(now), "session cookies never expire on load")
	assert.True(t, Cookie{Expires: float64(now.Unix() - 1)}.Expired(now))
	assert.False(t, Cookie{Expires: float64(now.Unix() + 3600)}.Expired(now))
}

func TestCookieKeyIgnoresValue(t *testing.T) {
	a := Cookie{Name: "_auth", Value: "1", Domain: ".pinterest.com", Path: "/"}
	b := a
	b.Value = "2"
	assert.Equal(t, a.Key(), b.Key())
}

func TestEmulationFor(t *testing.T) {
	p, err := fingerprint.Generate(fingerprint.Options{Platform: "windows", Locale: "en-US", Timezone: "America/New_York", Seed: 7})
	require.NoError(t, err)

	em := EmulationFor(p)
	assert.Equal(t, p.ViewportWidth, em.Width)
	assert.Equal(t, p.ViewportHeight, em.Height)
	assert.Equal(t, "America/New_York", em.Timezone)
	assert.Equal(t, p.UserAgent, em.UserAgent.UserAgent)
}
