package timerange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, time.March, 31, 12, 0, 0, 0, time.UTC)

func TestResolveKnownTokens(t *testing.T) {
	cases := []struct {
		token string
		from  time.Time
		label string
	}{
		{"7d", now.AddDate(0, 0, -7), "Last 7 days"},
		{"30d", now.AddDate(0, 0, -30), "Last 30 days"},
		{"90d", now.AddDate(0, 0, -90), "Last 90 days"},
		{"12m", time.Date(2023, time.March, 31, 12, 0, 0, 0, time.UTC), "Last 12 months"},
	}
	for _, tc := range cases {
		t.Run(tc.token, func(t *testing.T) {
			w := Resolve(tc.token, now)
			require.NotNil(t, w.From)
			assert.Equal(t, tc.token, w.Key)
			assert.True(t, tc.from.Equal(*w.From))
			assert.Equal(t, tc.label, w.Label)
		})
	}
}

func TestResolveUnknownMatchesDefault(t *testing.T) {
	def := Resolve(DefaultKey, now)
	for _, token := range []string{"", "bogus", "365d", "all", "-1d"} {
		assert.Equal(t, def, Resolve(token, now), token)
	}
}

func TestResolveIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, Resolve("7d", now), Resolve(" 7D ", now))
}

func TestResolveExtended(t *testing.T) {
	all := ResolveExtended("all", now)
	assert.Equal(t, KeyAll, all.Key)
	assert.Nil(t, all.From)
	assert.Equal(t, "", all.FromISO())
	assert.Equal(t, "All time", all.Label)

	year := ResolveExtended("365d", now)
	require.NotNil(t, year.From)
	assert.Equal(t, "2023-04-01T12:00:00Z", year.FromISO())
}

func TestResolveWithFallback(t *testing.T) {
	w := ResolveWith("nope", "7d", false, now)
	assert.Equal(t, "7d", w.Key)

	w = ResolveWith("nope", "also-nope", false, now)
	assert.Equal(t, DefaultKey, w.Key)
}

func TestFromISOUsesUTC(t *testing.T) {
	local := time.Date(2024, time.March, 31, 14, 0, 0, 0, time.FixedZone("WIB", 7*3600))
	w := Resolve("7d", local)
	assert.Equal(t, "2024-03-24T07:00:00Z", w.FromISO())
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("90d"))
	assert.False(t, Valid("all"))
}
