package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBeaconType(t *testing.T) {
	got, ok := ParseBeaconType(" Page_View ")
	assert.True(t, ok)
	assert.Equal(t, EventPageView, got)

	for _, serverOnly := range []string{"lead_captured", "stage_changed", "affiliate_redirect"} {
		_, ok := ParseBeaconType(serverOnly)
		assert.False(t, ok, serverOnly)
	}
	_, ok = ParseBeaconType("hover")
	assert.False(t, ok)
}

func TestOpensSession(t *testing.T) {
	assert.True(t, EventPageView.OpensSession())
	assert.False(t, EventSessionStart.OpensSession())
	assert.False(t, EventClick.OpensSession())
}
