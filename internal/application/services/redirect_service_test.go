package services

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikahq/mika-go/internal/domain/analytics"
	"github.com/mikahq/mika-go/internal/domain/apperrors"
	"github.com/mikahq/mika-go/internal/domain/attribution"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/metrics"
	"github.com/mikahq/mika-go/internal/infrastructure/persistence/testdb"
)

func TestValidateDestination(t *testing.T) {
	cases := map[string]string{
		"":                          apperrors.CodeMissingDestination,
		"   ":                       apperrors.CodeMissingDestination,
		"/pricing":                  apperrors.CodeInvalidDestination,
		"javascript:alert(1)":       apperrors.CodeInvalidDestination,
		"ftp://files.example.com/x": apperrors.CodeInvalidDestination,
		"https://":                  apperrors.CodeInvalidDestination,
	}
	for dest, code := range cases {
		_, err := ValidateDestination(dest)
		require.Error(t, err, dest)
		assert.Equal(t, code, apperrors.CodeOf(err), dest)
	}

	dest, err := ValidateDestination(" https://shop.example.com/checkout?sku=1 ")
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com/checkout?sku=1", dest)
}

func TestRedirectRecordsClick(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	_, err := p.tracking.Track(ctx, TrackRequest{
		Type:          "page_view",
		LandingPageID: "lp1",
		CookieID:      "c1",
		UTM:           attribution.Touch{Source: "newsletter", Medium: "email"},
		At:            captureTime.Add(-time.Hour),
	})
	require.NoError(t, err)
	lead, err := p.leads.Capture(ctx, CaptureRequest{Email: "a@example.com", CookieID: "c1", LandingPageID: "lp1", At: captureTime})
	require.NoError(t, err)

	clicks := testutil.ToFloat64(metrics.Redirects.WithLabelValues("click"))
	dest, err := p.redirects.Redirect(ctx, RedirectRequest{
		LeadID:      lead.LeadID,
		Destination: "https://shop.example.com",
		CampaignID:  "c1",
		At:          captureTime.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com", dest)
	assert.Equal(t, clicks+1, testutil.ToFloat64(metrics.Redirects.WithLabelValues("click")))

	events, err := p.store.Repos().Events.FindByLead(ctx, "ws1", lead.LeadID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	click := events[1]
	assert.Equal(t, analytics.EventClick, click.Type)
	assert.Equal(t, "https://shop.example.com", click.Metadata[analytics.MetaDestination])
	require.NotNil(t, click.CampaignID)
	assert.Equal(t, "c1", *click.CampaignID)
	assert.NotEmpty(t, click.VisitorID)

	got, err := p.leads.Get(ctx, "ws1", lead.LeadID, "")
	require.NoError(t, err)
	assert.Equal(t, "google", got.LastSource, "campaign source fills in a missing src")
	assert.Equal(t, "cpc", got.LastMedium)
	assert.Equal(t, "c1", got.LastCampaign)
	assert.Equal(t, "newsletter", got.FirstSource)
	assert.Equal(t, 1, testdb.Count(t, p.db, "campaigns", "id = ? AND clicks_count = 1", "c1"))

	report, err := p.attribution.Rebuild(ctx, "ws1", lead.LeadID)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, "c1", report.RebuiltLast.Campaign)
}

func TestAffiliateRedirectWithoutLead(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	dest, err := p.redirects.Redirect(ctx, RedirectRequest{
		LeadID:        "unknown",
		Destination:   "https://partner.example.com/offer",
		LandingPageID: "lp1",
		AffiliateID:   "aff-7",
		Source:        "partner",
		Medium:        "banner",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://partner.example.com/offer", dest)

	var eventType, metadata string
	require.NoError(t, p.db.QueryRowContext(ctx, `SELECT type, metadata FROM events WHERE workspace_id = ?`, "ws1").Scan(&eventType, &metadata))
	assert.Equal(t, string(analytics.EventAffiliateRedirect), eventType)
	assert.NotContains(t, metadata, `"utm"`, "no campaign, no touch")

	var fields map[string]any
	require.NoError(t, json.Unmarshal([]byte(metadata), &fields))
	assert.Equal(t, "aff-7", fields[analytics.MetaAffiliateID])
	assert.Equal(t, "partner", fields[analytics.MetaRedirectSource])
	assert.Equal(t, "banner", fields[analytics.MetaRedirectMedium])
}

func TestRedirectWithoutWorkspaceStillRedirects(t *testing.T) {
	p := newPipeline(t)

	dest, err := p.redirects.Redirect(context.Background(), RedirectRequest{LeadID: "ghost", Destination: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", dest)
	assert.Equal(t, 0, testdb.Count(t, p.db, "events", ""))
}

func TestRedirectSurvivesEventStoreFailure(t *testing.T) {
	base := newPipeline(t)
	ctx := context.Background()
	lead, err := base.leads.Capture(ctx, CaptureRequest{Email: "a@example.com", LandingPageID: "lp1"})
	require.NoError(t, err)

	p := buildPipeline(t, base.db, brokenEventsStore{base.store}, logging.NewDiscardLogger())
	failures := testutil.ToFloat64(metrics.BestEffortFailures.WithLabelValues("redirect_event"))

	dest, err := p.redirects.Redirect(ctx, RedirectRequest{LeadID: lead.LeadID, Destination: "https://example.com/next", CampaignID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/next", dest)
	assert.Equal(t, failures+1, testutil.ToFloat64(metrics.BestEffortFailures.WithLabelValues("redirect_event")))

	assert.Equal(t, 0, testdb.Count(t, p.db, "events", "type = ?", "click"))
	assert.Equal(t, 1, testdb.Count(t, p.db, "campaigns", "id = ? AND clicks_count = 1", "c1"),
		"the remaining side effects still run")
}

func TestRedirectRejectsBadDestinationWithoutWriting(t *testing.T) {
	p := newPipeline(t)

	_, err := p.redirects.Redirect(context.Background(), RedirectRequest{LeadID: "x", Destination: "", CampaignID: "c1"})
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, 0, testdb.Count(t, p.db, "events", ""))
	assert.Equal(t, 0, testdb.Count(t, p.db, "campaigns", "clicks_count > 0"))
}
