package ingress

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/wildguard/core/content"
	"github.com/kilianp07/wildguard/core/model"
	"github.com/kilianp07/wildguard/internal/broker"
)

var yala = model.Boundary{Name: "Yala Block 1", MinLat: 6.25, MaxLat: 6.45, MinLon: 81.30, MaxLon: 81.70}

func newGateway(t *testing.T, gen content.Generator) (*Gateway, *broker.Subscription) {
	t.Helper()
	bus := broker.New(broker.Config{}, nil)
	t.Cleanup(bus.Close)
	sub := bus.Subscribe("test", model.TopicIncidents)
	var norm *Normalizer
	if gen != nil {
		norm = NewNormalizer(gen, time.Second, nil)
	}
	g, err := NewGateway(bus, yala, norm, nil)
	require.NoError(t, err)
	return g, sub
}

func published(t *testing.T, sub *broker.Subscription) model.Incident {
	t.Helper()
	select {
	case m := <-sub.C():
		inc, err := model.PayloadAs[model.Incident](m)
		require.NoError(t, err)
		assert.Equal(t, inc.ID, m.CorrelationID)
		return inc
	case <-time.After(time.Second):
		t.Fatal("incident not published")
	}
	return model.Incident{}
}

func nothingPublished(t *testing.T, sub *broker.Subscription) {
	t.Helper()
	select {
	case m := <-sub.C():
		t.Fatalf("unexpected publish %+v", m.Payload)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestSubmitAssignsIDAndTimestamp(t *testing.T) {
	g, sub := newGateway(t, nil)
	inc, err := g.Submit(context.Background(), model.Incident{
		Species: "  elephant ", Severity: model.SeverityHigh, Location: model.Location{Lat: 6.35, Lon: 81.52},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(inc.ID, "inc-"))
	assert.False(t, inc.ReportedAt.IsZero())
	assert.Equal(t, "elephant", inc.Species)

	got := published(t, sub)
	assert.Equal(t, inc.ID, got.ID)
}

func TestSubmitKeepsCallerID(t *testing.T) {
	g, sub := newGateway(t, nil)
	inc, err := g.Submit(context.Background(), model.Incident{
		ID: "INC-42", Species: "leopard", Location: model.Location{Lat: 6.3, Lon: 81.4},
	})
	require.NoError(t, err)
	assert.Equal(t, "INC-42", inc.ID)
	assert.Equal(t, "INC-42", published(t, sub).ID)
}

func TestSubmitRejectsInvalid(t *testing.T) {
	cases := map[string]model.Incident{
		"outside boundary": {Species: "elephant", Location: model.Location{Lat: 7.5, Lon: 81.5}},
		"empty species":    {Species: "  ", Location: model.Location{Lat: 6.3, Lon: 81.5}},
		"bad severity":     {Species: "elephant", Severity: model.Severity(9), Location: model.Location{Lat: 6.3, Lon: 81.5}},
	}
	for name, inc := range cases {
		t.Run(name, func(t *testing.T) {
			g, sub := newGateway(t, nil)
			_, err := g.Submit(context.Background(), inc)
			require.Error(t, err)
			assert.True(t, model.IsValidationError(err))
			nothingPublished(t, sub)
		})
	}
}

func TestSubmitReportUsesNormalizedFields(t *testing.T) {
	gen := content.GeneratorFunc(func(_ context.Context, kind content.Kind, in content.Context) (content.Result, error) {
		require.Equal(t, content.KindReportNormalize, kind)
		require.NotNil(t, in.Report)
		return content.NormalizedReport{Species: "Elephant", Severity: "critical", Behavior: "crop raiding", Confidence: 0.9}, nil
	})
	g, sub := newGateway(t, gen)
	inc, degraded, err := g.SubmitReport(context.Background(), model.FieldReport{
		Text: "Big elephant raiding paddy near the village", Location: model.Location{Lat: 6.36, Lon: 81.50}, Reporter: model.ReporterCitizen,
	})
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Equal(t, "elephant", inc.Species)
	assert.Equal(t, model.SeverityCritical, inc.Severity)
	assert.Equal(t, model.ReporterCitizen, inc.Reporter)
	assert.False(t, inc.RequiresCapture)
	assert.Equal(t, inc.ID, published(t, sub).ID)
}

func TestNormalizeFallsBackAfterTwoFailures(t *testing.T) {
	calls := 0
	gen := content.GeneratorFunc(func(context.Context, content.Kind, content.Context) (content.Result, error) {
		calls++
		return nil, errors.New("service unavailable")
	})
	n := NewNormalizer(gen, time.Second, nil)
	inc, degraded, err := n.Normalize(context.Background(), model.FieldReport{
		Text: "animal snared by the waterhole", Location: model.Location{Lat: 6.3, Lon: 81.4},
	})
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "unknown", inc.Species)
	assert.Equal(t, model.SeverityLow, inc.Severity)
	assert.True(t, inc.RequiresCapture)
}

func TestNormalizeRetriesSchemaError(t *testing.T) {
	calls := 0
	gen := content.GeneratorFunc(func(context.Context, content.Kind, content.Context) (content.Result, error) {
		calls++
		if calls == 1 {
			return content.NormalizedReport{Severity: "apocalyptic"}, nil
		}
		return content.NormalizedReport{Species: "crocodile", Severity: "high"}, nil
	})
	n := NewNormalizer(gen, time.Second, nil)
	inc, degraded, err := n.Normalize(context.Background(), model.FieldReport{Text: "croc on the road", Location: model.Location{Lat: 6.3, Lon: 81.4}})
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Equal(t, "crocodile", inc.Species)
	assert.Equal(t, model.SeverityHigh, inc.Severity)
}

func TestSubmitReportBlankSpeciesFallsBack(t *testing.T) {
	calls := 0
	gen := content.GeneratorFunc(func(context.Context, content.Kind, content.Context) (content.Result, error) {
		calls++
		return content.NormalizedReport{Species: "   ", Severity: "high"}, nil
	})
	g, sub := newGateway(t, gen)
	inc, degraded, err := g.SubmitReport(context.Background(), model.FieldReport{
		Text: "something large crossed the track", Location: model.Location{Lat: 6.36, Lon: 81.50},
	})
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "unknown", inc.Species)
	assert.Equal(t, model.SeverityLow, inc.Severity)
	assert.Equal(t, inc.ID, published(t, sub).ID)
}

func TestNormalizeRejectsEmptyReport(t *testing.T) {
	n := NewNormalizer(nil, time.Second, nil)
	_, _, err := n.Normalize(context.Background(), model.FieldReport{})
	require.Error(t, err)
	assert.True(t, model.IsValidationError(err))
}

func TestSubmitReportDisabled(t *testing.T) {
	g, _ := newGateway(t, nil)
	_, _, err := g.SubmitReport(context.Background(), model.FieldReport{Text: "x"})
	assert.Error(t, err)
}
