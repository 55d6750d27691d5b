package content

import (
	"context"
	"fmt"
	"strings"

	corecontent "github.com/kilianp07/wildguard/core/content"
	"github.com/kilianp07/wildguard/core/model"
)

// Stub is an offline generator. Report normalization extracts a species and
// severity from keywords; other kinds return the standard templates.
type Stub struct{}

var stubSpecies = []string{"elephant", "leopard", "bear", "crocodile", "buffalo", "deer", "boar", "peacock"}

var stubSeverity = []struct {
	words []string
	level model.Severity
}{
	{[]string{"attack", "charging", "injured person", "aggressive"}, model.SeverityCritical},
	{[]string{"injured", "trapped", "snared", "raiding", "village"}, model.SeverityHigh},
	{[]string{"sighting", "crossing", "seen"}, model.SeverityLow},
}

// Generate implements content.Generator.
func (Stub) Generate(ctx context.Context, kind corecontent.Kind, in corecontent.Context) (corecontent.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if kind != corecontent.KindReportNormalize {
		return corecontent.Placeholder(kind, in)
	}
	if in.Report == nil {
		return nil, fmt.Errorf("stub: report_normalize without report")
	}
	text := strings.ToLower(in.Report.Text)
	nr := corecontent.NormalizedReport{Species: "unknown", Severity: model.SeverityLow.String(), Confidence: 0.3}
	for _, s := range stubSpecies {
		if strings.Contains(text, s) {
			nr.Species = s
			nr.Confidence = 0.6
			break
		}
	}
	for _, rule := range stubSeverity {
		if containsAny(text, rule.words) {
			nr.Severity = rule.level.String()
			nr.Behavior = firstMatch(text, rule.words)
			break
		}
	}
	return nr, nil
}

func containsAny(text string, words []string) bool {
	return firstMatch(text, words) != ""
}

func firstMatch(text string, words []string) string {
	for _, w := range words {
		if strings.Contains(text, w) {
			return w
		}
	}
	return ""
}
