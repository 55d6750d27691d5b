package ingress

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/wildguard/core/content"
	"github.com/kilianp07/wildguard/core/logger"
	"github.com/kilianp07/wildguard/core/model"
)

// captureBehaviors mark reports that need capture equipment when the
// content service does not say so.
var captureBehaviors = []string{"trapped", "snared", "injured", "stranded"}

// Normalizer turns raw field reports into incidents.
type Normalizer struct {
	gen     content.Generator
	timeout time.Duration
	log     logger.Logger
	now     func() time.Time
}

// NewNormalizer creates a normalizer. timeout bounds each content request.
func NewNormalizer(gen content.Generator, timeout time.Duration, log logger.Logger) *Normalizer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Normalizer{gen: gen, timeout: timeout, log: logger.OrNop(log), now: func() time.Time { return time.Now().UTC() }}
}

// Normalize returns the incident described by r. When the content service
// fails twice it falls back to a low severity incident of unknown species and
// reports degraded. Only a malformed report is an error.
func (n *Normalizer) Normalize(ctx context.Context, r model.FieldReport) (model.Incident, bool, error) {
	if err := model.Validator().Struct(r); err != nil {
		return model.Incident{}, false, model.FromValidator(err)
	}
	in := content.Context{
		Incident: model.Incident{Location: r.Location, Reporter: r.Reporter},
		Report:   &r,
	}
	res, err := n.generate(ctx, in)
	degraded := false
	if err != nil {
		n.log.Warnf("ingress: normalize report from %s: %v", r.Source, err)
		res, _ = content.Placeholder(content.KindReportNormalize, in)
		degraded = true
	}
	nr := res.(content.NormalizedReport)
	sev, err := model.ParseSeverity(nr.Severity)
	if err != nil {
		sev = model.SeverityLow
	}
	reported := r.ReceivedAt
	if reported.IsZero() {
		reported = n.now()
	}
	inc := model.Incident{
		Location:        r.Location,
		Species:         strings.ToLower(strings.TrimSpace(nr.Species)),
		Severity:        sev,
		Behavior:        nr.Behavior,
		Reporter:        r.Reporter,
		RequiresCapture: nr.RequiresCapture || mentionsCapture(r.Text),
		ReportedAt:      reported,
	}
	return inc, degraded, nil
}

func (n *Normalizer) generate(ctx context.Context, in content.Context) (content.Result, error) {
	if n.gen == nil {
		return nil, fmt.Errorf("no content generator")
	}
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, n.timeout)
		res, err := n.gen.Generate(cctx, content.KindReportNormalize, in)
		cancel()
		if err == nil {
			err = content.Validate(res)
		}
		if err == nil {
			nr, ok := res.(content.NormalizedReport)
			switch {
			case !ok:
				err = &content.SchemaError{Kind: content.KindReportNormalize, Err: fmt.Errorf("got %s result", res.Kind())}
			case strings.TrimSpace(nr.Species) == "":
				err = &content.SchemaError{Kind: content.KindReportNormalize, Err: fmt.Errorf("blank species")}
			default:
				return nr, nil
			}
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func mentionsCapture(text string) bool {
	text = strings.ToLower(text)
	for _, w := range captureBehaviors {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
