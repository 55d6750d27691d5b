// Package content defines the contract with the external content service that
// produces natural-language and structured results for the pipeline stages.
// Every result is validated against its schema before use.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kilianp07/wildguard/core/model"
)

// Kind names a content request and its result schema.
type Kind string

const (
	KindReportNormalize   Kind = "report_normalize"
	KindDispatchReasoning Kind = "dispatch_reasoning"
	KindTriage            Kind = "triage"
	KindTreatment         Kind = "treatment"
	KindNotification      Kind = "notification"
)

// Kinds lists every supported kind.
func Kinds() []Kind {
	return []Kind{KindReportNormalize, KindDispatchReasoning, KindTriage, KindTreatment, KindNotification}
}

// Result is a schema-conforming content result.
type Result interface {
	Kind() Kind
}

// Context is the input handed to the generator.
type Context struct {
	Incident     model.Incident          `json:"incident"`
	Decision     *model.DispatchDecision `json:"decision,omitempty"`
	Winner       *model.Bid              `json:"winner,omitempty"`
	LocationName string                  `json:"location_name,omitempty"`
	Report       *model.FieldReport      `json:"report,omitempty"`
}

// Generator produces a result of the requested kind.
type Generator interface {
	Generate(ctx context.Context, kind Kind, in Context) (Result, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, kind Kind, in Context) (Result, error)

func (f GeneratorFunc) Generate(ctx context.Context, kind Kind, in Context) (Result, error) {
	return f(ctx, kind, in)
}

// ErrUnknownKind is returned for kinds without a schema.
var ErrUnknownKind = errors.New("unknown content kind")

// SchemaError reports a result that does not conform to its schema.
type SchemaError struct {
	Kind Kind
	Err  error
}

func (e *SchemaError) Error() string { return fmt.Sprintf("schema %s: %v", e.Kind, e.Err) }

func (e *SchemaError) Unwrap() error { return e.Err }

// IsSchemaError reports whether err wraps a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// Validate checks r against its schema.
func Validate(r Result) error {
	if r == nil {
		return &SchemaError{Err: errors.New("nil result")}
	}
	if err := model.Validator().Struct(r); err != nil {
		return &SchemaError{Kind: r.Kind(), Err: model.FromValidator(err)}
	}
	return nil
}

// Decode parses and validates a raw result of the given kind.
func Decode(kind Kind, data []byte) (Result, error) {
	var (
		res Result
		err error
	)
	switch kind {
	case KindReportNormalize:
		res, err = decodeAs[NormalizedReport](data)
	case KindDispatchReasoning:
		res, err = decodeAs[DispatchReasoning](data)
	case KindTriage:
		res, err = decodeAs[Triage](data)
	case KindTreatment:
		res, err = decodeAs[Treatment](data)
	case KindNotification:
		res, err = decodeAs[Notification](data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if err != nil {
		return nil, &SchemaError{Kind: kind, Err: err}
	}
	if err := Validate(res); err != nil {
		return nil, err
	}
	return res, nil
}

func decodeAs[T Result](data []byte) (Result, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
