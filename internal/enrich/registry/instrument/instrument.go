// Package instrument decorates registry adapters with call metrics and
// tracing. It sits between the cache and the raw adapter so only real
// upstream calls are observed, never cache hits.
package instrument

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fides/internal/enrich/registry"
	entitymodels "fides/internal/entity/models"
)

// Observer receives one observation per upstream call. Result is "ok" or the
// error category.
type Observer interface {
	ObserveRegistryCall(source, result string, d time.Duration)
}

type Client struct {
	next     registry.Client
	observer Observer
	tracer   trace.Tracer
}

// Wrap decorates an adapter. A nil observer disables metrics but keeps spans.
func Wrap(next registry.Client, observer Observer) *Client {
	return &Client{
		next:     next,
		observer: observer,
		tracer:   otel.Tracer("fides/registry"),
	}
}

func (c *Client) Source() string { return c.next.Source() }

func (c *Client) LookupByIdentifier(ctx context.Context, typ entitymodels.IdentifierType, value, country string) (*registry.Record, error) {
	ctx, span := c.tracer.Start(ctx, "registry.lookup", trace.WithAttributes(
		attribute.String("registry.source", c.next.Source()),
		attribute.String("identifier.type", string(typ))))
	defer span.End()

	started := time.Now()
	record, err := c.next.LookupByIdentifier(ctx, typ, value, country)
	c.observe(span, started, err)
	return record, err
}

func (c *Client) SearchByName(ctx context.Context, name, country string, limit int) ([]registry.Record, error) {
	searcher, ok := c.next.(registry.NameSearcher)
	if !ok {
		return nil, registry.NewError(registry.CategoryInternal, c.next.Source(),
			"source does not support name search", nil)
	}

	ctx, span := c.tracer.Start(ctx, "registry.search", trace.WithAttributes(
		attribute.String("registry.source", c.next.Source())))
	defer span.End()

	started := time.Now()
	records, err := searcher.SearchByName(ctx, name, country, limit)
	c.observe(span, started, err)
	return records, err
}

func (c *Client) observe(span trace.Span, started time.Time, err error) {
	result := "ok"
	if err != nil {
		result = string(registry.CategoryOf(err))
		span.SetAttributes(attribute.String("registry.result", result))
	}
	if c.observer != nil {
		c.observer.ObserveRegistryCall(c.next.Source(), result, time.Since(started))
	}
}

// VAT decorates the VIES validator the same way.
type VAT struct {
	next     registry.VATValidator
	observer Observer
	tracer   trace.Tracer
}

func WrapVAT(next registry.VATValidator, observer Observer) *VAT {
	return &VAT{
		next:     next,
		observer: observer,
		tracer:   otel.Tracer("fides/registry"),
	}
}

func (v *VAT) CheckVAT(ctx context.Context, country, number string) (bool, error) {
	ctx, span := v.tracer.Start(ctx, "registry.check_vat", trace.WithAttributes(
		attribute.String("registry.source", "vies"),
		attribute.String("vat.country", country)))
	defer span.End()

	started := time.Now()
	valid, err := v.next.CheckVAT(ctx, country, number)

	result := "ok"
	if err != nil {
		result = string(registry.CategoryOf(err))
		span.SetAttributes(attribute.String("registry.result", result))
	}
	if v.observer != nil {
		v.observer.ObserveRegistryCall("vies", result, time.Since(started))
	}
	return valid, err
}
