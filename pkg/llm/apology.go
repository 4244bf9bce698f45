package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"

	"github.com/harunnryd/parley/pkg/dialogue"
	"github.com/harunnryd/parley/pkg/errorsx"
	"github.com/harunnryd/parley/pkg/resilience"
)

// Apologies are the replies spoken in place of a failed completion.
type Apologies struct {
	Auth       string
	RateLimit  string
	Status     string // formatted with the status code
	Network    string
	Format     string
	Unexpected string
}

func DefaultApologies() Apologies {
	return Apologies{
		Auth:       "Sorry, I could not authenticate with the language service. Please check the configuration.",
		RateLimit:  "Sorry, there are too many requests right now. Please try again shortly.",
		Status:     "Sorry, I ran into a problem (error code %d). Please try again.",
		Network:    "Sorry, there is a network problem. Please check the connection and try again.",
		Format:     "Sorry, the service returned a response I could not read. Please try again.",
		Unexpected: "Sorry, something unexpected went wrong. Please try again.",
	}
}

// ApologyGenerator turns provider failures into a spoken apology so the
// conversation keeps going. Cancellation and generator_degraded errors pass
// through unchanged.
type ApologyGenerator struct {
	inner     Generator
	apologies Apologies
	log       *slog.Logger
}

func NewApologyGenerator(inner Generator, apologies Apologies, log *slog.Logger) *ApologyGenerator {
	if log == nil {
		log = slog.Default()
	}
	return &ApologyGenerator{inner: inner, apologies: apologies, log: log}
}

func (g *ApologyGenerator) Name() string { return g.inner.Name() }

func (g *ApologyGenerator) Generate(ctx context.Context, history []dialogue.Message) (string, error) {
	text, err := g.inner.Generate(ctx, history)
	if err == nil {
		return text, nil
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", errorsx.Wrap(err, errorsx.ReasonGenerate)
	}
	if errorsx.HasReason(err, errorsx.ReasonGeneratorDegraded) {
		return "", err
	}
	g.log.Warn("llm_generate_apology", "provider", g.inner.Name(), "error", err)
	return g.apologize(err), nil
}

func (g *ApologyGenerator) apologize(err error) string {
	if resilience.IsRateLimit(err) {
		return g.apologies.RateLimit
	}
	var status StatusError
	if errors.As(err, &status) {
		if status.Code == 401 {
			return g.apologies.Auth
		}
		return fmt.Sprintf(g.apologies.Status, status.Code)
	}
	if errors.Is(err, ErrMalformedResponse) {
		return g.apologies.Format
	}
	var nerr net.Error
	var uerr *url.Error
	if errors.As(err, &nerr) || errors.As(err, &uerr) {
		return g.apologies.Network
	}
	return g.apologies.Unexpected
}
