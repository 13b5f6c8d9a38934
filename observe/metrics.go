// Package observe holds the service's OpenTelemetry instruments. Metrics are
// exported through a Prometheus bridge (see InitProvider); tests build their
// own Metrics with NewMetrics and a ManualReader.
package observe

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "saythat-server"

// Metrics groups every instrument the game engine and its wiring record to.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// GuessesJudged counts judged guesses. Attributes: correct, lang.
	GuessesJudged metric.Int64Counter

	// Translations counts translation calls of the noun fan-out. Attributes: lang, status.
	Translations metric.Int64Counter

	// Transcriptions counts speech recognition calls. Attribute: status.
	Transcriptions metric.Int64Counter

	// TranscriptionDuration tracks speech recognition latency.
	TranscriptionDuration metric.Float64Histogram

	// StoreConflicts counts optimistic transaction retries. Attribute: root.
	StoreConflicts metric.Int64Counter

	// TriggerRuns counts store trigger invocations. Attributes: trigger, status.
	TriggerRuns metric.Int64Counter

	// ProjectorClients tracks connected projector websockets.
	ProjectorClients metric.Int64UpDownCounter
}

var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// NewMetrics creates all instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.GuessesJudged, err = m.Int64Counter("saythat.guesses.judged",
		metric.WithDescription("Guesses judged against the scene dictionary."),
	); err != nil {
		return nil, err
	}
	if met.Translations, err = m.Int64Counter("saythat.translations",
		metric.WithDescription("Noun translations requested during fan-out."),
	); err != nil {
		return nil, err
	}
	if met.Transcriptions, err = m.Int64Counter("saythat.transcriptions",
		metric.WithDescription("Speech recognition requests."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionDuration, err = m.Float64Histogram("saythat.transcription.duration",
		metric.WithDescription("Latency of speech recognition."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StoreConflicts, err = m.Int64Counter("saythat.store.conflicts",
		metric.WithDescription("Store transactions retried after a concurrent write."),
	); err != nil {
		return nil, err
	}
	if met.TriggerRuns, err = m.Int64Counter("saythat.trigger.runs",
		metric.WithDescription("Store change triggers executed."),
	); err != nil {
		return nil, err
	}
	if met.ProjectorClients, err = m.Int64UpDownCounter("saythat.projector.clients",
		metric.WithDescription("Connected projector feeds."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordGuess counts one judged guess.
func (m *Metrics) RecordGuess(ctx context.Context, correct bool, lang string) {
	if m == nil {
		return
	}
	m.GuessesJudged.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("correct", correct),
		attribute.String("lang", lang),
	))
}

// RecordTranslation counts one translation attempt into lang.
func (m *Metrics) RecordTranslation(ctx context.Context, lang string, err error) {
	if m == nil {
		return
	}
	m.Translations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("lang", lang),
		attribute.String("status", status(err)),
	))
}

// RecordTranscription counts one recognition call and its latency.
func (m *Metrics) RecordTranscription(ctx context.Context, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status(err)))
	m.Transcriptions.Add(ctx, 1, attrs)
	m.TranscriptionDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// StoreConflict counts a transaction retry on path. Only the first path
// segment is recorded to keep cardinality bounded.
func (m *Metrics) StoreConflict(path string) {
	if m == nil {
		return
	}
	root := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(root, '/'); i >= 0 {
		root = root[:i]
	}
	m.StoreConflicts.Add(context.Background(), 1, metric.WithAttributes(attribute.String("root", root)))
}

// RecordTrigger counts one trigger run.
func (m *Metrics) RecordTrigger(ctx context.Context, trigger string, err error) {
	if m == nil {
		return
	}
	m.TriggerRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("trigger", trigger),
		attribute.String("status", status(err)),
	))
}

// ProjectorConnected adjusts the connected projector gauge by delta.
func (m *Metrics) ProjectorConnected(delta int64) {
	if m == nil {
		return
	}
	m.ProjectorClients.Add(context.Background(), delta)
}
