package deepgram

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/parley/pkg/adapters/stt"
	"github.com/harunnryd/parley/pkg/configutil"
	"github.com/harunnryd/parley/pkg/errorsx"
	"github.com/harunnryd/parley/pkg/logging"

	restapi "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	restinterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

// Settings is the vendors.stt.settings block for provider "deepgram".
type Settings struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Language    string        `mapstructure:"language"`
	SmartFormat *bool         `mapstructure:"smart_format"`
	Host        string        `mapstructure:"host"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

var SettingsSchema = configutil.Schema{
	Required: []string{"api_key"},
	Optional: []string{"model", "language", "smart_format", "host", "timeout"},
}

var initOnce sync.Once

// Transcriber sends each flushed buffer to Deepgram's prerecorded endpoint.
type Transcriber struct {
	api     *restapi.Client
	options *interfaces.PreRecordedTranscriptionOptions
	timeout time.Duration
	logger  *slog.Logger
}

func New(settings Settings) (*Transcriber, error) {
	if err := configutil.RequireString(settings.APIKey, "vendors.stt.settings.api_key"); err != nil {
		return nil, err
	}
	initOnce.Do(client.InitWithDefault)

	c := client.NewREST(settings.APIKey, &interfaces.ClientOptions{Host: settings.Host})
	api := restapi.New(c)
	if api == nil {
		return nil, fmt.Errorf("deepgram: unable to build rest client")
	}
	return &Transcriber{
		api: api,
		options: &interfaces.PreRecordedTranscriptionOptions{
			Model:       configutil.StringValue(settings.Model, "nova-2"),
			Language:    settings.Language,
			SmartFormat: configutil.BoolValue(settings.SmartFormat, true),
			Punctuate:   true,
		},
		timeout: settings.Timeout,
		logger:  logging.NewComponentLogger(slog.Default(), "deepgram_stt"),
	}, nil
}

func (t *Transcriber) Name() string { return "deepgram" }

func (t *Transcriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	started := time.Now()
	res, err := t.api.FromStream(ctx, bytes.NewReader(audio), t.options)
	if err != nil {
		t.logger.Error("deepgram_transcribe_failed",
			slog.String("error", err.Error()),
			slog.Int("size_bytes", len(audio)))
		return "", errorsx.Wrap(fmt.Errorf("deepgram: %w", err), errorsx.ReasonTranscribe)
	}
	text := stt.PostProcess(transcriptFrom(res))
	t.logger.Debug("deepgram_transcribed",
		slog.Int("size_bytes", len(audio)),
		slog.Int("chars", len(text)),
		slog.Duration("took", time.Since(started)))
	return text, nil
}

// transcriptFrom returns the first alternative of the first channel.
func transcriptFrom(res *restinterfaces.PreRecordedResponse) string {
	if res == nil || res.Results == nil || len(res.Results.Channels) == 0 {
		return ""
	}
	alts := res.Results.Channels[0].Alternatives
	if len(alts) == 0 {
		return ""
	}
	return alts[0].Transcript
}
