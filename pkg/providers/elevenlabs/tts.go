package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harunnryd/parley/pkg/adapters/tts"
	"github.com/harunnryd/parley/pkg/configutil"
	"github.com/harunnryd/parley/pkg/errorsx"
	"github.com/harunnryd/parley/pkg/logging"
	"github.com/harunnryd/parley/pkg/resilience"
)

const defaultBaseURL = "wss://api.elevenlabs.io"

// Settings is the vendors.tts.settings block for provider "elevenlabs".
type Settings struct {
	APIKey       string            `mapstructure:"api_key"`
	VoiceID      string            `mapstructure:"voice_id"`
	Voices       map[string]string `mapstructure:"voices"`
	ModelID      string            `mapstructure:"model_id"`
	OutputFormat string            `mapstructure:"output_format"`
	BaseURL      string            `mapstructure:"base_url"`
	Stability    float64           `mapstructure:"stability"`
	Similarity   float64           `mapstructure:"similarity_boost"`
	DialRetries  *int              `mapstructure:"dial_retries"`
	DialBackoff  time.Duration     `mapstructure:"dial_backoff"`
}

var SettingsSchema = configutil.Schema{
	Required: []string{"api_key", "voice_id"},
	Optional: []string{"voices", "model_id", "output_format", "base_url", "stability", "similarity_boost", "dial_retries", "dial_backoff"},
}

// Synthesizer opens one stream-input websocket per reply and collects the
// audio until the final message.
type Synthesizer struct {
	cfg    Settings
	dialer *websocket.Dialer
	retry  resilience.RetryPolicy
	logger *slog.Logger
}

func New(cfg Settings) (*Synthesizer, error) {
	if cfg.APIKey == "" || cfg.VoiceID == "" {
		return nil, errors.New("missing elevenlabs config: api_key and voice_id are required")
	}
	cfg.BaseURL = strings.TrimRight(configutil.StringValue(cfg.BaseURL, defaultBaseURL), "/")
	cfg.OutputFormat = configutil.StringValue(cfg.OutputFormat, "pcm_16000")
	if cfg.Stability == 0 {
		cfg.Stability = 0.5
	}
	if cfg.Similarity == 0 {
		cfg.Similarity = 0.8
	}
	return &Synthesizer{
		cfg:    cfg,
		dialer: &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: 10 * time.Second},
		retry:  resilience.NewRetryPolicy(configutil.IntValue(cfg.DialRetries, 2), cfg.DialBackoff),
		logger: logging.NewComponentLogger(slog.Default(), "elevenlabs_tts"),
	}, nil
}

func (s *Synthesizer) Name() string { return "elevenlabs" }

func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = tts.CleanText(text)
	if text == "" {
		return nil, errorsx.Wrap(tts.ErrEmptyText, errorsx.ReasonSynthesize)
	}
	lang := tts.DetectLanguage(text)
	voice := s.voiceFor(lang)

	conn, err := s.dial(ctx, voice)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonSynthesize)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for _, msg := range s.messages(text) {
		if err := conn.WriteJSON(msg); err != nil {
			return nil, errorsx.Wrap(s.ctxErr(ctx, fmt.Errorf("elevenlabs send: %w", err)), errorsx.ReasonSynthesize)
		}
	}

	var audio []byte
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && len(audio) > 0 {
				break
			}
			return nil, errorsx.Wrap(s.ctxErr(ctx, fmt.Errorf("elevenlabs read: %w", err)), errorsx.ReasonSynthesize)
		}
		chunk, final, err := decodeMessage(data)
		if err != nil {
			s.logger.Warn("elevenlabs_message_invalid", slog.String("error", err.Error()))
			continue
		}
		audio = append(audio, chunk...)
		if final {
			break
		}
	}
	s.logger.Debug("elevenlabs_synthesized",
		slog.String("language", lang),
		slog.String("voice_id", voice),
		slog.Int("size_bytes", len(audio)))
	return audio, nil
}

func (s *Synthesizer) voiceFor(lang string) string {
	if v := strings.TrimSpace(s.cfg.Voices[lang]); v != "" {
		return v
	}
	return s.cfg.VoiceID
}

func (s *Synthesizer) dial(ctx context.Context, voice string) (*websocket.Conn, error) {
	u := s.buildURL(voice)
	var conn *websocket.Conn
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		c, resp, err := s.dialer.DialContext(ctx, u, http.Header{"xi-api-key": []string{s.cfg.APIKey}})
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
				s.logger.Error("elevenlabs_rate_limited", slog.String("status", resp.Status))
				return resilience.RateLimitError{Provider: "elevenlabs", Message: resp.Status}
			}
			s.logger.Warn("elevenlabs_dial_failed", slog.String("error", err.Error()))
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs dial: %w", err)
	}
	return conn, nil
}

func (s *Synthesizer) buildURL(voice string) string {
	q := url.Values{}
	if s.cfg.ModelID != "" {
		q.Set("model_id", s.cfg.ModelID)
	}
	q.Set("output_format", s.cfg.OutputFormat)
	return s.cfg.BaseURL + "/v1/text-to-speech/" + url.PathEscape(voice) + "/stream-input?" + q.Encode()
}

// messages is the stream-input conversation: open with voice settings, send
// the text, then an empty text to end the stream.
func (s *Synthesizer) messages(text string) []map[string]any {
	return []map[string]any{
		{
			"text": " ",
			"voice_settings": map[string]any{
				"stability":        s.cfg.Stability,
				"similarity_boost": s.cfg.Similarity,
			},
		},
		{"text": text + " ", "try_trigger_generation": true},
		{"text": ""},
	}
}

func (s *Synthesizer) ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	return err
}

type streamMessage struct {
	Audio   *string `json:"audio"`
	IsFinal bool    `json:"isFinal"`
	Error   string  `json:"error"`
	Message string  `json:"message"`
}

func decodeMessage(data []byte) ([]byte, bool, error) {
	var msg streamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, false, err
	}
	if msg.Error != "" {
		return nil, false, fmt.Errorf("elevenlabs: %s: %s", msg.Error, msg.Message)
	}
	if msg.Audio == nil || *msg.Audio == "" {
		return nil, msg.IsFinal, nil
	}
	raw, err := base64.StdEncoding.DecodeString(*msg.Audio)
	if err != nil {
		return nil, msg.IsFinal, err
	}
	return raw, msg.IsFinal, nil
}

var _ tts.Synthesizer = (*Synthesizer)(nil)
