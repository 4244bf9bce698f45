package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harunnryd/parley/pkg/dialogue"
	"github.com/harunnryd/parley/pkg/errorsx"
	"github.com/harunnryd/parley/pkg/frames"
	"github.com/harunnryd/parley/pkg/metrics"
	"github.com/harunnryd/parley/pkg/redact"
)

// Session drives one client connection: it turns inbound frames into work
// units, runs them through transcribe, generate and synthesize one at a time,
// and keeps the connection alive with heartbeats.
type Session struct {
	id   string
	conn Conn
	cfg  Config
	pipe Pipeline
	obs  metrics.Observer
	log  *slog.Logger
	dlg  *dialogue.Context

	ctx    context.Context
	cancel context.CancelFunc
	state  atomic.Int32

	mu           sync.Mutex
	queue        []WorkUnit
	workerActive bool

	// Text units that arrive while an audio burst is pending wait in parked
	// until the burst's transcript is queued. parkMark splits the units that
	// precede the next burst from those that follow it; -1 when unset.
	flushPending bool
	parked       []WorkUnit
	parkMark     int

	flushNow  chan struct{}
	closeOnce sync.Once
	release   func(*Session)
	wg        sync.WaitGroup
	openedAt  time.Time
	reason    errorsx.ReasonCode
}

func newSession(id string, conn Conn, opts Options, release func(*Session)) *Session {
	cfg := opts.Config.withDefaults()
	obs := opts.Observer
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       id,
		conn:     conn,
		cfg:      cfg,
		pipe:     opts.Pipeline,
		obs:      obs,
		log:      log.With(slog.String("session_id", id)),
		dlg:      dialogue.NewContext(cfg.ContextWindow, cfg.MaxAudioBytes),
		ctx:      ctx,
		cancel:   cancel,
		flushNow: make(chan struct{}, 1),
		release:  release,
		parkMark: -1,
	}
	s.state.Store(int32(StateConnecting))
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State { return State(s.state.Load()) }

// Context returns the dialogue state owned by this session.
func (s *Session) Context() *dialogue.Context { return s.dlg }

// Done is closed once the session starts closing.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

func (s *Session) start() {
	if !s.state.CompareAndSwap(int32(StateConnecting), int32(StateActive)) {
		return
	}
	s.openedAt = time.Now()
	s.record(metrics.EventSessionOpen, 1, nil)
	s.log.Info("session_active", slog.Duration("heartbeat_interval", s.cfg.HeartbeatInterval))
	s.wg.Add(1)
	go s.heartbeat()
}

// Dispatch handles one inbound frame. Frames arriving outside ACTIVE are
// ignored.
func (s *Session) Dispatch(f frames.Frame) {
	if s.State() != StateActive || f == nil {
		return
	}
	s.dlg.Touch()
	switch fr := f.(type) {
	case frames.TextFrame:
		s.handleText(fr.Text())
	case frames.AudioFrame:
		s.handleAudio(fr.RawPayload())
	default:
		s.log.Debug("frame_ignored", slog.String("kind", string(f.Kind())))
	}
}

func (s *Session) handleText(raw string) {
	outcome := frames.Parse(raw)
	if !outcome.Structured() {
		s.log.Debug("text_plain_fallback", slog.Int("chars", len(raw)))
		s.enqueue(outcome.Text)
		return
	}
	switch outcome.Message.Type {
	case frames.TypePong:
	case frames.TypeText:
		s.enqueue(outcome.Message.Text)
	default:
		s.log.Debug("message_ignored", slog.String("type", string(outcome.Message.Type)))
	}
}

func (s *Session) enqueue(text string) { s.push(text, false) }

// push queues a unit in arrival order. Typed text waits behind a pending
// audio burst; the burst's own transcript goes straight to the queue.
func (s *Session) push(text string, transcript bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() != StateActive {
		return
	}
	unit := WorkUnit{SessionID: s.id, Text: text}
	if s.flushPending && !transcript {
		s.parked = append(s.parked, unit)
		return
	}
	s.queue = append(s.queue, unit)
	s.startWorkerLocked()
}

func (s *Session) startWorkerLocked() {
	if s.workerActive || len(s.queue) == 0 {
		return
	}
	s.workerActive = true
	s.wg.Add(1)
	go s.worker()
}

// finishBurst ends one flush under s.mu so a new burst cannot start between
// the accumulator check and the release of parked units. It reports whether
// the flusher owns another burst.
func (s *Session) finishBurst() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	more := s.dlg.EndFlush()
	n := len(s.parked)
	if more && s.parkMark >= 0 {
		n = min(s.parkMark, n)
	}
	s.parkMark = -1
	if n > 0 && s.State() == StateActive {
		s.queue = append(s.queue, s.parked[:n]...)
		s.parked = append([]WorkUnit(nil), s.parked[n:]...)
		s.startWorkerLocked()
	}
	if !more {
		s.flushPending = false
	}
	return more
}

// QueueLen reports the number of units waiting for the worker.
func (s *Session) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Session) worker() {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.workerActive = false
			s.mu.Unlock()
			s.panicked("worker", r)
		}
	}()
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.ctx.Err() != nil {
			s.workerActive = false
			s.mu.Unlock()
			return
		}
		unit := s.queue[0]
		s.queue[0] = WorkUnit{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.process(unit)
	}
}

func (s *Session) process(unit WorkUnit) {
	text := strings.TrimSpace(unit.Text)
	if text == "" {
		return
	}
	s.dlg.AddMessage(dialogue.RoleUser, text)
	s.log.Info("unit_started", slog.String("text", redact.Preview(text, 100)))

	reply, err := s.generate()
	if s.ctx.Err() != nil {
		return
	}
	if err != nil {
		s.reportError(errorsx.ReasonGenerate, err)
		return
	}
	s.dlg.AddMessage(dialogue.RoleAssistant, reply)
	if err := s.sendJSON(frames.Response(reply)); err != nil {
		s.Close(errorsx.ReasonTransportSend)
		return
	}
	if strings.TrimSpace(reply) == "" {
		s.log.Debug("reply_empty_skip_synthesis")
		return
	}

	audio, err := s.synthesize(reply)
	if s.ctx.Err() != nil {
		return
	}
	if err != nil {
		s.reportError(errorsx.ReasonSynthesize, err)
		return
	}
	s.streamAudio(audio)
}

func (s *Session) generate() (string, error) {
	ctx, cancel := withTimeout(s.ctx, s.cfg.GenerateTimeout)
	defer cancel()
	started := time.Now()
	reply, err := s.pipe.Generator.Generate(ctx, s.dlg.History())
	s.record(metrics.EventStageGenerate, time.Since(started).Seconds(), statusTags(err))
	return reply, err
}

func (s *Session) synthesize(text string) ([]byte, error) {
	ctx, cancel := withTimeout(s.ctx, s.cfg.SynthesizeTimeout)
	defer cancel()
	started := time.Now()
	audio, err := s.pipe.Synthesizer.Synthesize(ctx, text)
	s.record(metrics.EventStageSynthesize, time.Since(started).Seconds(), statusTags(err))
	return audio, err
}

func (s *Session) streamAudio(audio []byte) {
	chunks := frames.Chunk(audio, s.cfg.AudioChunkSize)
	for _, chunk := range chunks {
		if s.ctx.Err() != nil {
			return
		}
		if err := s.conn.SendBinary(chunk); err != nil {
			s.log.Warn("audio_send_failed", slog.String("error", err.Error()))
			s.Close(errorsx.ReasonTransportSend)
			return
		}
	}
	s.record(metrics.EventAudioOut, float64(len(audio)), nil)
	s.log.Debug("audio_streamed", slog.Int("size_bytes", len(audio)), slog.Int("chunks", len(chunks)))
}

func (s *Session) handleAudio(data []byte) {
	if len(data) == 0 {
		return
	}
	s.record(metrics.EventAudioIn, float64(len(data)), nil)
	res := s.dlg.AppendAudio(data)
	if res.Dropped > 0 {
		s.log.Warn("audio_dropped_over_cap",
			slog.Int("dropped_bytes", res.Dropped),
			slog.Int("max_audio_bytes", s.cfg.MaxAudioBytes))
		s.record(metrics.EventUnitDropped, float64(res.Dropped), map[string]string{metrics.TagReason: "audio_cap"})
	}
	if res.Full {
		select {
		case s.flushNow <- struct{}{}:
		default:
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case res.StartFlush:
		if s.State() != StateActive {
			s.dlg.Release()
			return
		}
		s.flushPending = true
		s.parkMark = -1
		s.wg.Add(1)
		go s.flusher()
	case res.NextBurst && s.parkMark < 0:
		s.parkMark = len(s.parked)
	}
}

// flusher owns the audio accumulator for one burst and any burst that
// arrives while it transcribes.
func (s *Session) flusher() {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.dlg.Release()
			s.panicked("flusher", r)
		}
	}()
	for {
		if !s.waitCoalesce() {
			s.dlg.Release()
			return
		}
		audio := s.dlg.TakeAudio()
		select {
		case <-s.flushNow:
		default:
		}
		s.transcribe(audio)
		if s.ctx.Err() != nil {
			s.dlg.Release()
			return
		}
		if !s.finishBurst() {
			return
		}
	}
}

func (s *Session) waitCoalesce() bool {
	timer := time.NewTimer(s.cfg.CoalesceWindow)
	defer timer.Stop()
	select {
	case <-s.ctx.Done():
		return false
	case <-timer.C:
		return true
	case <-s.flushNow:
		return true
	}
}

func (s *Session) transcribe(audio []byte) {
	if len(audio) == 0 {
		return
	}
	ctx, cancel := withTimeout(s.ctx, s.cfg.TranscribeTimeout)
	defer cancel()
	started := time.Now()
	text, err := s.pipe.Transcriber.Transcribe(ctx, audio)
	s.record(metrics.EventStageTranscribe, time.Since(started).Seconds(), statusTags(err))
	if s.ctx.Err() != nil {
		return
	}
	if err != nil {
		s.reportError(errorsx.ReasonTranscribe, err)
		return
	}
	s.log.Info("audio_transcribed",
		slog.Int("size_bytes", len(audio)),
		slog.String("text", redact.Preview(text, 100)))
	if err := s.sendJSON(frames.Transcription(text)); err != nil {
		s.Close(errorsx.ReasonTransportSend)
		return
	}
	s.push(text, true)
}

func (s *Session) heartbeat() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if s.State() != StateActive {
				return
			}
			if err := s.sendJSON(frames.Ping()); err != nil {
				s.log.Warn("heartbeat_failed", slog.String("error", err.Error()))
				s.record(metrics.EventHeartbeatFailed, 1, nil)
				s.Close(errorsx.ReasonHeartbeat)
				return
			}
		}
	}
}

func (s *Session) sendJSON(msg frames.Outbound) error {
	b, err := msg.Marshal()
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonDecode)
	}
	if err := s.conn.SendText(b); err != nil {
		return errorsx.Wrap(fmt.Errorf("send %s: %w", msg.Type, err), errorsx.ReasonTransportSend)
	}
	return nil
}

// reportError tells the client a stage failed. A failed send here is only
// logged; the next heartbeat or send will notice a dead connection.
func (s *Session) reportError(stage errorsx.ReasonCode, err error) {
	reason := errorsx.Reason(err)
	if reason == errorsx.ReasonUnknown {
		reason = stage
	}
	s.log.Error("pipeline_stage_failed",
		slog.String("stage", string(stage)),
		slog.String("reason_code", string(reason)),
		slog.String("error", err.Error()))
	s.record(metrics.EventPipelineError, 1, map[string]string{
		metrics.TagStage:  string(stage),
		metrics.TagReason: string(reason),
	})
	if sendErr := s.sendJSON(frames.Error(errorsx.UserMessage(reason))); sendErr != nil {
		s.log.Debug("error_report_send_failed", slog.String("error", sendErr.Error()))
	}
}

func (s *Session) panicked(where string, r any) {
	s.log.Error("session_panic", slog.String("goroutine", where), slog.Any("panic", r))
	s.record(metrics.EventPipelineError, 1, map[string]string{
		metrics.TagStage:  where,
		metrics.TagReason: string(errorsx.ReasonPanic),
	})
	s.Close(errorsx.ReasonPanic)
}

// Close tears the session down exactly once: it cancels in-flight work,
// drops queued units, closes the connection and deregisters the session.
// It never blocks on the session's own goroutines, so they may call it.
func (s *Session) Close(reason errorsx.ReasonCode) {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosing))
		s.cancel()

		s.mu.Lock()
		dropped := len(s.queue) + len(s.parked)
		s.queue, s.parked = nil, nil
		s.reason = reason
		s.mu.Unlock()
		if dropped > 0 {
			s.record(metrics.EventUnitDropped, float64(dropped), map[string]string{metrics.TagReason: string(reason)})
		}

		if err := s.conn.Close(); err != nil {
			s.log.Debug("conn_close_failed", slog.String("error", err.Error()))
		}
		s.dlg.Reset()
		s.state.Store(int32(StateClosed))
		if s.release != nil {
			s.release(s)
		}
		s.record(metrics.EventSessionClose, 1, map[string]string{metrics.TagReason: string(reason)})
		s.log.Info("session_closed",
			slog.String("reason_code", string(reason)),
			slog.Int("dropped_units", dropped),
			slog.Duration("lifetime", time.Since(s.openedAt)))
	})
}

// CloseReason is the reason passed to the first Close call.
func (s *Session) CloseReason() errorsx.ReasonCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Wait blocks until the session's goroutines have exited or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(ctx.Err(), fmt.Errorf("session %s still busy", s.id))
	}
}

func (s *Session) record(name string, value float64, tags map[string]string) {
	if tags == nil {
		tags = map[string]string{}
	}
	tags[metrics.TagSession] = s.id
	metrics.Record(s.obs, name, value, tags)
}

func statusTags(err error) map[string]string {
	if err == nil {
		return map[string]string{metrics.TagStatus: "ok"}
	}
	return map[string]string{metrics.TagStatus: "error", metrics.TagReason: string(errorsx.Reason(err))}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
