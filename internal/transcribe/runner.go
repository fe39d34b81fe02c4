package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/voice2txt/internal/audio"
	"github.com/snarg/voice2txt/internal/checkpoint"
	"github.com/snarg/voice2txt/internal/chunk"
	"github.com/snarg/voice2txt/internal/metrics"
)

// Event types emitted by Runner.
const (
	EventRunStarted  = "run_started"
	EventChunkDone   = "chunk_done"
	EventChunkFailed = "chunk_failed"
	EventRunComplete = "run_complete"
)

// Event reports run progress to the console, status server and MQTT.
type Event struct {
	Type     string        `json:"type"`
	Identity string        `json:"identity"`
	Index    int           `json:"index"`  // chunk index, -1 for run-level events
	Logged   int           `json:"logged"` // checkpoint rows after this event
	Total    int           `json:"total"`
	Text     string        `json:"text,omitempty"`
	Error    string        `json:"error,omitempty"`
	Elapsed  time.Duration `json:"elapsed_ns"`
}

// Summary describes a finished Run.
type Summary struct {
	Identity    string
	Total       int // chunks planned
	Resumed     int // rows already logged at start
	Transcribed int // rows appended by this run
	Failed      int // chunks skipped after a model error
	AlreadyDone bool
	Elapsed     time.Duration
}

// Runner feeds an audio buffer to a model window by window and records
// every successful window in a checkpoint store. It resumes from the store's
// row count, so an interrupted run picks up where it stopped.
type Runner struct {
	Model   Model
	Store   checkpoint.Store
	Window  float64       // seconds; chunk.DefaultWindow when zero
	Timeout time.Duration // per model call; zero means no limit
	Log     zerolog.Logger
	OnEvent func(Event)
}

// Run transcribes every window from the resume index to the end. A model
// error skips the window; a checkpoint error or context cancellation stops
// the run and is returned.
func (r *Runner) Run(ctx context.Context, buf audio.Buffer) (Summary, error) {
	start := time.Now()
	sum := Summary{Identity: r.Store.Identity()}

	window := r.Window
	if window == 0 {
		window = chunk.DefaultWindow
	}
	plan, err := chunk.Plan(buf.Len(), buf.SampleRate, window)
	if err != nil {
		return sum, err
	}
	sum.Total = len(plan)

	resume, err := r.Store.ResumeIndex(ctx)
	if err != nil {
		return sum, fmt.Errorf("read resume index: %w", err)
	}
	sum.Resumed = resume

	log := r.Log.With().Str("identity", sum.Identity).Logger()

	if resume >= len(plan) {
		sum.AlreadyDone = true
		sum.Elapsed = time.Since(start)
		log.Info().Int("chunks", len(plan)).Msg("already transcribed with this model, nothing to do")
		r.emit(Event{Type: EventRunComplete, Identity: sum.Identity, Index: -1, Logged: resume, Total: len(plan)})
		return sum, nil
	}

	log.Info().
		Int("chunks", len(plan)).
		Int("resume", resume).
		Str("provider", r.Model.Name()).
		Str("model", r.Model.Model()).
		Msg("transcription started")
	r.emit(Event{Type: EventRunStarted, Identity: sum.Identity, Index: -1, Logged: resume, Total: len(plan)})

	for _, c := range plan[resume:] {
		if err := ctx.Err(); err != nil {
			sum.Elapsed = time.Since(start)
			return sum, err
		}

		samples, err := buf.Window(c.Start, c.End)
		if err != nil {
			return sum, err
		}

		callStart := time.Now()
		res, err := r.transcribe(ctx, samples)
		callDur := time.Since(callStart)
		metrics.ChunkDuration.WithLabelValues(r.Model.Name()).Observe(callDur.Seconds())

		var rec checkpoint.Record
		if err == nil {
			rec, err = toRecord(res)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				sum.Elapsed = time.Since(start)
				return sum, ctxErr
			}
			sum.Failed++
			metrics.ChunksTotal.WithLabelValues("failed").Inc()
			log.Warn().Err(err).
				Int("chunk", c.Index).
				Dur("offset", c.StartTime(buf.SampleRate)).
				Msg("transcription failed, skipping chunk")
			r.emit(Event{
				Type:     EventChunkFailed,
				Identity: sum.Identity,
				Index:    c.Index,
				Logged:   resume + sum.Transcribed,
				Total:    len(plan),
				Error:    err.Error(),
				Elapsed:  callDur,
			})
			continue
		}

		// A finished chunk is logged even if the run was cancelled during the call.
		appendStart := time.Now()
		if err := r.Store.Append(context.WithoutCancel(ctx), rec); err != nil {
			sum.Elapsed = time.Since(start)
			return sum, fmt.Errorf("append chunk %d: %w", c.Index, err)
		}
		metrics.CheckpointAppendDuration.Observe(time.Since(appendStart).Seconds())
		metrics.ChunksTotal.WithLabelValues("done").Inc()
		sum.Transcribed++

		log.Debug().
			Int("chunk", c.Index).
			Str("language", rec.Language).
			Int("chars", len(rec.Text)).
			Dur("duration", callDur).
			Msg("chunk transcribed")
		r.emit(Event{
			Type:     EventChunkDone,
			Identity: sum.Identity,
			Index:    c.Index,
			Logged:   resume + sum.Transcribed,
			Total:    len(plan),
			Text:     rec.Text,
			Elapsed:  callDur,
		})
	}

	sum.Elapsed = time.Since(start)
	log.Info().
		Int("transcribed", sum.Transcribed).
		Int("failed", sum.Failed).
		Dur("elapsed", sum.Elapsed).
		Msg("transcription complete")
	r.emit(Event{
		Type:     EventRunComplete,
		Identity: sum.Identity,
		Index:    -1,
		Logged:   resume + sum.Transcribed,
		Total:    len(plan),
		Elapsed:  sum.Elapsed,
	})
	return sum, nil
}

func (r *Runner) transcribe(ctx context.Context, samples []float32) (*Result, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	res, err := r.Model.Transcribe(ctx, samples)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.New("model returned no result")
	}
	return res, nil
}

func (r *Runner) emit(e Event) {
	if r.OnEvent != nil {
		r.OnEvent(e)
	}
}

func toRecord(res *Result) (checkpoint.Record, error) {
	segments := res.Segments
	if segments == nil {
		segments = []Segment{}
	}
	b, err := json.Marshal(segments)
	if err != nil {
		return checkpoint.Record{}, fmt.Errorf("encode segments: %w", err)
	}
	return checkpoint.Record{Language: res.Language, Text: res.Text, Segments: b}, nil
}
