package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	voice2txt "github.com/snarg/voice2txt"
	"github.com/snarg/voice2txt/internal/api"
	"github.com/snarg/voice2txt/internal/audio"
	"github.com/snarg/voice2txt/internal/checkpoint"
	"github.com/snarg/voice2txt/internal/config"
	"github.com/snarg/voice2txt/internal/database"
	"github.com/snarg/voice2txt/internal/metrics"
	"github.com/snarg/voice2txt/internal/mqttclient"
	"github.com/snarg/voice2txt/internal/storage"
	"github.com/snarg/voice2txt/internal/transcribe"
)

var version = "dev"

// exitInterrupted matches the shell convention for SIGINT.
const exitInterrupted = 130

func main() {
	os.Exit(run())
}

func run() int {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file (default .env)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	flag.StringVar(&overrides.Model, "model", "", "model tier: tiny, base, small, medium, large")
	flag.StringVar(&overrides.Provider, "provider", "", "transcription provider: whisper, deepinfra, openai, elevenlabs")
	flag.StringVar(&overrides.Language, "language", "", "spoken language code; empty auto-detects")
	flag.StringVar(&overrides.InputDir, "input-dir", "", "directory searched for the audio file")
	flag.StringVar(&overrides.OutputDir, "output-dir", "", "directory for finished transcripts")
	flag.StringVar(&overrides.LogDir, "log-dir", "", "directory for checkpoint logs")
	flag.StringVar(&overrides.WhisperURL, "whisper-url", "", "whisper server transcription endpoint")
	flag.StringVar(&overrides.CheckpointBackend, "checkpoint", "", "checkpoint backend: csv, postgres")
	flag.StringVar(&overrides.StatusAddr, "status-addr", "", "serve run status on this address, e.g. :9090")
	flag.BoolVar(&overrides.OpenOutput, "open", false, "open the output folder when done")
	listTiers := flag.Bool("tiers", false, "list model tiers and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: voice2txt [flags] <audio-file>\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return 0
	}
	if *listTiers {
		printTiers(os.Stdout)
		return 0
	}
	if flag.NArg() != 1 {
		flag.Usage()
		return 2
	}

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Error().Err(err).Msg("failed to load config")
		return 1
	}

	// Logger
	log := newLogger(cfg, os.Stderr).With().Str("run_id", uuid.NewString()).Logger()
	log.Info().Str("version", version).Msg("voice2txt starting")

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return 1
	}
	if err := cfg.EnsureDirs(); err != nil {
		log.Error().Err(err).Msg("failed to create data directories")
		return 1
	}

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Audio
	input := audio.ResolveInput(cfg.InputDir, flag.Arg(0))
	if input == "" {
		log.Error().Str("file", flag.Arg(0)).Str("input_dir", cfg.InputDir).Msg("audio file not found")
		return 1
	}
	decodePath := input
	if cfg.PreprocessAudio {
		if !audio.CheckSox() {
			log.Warn().Msg("PREPROCESS_AUDIO is set but sox is not installed, skipping")
		}
		p, cleanup, err := audio.Preprocess(ctx, input, cfg.SampleRate)
		if err != nil {
			log.Error().Err(err).Msg("audio preprocessing failed")
			return 1
		}
		defer cleanup()
		decodePath = p
	}

	buf, err := audio.Load(ctx, decodePath, cfg.SampleRate)
	if err != nil {
		log.Error().Err(err).Str("file", input).Msg("failed to load audio")
		return 1
	}

	identity := checkpoint.Identity(input, cfg.IdentityModel())
	log = log.With().Str("identity", identity).Logger()
	log.Info().
		Str("file", input).
		Dur("duration", buf.Duration()).
		Int("sample_rate", buf.SampleRate).
		Msg("audio loaded")
	logEstimate(log, cfg, buf.Duration(), time.Now())

	model, err := newModel(cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to create transcription model")
		return 1
	}

	// Database
	var db *database.DB
	if cfg.CheckpointBackend == config.BackendPostgres {
		dbLog := log.With().Str("component", "database").Logger()
		db, err = database.Connect(ctx, cfg.DatabaseURL, dbLog)
		if err != nil {
			log.Error().Err(err).Msg("failed to connect to database")
			return 1
		}
		defer db.Close()
		if err := db.InitSchema(ctx, voice2txt.SchemaSQL); err != nil {
			log.Error().Err(err).Msg("failed to initialize schema")
			return 1
		}
		if err := db.Migrate(ctx); err != nil {
			log.Error().Err(err).Msg("schema migration failed")
			return 1
		}
	}

	store, err := checkpoint.Open(cfg, identity, db, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to open checkpoint log")
		return 1
	}

	// Transcript storage
	storeLog := log.With().Str("component", "storage").Logger()
	transcripts, services, err := storage.New(ctx, cfg.S3, cfg.OutputDir, storeLog)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize transcript storage")
		return 1
	}
	for _, svc := range services {
		svc.Start()
		defer svc.Stop()
	}

	tracker := transcribe.NewTracker()
	hub := api.NewEventHub()
	prometheus.MustRegister(metrics.NewCollector(tracker))

	// MQTT
	var mqtt *mqttclient.Client
	if cfg.MQTTBrokerURL != "" {
		mqttLog := log.With().Str("component", "mqtt").Logger()
		mqtt, err = mqttclient.Connect(mqttclient.Options{
			BrokerURL:   cfg.MQTTBrokerURL,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			Log:         mqttLog,
		})
		if err != nil {
			log.Warn().Err(err).Msg("mqtt unavailable, progress events will not be published")
			mqtt = nil
		} else {
			defer mqtt.Close()
		}
	}

	// Status server
	var srv *api.Server
	if cfg.StatusAddr != "" {
		opts := api.ServerOptions{
			Addr:      cfg.StatusAddr,
			AuthToken: cfg.StatusToken,
			Version:   version,
			StartTime: startTime,
			Tracker:   tracker,
			Hub:       hub,
			Log:       log.With().Str("component", "http").Logger(),
		}
		if db != nil {
			opts.DB = db
		}
		if mqtt != nil {
			opts.MQTT = mqtt
		}
		srv = api.NewServer(opts)
		go func() {
			if err := srv.Start(); err != nil {
				log.Error().Err(err).Msg("status server error")
			}
		}()
	}

	var bar *progressbar.ProgressBar
	onEvent := func(e transcribe.Event) {
		tracker.Handle(e)
		hub.Publish(e)
		if mqtt != nil {
			if err := mqtt.Publish(e.Identity, e.Type, e); err != nil {
				log.Debug().Err(err).Str("event", e.Type).Msg("mqtt publish skipped")
			}
		}
		if !cfg.ProgressBar {
			return
		}
		switch e.Type {
		case transcribe.EventRunStarted:
			bar = newProgressBar(e.Total, e.Logged, os.Stderr)
		case transcribe.EventChunkDone, transcribe.EventChunkFailed:
			if bar != nil {
				bar.Add(1)
			}
		case transcribe.EventRunComplete:
			if bar != nil {
				bar.Finish()
				fmt.Fprintln(os.Stderr)
			}
		}
	}

	runner := &transcribe.Runner{
		Model:   model,
		Store:   store,
		Window:  cfg.WindowSeconds,
		Timeout: cfg.ModelTimeout,
		Log:     log,
		OnEvent: onEvent,
	}
	summary, runErr := runner.Run(ctx, buf)
	stop()

	interrupted := errors.Is(runErr, context.Canceled)
	if runErr != nil && !interrupted {
		log.Error().Err(runErr).Msg("transcription aborted")
		shutdown(srv, log)
		return 1
	}
	if interrupted {
		log.Warn().
			Int("logged", summary.Resumed+summary.Transcribed).
			Int("chunks", summary.Total).
			Msg("interrupted, rerun the same command to resume")
	}

	// Assemble and save whatever is logged, partial or not.
	saveCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	text, err := transcribe.Assemble(saveCtx, store)
	if err != nil {
		log.Error().Err(err).Msg("failed to read checkpoint log")
		shutdown(srv, log)
		return 1
	}
	key := storage.TranscriptKey(identity)
	if err := saveTranscript(saveCtx, transcripts, key, text, log); err != nil {
		log.Error().Err(err).Msg("failed to write transcript")
		shutdown(srv, log)
		return 1
	}

	ev := log.Info().
		Str("path", transcripts.LocalPath(key)).
		Int("chars", len([]rune(text))).
		Int("failed_chunks", summary.Failed).
		Dur("elapsed", summary.Elapsed)
	if url, err := transcripts.URL(saveCtx, key); err == nil && url != "" {
		ev = ev.Str("url", url)
	}
	ev.Msg("transcript written")

	shutdown(srv, log)

	if cfg.OpenOutput {
		if err := openFolder(cfg.OutputDir); err != nil {
			log.Warn().Err(err).Str("dir", cfg.OutputDir).Msg("could not open output folder")
		}
	}

	if interrupted {
		return exitInterrupted
	}
	return 0
}

// saveTranscript writes text under key. Replacing an earlier transcript is
// expected on a rerun but is logged, since the old file is gone afterwards.
func saveTranscript(ctx context.Context, store storage.TranscriptStore, key, text string, log zerolog.Logger) error {
	if store.Exists(ctx, key) {
		log.Info().Str("key", key).Str("store", store.Type()).Msg("overwriting existing transcript")
	}
	return store.Save(ctx, key, []byte(text), storage.TranscriptContentType)
}

func shutdown(srv *api.Server, log zerolog.Logger) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("status server shutdown error")
	}
}

// newLogger builds the process logger. Pretty mode renders a console view
// for interactive use; otherwise one JSON object per line.
func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if cfg.LogPretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(level)
}

func newProgressBar(total, done int, w io.Writer) *progressbar.ProgressBar {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("transcribing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
	bar.Set(done)
	return bar
}

// logEstimate reports the expected finish time for whisper tiers.
func logEstimate(log zerolog.Logger, cfg *config.Config, audioLen time.Duration, now time.Time) {
	if cfg.Provider != config.ProviderWhisper {
		return
	}
	tier, err := config.LookupTier(cfg.Model)
	if err != nil {
		return
	}
	loc, err := cfg.Location()
	if err != nil {
		loc = time.Local
	}
	est := tier.Estimate(audioLen)
	log.Info().
		Str("tier", tier.Name).
		Dur("estimate", est).
		Str("finish_at", now.Add(est).In(loc).Format("2006-01-02 15:04:05 MST")).
		Msg("estimated transcription time")
}

func printTiers(w io.Writer) {
	for _, t := range config.Tiers {
		marker := " "
		if t.Name == config.DefaultTier {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-7s %s\n", marker, t.Name, t.Description)
	}
}
