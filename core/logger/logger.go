package logger

import (
	"cmp"
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/tabletop/core/buildinfo"
	coreconfig "github.com/m3rciful/tabletop/core/config"
)

var (
	initOnce   sync.Once
	shutdownMu sync.Mutex
	shutdown   bool

	sink       *lineSink
	fileOutput []io.Closer

	levelVar slog.LevelVar

	debugSample   sampler
	traceOverride bool

	// L is the process-wide logger; InitLogger replaces it.
	L *slog.Logger

	// Component loggers, rebuilt from L whenever it changes.
	DB       *slog.Logger // component=db
	TG       *slog.Logger // component=tg
	MIG      *slog.Logger // component=db.migrate
	TWire    *slog.Logger // component=tg.wire
	SEED     *slog.Logger // component=db.seed
	SVCUsers *slog.Logger // component=service.users
)

const (
	defaultSampleKeep   = 1
	defaultSampleWindow = 50
)

func init() {
	L = slog.Default()
	debugSample.configure(defaultSampleKeep, defaultSampleWindow)
	rebuildComponents()
}

// settings is the resolved logging section of the config.
type settings struct {
	format  logFormat
	order   []string
	level   slog.Level
	profile string
	logFile string
}

func resolve(cfg *coreconfig.Config) settings {
	st := settings{format: formatJSON, order: slices.Clone(defaultKeyOrder), level: slog.LevelInfo}
	if cfg == nil {
		return st
	}
	lc := cfg.Logging
	st.profile = strings.ToLower(cmp.Or(strings.TrimSpace(lc.Profile), "prod"))

	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		st.format = formatKV
	case "json":
	case "":
		if st.profile == "debug" || st.profile == "dev" {
			st.format = formatKV
		}
	}

	if raw := strings.TrimSpace(lc.KeysOrder); raw != "" && raw != "default" {
		var order []string
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				order = append(order, k)
			}
		}
		if len(order) > 0 {
			st.order = order
		}
	}

	// UnmarshalText accepts DEBUG, info, WARN+2 and friends.
	var lvl slog.Level
	if raw := strings.TrimSpace(lc.Level); raw != "" {
		if strings.EqualFold(raw, "warning") {
			raw = "warn"
		}
		if err := lvl.UnmarshalText([]byte(raw)); err == nil {
			st.level = lvl
		}
	}

	dir, file := strings.TrimSpace(lc.Dir), strings.TrimSpace(lc.BotFile)
	if dir != "" && file != "" {
		st.logFile = filepath.Join(dir, file)
	}
	return st
}

// InitLogger installs the structured handler as slog's default. Only the
// first call has any effect.
func InitLogger(cfg *coreconfig.Config) error {
	initOnce.Do(func() {
		st := resolve(cfg)
		levelVar.Set(st.level)
		debugSample.configure(selectDebugSample(cfg))
		traceOverride = envFlag("TRACE") || envFlag("LOG_TRACE")

		outputs := []io.Writer{os.Stdout}
		if f := openLogFile(st.logFile); f != nil {
			outputs = append(outputs, f)
			fileOutput = append(fileOutput, f)
		}
		sink = newLineSink(outputs, 64<<10)

		L = slog.New(newStructuredHandler(handlerConfig{
			level:    &levelVar,
			writer:   sink,
			format:   st.format,
			keyOrder: st.order,
		}))
		slog.SetDefault(L)
		rebuildComponents()

		attrs := []slog.Attr{
			slog.String("component", "app"),
			slog.String("event", "startup"),
			slog.String("go_version", runtime.Version()),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("build_time", buildinfo.Date),
		}
		if st.profile != "" {
			attrs = append(attrs, slog.String("cfg_profile", st.profile))
		}
		L.LogAttrs(context.Background(), slog.LevelInfo, "startup", attrs...)
	})
	return nil
}

// openLogFile returns nil when path is empty or cannot be opened; stdout
// logging continues either way.
func openLogFile(path string) *os.File {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Printf("logger: create log dir: %v", err)
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("logger: open log file: %v", err)
		return nil
	}
	return f
}

func rebuildComponents() {
	DB = L.With("component", "db")
	TG = L.With("component", "tg")
	MIG = L.With("component", "db.migrate")
	TWire = L.With("component", "tg.wire")
	SEED = L.With("component", "db.seed")
	SVCUsers = L.With("component", "service.users")
}

// Shutdown drains queued lines and closes the log file, if any.
// Calls after the first are no-ops.
func Shutdown() error {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if shutdown {
		return nil
	}
	shutdown = true

	var errs []error
	if sink != nil {
		errs = append(errs, sink.Close())
	}
	for _, c := range fileOutput {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// LogEvent writes one record with event set as its first attribute.
// A nil logg falls back to the logger carried by ctx.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = fromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns L scoped with component=name.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// Event logs through the component-scoped logger.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), level, event, attrs...)
}

// Debug logs a debug-level event for the given component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

// Info logs an info-level event for the given component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

// Warn logs a warn-level event for the given component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

// Error logs an error-level event for the given component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

func selectDebugSample(cfg *coreconfig.Config) (uint64, uint64) {
	if cfg == nil {
		return defaultSampleKeep, defaultSampleWindow
	}
	keep, window, ok := parseSampleRatio(cfg.Logging.DebugSample)
	if !ok {
		return defaultSampleKeep, defaultSampleWindow
	}
	return keep, window
}

func envFlag(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether a high-volume debug event should be
// logged. TRACE=1 lets every event through.
func ShouldSampleDebug() bool {
	return traceOverride || debugSample.allow()
}
