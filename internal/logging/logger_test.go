package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"testing"
)

// captureOutput captures both stdout and stderr during test execution
func captureOutput(f func()) (stdout, stderr string) {
	oldLogWriter := log.Writer()
	defer log.SetOutput(oldLogWriter)

	var stdoutBuf bytes.Buffer
	log.SetOutput(&stdoutBuf)

	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	f()

	w.Close()
	os.Stderr = oldStderr
	var stderrBuf bytes.Buffer
	io.Copy(&stderrBuf, r)

	return stdoutBuf.String(), stderrBuf.String()
}

// resetGlobalLogger resets global logger state for test isolation
func resetGlobalLogger() {
	globalLogger = nil
	initOnce = sync.Once{}
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		level string
		want  LogLevel
	}{
		{"debug", DEBUG},
		{"info", INFO},
		{"WARN", WARN},
		{"error", ERROR},
		{"fatal", FATAL},
		{"bogus", INFO}, // unknown levels fall back to INFO
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			resetGlobalLogger()
			if err := Initialize(tt.level); err != nil {
				t.Fatalf("Initialize(%q) error: %v", tt.level, err)
			}
			if globalLogger.level != tt.want {
				t.Errorf("Initialize(%q) level = %v, want %v", tt.level, globalLogger.level, tt.want)
			}
			if globalLogger.name != "inquest" {
				t.Errorf("Initialize(%q) name = %q, want %q", tt.level, globalLogger.name, "inquest")
			}
		})
	}
}

func TestGetLoggerLazyInit(t *testing.T) {
	resetGlobalLogger()
	logger := GetLogger("engine")
	if logger == nil {
		t.Fatal("GetLogger returned nil")
	}
	if logger.name != "engine" {
		t.Errorf("logger name = %q, want %q", logger.name, "engine")
	}
	if logger.level != INFO {
		t.Errorf("lazy-initialized level = %v, want INFO", logger.level)
	}
}

func TestLevelFiltering(t *testing.T) {
	resetGlobalLogger()
	if err := Initialize("warn"); err != nil {
		t.Fatal(err)
	}
	logger := GetLogger("test")

	stdout, stderr := captureOutput(func() {
		logger.Debug("debug msg")
		logger.Info("info msg")
		logger.Warn("warn msg")
		logger.Error("error msg")
	})

	if strings.Contains(stdout, "debug msg") || strings.Contains(stdout, "info msg") {
		t.Errorf("messages below WARN were emitted: %q", stdout)
	}
	if !strings.Contains(stdout, "warn msg") {
		t.Errorf("WARN message missing from stdout: %q", stdout)
	}
	if !strings.Contains(stderr, "error msg") {
		t.Errorf("ERROR message missing from stderr: %q", stderr)
	}
}

func TestFormatting(t *testing.T) {
	resetGlobalLogger()
	if err := Initialize("info"); err != nil {
		t.Fatal(err)
	}
	logger := GetLogger("api")

	stdout, _ := captureOutput(func() {
		logger.Info("listening on port %d", 8080)
	})
	if !strings.Contains(stdout, "listening on port 8080") {
		t.Errorf("formatted message missing: %q", stdout)
	}
	if !strings.Contains(stdout, "[INFO] api:") {
		t.Errorf("level/name prefix missing: %q", stdout)
	}
}

func TestErrorWithErr(t *testing.T) {
	resetGlobalLogger()
	if err := Initialize("info"); err != nil {
		t.Fatal(err)
	}
	logger := GetLogger("test")

	_, stderr := captureOutput(func() {
		logger.ErrorWithErr("query failed", fmt.Errorf("connection refused"))
	})
	if !strings.Contains(stderr, "query failed - connection refused") {
		t.Errorf("error message missing: %q", stderr)
	}
}

func TestWithFieldsImmutable(t *testing.T) {
	resetGlobalLogger()
	if err := Initialize("info"); err != nil {
		t.Fatal(err)
	}
	base := GetLogger("test")
	child := base.WithField("run_id", "abc").WithFields(Field("subject", "checkout"))

	if len(base.fields) != 0 {
		t.Errorf("base logger fields mutated: %v", base.fields)
	}
	if child.fields["run_id"] != "abc" || child.fields["subject"] != "checkout" {
		t.Errorf("child fields = %v", child.fields)
	}

	stdout, _ := captureOutput(func() {
		child.Info("run started")
	})
	if !strings.Contains(stdout, "run_id=abc") || !strings.Contains(stdout, "subject=checkout") {
		t.Errorf("persistent fields missing from output: %q", stdout)
	}
}

func TestInfoWithFields(t *testing.T) {
	resetGlobalLogger()
	if err := Initialize("info"); err != nil {
		t.Fatal(err)
	}
	logger := GetLogger("test")

	stdout, _ := captureOutput(func() {
		logger.InfoWithFields("collected",
			Field("kind", "log"),
			Field("count", 3),
		)
	})
	if !strings.Contains(stdout, "kind=log") || !strings.Contains(stdout, "count=3") {
		t.Errorf("structured fields missing: %q", stdout)
	}
}

func TestWithContextTraceFields(t *testing.T) {
	resetGlobalLogger()
	if err := Initialize("info"); err != nil {
		t.Fatal(err)
	}
	ctx := context.WithValue(context.Background(), TraceIDKey(), "trace-123")
	ctx = context.WithValue(ctx, SpanIDKey(), "span-456")
	logger := GetLogger("test").WithContext(ctx)

	stdout, _ := captureOutput(func() {
		logger.Info("processing")
	})
	if !strings.Contains(stdout, "trace_id=trace-123") || !strings.Contains(stdout, "span_id=span-456") {
		t.Errorf("trace fields missing: %q", stdout)
	}
}

func TestFatalUsesExitFunc(t *testing.T) {
	resetGlobalLogger()
	if err := Initialize("info"); err != nil {
		t.Fatal(err)
	}

	exitCode := -1
	oldExit := exitFunc
	exitFunc = func(code int) { exitCode = code }
	defer func() { exitFunc = oldExit }()

	logger := GetLogger("test")
	_, stderr := captureOutput(func() {
		logger.Fatal("boom: %v", "cause")
	})

	if exitCode != 1 {
		t.Errorf("exit code = %d, want 1", exitCode)
	}
	if !strings.Contains(stderr, "boom: cause") {
		t.Errorf("fatal message missing: %q", stderr)
	}
}

func TestGetTimestampOverride(t *testing.T) {
	t.Setenv("LOG_TIMESTAMP", "2024-01-01T00:00:00Z")
	if got := GetTimestamp(); got != "2024-01-01T00:00:00Z" {
		t.Errorf("GetTimestamp() = %q", got)
	}
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    bool
	}{
		{"engine.collect", "engine.collect", true},
		{"engine.collect", "engine.*", true},
		{"engine", "engine.*", false},
		{"api", "engine.*", false},
	}
	for _, tt := range tests {
		if got := matchesPattern(tt.name, tt.pattern); got != tt.want {
			t.Errorf("matchesPattern(%q, %q) = %v, want %v", tt.name, tt.pattern, got, tt.want)
		}
	}
}

func TestPerPackageLogLevelFiltering(t *testing.T) {
	resetGlobalLogger()
	if err := Initialize("info", map[string]string{
		"engine.collect": "debug",
		"provider.*":     "error",
	}); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = SetPackageLogLevels(nil) }()

	collect := GetLogger("engine.collect")
	providerLoki := GetLogger("provider.loki")
	other := GetLogger("api")

	stdout, _ := captureOutput(func() {
		collect.Debug("collect debug")
		providerLoki.Info("provider info")
		other.Debug("api debug")
		other.Info("api info")
	})

	if !strings.Contains(stdout, "collect debug") {
		t.Errorf("per-package DEBUG override not applied: %q", stdout)
	}
	if strings.Contains(stdout, "provider info") {
		t.Errorf("provider.* override did not suppress INFO: %q", stdout)
	}
	if strings.Contains(stdout, "api debug") || !strings.Contains(stdout, "api info") {
		t.Errorf("default level not applied to unconfigured package: %q", stdout)
	}
}

func TestSetPackageLogLevelsInvalid(t *testing.T) {
	defer func() { _ = SetPackageLogLevels(nil) }()
	if err := SetPackageLogLevels(map[string]string{"engine": "loud"}); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestGetPackageLogLevelPrecedence(t *testing.T) {
	if err := SetPackageLogLevels(map[string]string{
		"engine.*":       "warn",
		"engine.collect": "debug",
	}); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = SetPackageLogLevels(nil) }()

	if got := GetPackageLogLevel("engine.collect"); got != DEBUG {
		t.Errorf("exact match level = %v, want DEBUG", got)
	}
	if got := GetPackageLogLevel("engine.plan"); got != WARN {
		t.Errorf("wildcard level = %v, want WARN", got)
	}
	if got := GetPackageLogLevel("api"); got != LogLevel(-1) {
		t.Errorf("unconfigured level = %v, want -1", got)
	}
}

func TestCloneFieldsIndependence(t *testing.T) {
	src := map[string]interface{}{"a": 1}
	dst := cloneFields(src)
	dst["b"] = 2
	if _, ok := src["b"]; ok {
		t.Error("cloneFields did not copy the map")
	}
	if cloneFields(nil) == nil {
		t.Error("cloneFields(nil) must return an empty map")
	}
}

func TestConcurrentLogging(t *testing.T) {
	resetGlobalLogger()
	if err := Initialize("info"); err != nil {
		t.Fatal(err)
	}
	logger := GetLogger("concurrent")

	captureOutput(func() {
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					logger.WithField("worker", n).Info("message %d", j)
				}
			}(i)
		}
		wg.Wait()
	})
}
