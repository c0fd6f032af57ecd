package infra

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	slogmulti "github.com/samber/slog-multi"
	"github.com/stretchr/testify/assert"
)

func TestLoggerClientFormatsAndAttachesError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerClient(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.ErrorWithContextf(context.Background(), errors.New("boom"), "[Minio] Failed to upload %s", "a.png")

	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, `msg="[Minio] Failed to upload a.png"`)
	assert.Contains(t, out, "error=boom")
}

func TestLoggerClientRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerClient(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	logger.DebugWithContextf(context.Background(), "hidden")
	logger.WarningWithContextf(context.Background(), "shown %d", 1)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown 1")
}

func TestLoggerClientFansOutPerHandlerLevel(t *testing.T) {
	var stdout, exported bytes.Buffer
	logger := NewLoggerClient(slogmulti.Fanout(
		slog.NewTextHandler(&stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&exported, &slog.HandlerOptions{Level: slog.LevelWarn}),
	))

	logger.DebugWithContextf(context.Background(), "local only")
	logger.ErrorWithContextf(context.Background(), errors.New("boom"), "everywhere")

	assert.Contains(t, stdout.String(), `msg="local only"`)
	assert.Contains(t, stdout.String(), "msg=everywhere")
	assert.NotContains(t, exported.String(), "local only")
	assert.Contains(t, exported.String(), `"msg":"everywhere"`)
	assert.Contains(t, exported.String(), `"error":"boom"`)
}
