package logger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"listing_spider/internal/logger"
)

func TestNew_BuildsUsableLogger(t *testing.T) {
	t.Parallel()

	l, err := logger.New(logger.Config{Level: "warn", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)

	enriched := l.With(logger.String("component", "test"))
	require.NotNil(t, enriched)

	enriched.Debug("filtered out")
	enriched.Warn("kept", logger.Error(errors.New("boom")), logger.Int("attempt", 2))
}

func TestNewNop_IsInert(t *testing.T) {
	t.Parallel()

	l := logger.NewNop()
	require.Same(t, l, l.With(logger.String("k", "v")))
	require.NoError(t, l.Sync())
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	fallback := logger.NewNop()
	require.Same(t, fallback, logger.FromContext(context.Background(), fallback))

	l, err := logger.New(logger.Config{Level: "error"})
	require.NoError(t, err)
	ctx := logger.WithContext(context.Background(), l)
	require.Same(t, l, logger.FromContext(ctx, fallback))
}
