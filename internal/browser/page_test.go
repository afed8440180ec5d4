package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing_spider/internal/config"
	"listing_spider/internal/logger"
)

// The body reports a tall scrollHeight but the window itself cannot move.
const lockedWindowHTML = `<html style="height:100%;overflow:hidden">
<body style="height:100%;overflow:hidden;margin:0">
<div style="height:20000px">results</div>
</body>
</html>`

func newTestPage(t *testing.T) *Page {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping headless Chrome test in short mode")
	}

	mgr := NewManager(config.BrowserConfig{NoSandbox: true, WindowWidth: 1280, WindowHeight: 800}, logger.NewNop())
	t.Cleanup(func() { _ = mgr.Close() })

	p, err := mgr.NewPage(context.Background())
	if err != nil {
		t.Skipf("chrome not available: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestScrollWindowStopsWhenWindowDoesNotMove(t *testing.T) {
	p := newTestPage(t)
	ctx := context.Background()
	require.NoError(t, p.SetContent(ctx, lockedWindowHTML))

	start := time.Now()
	require.NoError(t, p.ScrollWindow(ctx, 100, 100))

	// 100 steps at the scroll interval would take 20s.
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestScrollWindowReachesBottom(t *testing.T) {
	p := newTestPage(t)
	ctx := context.Background()
	require.NoError(t, p.SetContent(ctx, `<html><body style="margin:0"><div style="height:3000px">results</div></body></html>`))

	require.NoError(t, p.ScrollWindow(ctx, 500, 20))

	res, err := p.page.Context(ctx).Eval(`() => window.scrollY + window.innerHeight >= document.body.scrollHeight`)
	require.NoError(t, err)
	assert.True(t, res.Value.Bool())
}
