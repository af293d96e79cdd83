package ops

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ofs-s111/internal/domain"
	"github.com/couchcryptid/ofs-s111/internal/grid"
	"github.com/couchcryptid/ofs-s111/internal/pipeline"
	"github.com/couchcryptid/ofs-s111/internal/s111"
)

type runnerCall struct {
	model string
	cycle string
	opts  pipeline.Options
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []runnerCall
	err   error
}

func (f *fakeRunner) ProcessCycle(_ context.Context, m domain.Model, cycle domain.Cycle, opts pipeline.Options) (*pipeline.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, runnerCall{model: m.ID, cycle: cycle.String(), opts: opts})
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Report{
		Model:     m.ID,
		Cycle:     cycle,
		Artifacts: []string{"/out/" + s111.ArtifactName(m, cycle, "")},
		Available: len(m.ForecastHours()),
	}, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeNotifier struct {
	mu      sync.Mutex
	reports []*pipeline.Report
}

func (f *fakeNotifier) Notify(_ context.Context, report *pipeline.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report)
	return nil
}

func testModel(t *testing.T) domain.Model {
	t.Helper()
	m, err := domain.Lookup("cbofs")
	require.NoError(t, err)
	return m
}

// 02:00 UTC: the 00z cbofs cycle (85 minute delay) is available, 06z is not.
var testNow = time.Date(2019, 7, 1, 2, 0, 0, 0, time.UTC)

func newTestScheduler(t *testing.T, runner CycleRunner, notifier Notifier, clock clockwork.Clock) *Scheduler {
	t.Helper()
	settings := Settings{
		DownloadDir: t.TempDir(),
		OutputDir:   t.TempDir(),
		IndexDir:    t.TempDir(),
		TargetDepth: 4.5,
	}
	return NewScheduler([]domain.Model{testModel(t)}, runner, notifier, settings, clock, slog.Default())
}

func TestPoll_ProcessesAvailableCycleOnce(t *testing.T) {
	runner := &fakeRunner{}
	notifier := &fakeNotifier{}
	s := newTestScheduler(t, runner, notifier, clockwork.NewFakeClockAt(testNow))

	s.poll(context.Background())
	require.Equal(t, 1, runner.callCount())
	assert.Equal(t, "cbofs", runner.calls[0].model)
	assert.Equal(t, "2019070100", runner.calls[0].cycle)
	require.Len(t, notifier.reports, 1)

	// Same cycle on the next pass: nothing to do.
	s.poll(context.Background())
	assert.Equal(t, 1, runner.callCount())
}

func TestPoll_ProcessesNextCycleWhenAvailable(t *testing.T) {
	runner := &fakeRunner{}
	clock := clockwork.NewFakeClockAt(testNow)
	s := newTestScheduler(t, runner, nil, clock)

	s.poll(context.Background())
	require.Equal(t, 1, runner.callCount())

	// Advance past the 06z cycle's availability delay.
	clock.Advance(6 * time.Hour)
	s.poll(context.Background())
	require.Equal(t, 2, runner.callCount())
	assert.Equal(t, "2019070106", runner.calls[1].cycle)
}

func TestPoll_FailedCycleIsRetried(t *testing.T) {
	runner := &fakeRunner{err: errors.New("archive unreachable")}
	s := newTestScheduler(t, runner, nil, clockwork.NewFakeClockAt(testNow))

	s.poll(context.Background())
	s.poll(context.Background())
	assert.Equal(t, 2, runner.callCount(), "failed cycles must be retried on the next pass")

	status := s.Status()
	require.Contains(t, status, "cbofs")
	assert.Contains(t, status["cbofs"].Error, "archive unreachable")
}

func TestPoll_NoCycleAvailableYet(t *testing.T) {
	runner := &fakeRunner{}
	// Midnight plus one minute: the 00z cycle has not cleared its delay.
	clock := clockwork.NewFakeClockAt(time.Date(2019, 7, 1, 0, 1, 0, 0, time.UTC))
	s := newTestScheduler(t, runner, nil, clock)

	s.poll(context.Background())
	// Yesterday's 18z cycle is the latest available.
	require.Equal(t, 1, runner.callCount())
	assert.Equal(t, "2019063018", runner.calls[0].cycle)
}

func TestResolveOptions_NoIndexFallsBackToNativePoints(t *testing.T) {
	s := newTestScheduler(t, &fakeRunner{}, nil, clockwork.NewFakeClockAt(testNow))

	opts, err := s.resolveOptions(testModel(t))
	require.NoError(t, err)
	assert.Equal(t, s111.FormatUngeorectified, opts.Format)
	assert.Nil(t, opts.Index)
	assert.False(t, opts.Chop)
}

func TestResolveOptions_IndexSelectsRegularGridAndChop(t *testing.T) {
	s := newTestScheduler(t, &fakeRunner{}, nil, clockwork.NewFakeClockAt(testNow))

	ix := &grid.Index{
		ModelID: "cbofs", Scheme: domain.SchemeROMS, CellSize: 500,
		Lon0: -76, Lat0: 37, DLon: 0.005, DLat: 0.005,
		NRows: 2, NCols: 2,
		Mask:     []int32{1, 1, 1, 1},
		Subgrids: []grid.Subgrid{{ID: 1, Name: "main", MinRow: 0, MaxRow: 1, MinCol: 0, MaxCol: 1}},
	}
	ix.SrcIdx = make([]int32, ix.Cells()*4)
	ix.SrcW = make([]float64, ix.Cells()*4)
	for cell := 0; cell < ix.Cells(); cell++ {
		ix.SrcIdx[cell*4+0], ix.SrcW[cell*4+0] = 0, 1.0
		ix.SrcIdx[cell*4+1] = -1
		ix.SrcIdx[cell*4+2] = -1
		ix.SrcIdx[cell*4+3] = -1
	}
	require.NoError(t, ix.Save(filepath.Join(s.settings.IndexDir, "cbofs_index.nc")))

	opts, err := s.resolveOptions(testModel(t))
	require.NoError(t, err)
	assert.Equal(t, s111.FormatRegular, opts.Format)
	require.NotNil(t, opts.Index)
	assert.True(t, opts.Chop)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	runner := &fakeRunner{}
	clock := clockwork.NewFakeClockAt(testNow)
	s := newTestScheduler(t, runner, nil, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, 10*time.Minute) }()

	// Wait for the scheduler to finish its first pass and block on the timer.
	clock.BlockUntil(1)
	require.Equal(t, 1, runner.callCount())

	cancel()
	clock.Advance(10 * time.Minute)
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
}
