package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyboard-ai-api/internal/domain/entity"
	apperrors "storyboard-ai-api/pkg/errors"
)

// storyboardProject 10 个镜头，其中第 2、5、9 个画格已有图
func storyboardProject() *entity.Project {
	p := entity.NewProject()
	p.Shotlist = testShots(10)
	p.Storyboard = ResyncPanels(p.Shotlist, nil)
	for _, i := range []int{1, 4, 8} {
		p.Storyboard[i].ImageURL = testImageURL
	}
	return p
}

// recordWaits 替换等待实现，把每次等待记入调用序列
func recordWaits(w *Workspace, gen *fakeGenerator) *[]time.Duration {
	var mu sync.Mutex
	waits := []time.Duration{}
	w.wait = func(ctx context.Context, d time.Duration, stop <-chan struct{}) bool {
		mu.Lock()
		waits = append(waits, d)
		mu.Unlock()
		gen.record("wait")
		select {
		case <-stop:
			return false
		default:
			return true
		}
	}
	return &waits
}

func TestRunAll_IssuesMissingPanelsInOrderWithDelays(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{}
	w := newTestWorkspace(t, gen, storyboardProject())
	waits := recordWaits(w, gen)

	status, err := w.RunAll(ctx, BatchScopeStoryboard)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"panel:1.1", "wait",
		"panel:1.3", "wait",
		"panel:1.4", "wait",
		"panel:1.6", "wait",
		"panel:1.7", "wait",
		"panel:1.8", "wait",
		"panel:1.10",
	}, gen.Calls())
	assert.Len(t, *waits, 6)
	for _, d := range *waits {
		assert.Equal(t, time.Millisecond, d)
	}

	assert.False(t, status.Running)
	assert.False(t, status.Stopped)
	assert.Equal(t, 7, status.Issued)
	assert.Equal(t, 7, status.Succeeded)
	assert.Equal(t, 3, status.Skipped)

	for i, panel := range w.Project().Storyboard {
		assert.True(t, panel.HasImage(), "panel %d", i)
	}
}

func TestRunAll_StopAfterSecondCall(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{}
	w := newTestWorkspace(t, gen, storyboardProject())
	recordWaits(w, gen)
	gen.onStoryboard = func(n int) {
		if n == 3 { // 第 1 次调用、等待、第 2 次调用
			assert.True(t, w.StopAll(ctx))
		}
	}

	status, err := w.RunAll(ctx, BatchScopeStoryboard)
	require.NoError(t, err)
	assert.True(t, status.Stopped)
	assert.False(t, status.Running)
	assert.Equal(t, 2, status.Issued)

	waitIdle(t, w)
	assert.Equal(t, []string{"panel:1.1", "wait", "panel:1.3"}, gen.Calls(), "calls 3..7 are never issued")

	// 已发起的第 2 次调用不被打断
	p := w.Project()
	assert.True(t, p.Storyboard[2].HasImage())
	assert.False(t, p.Storyboard[3].HasImage())
	assert.False(t, w.BatchStatus().Running)

	// 再次运行会重新扫描剩余画格
	gen.onStoryboard = nil
	status, err = w.RunAll(ctx, BatchScopeStoryboard)
	require.NoError(t, err)
	assert.Equal(t, 5, status.Issued)
}

func TestRunAll_FailuresDoNotStopBatch(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{err: errFake}
	p := charactersProject()
	for i := range p.Characters {
		p.Characters[i].ImageURL = ""
	}
	w := newTestWorkspace(t, gen, p)
	recordWaits(w, gen)

	status, err := w.RunAll(ctx, BatchScopeCharacters)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Issued)
	assert.Equal(t, 2, status.Failed)
	assert.Equal(t, []string{"character:char-1", "wait", "character:char-2"}, gen.Calls())
}

func TestRunAll_SingleBatchAtATime(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{block: make(chan struct{})}
	w := newTestWorkspace(t, gen, storyboardProject())

	status, err := w.StartRunAll(ctx, BatchScopeStoryboard)
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, BatchScopeStoryboard, status.Scope)

	_, err = w.RunAll(ctx, BatchScopeLocations)
	assert.ErrorIs(t, err, apperrors.ErrBatchRunning)

	assert.True(t, w.StopAll(ctx))
	assert.False(t, w.BatchStatus().Running, "stop clears the running indicator immediately")
	assert.False(t, w.StopAll(ctx))

	close(gen.block)
	require.NoError(t, w.WaitBatch(ctx))
	waitIdle(t, w)
	assert.LessOrEqual(t, len(gen.Calls()), 1)
}

func TestBatchTask_GoneItemIsNotRedirected(t *testing.T) {
	p := storyboardProject()
	w := newTestWorkspace(t, &fakeGenerator{}, p)

	_, ok := w.batchTask(BatchScopeCharacters, len(p.Characters))
	assert.False(t, ok)
	_, ok = w.batchTask(BatchScopeLocations, len(p.SceneSettings))
	assert.False(t, ok)
	_, ok = w.batchTask(BatchScopeStoryboard, len(p.Storyboard))
	assert.False(t, ok)

	task, ok := w.batchTask(BatchScopeStoryboard, 0)
	require.True(t, ok)
	assert.Equal(t, entity.JobTypeStoryboardImage, task.jobType)
	assert.Equal(t, panelTargetID(0), task.targetID)
}

func TestBatchTask_CharacterScopeUsesCurrentID(t *testing.T) {
	ctx := context.Background()
	p := charactersProject()
	w := newTestWorkspace(t, &fakeGenerator{}, p)

	task, ok := w.batchTask(BatchScopeCharacters, 1)
	require.True(t, ok)
	assert.Equal(t, entity.JobTypeCharacterImage, task.jobType)
	assert.Equal(t, "char-2", task.targetID)

	require.NoError(t, w.DeleteCharacter(ctx, "char-2"))
	_, ok = w.batchTask(BatchScopeCharacters, 1)
	assert.False(t, ok)
}

func TestParseBatchScope(t *testing.T) {
	s, err := ParseBatchScope("locations")
	require.NoError(t, err)
	assert.Equal(t, BatchScopeLocations, s)

	_, err = ParseBatchScope("panels")
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)
}

func TestSleepOrStop(t *testing.T) {
	ctx := context.Background()
	assert.True(t, sleepOrStop(ctx, time.Millisecond, make(chan struct{})))

	stop := make(chan struct{})
	close(stop)
	assert.False(t, sleepOrStop(ctx, time.Hour, stop))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.False(t, sleepOrStop(cancelled, time.Hour, make(chan struct{})))
}
