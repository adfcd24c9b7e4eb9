package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"storyboard-ai-api/internal/domain/entity"
	"storyboard-ai-api/internal/domain/service"
)

const testImageData = "aGVsbG8="

var testImageURL = entity.DataURL("image/png", testImageData)

// fakeGenerator 记录调用顺序的生成服务
type fakeGenerator struct {
	mu    sync.Mutex
	calls []string

	screenplay *service.ScreenplayOutput
	characters []service.CharacterProfile
	locations  []string
	shots      []entity.Shot
	err        error

	// onStoryboard 在分镜调用时触发，参数为本次调用序号（从 1 开始）
	onStoryboard func(n int)
	// block 非 nil 时图像调用阻塞到其关闭
	block chan struct{}

	lastStoryboard service.StoryboardImageInput
	lastCharacter  service.CharacterImageInput
	// screenplayCtxErr 剧本调用时上下文的错误状态
	screenplayCtxErr error
}

func (f *fakeGenerator) record(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return len(f.calls)
}

func (f *fakeGenerator) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeGenerator) wait() {
	if f.block != nil {
		<-f.block
	}
}

func (f *fakeGenerator) GenerateScreenplay(ctx context.Context, in service.ScreenplayInput) (*service.ScreenplayOutput, error) {
	f.record("screenplay")
	f.mu.Lock()
	f.screenplayCtxErr = ctx.Err()
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.screenplay, nil
}

func (f *fakeGenerator) ExtractCharacters(ctx context.Context, scenes []entity.Scene, maxCharacters int) ([]service.CharacterProfile, error) {
	f.record("characters")
	if f.err != nil {
		return nil, f.err
	}
	return f.characters, nil
}

func (f *fakeGenerator) ExtractLocations(ctx context.Context, scenes []entity.Scene) ([]string, error) {
	f.record("locations")
	if f.err != nil {
		return nil, f.err
	}
	return f.locations, nil
}

func (f *fakeGenerator) GenerateCharacterImage(ctx context.Context, in service.CharacterImageInput) (*service.InlineImage, error) {
	f.record("character:" + in.Character.ID)
	f.mu.Lock()
	f.lastCharacter = in
	f.mu.Unlock()
	f.wait()
	if f.err != nil {
		return nil, f.err
	}
	return &service.InlineImage{MimeType: "image/png", Data: testImageData}, nil
}

func (f *fakeGenerator) GenerateLocationImage(ctx context.Context, in service.LocationImageInput) (*service.InlineImage, error) {
	f.record("location:" + in.Description)
	f.wait()
	if f.err != nil {
		return nil, f.err
	}
	return &service.InlineImage{MimeType: "image/png", Data: testImageData}, nil
}

func (f *fakeGenerator) GenerateShotlist(ctx context.Context, scenes []entity.Scene) ([]entity.Shot, error) {
	f.record("shotlist")
	if f.err != nil {
		return nil, f.err
	}
	return f.shots, nil
}

func (f *fakeGenerator) GenerateStoryboardImage(ctx context.Context, in service.StoryboardImageInput) (*service.StoryboardImage, error) {
	n := f.record("panel:" + in.Shot.Key().String())
	f.mu.Lock()
	f.lastStoryboard = in
	f.mu.Unlock()
	if f.onStoryboard != nil {
		f.onStoryboard(n)
	}
	f.wait()
	if f.err != nil {
		return nil, f.err
	}
	return &service.StoryboardImage{
		Image:  service.InlineImage{MimeType: "image/png", Data: testImageData},
		Prompt: "prompt " + in.Shot.Key().String(),
	}, nil
}

var errFake = errors.New("model unavailable")

func newTestWorkspace(t *testing.T, gen service.GenerationService, p *entity.Project) *Workspace {
	t.Helper()
	w := NewWorkspace(gen, nil, Options{BatchDelay: time.Millisecond})
	if p != nil {
		w.registry.Replace(p)
	}
	return w
}

func testShots(n int) []entity.Shot {
	shots := make([]entity.Shot, n)
	for i := range shots {
		shots[i] = entity.Shot{
			SceneNumber: 1,
			ShotNumber:  i + 1,
			Description: fmt.Sprintf("shot %d", i+1),
		}
	}
	return shots
}

// waitIdle 等待所有构件退出忙碌状态
func waitIdle(t *testing.T, w *Workspace) {
	t.Helper()
	require.Eventually(t, func() bool {
		p := w.registry.Snapshot()
		for i := range p.Characters {
			if p.Characters[i].IsGenerating {
				return false
			}
		}
		for i := range p.SceneSettings {
			if p.SceneSettings[i].IsGenerating {
				return false
			}
		}
		for i := range p.Storyboard {
			if p.Storyboard[i].IsGenerating {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)
}
