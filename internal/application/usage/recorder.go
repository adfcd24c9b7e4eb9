// Package usage 汇总模型调用用量
package usage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"storyboard-ai-api/internal/domain/service"
)

// Key 用量聚合维度
type Key struct {
	Workflow string `json:"workflow"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Totals 某一维度的累计用量
type Totals struct {
	Key
	Calls            int64 `json:"calls"`
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
	DurationMs       int64 `json:"duration_ms"`
}

// Summary 用量汇总
type Summary struct {
	Since            time.Time `json:"since"`
	Calls            int64     `json:"calls"`
	PromptTokens     int64     `json:"prompt_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
	Breakdown        []Totals  `json:"breakdown"`
}

// Recorder 进程内用量记录器，由 Eino 回调在每次模型调用结束时写入
type Recorder struct {
	mu     sync.Mutex
	since  time.Time
	totals map[Key]*Totals
}

// NewRecorder 创建用量记录器
func NewRecorder() *Recorder {
	return &Recorder{since: time.Now(), totals: make(map[Key]*Totals)}
}

var _ service.LLMUsageRecorder = (*Recorder)(nil)

func (r *Recorder) Record(ctx context.Context, in service.LLMUsageInput) error {
	if r == nil {
		return nil
	}
	if in.PromptTokens < 0 || in.CompletionTokens < 0 {
		return fmt.Errorf("invalid token usage")
	}

	key := Key{
		Workflow: strings.TrimSpace(in.Workflow),
		Provider: strings.TrimSpace(in.Provider),
		Model:    strings.TrimSpace(in.Model),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.totals[key]
	if !ok {
		t = &Totals{Key: key}
		r.totals[key] = t
	}
	t.Calls++
	t.PromptTokens += int64(in.PromptTokens)
	t.CompletionTokens += int64(in.CompletionTokens)
	t.TotalTokens += int64(in.PromptTokens + in.CompletionTokens)
	t.DurationMs += int64(in.DurationMs)
	return nil
}

// Summary 返回累计用量，按 workflow/provider/model 排序
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := Summary{Since: r.since, Breakdown: make([]Totals, 0, len(r.totals))}
	for _, t := range r.totals {
		out.Calls += t.Calls
		out.PromptTokens += t.PromptTokens
		out.CompletionTokens += t.CompletionTokens
		out.Breakdown = append(out.Breakdown, *t)
	}
	sort.Slice(out.Breakdown, func(i, j int) bool {
		a, b := out.Breakdown[i].Key, out.Breakdown[j].Key
		if a.Workflow != b.Workflow {
			return a.Workflow < b.Workflow
		}
		if a.Provider != b.Provider {
			return a.Provider < b.Provider
		}
		return a.Model < b.Model
	})
	return out
}
