// Package pipeline 实现分镜生成流水线核心：构件注册表、阶段门禁、参考图解析与生成任务调度。
package pipeline

import (
	"sync"

	"storyboard-ai-api/internal/domain/entity"
)

// Registry 项目聚合的唯一持有者。
//
// 所有修改都通过 Update 以"基于最新快照计算新值再整体提交"的方式完成，
// 调用方永远看不到尚未提交的中间状态。生成调用不会在持锁期间发起。
type Registry struct {
	mu      sync.Mutex
	project *entity.Project
	version uint64
}

// NewRegistry 创建注册表，p 为 nil 时使用初始项目
func NewRegistry(p *entity.Project) *Registry {
	if p == nil {
		p = entity.NewProject()
	}
	p = p.Clone()
	p.Normalize()
	return &Registry{project: p}
}

// Snapshot 返回当前项目的深拷贝
func (r *Registry) Snapshot() *entity.Project {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.project.Clone()
}

// Version 返回已提交的修改次数
func (r *Registry) Version() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

// Update 在最新快照的副本上执行 fn，fn 返回 nil 时整体提交
func (r *Registry) Update(fn func(p *entity.Project) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.project.Clone()
	if err := fn(next); err != nil {
		return err
	}
	r.project = next
	r.version++
	return nil
}

// Replace 整体替换项目
func (r *Registry) Replace(p *entity.Project) {
	next := p.Clone()
	next.Normalize()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.project = next
	r.version++
}
