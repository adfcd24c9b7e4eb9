package pipeline

import (
	"context"
	"sync"

	"storyboard-ai-api/internal/domain/entity"
)

const defaultJobHistory = 200

// Job 生成任务句柄
type Job struct {
	mu   sync.Mutex
	job  entity.GenerationJob
	done chan struct{}
}

func newJob(jobType entity.JobType, targetID, batchID string) *Job {
	job := entity.NewGenerationJob(jobType, targetID)
	job.BatchID = batchID
	job.Start()
	return &Job{job: *job, done: make(chan struct{})}
}

// ID 任务 ID
func (j *Job) ID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.job.ID
}

// Done 任务结束时关闭
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait 等待任务结束并返回终态
func (j *Job) Wait(ctx context.Context) (entity.GenerationJob, error) {
	select {
	case <-j.done:
		return j.Snapshot(), nil
	case <-ctx.Done():
		return j.Snapshot(), ctx.Err()
	}
}

// Snapshot 返回任务当前状态
func (j *Job) Snapshot() entity.GenerationJob {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.job
}

// finish 写入终态并唤醒等待者，只生效一次
func (j *Job) finish(fn func(job *entity.GenerationJob)) {
	j.mu.Lock()
	if j.job.IsTerminal() {
		j.mu.Unlock()
		return
	}
	fn(&j.job)
	j.mu.Unlock()
	close(j.done)
}

// jobLog 有界的任务记录，按创建顺序保存
type jobLog struct {
	mu    sync.Mutex
	limit int
	order []*Job
	byID  map[string]*Job
}

func newJobLog(limit int) *jobLog {
	if limit <= 0 {
		limit = defaultJobHistory
	}
	return &jobLog{limit: limit, byID: make(map[string]*Job)}
}

func (l *jobLog) add(j *Job) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byID[j.job.ID] = j
	l.order = append(l.order, j)
	for len(l.order) > l.limit {
		delete(l.byID, l.order[0].job.ID)
		l.order = l.order[1:]
	}
}

func (l *jobLog) get(id string) (*Job, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	j, ok := l.byID[id]
	return j, ok
}

// list 按时间倒序返回
func (l *jobLog) list() []entity.GenerationJob {
	l.mu.Lock()
	jobs := append([]*Job(nil), l.order...)
	l.mu.Unlock()

	out := make([]entity.GenerationJob, 0, len(jobs))
	for i := len(jobs) - 1; i >= 0; i-- {
		out = append(out, jobs[i].Snapshot())
	}
	return out
}
