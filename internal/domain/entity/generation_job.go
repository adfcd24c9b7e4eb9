package entity

import (
	"time"

	"github.com/google/uuid"
)

// JobType 任务类型
type JobType string

const (
	JobTypeScreenplay       JobType = "screenplay"
	JobTypeCharacterExtract JobType = "character_extract"
	JobTypeLocationExtract  JobType = "location_extract"
	JobTypeShotlist         JobType = "shotlist"
	JobTypeCharacterImage   JobType = "character_image"
	JobTypeLocationImage    JobType = "location_image"
	JobTypeStoryboardImage  JobType = "storyboard_image"
)

// JobStatus 任务状态
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	// JobStatusDiscarded 结果产生时目标已被删除或替换
	JobStatusDiscarded JobStatus = "discarded"
)

// GenerationJob 生成任务
type GenerationJob struct {
	ID           string     `json:"id"`
	JobType      JobType    `json:"job_type"`
	TargetID     string     `json:"target_id,omitempty"`
	BatchID      string     `json:"batch_id,omitempty"`
	Status       JobStatus  `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	DurationMs   int        `json:"duration_ms,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// NewGenerationJob 创建新任务
func NewGenerationJob(jobType JobType, targetID string) *GenerationJob {
	return &GenerationJob{
		ID:        uuid.NewString(),
		JobType:   jobType,
		TargetID:  targetID,
		Status:    JobStatusPending,
		CreatedAt: time.Now(),
	}
}

// Start 开始执行任务
func (j *GenerationJob) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
}

// Complete 完成任务
func (j *GenerationJob) Complete() {
	j.finish(JobStatusCompleted, "")
}

// Fail 任务失败
func (j *GenerationJob) Fail(errMsg string) {
	j.finish(JobStatusFailed, errMsg)
}

// Discard 丢弃结果
func (j *GenerationJob) Discard(reason string) {
	j.finish(JobStatusDiscarded, reason)
}

func (j *GenerationJob) finish(status JobStatus, msg string) {
	now := time.Now()
	j.Status = status
	j.ErrorMessage = msg
	j.CompletedAt = &now
	if j.StartedAt != nil {
		j.DurationMs = int(now.Sub(*j.StartedAt).Milliseconds())
	}
}

// IsTerminal 是否已结束
func (j *GenerationJob) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusDiscarded:
		return true
	default:
		return false
	}
}
