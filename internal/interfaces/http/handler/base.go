// Package handler 提供 HTTP 请求处理器
package handler

import (
	"io"
	"mime"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"storyboard-ai-api/internal/application/pipeline"
	"storyboard-ai-api/internal/interfaces/http/dto"
	apperrors "storyboard-ai-api/pkg/errors"
	"storyboard-ai-api/pkg/logger"
)

// jsonPatchMediaType RFC 6902 请求体类型
const jsonPatchMediaType = "application/json-patch+json"

// respondError 将错误转换为统一错误响应；非 AppError 记录日志并返回 500
func respondError(c *gin.Context, err error) {
	if apperrors.IsAppError(err) {
		appErr := apperrors.AsAppError(err)
		if appErr.HTTPStatus >= 500 {
			logger.Error(c.Request.Context(), "request failed", err, "path", c.FullPath())
		}
		dto.AppError(c, appErr)
		return
	}
	logger.Error(c.Request.Context(), "unexpected error", err, "path", c.FullPath())
	dto.InternalError(c, "internal server error")
}

// queryBool 读取布尔查询参数，缺省或无法解析时为 false
func queryBool(c *gin.Context, name string) bool {
	v, err := strconv.ParseBool(c.Query(name))
	return err == nil && v
}

// pathInt 读取整数路径参数
func pathInt(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil {
		dto.BadRequest(c, "invalid path parameter: "+name)
		return 0, false
	}
	return n, true
}

// readPatch 按 Content-Type 读取 merge patch 或 JSON patch
func readPatch(c *gin.Context) (pipeline.Patch, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, apperrors.ErrInvalidParam.WithDetail("failed to read request body"))
		return pipeline.Patch{}, false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		dto.BadRequest(c, "empty patch body")
		return pipeline.Patch{}, false
	}

	patchType := pipeline.PatchTypeMerge
	if mt, _, err := mime.ParseMediaType(c.GetHeader("Content-Type")); err == nil && mt == jsonPatchMediaType {
		patchType = pipeline.PatchTypeJSON
	}
	return pipeline.Patch{Type: patchType, Body: body}, true
}

// startOrWait 立即返回 202 与任务，或在 wait=true 时等待任务结束
func startOrWait(c *gin.Context, start func() (*pipeline.Job, error)) {
	job, err := start()
	if err != nil {
		respondError(c, err)
		return
	}
	if !queryBool(c, "wait") {
		dto.Accepted(c, job.Snapshot())
		return
	}
	snap, err := job.Wait(c.Request.Context())
	if err != nil {
		respondError(c, apperrors.ErrServiceUnavailable.WithDetail("request cancelled while waiting for job "+snap.ID))
		return
	}
	dto.Success(c, snap)
}

// runAll 启动批量生成；wait=true 时阻塞到批量结束
func runAll(c *gin.Context, ws *pipeline.Workspace, scope pipeline.BatchScope) {
	ctx := c.Request.Context()
	if queryBool(c, "wait") {
		status, err := ws.RunAll(ctx, scope)
		if err != nil {
			respondError(c, err)
			return
		}
		dto.Success(c, dto.RunAllResponse{Batch: status})
		return
	}
	status, err := ws.StartRunAll(ctx, scope)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Accepted(c, dto.RunAllResponse{Batch: status})
}
