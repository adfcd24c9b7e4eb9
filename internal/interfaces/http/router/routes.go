package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, h *Handlers) {
	// 项目
	project := v1.Group("/project")
	{
		project.GET("", h.Project.GetProject)
		project.PATCH("/settings", h.Project.UpdateSettings)
		project.POST("/reset", h.Project.Reset)
		project.GET("/export", h.Project.Export)
		project.POST("/import", h.Project.Import)

		project.GET("/stages", h.Project.Stages)
		project.POST("/stages/advance", h.Project.Advance)
		project.POST("/stages/goto", h.Project.GoTo)
	}

	// 快照
	snapshots := v1.Group("/snapshots")
	{
		snapshots.GET("", h.Snapshot.ListSnapshots)
		snapshots.POST("", h.Snapshot.SaveSnapshot)
		snapshots.POST("/:id/restore", h.Snapshot.RestoreSnapshot)
		snapshots.DELETE("/:id", h.Snapshot.DeleteSnapshot)
	}

	// 剧本
	screenplay := v1.Group("/screenplay")
	{
		screenplay.POST("/generate", h.Screenplay.Generate)
		screenplay.PATCH("/scenes/:sceneNumber", h.Screenplay.PatchScene)
	}

	// 角色
	characters := v1.Group("/characters")
	{
		characters.POST("/extract", h.Character.Extract)
		characters.POST("/run-all", h.Character.RunAll)
		characters.POST("", h.Character.Add)
		characters.PATCH("/:id", h.Character.Patch)
		characters.DELETE("/:id", h.Character.Delete)
		characters.POST("/:id/generate", h.Character.Generate)
		characters.PUT("/:id/reference", h.Character.SetReference)
		characters.DELETE("/:id/reference", h.Character.ClearReference)
	}

	// 场景设定
	locations := v1.Group("/locations")
	{
		locations.POST("/extract", h.Location.Extract)
		locations.POST("/run-all", h.Location.RunAll)
		locations.POST("", h.Location.Add)
		locations.PATCH("/:id", h.Location.Patch)
		locations.DELETE("/:id", h.Location.Delete)
		locations.POST("/:id/generate", h.Location.Generate)
		locations.PUT("/:id/reference", h.Location.SetReference)
		locations.DELETE("/:id/reference", h.Location.ClearReference)
	}

	// 镜头表
	shotlist := v1.Group("/shotlist")
	{
		shotlist.POST("/generate", h.Shotlist.Generate)
		shotlist.PATCH("/:scene/:shot", h.Shotlist.PatchShot)
	}

	// 分镜
	storyboard := v1.Group("/storyboard")
	{
		storyboard.GET("", h.Storyboard.List)
		storyboard.GET("/palette", h.Storyboard.Palette)

		storyboard.PATCH("/panels/:index", h.Storyboard.SavePanel)
		storyboard.POST("/panels/:index/generate", h.Storyboard.Generate)
		storyboard.POST("/panels/:index/regenerate", h.Storyboard.Regenerate)
		storyboard.GET("/panels/:index/references", h.Storyboard.References)
		storyboard.POST("/panels/:index/references", h.Storyboard.AddReference)
		storyboard.PUT("/panels/:index/references", h.Storyboard.ReorderReferences)
		storyboard.DELETE("/panels/:index/references", h.Storyboard.ResetReferences)
		storyboard.DELETE("/panels/:index/references/:refId", h.Storyboard.RemoveReference)

		storyboard.GET("/run-all", h.Storyboard.BatchStatus)
		storyboard.POST("/run-all", h.Storyboard.RunAll)
		storyboard.POST("/run-all/stop", h.Storyboard.StopAll)
	}

	// 任务
	jobs := v1.Group("/jobs")
	{
		jobs.GET("", h.Job.ListJobs)
		jobs.GET("/:id", h.Job.GetJob)
	}

	v1.GET("/usage", h.Usage.Summary)
}
