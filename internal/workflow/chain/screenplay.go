package chain

import (
	"strconv"
	"strings"

	wfmodel "storyboard-ai-api/internal/workflow/model"
	workflowport "storyboard-ai-api/internal/workflow/port"
	workflowprompt "storyboard-ai-api/internal/workflow/prompt"
)

// 流程名称，同时作为 llm.workflows 配置键
const (
	WorkflowScreenplay       = "screenplay"
	WorkflowCharacterExtract = "character_extract"
	WorkflowLocationExtract  = "location_extract"
	WorkflowShotlist         = "shotlist"
)

// ScreenplayChain 剧本生成
type ScreenplayChain = JSONChain[*wfmodel.ScreenplayGenerateInput]

func NewScreenplayChain(factory workflowport.ChatModelFactory) *ScreenplayChain {
	return newJSONChain(factory, jsonChainSpec[*wfmodel.ScreenplayGenerateInput]{
		workflow:   WorkflowScreenplay,
		prompt:     workflowprompt.PromptScreenplayV1,
		schemaName: "screenplay",
		schema:     screenplayJSONSchema,
		vars: func(in *wfmodel.ScreenplayGenerateInput) map[string]any {
			return map[string]any{
				"genre":          strings.TrimSpace(in.Genre),
				"max_characters": strconv.Itoa(in.MaxCharacters),
				"max_scenes":     strconv.Itoa(in.MaxScenes),
				"concept":        strings.TrimSpace(in.Concept),
			}
		},
		options: func(in *wfmodel.ScreenplayGenerateInput) wfmodel.GenerateOptions {
			return in.GenerateOptions
		},
	})
}

func screenplayJSONSchema() map[string]any {
	dialogue := objectOf([]any{"character", "line"}, map[string]any{
		"character": stringProp(),
		"line":      stringProp(),
	})
	scene := objectOf([]any{"sceneNumber", "title", "description", "dialogue"}, map[string]any{
		"sceneNumber": map[string]any{"type": "integer"},
		"title":       stringProp(),
		"description": stringProp(),
		"dialogue":    arrayOf(dialogue),
	})
	return objectOf([]any{"scenes"}, map[string]any{
		"scenes": arrayOf(scene),
	})
}
