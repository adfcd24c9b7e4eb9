package chain

import (
	"strings"

	wfmodel "storyboard-ai-api/internal/workflow/model"
	workflowport "storyboard-ai-api/internal/workflow/port"
	workflowprompt "storyboard-ai-api/internal/workflow/prompt"
)

// ShotlistChain 分镜表生成
type ShotlistChain = JSONChain[*wfmodel.ShotlistGenerateInput]

func NewShotlistChain(factory workflowport.ChatModelFactory) *ShotlistChain {
	return newJSONChain(factory, jsonChainSpec[*wfmodel.ShotlistGenerateInput]{
		workflow:   WorkflowShotlist,
		prompt:     workflowprompt.PromptShotlistV1,
		schemaName: "shotlist",
		schema:     shotlistJSONSchema,
		vars: func(in *wfmodel.ShotlistGenerateInput) map[string]any {
			ratio := strings.TrimSpace(in.AspectRatio)
			if ratio == "" {
				ratio = "16:9"
			}
			return map[string]any{
				"screenplay":   in.ScreenplayJSON,
				"aspect_ratio": ratio,
			}
		},
		options: func(in *wfmodel.ShotlistGenerateInput) wfmodel.GenerateOptions {
			return in.GenerateOptions
		},
	})
}

var shotStringFields = []string{
	"description", "ert", "shotSize", "perspective", "movement", "equipment",
	"lens", "aspectRatio", "notes", "vo", "sfx",
}

func shotlistJSONSchema() map[string]any {
	props := map[string]any{
		"sceneNumber": map[string]any{"type": "integer"},
		"shotNumber":  map[string]any{"type": "integer"},
	}
	required := []any{"sceneNumber", "shotNumber"}
	for _, f := range shotStringFields {
		props[f] = stringProp()
		required = append(required, f)
	}
	return objectOf([]any{"shots"}, map[string]any{
		"shots": arrayOf(objectOf(required, props)),
	})
}
