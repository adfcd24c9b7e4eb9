package chain

import (
	"strconv"

	wfmodel "storyboard-ai-api/internal/workflow/model"
	workflowport "storyboard-ai-api/internal/workflow/port"
	workflowprompt "storyboard-ai-api/internal/workflow/prompt"
)

// CharacterExtractChain 角色抽取
type CharacterExtractChain = JSONChain[*wfmodel.CharacterExtractInput]

// LocationExtractChain 场景设定抽取
type LocationExtractChain = JSONChain[*wfmodel.LocationExtractInput]

func NewCharacterExtractChain(factory workflowport.ChatModelFactory) *CharacterExtractChain {
	return newJSONChain(factory, jsonChainSpec[*wfmodel.CharacterExtractInput]{
		workflow:   WorkflowCharacterExtract,
		prompt:     workflowprompt.PromptCharacterExtractV1,
		schemaName: "characters",
		schema: func() map[string]any {
			character := objectOf([]any{"name", "description"}, map[string]any{
				"name":        stringProp(),
				"description": stringProp(),
			})
			return objectOf([]any{"characters"}, map[string]any{"characters": arrayOf(character)})
		},
		vars: func(in *wfmodel.CharacterExtractInput) map[string]any {
			return map[string]any{
				"max_characters": strconv.Itoa(in.MaxCharacters),
				"screenplay":     in.ScreenplayJSON,
			}
		},
		options: func(in *wfmodel.CharacterExtractInput) wfmodel.GenerateOptions {
			return in.GenerateOptions
		},
	})
}

func NewLocationExtractChain(factory workflowport.ChatModelFactory) *LocationExtractChain {
	return newJSONChain(factory, jsonChainSpec[*wfmodel.LocationExtractInput]{
		workflow:   WorkflowLocationExtract,
		prompt:     workflowprompt.PromptLocationExtractV1,
		schemaName: "locations",
		schema: func() map[string]any {
			return objectOf([]any{"locations"}, map[string]any{"locations": arrayOf(stringProp())})
		},
		vars: func(in *wfmodel.LocationExtractInput) map[string]any {
			return map[string]any{"screenplay": in.ScreenplayJSON}
		},
		options: func(in *wfmodel.LocationExtractInput) wfmodel.GenerateOptions {
			return in.GenerateOptions
		},
	})
}
