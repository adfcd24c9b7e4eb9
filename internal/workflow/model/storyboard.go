package model

// ScreenplayGenerateInput 剧本生成
type ScreenplayGenerateInput struct {
	Concept       string
	Genre         string
	MaxCharacters int
	MaxScenes     int

	GenerateOptions
}

// CharacterExtractInput 角色抽取
type CharacterExtractInput struct {
	ScreenplayJSON string
	MaxCharacters  int

	GenerateOptions
}

// LocationExtractInput 场景设定抽取
type LocationExtractInput struct {
	ScreenplayJSON string

	GenerateOptions
}

// ShotlistGenerateInput 分镜表生成
type ShotlistGenerateInput struct {
	ScreenplayJSON string
	AspectRatio    string

	GenerateOptions
}
