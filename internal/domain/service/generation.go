package service

import (
	"context"

	"storyboard-ai-api/internal/domain/entity"
)

// ScreenplayInput 剧本生成输入
type ScreenplayInput struct {
	Concept       string
	Genre         string
	MaxCharacters int
	MaxScenes     int
}

// ScreenplayOutput 剧本生成输出
type ScreenplayOutput struct {
	Scenes []entity.Scene
	Prompt string
}

// CharacterProfile 角色抽取结果
type CharacterProfile struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// InlineImage base64 编码的图片
type InlineImage struct {
	MimeType string
	Data     string
}

// DataURL 转为 data URL
func (img InlineImage) DataURL() string {
	return entity.DataURL(img.MimeType, img.Data)
}

// InlineImageFromDataURL 从 data URL 解析图片；空串返回 nil
func InlineImageFromDataURL(url string) (*InlineImage, error) {
	if url == "" {
		return nil, nil
	}
	mime, data, err := entity.ParseDataURL(url)
	if err != nil {
		return nil, err
	}
	return &InlineImage{MimeType: mime, Data: data}, nil
}

// CharacterImageInput 角色立绘生成输入
type CharacterImageInput struct {
	Character   entity.Character
	ArtStyle    string
	AspectRatio string
	Reference   *InlineImage
}

// LocationImageInput 场景图生成输入
type LocationImageInput struct {
	Description string
	ArtStyle    string
	AspectRatio string
	Reference   *InlineImage
}

// ReferenceKind 参考图来源类型
type ReferenceKind string

const (
	ReferenceKindCharacter ReferenceKind = "character"
	ReferenceKindLocation  ReferenceKind = "location"
	// ReferenceKindUpload 仅用于单次生成的临时上传图，不落盘
	ReferenceKindUpload ReferenceKind = "upload"
)

// ReferenceImage 随分镜请求一并提交的参考图
type ReferenceImage struct {
	ID    string
	Kind  ReferenceKind
	Label string
	Image InlineImage
}

// StoryboardImageInput 分镜图生成输入
type StoryboardImageInput struct {
	Shot        entity.Shot
	Characters  []entity.Character
	Locations   []entity.SceneSetting
	ArtStyle    string
	AspectRatio string
	// References 为空时退化为纯文本生成
	References []ReferenceImage
}

// StoryboardImage 分镜图生成结果
type StoryboardImage struct {
	Image  InlineImage
	Prompt string
}

// GenerationService 外部生成服务（文本 + 图像）。
// 所有调用失败时不返回部分结果。
type GenerationService interface {
	GenerateScreenplay(ctx context.Context, in ScreenplayInput) (*ScreenplayOutput, error)
	ExtractCharacters(ctx context.Context, scenes []entity.Scene, maxCharacters int) ([]CharacterProfile, error)
	ExtractLocations(ctx context.Context, scenes []entity.Scene) ([]string, error)
	GenerateCharacterImage(ctx context.Context, in CharacterImageInput) (*InlineImage, error)
	GenerateLocationImage(ctx context.Context, in LocationImageInput) (*InlineImage, error)
	GenerateShotlist(ctx context.Context, scenes []entity.Scene) ([]entity.Shot, error)
	GenerateStoryboardImage(ctx context.Context, in StoryboardImageInput) (*StoryboardImage, error)
}
