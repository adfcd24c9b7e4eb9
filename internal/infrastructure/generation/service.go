// Package generation 组合文本链与图像客户端，实现生成服务端口
package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"storyboard-ai-api/internal/domain/entity"
	"storyboard-ai-api/internal/domain/service"
	"storyboard-ai-api/internal/infrastructure/imagegen"
	"storyboard-ai-api/internal/workflow/chain"
	wfmodel "storyboard-ai-api/internal/workflow/model"
	wfnode "storyboard-ai-api/internal/workflow/node"
	workflowport "storyboard-ai-api/internal/workflow/port"
)

// ChatModels 文本模型工厂，附带按流程选择提供商
type ChatModels interface {
	workflowport.ChatModelFactory
	ProviderFor(workflow string) string
}

// ImageGenerator 图像生成端口
type ImageGenerator interface {
	Generate(ctx context.Context, prompt, aspectRatio, fallbackRatio string) (*imagegen.Image, error)
	GenerateWithReferences(ctx context.Context, parts []imagegen.Part) (*imagegen.Image, error)
}

// Service 生成服务实现
type Service struct {
	models ChatModels
	images ImageGenerator

	screenplay *chain.ScreenplayChain
	characters *chain.CharacterExtractChain
	locations  *chain.LocationExtractChain
	shotlist   *chain.ShotlistChain
}

var _ service.GenerationService = (*Service)(nil)

// NewService 创建生成服务
func NewService(models ChatModels, images ImageGenerator) *Service {
	return &Service{
		models:     models,
		images:     images,
		screenplay: chain.NewScreenplayChain(models),
		characters: chain.NewCharacterExtractChain(models),
		locations:  chain.NewLocationExtractChain(models),
		shotlist:   chain.NewShotlistChain(models),
	}
}

func (s *Service) options(workflow string) wfmodel.GenerateOptions {
	return wfmodel.GenerateOptions{Provider: s.models.ProviderFor(workflow)}
}

func (s *Service) GenerateScreenplay(ctx context.Context, in service.ScreenplayInput) (*service.ScreenplayOutput, error) {
	out, err := s.screenplay.Invoke(ctx, &wfmodel.ScreenplayGenerateInput{
		Concept:         in.Concept,
		Genre:           in.Genre,
		MaxCharacters:   in.MaxCharacters,
		MaxScenes:       in.MaxScenes,
		GenerateOptions: s.options(chain.WorkflowScreenplay),
	})
	if err != nil {
		return nil, fmt.Errorf("generate screenplay: %w", err)
	}

	var scenes []entity.Scene
	if err := decodeArray(out.JSON, "scenes", &scenes); err != nil {
		return nil, fmt.Errorf("parse screenplay: %w", err)
	}
	return &service.ScreenplayOutput{Scenes: scenes, Prompt: out.Prompt}, nil
}

func (s *Service) ExtractCharacters(ctx context.Context, scenes []entity.Scene, maxCharacters int) ([]service.CharacterProfile, error) {
	screenplay, err := json.Marshal(scenes)
	if err != nil {
		return nil, err
	}
	out, err := s.characters.Invoke(ctx, &wfmodel.CharacterExtractInput{
		ScreenplayJSON:  string(screenplay),
		MaxCharacters:   maxCharacters,
		GenerateOptions: s.options(chain.WorkflowCharacterExtract),
	})
	if err != nil {
		return nil, fmt.Errorf("extract characters: %w", err)
	}

	var profiles []service.CharacterProfile
	if err := decodeArray(out.JSON, "characters", &profiles); err != nil {
		return nil, fmt.Errorf("parse characters: %w", err)
	}
	return profiles, nil
}

func (s *Service) ExtractLocations(ctx context.Context, scenes []entity.Scene) ([]string, error) {
	screenplay, err := json.Marshal(scenes)
	if err != nil {
		return nil, err
	}
	out, err := s.locations.Invoke(ctx, &wfmodel.LocationExtractInput{
		ScreenplayJSON:  string(screenplay),
		GenerateOptions: s.options(chain.WorkflowLocationExtract),
	})
	if err != nil {
		return nil, fmt.Errorf("extract locations: %w", err)
	}

	var locations []string
	if err := decodeArray(out.JSON, "locations", &locations); err != nil {
		return nil, fmt.Errorf("parse locations: %w", err)
	}
	result := make([]string, 0, len(locations))
	for _, l := range locations {
		if l = strings.TrimSpace(l); l != "" {
			result = append(result, l)
		}
	}
	return result, nil
}

func (s *Service) GenerateShotlist(ctx context.Context, scenes []entity.Scene) ([]entity.Shot, error) {
	screenplay, err := json.Marshal(scenes)
	if err != nil {
		return nil, err
	}
	out, err := s.shotlist.Invoke(ctx, &wfmodel.ShotlistGenerateInput{
		ScreenplayJSON:  string(screenplay),
		GenerateOptions: s.options(chain.WorkflowShotlist),
	})
	if err != nil {
		return nil, fmt.Errorf("generate shotlist: %w", err)
	}

	var shots []entity.Shot
	if err := decodeArray(out.JSON, "shots", &shots); err != nil {
		return nil, fmt.Errorf("parse shotlist: %w", err)
	}
	return shots, nil
}

func (s *Service) GenerateCharacterImage(ctx context.Context, in service.CharacterImageInput) (*service.InlineImage, error) {
	prompt := characterPrompt(in.Character, in.ArtStyle)

	var (
		img *imagegen.Image
		err error
	)
	if in.Reference != nil {
		img, err = s.images.GenerateWithReferences(ctx, []imagegen.Part{
			{Image: &imagegen.Image{MimeType: in.Reference.MimeType, Data: in.Reference.Data}},
			{Text: "Redevelop this character based on the reference image and the following details. " +
				"Make sure the output is just the character on a neutral background.\n\n" + prompt},
		})
	} else {
		img, err = s.images.Generate(ctx, "Character sheet, full body, neutral background. "+prompt, aspectOr(in.AspectRatio, "3:4"), "3:4")
	}
	if err != nil {
		return nil, fmt.Errorf("generate character image: %w", err)
	}
	return toInline(img), nil
}

func (s *Service) GenerateLocationImage(ctx context.Context, in service.LocationImageInput) (*service.InlineImage, error) {
	prompt := locationPrompt(in.Description, in.ArtStyle)

	var (
		img *imagegen.Image
		err error
	)
	if in.Reference != nil {
		img, err = s.images.GenerateWithReferences(ctx, []imagegen.Part{
			{Image: &imagegen.Image{MimeType: in.Reference.MimeType, Data: in.Reference.Data}},
			{Text: "Redevelop this location based on the reference image and the following details.\n\n" + prompt},
		})
	} else {
		img, err = s.images.Generate(ctx, prompt, aspectOr(in.AspectRatio, entity.DefaultAspectRatio), entity.DefaultAspectRatio)
	}
	if err != nil {
		return nil, fmt.Errorf("generate location image: %w", err)
	}
	return toInline(img), nil
}

func (s *Service) GenerateStoryboardImage(ctx context.Context, in service.StoryboardImageInput) (*service.StoryboardImage, error) {
	aspect := aspectOr(in.Shot.AspectRatio, aspectOr(in.AspectRatio, entity.DefaultAspectRatio))

	if len(in.References) == 0 {
		prompt := storyboardPrompt(in.Shot, in.ArtStyle, aspect)
		img, err := s.images.Generate(ctx, prompt, aspect, entity.DefaultAspectRatio)
		if err != nil {
			return nil, fmt.Errorf("generate storyboard image: %w", err)
		}
		return &service.StoryboardImage{Image: *toInline(img), Prompt: prompt}, nil
	}

	prompt := storyboardReferencePrompt(in.Shot, in.ArtStyle, referencedCharacterNames(in))
	parts := make([]imagegen.Part, 0, len(in.References)+1)
	parts = append(parts, imagegen.Part{Text: prompt})
	for _, r := range in.References {
		parts = append(parts, imagegen.Part{Image: &imagegen.Image{MimeType: r.Image.MimeType, Data: r.Image.Data}})
	}
	img, err := s.images.GenerateWithReferences(ctx, parts)
	if err != nil {
		return nil, fmt.Errorf("generate storyboard image with references: %w", err)
	}
	return &service.StoryboardImage{Image: *toInline(img), Prompt: prompt}, nil
}

func characterPrompt(c entity.Character, artStyle string) string {
	var b strings.Builder
	b.WriteString("Generate a character image based on the following details. ")
	b.WriteString("The character should be on a neutral background for a character sheet.\n\n")
	fmt.Fprintf(&b, "Character Name: %s\n", c.Name)
	if c.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", c.Description)
	}
	fmt.Fprintf(&b, "Age: %s\n", c.Age)
	fmt.Fprintf(&b, "Personality: %s\n", c.Personality)
	fmt.Fprintf(&b, "Appearance: %s\n", c.Appearance)
	fmt.Fprintf(&b, "Hair: %s\n", c.Hair)
	fmt.Fprintf(&b, "Skin: %s\n", c.Skin)
	fmt.Fprintf(&b, "Outfit: %s\n", c.Outfit)
	fmt.Fprintf(&b, "Accessories: %s\n", c.Accessories)
	b.WriteString("Context: Neutral background for a character sheet, full body shot.\n")
	fmt.Fprintf(&b, "Style & Mood: %s\n", artStyle)
	return b.String()
}

func locationPrompt(description, artStyle string) string {
	return fmt.Sprintf("Establishing shot of a film location, environment only, no characters.\n"+
		"Location: %s\nStyle & Mood: %s\n", description, artStyle)
}

func storyboardPrompt(shot entity.Shot, artStyle, aspect string) string {
	return fmt.Sprintf("Shot Description: %s.\nShot Details: %s, %s perspective, %s movement.\nStyle: %s.\nAspect Ratio: %s.\n",
		shot.Description, shot.ShotSize, shot.Perspective, shot.Movement, artStyle, aspect)
}

func storyboardReferencePrompt(shot entity.Shot, artStyle string, names []string) string {
	var b strings.Builder
	b.WriteString("Create a cinematic image for a storyboard.\n")
	fmt.Fprintf(&b, "Scene Description: %s.\n", shot.Description)
	fmt.Fprintf(&b, "Shot Details: %s, %s perspective, %s movement.\n", shot.ShotSize, shot.Perspective, shot.Movement)
	fmt.Fprintf(&b, "Style: %s.\n", artStyle)
	b.WriteString("Use the provided images as direct references for appearance, clothing, likeness and setting.\n")
	if len(names) > 0 {
		fmt.Fprintf(&b, "Characters to include: %s.\n", strings.Join(names, ", "))
	}
	return b.String()
}

// referencedCharacterNames 按参考顺序返回角色名
func referencedCharacterNames(in service.StoryboardImageInput) []string {
	byID := make(map[string]string, len(in.Characters))
	for _, c := range in.Characters {
		byID[c.ID] = c.Name
	}
	names := make([]string, 0, len(in.References))
	for _, r := range in.References {
		if r.Kind != service.ReferenceKindCharacter {
			continue
		}
		if name, ok := byID[r.ID]; ok && name != "" {
			names = append(names, name)
		}
	}
	return names
}

func decodeArray(raw, key string, out any) error {
	arr, err := wfnode.ExtractJSONArray(raw, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(arr, out)
}

func aspectOr(ratio, def string) string {
	if r := strings.TrimSpace(ratio); r != "" {
		return r
	}
	return def
}

func toInline(img *imagegen.Image) *service.InlineImage {
	if img == nil {
		return &service.InlineImage{}
	}
	mime := img.MimeType
	if mime == "" {
		mime = entity.DefaultImageMimeType
	}
	return &service.InlineImage{MimeType: mime, Data: img.Data}
}
