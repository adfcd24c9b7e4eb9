// Package imagegen Gemini / Imagen 图像生成客户端
package imagegen

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"

	"storyboard-ai-api/internal/config"
	"storyboard-ai-api/pkg/logger"
	"storyboard-ai-api/pkg/metrics"
)

// Imagen 支持的画面比例
var imagenAspectRatios = map[string]bool{"3:4": true, "4:3": true, "9:16": true, "16:9": true}

// Image 生成结果（base64）
type Image struct {
	MimeType string
	Data     string
}

// Part 多模态请求片段，Text 与 Image 二选一
type Part struct {
	Text  string
	Image *Image
}

// Client 图像生成客户端
type Client struct {
	genai      *genai.Client
	imageModel string
	editModel  string
}

// NewClient 创建图像生成客户端
func NewClient(ctx context.Context, cfg *config.ImageConfig) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    strings.TrimSpace(cfg.BaseURL),
			APIVersion: strings.TrimSpace(cfg.APIVersion),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{
		genai:      gc,
		imageModel: cfg.ImageModel,
		editModel:  cfg.EditModel,
	}, nil
}

// Generate 纯文本生图（Imagen），不支持的比例回退为 fallbackRatio
func (c *Client) Generate(ctx context.Context, prompt, aspectRatio, fallbackRatio string) (img *Image, err error) {
	if !imagenAspectRatios[aspectRatio] {
		aspectRatio = fallbackRatio
	}
	ctx, done, err := c.begin(ctx, c.imageModel, "text")
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()

	resp, err := c.genai.Models.GenerateImages(ctx, c.imageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: "image/png",
		AspectRatio:    aspectRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("imagen request failed: %w", err)
	}
	for _, g := range resp.GeneratedImages {
		if g == nil || g.Image == nil || len(g.Image.ImageBytes) == 0 {
			continue
		}
		mime := g.Image.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		return &Image{MimeType: mime, Data: base64.StdEncoding.EncodeToString(g.Image.ImageBytes)}, nil
	}
	return nil, fmt.Errorf("imagen returned no image")
}

// GenerateWithReferences 带参考图的多模态生图，按 parts 顺序提交
func (c *Client) GenerateWithReferences(ctx context.Context, parts []Part) (img *Image, err error) {
	content := &genai.Content{Role: "user", Parts: make([]*genai.Part, 0, len(parts))}
	for _, p := range parts {
		if p.Image == nil {
			content.Parts = append(content.Parts, &genai.Part{Text: p.Text})
			continue
		}
		data, derr := base64.StdEncoding.DecodeString(p.Image.Data)
		if derr != nil {
			return nil, fmt.Errorf("decode reference image: %w", derr)
		}
		content.Parts = append(content.Parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: p.Image.MimeType, Data: data},
		})
	}

	ctx, done, err := c.begin(ctx, c.editModel, "reference")
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()

	resp, err := c.genai.Models.GenerateContent(ctx, c.editModel, []*genai.Content{content}, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		return nil, fmt.Errorf("image request failed: %w", err)
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return &Image{
					MimeType: part.InlineData.MIMEType,
					Data:     base64.StdEncoding.EncodeToString(part.InlineData.Data),
				}, nil
			}
		}
	}
	return nil, fmt.Errorf("no image generated from reference")
}

// begin 为一次调用开启 span，返回的 done 负责记录指标与结束 span
func (c *Client) begin(ctx context.Context, model, mode string) (context.Context, func(error), error) {
	if strings.TrimSpace(model) == "" {
		return ctx, nil, fmt.Errorf("image model not configured")
	}
	ctx, span := otel.Tracer("imagegen").Start(ctx, "imagegen."+mode)
	span.SetAttributes(attribute.String("image.model", model))
	start := time.Now()

	return ctx, func(err error) {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.ImageCallTotal.WithLabelValues(model, mode, status).Inc()
		logger.Debug(ctx, "image api call finished",
			"model", model,
			"mode", mode,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		span.End()
	}, nil
}
