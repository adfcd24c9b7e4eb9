// Package chain 基于 Eino compose 编排的结构化生成流程
package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	llmctx "storyboard-ai-api/internal/domain/service"
	wfmodel "storyboard-ai-api/internal/workflow/model"
	wfnode "storyboard-ai-api/internal/workflow/node"
	workflowport "storyboard-ai-api/internal/workflow/port"
	workflowprompt "storyboard-ai-api/internal/workflow/prompt"
	"storyboard-ai-api/pkg/logger"
)

var defaultPromptRegistry = workflowprompt.NewRegistry()

// jsonChainSpec 描述一个"模板 → LLM → JSON"流程
type jsonChainSpec[In any] struct {
	// workflow 用于模型选择、日志与指标
	workflow   string
	prompt     workflowprompt.PromptID
	schemaName string
	schema     func() map[string]any
	vars       func(in In) map[string]any
	options    func(in In) wfmodel.GenerateOptions
}

// JSONChain 通用的结构化生成链，首次调用时编译
type JSONChain[In any] struct {
	factory workflowport.ChatModelFactory
	spec    jsonChainSpec[In]

	chainOnce sync.Once
	chain     compose.Runnable[In, *wfmodel.JSONOutput]
	chainErr  error
}

func newJSONChain[In any](factory workflowport.ChatModelFactory, spec jsonChainSpec[In]) *JSONChain[In] {
	return &JSONChain[In]{factory: factory, spec: spec}
}

// Invoke 执行生成，返回截取出的 JSON 与渲染后的提示词
func (c *JSONChain[In]) Invoke(ctx context.Context, in In) (*wfmodel.JSONOutput, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	chain, err := c.getChain()
	if err != nil {
		return nil, err
	}
	return chain.Invoke(ctx, in)
}

type jsonChainState[In any] struct {
	In       In
	Opts     wfmodel.GenerateOptions
	Messages []*schema.Message
	Prompt   string
	OutMsg   *schema.Message
}

func (c *JSONChain[In]) getChain() (compose.Runnable[In, *wfmodel.JSONOutput], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *JSONChain[In]) buildChain(ctx context.Context) (compose.Runnable[In, *wfmodel.JSONOutput], error) {
	name := c.spec.workflow
	chain := compose.NewChain[In, *wfmodel.JSONOutput]()

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, in In) (*jsonChainState[In], error) {
			st := &jsonChainState[In]{In: in}
			if c.spec.options != nil {
				st.Opts = c.spec.options(in)
			}
			return st, nil
		}),
		compose.WithNodeName(name+".init"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *jsonChainState[In]) (*jsonChainState[In], error) {
			tpl, err := defaultPromptRegistry.ChatTemplate(c.spec.prompt)
			if err != nil {
				return nil, err
			}
			msgs, err := tpl.Format(ctx, c.spec.vars(st.In))
			if err != nil {
				return nil, err
			}
			st.Messages = msgs
			st.Prompt = userPrompt(msgs)
			return st, nil
		}),
		compose.WithNodeName(name+".template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *jsonChainState[In]) (*jsonChainState[In], error) {
			provider := strings.TrimSpace(st.Opts.Provider)
			ctx = llmctx.WithWorkflowProvider(ctx, name, provider)
			chatModel, err := c.factory.Get(ctx, provider)
			if err != nil {
				return nil, err
			}

			outMsg, err := chatModel.Generate(ctx, st.Messages, c.modelOptions(st.Opts, true)...)
			if err != nil && wfnode.IsResponseFormatUnsupportedError(err) {
				logger.Warn(ctx, "llm json_schema not supported, fallback to prompt-only",
					"workflow", name,
					"provider", provider,
					"model", st.Opts.Model,
					"error", err.Error(),
				)
				outMsg, err = chatModel.Generate(ctx, st.Messages, c.modelOptions(st.Opts, false)...)
			}
			if err != nil {
				return nil, err
			}
			if outMsg == nil {
				return nil, fmt.Errorf("empty llm response")
			}
			st.OutMsg = outMsg
			return st, nil
		}),
		compose.WithNodeName(name+".llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *jsonChainState[In]) (*wfmodel.JSONOutput, error) {
			if st == nil || st.OutMsg == nil {
				return nil, fmt.Errorf("state is nil")
			}
			raw := st.OutMsg.Content
			out := &wfmodel.JSONOutput{
				JSON:   wfnode.ExtractJSONObject(raw),
				Raw:    raw,
				Prompt: st.Prompt,
				Meta: wfmodel.LLMUsageMeta{
					Provider:    st.Opts.Provider,
					Model:       st.Opts.Model,
					GeneratedAt: time.Now(),
				},
			}
			if out.JSON == "" {
				return nil, fmt.Errorf("llm returned empty content")
			}
			if rm := st.OutMsg.ResponseMeta; rm != nil && rm.Usage != nil {
				out.Meta.PromptTokens = rm.Usage.PromptTokens
				out.Meta.CompletionTokens = rm.Usage.CompletionTokens
			}
			return out, nil
		}),
		compose.WithNodeName(name+".finalize"),
	)

	return chain.Compile(ctx)
}

func (c *JSONChain[In]) modelOptions(o wfmodel.GenerateOptions, enableSchema bool) []model.Option {
	opts := make([]model.Option, 0, 4)
	if o.Temperature != nil {
		opts = append(opts, model.WithTemperature(*o.Temperature))
	}
	if o.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*o.MaxTokens))
	}
	if m := strings.TrimSpace(o.Model); m != "" {
		opts = append(opts, model.WithModel(m))
	}

	if enableSchema && c.spec.schema != nil {
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{
				"type": "json_schema",
				"json_schema": map[string]any{
					"name":   c.spec.schemaName,
					"strict": false,
					"schema": c.spec.schema(),
				},
			},
		}))
	}
	return opts
}

func userPrompt(msgs []*schema.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i] != nil && msgs[i].Role == schema.User {
			return msgs[i].Content
		}
	}
	return ""
}

func stringProp() map[string]any {
	return map[string]any{"type": "string"}
}

func arrayOf(items map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": items}
}

// objectOf 构造 additionalProperties=false 的对象 schema
func objectOf(required []any, props map[string]any) map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             required,
		"properties":           props,
	}
}
