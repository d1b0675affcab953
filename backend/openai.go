package backend

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI implements Client using the official openai-go SDK (chat
// completions). Any OpenAI-compatible endpoint works via BaseURL.
// This provider has no search-tool round-trip; tool-enabled roles should
// run on the gemini provider.
type OpenAI struct {
	model string
	opts  []option.RequestOption
}

func NewOpenAI(cfg *Settings) (*OpenAI, error) {
	if cfg == nil {
		return nil, errors.New("openai config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing; set backend.api_key or OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{model: cfg.Model, opts: opts}, nil
}

func (o *OpenAI) Name() string        { return "openai" }
func (o *OpenAI) SupportsTools() bool { return false }

func (o *OpenAI) Generate(ctx context.Context, req *Request) (*Response, error) {
	if len(req.Tools) > 0 {
		return nil, errors.New("openai backend does not expose a search tool; use the gemini provider")
	}

	client := openai.NewClient(o.opts...)

	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, c := range req.Contents {
		if c.Role == RoleModel {
			msgs = append(msgs, openai.ChatCompletionMessageParamOfAssistant(flattenText(c)))
			continue
		}
		var parts []openai.ChatCompletionContentPartUnionParam
		for _, p := range c.Parts {
			if p.Inline != nil {
				url := fmt.Sprintf("data:%s;base64,%s", p.Inline.MIME, base64.StdEncoding.EncodeToString(p.Inline.Data))
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: url}))
				continue
			}
			if p.Text != "" {
				parts = append(parts, openai.TextContentPart(p.Text))
			}
		}
		msgs = append(msgs, openai.UserMessage(parts))
	}

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    msgs,
		Temperature: openai.Float(float64(req.Temperature)),
	})
	if err != nil {
		return nil, Unavailable(err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: empty choices")
	}
	return &Response{
		Text: resp.Choices[0].Message.Content,
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}

func flattenText(c Content) string {
	var out string
	for _, p := range c.Parts {
		if p.Text != "" {
			if out != "" {
				out += "\n"
			}
			out += p.Text
		}
	}
	return out
}
