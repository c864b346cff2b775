package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

type IChatGPT interface {
	Paraphrase(ctx context.Context, glosses string) (string, error)
}

const paraphrasePrompt = `Bạn là trợ lý phiên dịch ngôn ngữ ký hiệu tiếng Việt.
Người dùng gửi một chuỗi từ khóa (gloss) được nhận diện theo thứ tự từ video ngôn ngữ ký hiệu.
Hãy viết lại thành MỘT câu tiếng Việt tự nhiên, ngắn gọn, giữ nguyên ý nghĩa và thứ tự.

Quy tắc:
- Chỉ trả về câu, không giải thích, không dấu ngoặc kép
- Không thêm thông tin không có trong chuỗi từ khóa
- Tối đa 16 từ`

type chatGPTService struct {
	client *openai.Client
	model  string
}

func NewChatGPT() IChatGPT {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_CHAT_MODEL")

	if model == "" {
		model = openai.GPT4oMini
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &chatGPTService{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (c *chatGPTService) Paraphrase(ctx context.Context, glosses string) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: paraphrasePrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: glosses,
		},
	}

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			Temperature: 0.3,
			MaxTokens:   64,
		},
	)
	if err != nil {
		return "", fmt.Errorf("ChatGPT API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from ChatGPT")
	}

	sentence := strings.Trim(strings.TrimSpace(resp.Choices[0].Message.Content), `"`)
	if sentence == "" {
		return "", errors.New("empty paraphrase from ChatGPT")
	}

	return sentence, nil
}
