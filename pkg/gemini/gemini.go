package gemini

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type IGemini interface {
	Paraphrase(ctx context.Context, glosses string) (string, error)
	Close()
}

const paraphraseInstruction = `Viết lại chuỗi từ khóa ngôn ngữ ký hiệu tiếng Việt sau thành MỘT câu tiếng Việt tự nhiên.
Giữ nguyên ý nghĩa và thứ tự, không thêm thông tin, chỉ trả về câu.`

type geminiClient struct {
	apiKey    string
	modelName string
	client    *genai.Client
}

func NewGeminiClient() (IGemini, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")

	modelName := os.Getenv("GEMINI_MODEL_NAME")
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &geminiClient{
		apiKey:    apiKey,
		modelName: modelName,
		client:    client,
	}, nil
}

func (g *geminiClient) Paraphrase(ctx context.Context, glosses string) (string, error) {
	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(0.3)
	model.SetMaxOutputTokens(64)
	model.SystemInstruction = genai.NewUserContent(genai.Text(paraphraseInstruction))

	res, err := model.GenerateContent(ctx, genai.Text(glosses))
	if err != nil {
		return "", err
	}

	return sentenceFromResponse(res)
}

// sentenceFromResponse takes the first text part of the first candidate,
// minus surrounding whitespace and quotes.
func sentenceFromResponse(res *genai.GenerateContentResponse) (string, error) {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no response from Gemini API")
	}

	text, ok := res.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", errors.New("unexpected response format from Gemini API")
	}

	sentence := strings.Trim(strings.TrimSpace(string(text)), `"`)
	if sentence == "" {
		return "", errors.New("empty paraphrase from Gemini API")
	}

	return sentence, nil
}

func (g *geminiClient) Close() {
	if g.client != nil {
		g.client.Close()
	}
}
