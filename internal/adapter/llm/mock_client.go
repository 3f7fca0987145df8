package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xiaot623/gogo/sopdesk/internal/domain"
)

// fact is one of the four things the consultant must learn before drafting.
type fact struct {
	name     string
	question string
	keywords []string
}

var bigFour = []fact{
	{
		name:     "channel",
		question: "这些文件通常是通过什么渠道收到的？比如邮件、微信还是网盘？",
		keywords: []string{"邮件", "邮箱", "email", "mail", "微信", "钉钉", "飞书", "企业微信", "qq", "网盘", "上传"},
	},
	{
		name:     "format",
		question: "文件是什么格式的？PDF、Excel 还是图片？",
		keywords: []string{"pdf", "excel", "xlsx", "xls", "word", "docx", "csv", "图片", "文本", "txt"},
	},
	{
		name:     "logic",
		question: "拿到文件后，您需要从中提取或计算哪些信息？",
		keywords: []string{"提取", "合并", "汇总", "统计", "录入", "识别", "计算", "核对", "extract", "merge"},
	},
	{
		name:     "output",
		question: "处理完的结果最后要交给谁，或者放到哪里？",
		keywords: []string{"发给", "发送", "归档", "推送", "导出", "转发", "输出", "报送", "send", "director", "总监"},
	},
}

var acceptKeywords = []string{"好的", "可以", "帮我做", "没问题", "行", "需要", "ok", "yes"}

// upsellPhrase marks the blueprint reply so the mock knows it is in the closing stage.
const upsellPhrase = "落地为自动化"

// MockClient is a deterministic consultant used for local runs and tests.
// It inspects the conversation for the four required facts and answers in
// the JSON envelope format. When the system prompt is not the consultant
// prompt it plays a customer instead.
type MockClient struct{}

// NewMockClient creates a new mock LLM client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// CreateChatCompletion returns a mock response.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var content string
	if isConsultant(req.Messages) {
		content = m.consult(req.Messages)
	} else {
		content = m.persona(req.Messages)
	}

	promptTokens := estimateTokens(req.Messages)
	return &ChatCompletionResponse{
		ID:      fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []Choice{
			{
				Index:        0,
				Message:      &ChatMessage{Role: "assistant", Content: content},
				FinishReason: "stop",
			},
		},
		Usage: &Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: len(content) / 4,
			TotalTokens:      promptTokens + len(content)/4,
		},
	}, nil
}

func isConsultant(msgs []ChatMessage) bool {
	return len(msgs) > 0 && msgs[0].Role == "system" && strings.Contains(msgs[0].Content, "sop_data")
}

func (m *MockClient) consult(msgs []ChatMessage) string {
	lastUser, lastAssistant := "", ""
	var userText strings.Builder
	for _, msg := range msgs {
		switch msg.Role {
		case "user":
			lastUser = msg.Content
			userText.WriteString(strings.ToLower(msg.Content))
			userText.WriteString("\n")
		case "assistant":
			lastAssistant = msg.Content
		}
	}

	if strings.Contains(lastAssistant, upsellPhrase) && containsAny(strings.ToLower(lastUser), acceptKeywords) {
		return chatJSON("太好了！请留下您的称呼和联系方式（手机或微信），我们的实施顾问会尽快与您联系。")
	}

	var missing []string
	for _, f := range bigFour {
		if !containsAny(userText.String(), f.keywords) {
			missing = append(missing, f.question)
		}
	}
	if len(missing) > 0 {
		if len(missing) > 2 {
			missing = missing[:2]
		}
		return chatJSON("明白了，我先了解几个细节。" + strings.Join(missing, ""))
	}

	return sopJSON()
}

// persona answers as a customer describing an invoice workflow. In the
// persona's view the consultant speaks as "user".
func (m *MockClient) persona(msgs []ChatMessage) string {
	asked := 0
	for _, msg := range msgs {
		if msg.Role == "user" {
			asked++
		}
	}
	switch asked {
	case 0, 1:
		return "我们每天通过邮件收到很多PDF发票，需要提取发票号码、金额和日期。"
	case 2:
		return "提取完汇总到Excel里，然后发给财务总监审核。"
	case 3:
		return "没错，就是这样。"
	default:
		return "好的，可以帮我做成自动化。"
	}
}

func chatJSON(message string) string {
	data, _ := json.Marshal(domain.Chat(message))
	return string(data)
}

func sopJSON() string {
	bp := domain.Blueprint{
		Title:   "发票信息自动提取与汇总流程",
		Summary: "自动收取邮件中的发票附件，提取关键字段并汇总报送，减少人工录入。",
		Diagram: "graph TD\n  Start[\"收到邮件\"] --> Collect[\"下载发票附件\"]\n" +
			"  Collect --> Process[\"提取号码、金额、日期\"]\n" +
			"  Process --> Output[\"汇总到 Excel 并发送\"]\n  Output --> End[\"完成\"]",
		Steps: []domain.Step{
			{Role: "财务专员", Action: "每日检查收件箱并下载发票附件", Standard: "上午十点前完成", Risk: "漏收邮件"},
			{Role: "自动化机器人", Action: "识别并提取发票号码、金额、日期", Standard: "字段完整率 100%", Risk: "扫描件模糊"},
			{Role: "自动化机器人", Action: "将结果追加到汇总表", Standard: "无重复记录"},
			{Role: "财务专员", Action: "将汇总表发送给财务总监", Standard: "每日下班前", Risk: "版本混乱"},
		},
		Diagnosis: []domain.Finding{
			{Category: "效率", Description: "人工逐张录入耗时长，容易疲劳出错。"},
			{Category: "风险", Description: "缺少重复发票校验，存在重复报销隐患。"},
		},
	}
	data, _ := json.Marshal(domain.SOP("根据您的描述，我整理了这份流程蓝图。需要我帮您把它"+upsellPhrase+"工具吗？", bp))
	return string(data)
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// estimateTokens provides a rough token count estimate.
func estimateTokens(msgs []ChatMessage) int {
	total := 0
	for _, msg := range msgs {
		total += len(msg.Content) / 4
	}
	return total
}
