package vibeproxy

import (
	"slices"

	openai "github.com/sashabaranov/go-openai"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	PartText     = "text"
	PartImageURL = "image_url"
)

// ContentPart is one typed element of a multi-part message.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// Message is one conversation entry. When Parts is non-empty it is sent as
// multi-part content and Content is ignored.
type Message struct {
	Role    string        `json:"role"`
	Content string        `json:"content,omitempty"`
	Parts   []ContentPart `json:"parts,omitempty"`
}

func SystemMessage(content string) Message    { return Message{Role: RoleSystem, Content: content} }
func UserMessage(content string) Message      { return Message{Role: RoleUser, Content: content} }
func AssistantMessage(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// Clone returns a deep copy of m.
func (m Message) Clone() Message {
	out := m
	if m.Parts != nil {
		out.Parts = make([]ContentPart, len(m.Parts))
		for i, p := range m.Parts {
			out.Parts[i] = p
			if p.ImageURL != nil {
				img := *p.ImageURL
				out.Parts[i].ImageURL = &img
			}
		}
	}
	return out
}

// CloneMessages deep-copies a message slice. A nil input yields an empty,
// non-nil slice.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		msg := openai.ChatCompletionMessage{Role: m.Role}
		if len(m.Parts) == 0 {
			msg.Content = m.Content
			out = append(out, msg)
			continue
		}
		for _, p := range m.Parts {
			switch p.Type {
			case PartImageURL:
				if p.ImageURL == nil {
					continue
				}
				msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    p.ImageURL.URL,
						Detail: openai.ImageURLDetail(p.ImageURL.Detail),
					},
				})
			default:
				msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeText,
					Text: p.Text,
				})
			}
		}
		out = append(out, msg)
	}
	return slices.Clip(out)
}
