package model

// AssistantProfile 是随回合透传给生成服务的风格参数包。
// 核心流程不对其做校验，仅原样传递。
type AssistantProfile struct {
	Language    string   `json:"language,omitempty"`
	Tone        string   `json:"tone,omitempty"`
	Verbosity   string   `json:"verbosity,omitempty"`
	Style       string   `json:"style,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}
