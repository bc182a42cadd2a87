package models

// ClientMessage is the JSON shape of a text frame sent by a front-end.
type ClientMessage struct {
	UserText string `json:"userText"`
}

// OutboundMessage is what every connected front-end receives. Exactly one of
// Text, Audio or Error is set.
type OutboundMessage struct {
	Text  string         `json:"text,omitempty"`
	Audio string         `json:"audio,omitempty"` // base64 WAV container
	Error *OutboundError `json:"error,omitempty"`
}

type OutboundError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func TextMessage(text string) OutboundMessage { return OutboundMessage{Text: text} }

func AudioMessage(b64 string) OutboundMessage { return OutboundMessage{Audio: b64} }

func ErrorMessage(code, message string) OutboundMessage {
	return OutboundMessage{Error: &OutboundError{Code: code, Message: message}}
}
