package stt

import (
	"context"
	"strings"
)

type Provider interface {
	Transcribe(ctx context.Context, audio []byte, language string) (text string, confidence float64, err error)
	Close() error
}

// NormalizeLanguage maps short agent language codes onto BCP-47 tags.
func NormalizeLanguage(v string) string {
	v = strings.TrimSpace(v)
	switch v {
	case "id", "id-ID":
		return "id-ID"
	case "en", "en-US":
		return "en-US"
	default:
		if v == "" {
			return "en-US"
		}
		return v
	}
}
