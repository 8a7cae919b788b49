package platforms

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-relay/core"
)

// Formatter rewraps a filtered document into one platform's expected body
// schema. It never alters which fields are present, only the envelope.
type Formatter interface {
	Platform() core.Platform
	Format(payload []byte) ([]byte, string, error)
}

type slackFormatter struct{}

func (slackFormatter) Platform() core.Platform { return core.PlatformSlack }

func (slackFormatter) Format(payload []byte) ([]byte, string, error) {
	return wrapTextEnvelope("text", payload)
}

type discordFormatter struct{}

func (discordFormatter) Platform() core.Platform { return core.PlatformDiscord }

func (discordFormatter) Format(payload []byte) ([]byte, string, error) {
	return wrapTextEnvelope("content", payload)
}

type teamsFormatter struct{}

func (teamsFormatter) Platform() core.Platform { return core.PlatformTeams }

func (teamsFormatter) Format(payload []byte) ([]byte, string, error) {
	card := map[string]any{
		"@type":    "MessageCard",
		"@context": "http://schema.org/extensions",
		"summary":  "Notification",
		"text":     string(payload),
	}
	encoded, err := json.Marshal(card)
	if err != nil {
		return nil, "", fmt.Errorf("platforms: encode teams card: %w", err)
	}
	return encoded, contentTypeJSON, nil
}

type webhookFormatter struct{}

func (webhookFormatter) Platform() core.Platform { return core.PlatformWebhook }

// Format passes the document through untouched; generic endpoints receive
// the filtered body as-is.
func (webhookFormatter) Format(payload []byte) ([]byte, string, error) {
	return payload, sniffContentType(payload), nil
}

const (
	contentTypeJSON = "application/json"
	contentTypeXML  = "application/xml"
)

func wrapTextEnvelope(key string, payload []byte) ([]byte, string, error) {
	envelope := map[string]string{key: string(payload)}
	encoded, err := json.Marshal(envelope)
	if err != nil {
		return nil, "", fmt.Errorf("platforms: encode %s envelope: %w", key, err)
	}
	return encoded, contentTypeJSON, nil
}

func sniffContentType(payload []byte) string {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '<' {
		return contentTypeXML
	}
	return contentTypeJSON
}

func defaultFormatters() map[core.Platform]Formatter {
	return map[core.Platform]Formatter{
		core.PlatformSlack:   slackFormatter{},
		core.PlatformDiscord: discordFormatter{},
		core.PlatformTeams:   teamsFormatter{},
		core.PlatformWebhook: webhookFormatter{},
	}
}
