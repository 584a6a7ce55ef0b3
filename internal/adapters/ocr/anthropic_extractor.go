package ocr

import (
	"context"
	"delivery-schedule-bot/internal/platform/metrics"
	"delivery-schedule-bot/internal/platform/obs"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const DefaultModel = "claude-sonnet-4-5"

const extractPrompt = "This is a photo of one or more parcel labels. " +
	"List every delivery address you can read, one address per line, " +
	"with each address on a single line and nothing else. " +
	"Leave out recipient names, phone numbers and tracking codes. " +
	"If no address is readable, reply with the single word NONE."

// Media types accepted for image input.
var supportedMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// AnthropicExtractor reads delivery addresses off label photos with a
// vision-capable Claude model. It implements the AddressExtractor port.
type AnthropicExtractor struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicExtractor builds an extractor. Extra options are passed to the
// SDK client after the API key, so callers can override the base URL or
// retry policy.
func NewAnthropicExtractor(apiKey, model string, opts ...option.RequestOption) (*AnthropicExtractor, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("anthropic extractor: api key is required")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}

	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicExtractor{
		client:    anthropic.NewClient(all...),
		model:     anthropic.Model(model),
		maxTokens: 1024,
	}, nil
}

func (e *AnthropicExtractor) ExtractAddresses(ctx context.Context, image []byte) (_ []string, err error) {
	defer obs.Time(ctx, "anthropic.ExtractAddresses")(&err)

	if len(image) == 0 {
		return nil, errors.New("extract addresses: image is empty")
	}

	mediaType := http.DetectContentType(image)
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	if !supportedMediaTypes[mediaType] {
		return nil, fmt.Errorf("extract addresses: unsupported media type %q", mediaType)
	}

	start := time.Now()
	resp, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mediaType, base64.StdEncoding.EncodeToString(image)),
				anthropic.NewTextBlock(extractPrompt),
			),
		},
	})
	metrics.ProviderLatency.WithLabelValues("anthropic", "extract_addresses").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("extract addresses: %w", err)
	}

	var text strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
			text.WriteString("\n")
		}
	}

	return parseAddressLines(text.String()), nil
}

// parseAddressLines turns the model reply into addresses. Blank lines, list
// markers and a bare NONE are dropped; duplicates keep their first position.
func parseAddressLines(reply string) []string {
	seen := make(map[string]bool)
	out := []string{}

	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• ")
		line = trimNumbering(line)
		line = strings.Join(strings.Fields(line), " ")
		if line == "" || strings.EqualFold(line, "none") {
			continue
		}
		if seen[line] {
			continue
		}
		seen[line] = true
		out = append(out, line)
	}
	return out
}

// trimNumbering strips an "1." or "2)" list prefix.
func trimNumbering(line string) string {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(line) {
		return line
	}
	if line[i] == '.' || line[i] == ')' {
		return strings.TrimSpace(line[i+1:])
	}
	return line
}
