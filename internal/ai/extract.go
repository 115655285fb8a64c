package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Request runs one generation step: fn applied to input.
func Request(ctx context.Context, c Completer, fn Function, input string) (string, error) {
	out, err := c.Complete(ctx, []Message{fn.Message(input)})
	if err != nil {
		return "", fmt.Errorf("%s: %w", fn.Name, err)
	}
	return out, nil
}

// StripCodeFence returns the body of the first Markdown code fence in text,
// or the trimmed text when it holds no fence.
func StripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	start := strings.Index(trimmed, "```")
	if start < 0 {
		return trimmed
	}

	body := trimmed[start+3:]
	// Drop the info string ("json", "rust", ...) on the opening line.
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		return trimmed
	}

	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// ExtractJSON prepares a generated response for decoding. With repair set,
// syntax slips such as trailing commas or missing quotes are fixed first.
func ExtractJSON(text string, repair bool) (string, error) {
	body := StripCodeFence(text)
	if body == "" {
		return "", fmt.Errorf("empty response")
	}
	if !repair {
		return body, nil
	}

	fixed, err := jsonrepair.JSONRepair(body)
	if err != nil {
		return "", fmt.Errorf("repair json: %w", err)
	}
	return fixed, nil
}
