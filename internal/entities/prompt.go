// Package entities holds helpers shared by the handling-entity platforms.
// Each platform lives in its own subpackage and registers itself with
// pkg/platform from init().
package entities

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"aitask/pkg/platform"
)

// MaxAttachmentSize caps how much of an attachment is downloaded.
const MaxAttachmentSize = 20 << 20

// SystemPrompt returns the system message for a data generation task.
func SystemPrompt(task platform.GenDataTask) string {
	var b strings.Builder
	b.WriteString("You are a Home Assistant AI task. Complete the task named ")
	fmt.Fprintf(&b, "%q using the user's instructions.", task.Name)
	if task.Structure != nil {
		schema, err := json.Marshal(task.Structure)
		if err == nil {
			b.WriteString(" Respond only with a JSON object matching this structure: ")
			b.Write(schema)
		}
	}
	return b.String()
}

// UserPrompt returns the instructions, followed by a line per attachment
// that the model cannot see directly.
func UserPrompt(task platform.GenDataTask, inline func(platform.Attachment) bool) string {
	var b strings.Builder
	b.WriteString(task.Instructions)
	for _, att := range task.Attachments {
		if inline != nil && inline(att) {
			continue
		}
		fmt.Fprintf(&b, "\n\nAttachment (%s): %s", att.MIMEType, att.URL)
	}
	return b.String()
}

// IsImage reports whether an attachment is an image.
func IsImage(att platform.Attachment) bool {
	return strings.HasPrefix(strings.ToLower(att.MIMEType), "image/")
}

// ParseResult turns model output into task data. Without a structure the
// text is returned as is. With one, the text must be a JSON object; code
// fences around it are ignored.
func ParseResult(text string, structure map[string]any) (any, error) {
	if structure == nil {
		return text, nil
	}

	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(trimmed), &data); err != nil {
		return nil, fmt.Errorf("model response is not valid JSON: %w", err)
	}
	return data, nil
}

// Download fetches an attachment body, up to MaxAttachmentSize bytes.
func Download(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxAttachmentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if len(data) > MaxAttachmentSize {
		return nil, fmt.Errorf("attachment %s exceeds %d bytes", url, MaxAttachmentSize)
	}
	return data, nil
}
