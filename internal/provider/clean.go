package provider

import "strings"

// cleanMarkdownWrapper strips markdown code fencing from a completion so that
// downstream JSON parsing never sees ```json wrappers. Providers add fencing
// inconsistently, sometimes with a language tag, sometimes on the same line
// as the payload.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	content = strings.TrimPrefix(content, "```")
	// Drop a language tag such as "json" before the payload.
	if idx := strings.IndexAny(content, "\n {["); idx != -1 {
		tag := strings.TrimSpace(content[:idx])
		if tag != "" && !strings.ContainsAny(tag, "{}[]") {
			content = content[idx:]
		}
	}

	content = strings.TrimSpace(content)
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
