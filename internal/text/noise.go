package text

import (
	"regexp"
	"strings"
)

var (
	editLinkRe  = regexp.MustCompile(`(?mi)^\[edit[^\]]*\]\([^\)]+\)\s*$`)
	tocRe       = regexp.MustCompile(`(?mi)^#{1,3}\s+(?:table of )?contents?\s*\n(?:\s*[-*]\s*\[.*?\]\(#.*?\)\s*\n)*`)
	skipLinkRe  = regexp.MustCompile(`(?mi)^\s*skip to (?:main )?content\s*$`)
	linkLineRe  = regexp.MustCompile(`^\s*[-*]?\s*\[.*?\]\(.*?\)\s*$`)
	installRe   = regexp.MustCompile(`(?mi)^\s*(npm|pnpm|yarn|pip|cargo|brew|apt|go|forge)\s+(install|add|get|i)\b`)
	buttonRe    = regexp.MustCompile(`(?i)^\s*(connect wallet|launch app|sign in|log in|accept( all)? cookies)\s*$`)
	blankRunsRe = regexp.MustCompile(`\n{3,}`)
)

// CleanMarkdownNoise strips scraped-page boilerplate that never helps answer a
// question: edit links, generated tables of contents and skip links.
func CleanMarkdownNoise(text string) string {
	text = editLinkRe.ReplaceAllString(text, "")
	text = tocRe.ReplaceAllString(text, "")
	text = skipLinkRe.ReplaceAllString(text, "")
	return blankRunsRe.ReplaceAllString(text, "\n\n")
}

// IsNoiseChunk reports chunks too low-value to embed. The heuristics are
// conservative; a borderline chunk goes through.
func IsNoiseChunk(content string) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return true
	}

	// Bare labels such as "Overview" or "Connect Wallet".
	words := strings.Fields(trimmed)
	if len(trimmed) < 30 && len(words) <= 3 && !strings.Contains(trimmed, "```") && !strings.Contains(trimmed, "\n") {
		return true
	}

	lines := nonEmptyLines(trimmed)
	if len(lines) > 0 && len(lines) <= 3 {
		// Install-only commands or leftover UI buttons.
		chrome := true
		for _, line := range lines {
			if !installRe.MatchString(line) && !buttonRe.MatchString(line) {
				chrome = false
				break
			}
		}
		if chrome {
			return true
		}
	}

	// Navigation lists: mostly markdown links.
	if len(lines) > 2 {
		links := 0
		for _, line := range lines {
			if linkLineRe.MatchString(line) {
				links++
			}
		}
		if float64(links)/float64(len(lines)) > 0.7 {
			return true
		}
	}

	lower := strings.ToLower(trimmed)
	if len(trimmed) < 200 && (strings.Contains(lower, "©") || strings.Contains(lower, "all rights reserved") ||
		strings.Contains(lower, "terms of service") || strings.Contains(lower, "privacy policy")) {
		return true
	}

	return false
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
