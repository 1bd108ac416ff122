package transform

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nyaruka/phonenumbers"
	"golang.org/x/net/html"
)

// blockTags end a line when HTML is reduced to text.
var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "ul": true, "ol": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// CleanHTML reduces an HTML fragment to plain text, one line per block.
// Strings without markup are only whitespace-normalized.
func CleanHTML(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "<") {
		return normalizeLines(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return normalizeLines(s)
	}
	doc.Find("script, style").Remove()

	var b strings.Builder
	for _, n := range doc.Nodes {
		writeText(&b, n)
	}
	return normalizeLines(b.String())
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.Data == "br" {
			b.WriteByte('\n')
			return
		}
		if blockTags[n.Data] {
			b.WriteByte('\n')
			if n.Data == "li" {
				b.WriteString("- ")
			}
			defer b.WriteByte('\n')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
}

func normalizeLines(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// phoneRegion is the default region for numbers written without a
// country code.
const phoneRegion = "UZ"

var (
	phoneSeparators = regexp.MustCompile(`[,;/\n]|\s(?:yoki|или|or)\s`)
	// Local extension notes the parser does not know, e.g. "(ichki 12)".
	phoneExtensions = regexp.MustCompile(`(?i)\([^)]*\pL[^)]*\)|(?:ichki|qo'shimcha|доб\.?|вн\.?)\s*\d+`)
)

// NormalizePhone returns the first valid number in s in E.164 form. Lists
// are split on separators and extensions are dropped. When no candidate is
// valid the first merely possible one is used; otherwise the result is "".
func NormalizePhone(s string) string {
	var fallback string
	for _, part := range phoneSeparators.Split(s, -1) {
		part = strings.TrimSpace(phoneExtensions.ReplaceAllString(part, " "))
		if part == "" {
			continue
		}
		num, ok := parsePhone(part)
		if num == nil {
			continue
		}
		if ok {
			return phonenumbers.Format(num, phonenumbers.E164)
		}
		if fallback == "" && phonenumbers.IsPossibleNumber(num) {
			fallback = phonenumbers.Format(num, phonenumbers.E164)
		}
	}
	return fallback
}

// parsePhone parses one candidate. A leading trunk "8" on a local number
// is retried without it.
func parsePhone(s string) (*phonenumbers.PhoneNumber, bool) {
	num, err := phonenumbers.Parse(s, phoneRegion)
	if err == nil && phonenumbers.IsValidNumber(num) {
		return num, true
	}
	if trimmed := strings.TrimLeft(s, " ("); strings.HasPrefix(trimmed, "8") {
		if alt, altErr := phonenumbers.Parse(trimmed[1:], phoneRegion); altErr == nil && phonenumbers.IsValidNumber(alt) {
			return alt, true
		}
	}
	if err != nil {
		return nil, false
	}
	return num, false
}

// NormalizeTelegram turns links and bare handles into "@handle".
func NormalizeTelegram(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"https://", "http://", "www."} {
		s = strings.TrimPrefix(s, prefix)
	}
	for _, host := range []string{"t.me/", "telegram.me/"} {
		s = strings.TrimPrefix(s, host)
	}
	s = strings.TrimPrefix(s, "@")
	if i := strings.IndexAny(s, "/?"); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return ""
	}
	return "@" + s
}
