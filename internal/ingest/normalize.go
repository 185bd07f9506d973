// Package ingest implements the extraction-and-classification engine:
// raw email in, ledger merge out. All per-message failures are local
// skips; nothing here aborts a scan.
package ingest

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// RawMessage is what the message supply hands the pipeline: headers
// already decoded, body still HTML or plain text.
type RawMessage struct {
	// MessageID must come from a stable protocol-level source (IMAP
	// Message-Id header or a uid fallback), never from content, so an
	// email rewritten in place still dedups correctly.
	MessageID string
	From      string
	To        string
	Subject   string
	Date      time.Time
	TextBody  string
	HTMLBody  string
}

// NormalizedMessage is the immutable plain-text form used for matching.
// Created once per raw email.
type NormalizedMessage struct {
	MessageID  string
	Sender     string
	Recipient  string
	Subject    string
	ReceivedAt time.Time
	BodyText   string
}

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	spaceRunPattern   = regexp.MustCompile(`[ \t]+`)
	newlineRunPattern = regexp.MustCompile(`\n{2,}`)
)

// blockTags are elements whose boundaries separate semantically
// distinct fields (address lines in particular), so they become line
// breaks instead of being collapsed away.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "tr": true, "td": true,
	"th": true, "li": true, "table": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true,
}

// Normalize converts a raw email into its matchable plain-text form.
// HTML bodies are preferred since retailers send their order data in
// the HTML part; an unparseable body degrades to empty text rather
// than failing the pipeline.
func Normalize(raw RawMessage) NormalizedMessage {
	body := raw.HTMLBody
	text := ""
	if body != "" {
		text = htmlToText(body)
	}
	if text == "" {
		text = collapseWhitespace(raw.TextBody)
	}

	return NormalizedMessage{
		MessageID:  raw.MessageID,
		Sender:     strings.TrimSpace(raw.From),
		Recipient:  strings.TrimSpace(raw.To),
		Subject:    strings.TrimSpace(raw.Subject),
		ReceivedAt: raw.Date,
		BodyText:   text,
	}
}

// htmlToText strips markup line-preservingly: block element boundaries
// become newlines, scripts and styles are dropped, entities decoded by
// the tokenizer. Falls back to a regex strip if tokenizing produced
// nothing usable.
func htmlToText(body string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(body))
	var b strings.Builder
	skipDepth := 0

	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				if tt == html.StartTagToken {
					skipDepth++
				}
				continue
			}
			if blockTags[tag] {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
			if blockTags[tag] {
				b.WriteByte('\n')
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}

	text := collapseWhitespace(b.String())
	if text == "" && strings.TrimSpace(body) != "" {
		text = collapseWhitespace(htmlTagPattern.ReplaceAllString(body, " "))
	}
	return text
}

// collapseWhitespace reduces runs of spaces to one space and runs of
// blank lines to a single line break, trimming each line.
func collapseWhitespace(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = spaceRunPattern.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = newlineRunPattern.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}
