package server

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"

	"local_mythmaker/orchestrator"
)

func mdToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// renderMythPage produces a standalone HTML view of a finished run: the
// myth itself plus the critique, for sharing outside the SPA.
func renderMythPage(res *orchestrator.RunResult) (string, error) {
	body, err := mdToHTML(res.Myth.Text)
	if err != nil {
		return "", err
	}
	var feedback string
	for _, item := range res.Critique.Feedback {
		feedback += "<li>" + html.EscapeString(item) + "</li>"
	}
	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>The Myth of %[1]s</title>
<style>
body { font-family: Georgia, serif; max-width: 42em; margin: 2em auto; padding: 0 1em; background: #14121a; color: #e8e3d8; }
.myth-box { border: 1px solid #4a4458; border-radius: 8px; padding: 1.5em; background: #1d1a26; font-size: 1.1em; line-height: 1.6; }
.score { color: #b8a96a; }
</style></head>
<body>
<h1>The Myth of %[1]s</h1>
<div class="myth-box">%[2]s</div>
<p class="score">Editor's score: %[3]d/10 (attempt %[4]d)</p>
<ul>%[5]s</ul>
</body>
</html>`,
		html.EscapeString(res.Location), body, res.Critique.Score, res.Myth.Iteration+1, feedback)
	return page, nil
}
