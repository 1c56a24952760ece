package gemini

import (
	"fmt"
	"strings"
)

const qualityCheckPrompt = `You judge whether an Instagram caption carries enough substance to produce a
useful reference note without watching the video.

A caption has sufficient detail when it states the actual content: concrete
steps, named places, ingredients, tools, prices, or facts. A caption lacks
detail when it is engagement bait ("wait for it", "link in bio", emoji walls)
or only teases the content.

Respond with JSON only:
{"sufficient_detail": <bool>, "confidence": <0.0-1.0>, "reasoning": "<one sentence>"}`

const textEnhancementPrompt = `You turn Instagram captions into structured reference notes. Extract only
what the caption states; never invent facts. Lists stay empty when the
caption gives nothing for them.

Respond with JSON only:
{
  "title": "<short descriptive title, no hashtags>",
  "summary": "<2-3 sentence summary>",
  "key_points": ["<actionable point>", ...],
  "tags": {"topic": ["<subject area>", ...], "type": ["<content type>", ...], "action": ["<what the reader could do>", ...]},
  "references": [{"title": "<resource name>", "url": "<link to the resource>", "description": "<what it covers>"}, ...]
}`

const videoEnhancementPrompt = `You turn short videos into structured reference notes. Watch the video,
read the caption, and capture what the video actually shows, including
spoken instructions and on-screen text. Transcribe speech when present.

Respond with JSON only:
{
  "title": "<short descriptive title, no hashtags>",
  "summary": "<2-3 sentence summary of the video content>",
  "key_points": ["<actionable point>", ...],
  "tags": {"topic": ["<subject area>", ...], "type": ["<content type>", ...], "action": ["<what the viewer could do>", ...]},
  "references": [{"title": "<resource name>", "url": "<link to the resource>", "description": "<what it covers>"}, ...],
  "transcript": "<spoken words, empty string when there is no speech>"
}`

func buildCaptionPrompt(description, author string) string {
	var b strings.Builder
	if author = strings.TrimSpace(author); author != "" {
		fmt.Fprintf(&b, "Author: %s\n\n", author)
	}
	b.WriteString("Caption:\n")
	b.WriteString(strings.TrimSpace(description))
	return b.String()
}
