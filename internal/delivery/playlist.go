package delivery

import (
	"fmt"
	"regexp"
	"strings"
)

var keyURIPattern = regexp.MustCompile(`URI="([^"]+)"`)

// PlaylistRewriter transforms a generated manifest so every segment line
// carries a gateway URL with a fresh capability token and the key directive
// points at the gateway key endpoint. Everything else passes through
// unchanged, so the output stays a valid manifest.
type PlaylistRewriter struct {
	tokens  *TokenService
	baseURL string
}

// NewPlaylistRewriter returns a rewriter that emits URLs under baseURL
// (scheme://host, no trailing slash).
func NewPlaylistRewriter(tokens *TokenService, baseURL string) *PlaylistRewriter {
	return &PlaylistRewriter{tokens: tokens, baseURL: strings.TrimRight(baseURL, "/")}
}

// SegmentURL renders the tokenized gateway URL for one segment.
func (p *PlaylistRewriter) SegmentURL(lessonID int64, segment, token string) string {
	return fmt.Sprintf("%s/segments/%d/%s?token=%s", p.baseURL, lessonID, segment, token)
}

// KeyURL renders the gateway key-delivery URL for a lesson. The key endpoint
// re-runs authorization itself, so no token is embedded.
func (p *PlaylistRewriter) KeyURL(lessonID int64) string {
	return fmt.Sprintf("%s/lessons/%d/key", p.baseURL, lessonID)
}

// Rewrite replaces each segment reference with a tokenized gateway URL minted
// for (lessonID, segment, userID), and each key URI with the gateway key URL.
func (p *PlaylistRewriter) Rewrite(manifest string, lessonID, userID int64) (string, error) {
	lines := strings.Split(manifest, "\n")
	out := make([]string, 0, len(lines))

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasSuffix(trimmed, ".ts") && !strings.HasPrefix(trimmed, "#"):
			token, err := p.tokens.Issue(lessonID, trimmed, userID)
			if err != nil {
				return "", fmt.Errorf("issue segment token: %w", err)
			}
			out = append(out, p.SegmentURL(lessonID, trimmed, token))
		case keyURIPattern.MatchString(line):
			out = append(out, keyURIPattern.ReplaceAllString(line, fmt.Sprintf(`URI="%s"`, p.KeyURL(lessonID))))
		default:
			out = append(out, line)
		}
	}

	return strings.Join(out, "\n"), nil
}
