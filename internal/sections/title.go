package sections

import (
	"regexp"
	"strings"

	"github.com/KaramelBytes/docshape-cli/internal/utils"
)

const (
	minTitleRunes = 3
	maxTitleRunes = 150
)

var (
	bulletRe        = regexp.MustCompile(`[●•]\s*([^<\n]+)`)
	bulletParaRe    = regexp.MustCompile(`(?i)<p\b[^>]*>.*?[●•]\s*([^<]+).*?</p>`)
	strongRe        = regexp.MustCompile(`(?i)<strong[^>]*>(.*?)</strong>`)
	paragraphRe     = regexp.MustCompile(`(?i)<p\b[^>]*>(.*?)</p>`)
	numberedRe      = regexp.MustCompile(`(\d+(?:\.\d+)*\.?\s*[^<\n]{3,100})`)
	h1Re            = regexp.MustCompile(`(?is)<h1\b[^>]*>(.*?)</h1>`)
	boldParagraphRe = regexp.MustCompile(`(?is)<p\b[^>]*>\s*<strong[^>]*>(.*?)</strong>\s*</p>`)
	anyParagraphRe  = regexp.MustCompile(`(?is)<p\b[^>]*>(.*?)</p>`)
	anyTagRe        = regexp.MustCompile(`<[^>]*>`)
)

// UnknownTitle is used when a document has no recognizable title.
const UnknownTitle = "未知文档标题"

func bounded(s string) bool {
	n := utils.RuneLen(s)
	return n >= minTitleRunes && n <= maxTitleRunes
}

func lastSubmatch(re *regexp.Regexp, text string) string {
	ms := re.FindAllStringSubmatch(text, -1)
	if len(ms) == 0 {
		return ""
	}
	return ms[len(ms)-1][1]
}

func firstSubmatch(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// titleStrategies run in order over the HTML preceding a table.
var titleStrategies = []func(text string) string{
	func(text string) string { return strings.TrimSpace(firstSubmatch(bulletRe, text)) },
	func(text string) string { return utils.CleanText(firstSubmatch(bulletParaRe, text)) },
	func(text string) string { return utils.CleanText(lastSubmatch(strongRe, text)) },
	func(text string) string {
		t := utils.CleanText(lastSubmatch(paragraphRe, text))
		if strings.Contains(t, "表格") || strings.Contains(strings.ToLower(t), "table") {
			return ""
		}
		return t
	},
	func(text string) string {
		// numbers inside tag attributes are not titles
		visible := anyTagRe.ReplaceAllString(text, "\n")
		return strings.TrimSpace(firstSubmatch(numberedRe, visible))
	},
}

// NearbyTitle resolves a section title from the HTML that precedes a table.
// The first candidate within the length bounds wins; "" means none did.
func NearbyTitle(text string) string {
	text = utils.StripNonContent(text)
	for _, s := range titleStrategies {
		if t := s(text); t != "" && bounded(t) {
			return t
		}
	}
	return ""
}

// ExtractTitle finds the document title: the first h1, else a short bold
// paragraph, else the first paragraph of reasonable length.
func ExtractTitle(html string) string {
	if t := utils.CleanText(firstSubmatch(h1Re, html)); t != "" {
		return t
	}
	if t := utils.CleanText(firstSubmatch(boldParagraphRe, html)); t != "" && utils.RuneLen(t) < 100 {
		return t
	}
	for _, m := range anyParagraphRe.FindAllStringSubmatch(html, -1) {
		t := utils.CleanText(m[1])
		if n := utils.RuneLen(t); n > 5 && n < 150 {
			return t
		}
	}
	return UnknownTitle
}
