package sections

import (
	"regexp"
	"strconv"

	"github.com/KaramelBytes/docshape-cli/internal/markup"
	"github.com/KaramelBytes/docshape-cli/internal/utils"
)

// Heading is one detected heading occurrence. Start and End are byte offsets
// of the whole match in the scanned HTML.
type Heading struct {
	Start int
	End   int
	Level int
	Title string
}

// Pattern is a heading convention and the headings it found.
type Pattern struct {
	Name     string
	Headings []Heading
}

type candidate struct {
	name  string
	re    *regexp.Regexp
	level func(m []string) int
	title func(m []string) string
}

func fixed(n int) func([]string) int { return func([]string) int { return n } }

func group(i int) func([]string) string {
	return func(m []string) string { return m[i] }
}

// candidates in priority order; ties keep the earlier pattern.
var candidates = []candidate{
	{
		name: "html-headers",
		re:   regexp.MustCompile(`(?i)<h([1-6])\b[^>]*>(.*?)</h([1-6])\s*>`),
		level: func(m []string) int {
			n, _ := strconv.Atoi(m[1])
			return n
		},
		title: group(2),
	},
	{
		name:  "numbered-bold",
		re:    regexp.MustCompile(`(?i)<p\b[^>]*>\s*<strong[^>]*>\s*(\d+\.?\s*)(.*?)</strong>`),
		level: fixed(1),
		title: func(m []string) string {
			if utils.CleanText(m[2]) != "" {
				return m[2]
			}
			return m[1]
		},
	},
	{
		name:  "bold-headers",
		re:    regexp.MustCompile(`(?i)<p\b[^>]*>\s*<strong[^>]*>(.*?)</strong>\s*</p>`),
		level: fixed(2),
		title: group(1),
	},
	{
		name:  "bullet",
		re:    regexp.MustCompile(`(?i)<p\b[^>]*>\s*[●•]\s*(.*?)</p>`),
		level: fixed(3),
		title: group(1),
	},
}

// DetectHeaderPattern scores every candidate convention over the document
// and returns the one with the most headings. Matches inside tables are not
// headings. An empty Name means no heading of any kind was found.
func DetectHeaderPattern(html string) Pattern {
	tables := markup.Find(html, "table", nil)
	best := Pattern{}
	for _, c := range candidates {
		hs := c.find(html, tables)
		if len(hs) > len(best.Headings) {
			best = Pattern{Name: c.name, Headings: hs}
		}
	}
	return best
}

func (c candidate) find(html string, tables []markup.Element) []Heading {
	var out []Heading
	for _, loc := range c.re.FindAllStringSubmatchIndex(html, -1) {
		if insideAny(loc[0], tables) {
			continue
		}
		m := make([]string, len(loc)/2)
		for i := range m {
			if loc[2*i] >= 0 {
				m[i] = html[loc[2*i]:loc[2*i+1]]
			}
		}
		// an <hN> must be closed by </hN>
		if c.name == "html-headers" && m[1] != m[3] {
			continue
		}
		out = append(out, Heading{
			Start: loc[0],
			End:   loc[1],
			Level: c.level(m),
			Title: utils.CleanText(c.title(m)),
		})
	}
	return out
}

func insideAny(pos int, els []markup.Element) bool {
	for _, el := range els {
		if pos >= el.Start && pos < el.End {
			return true
		}
	}
	return false
}
