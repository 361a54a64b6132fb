package categorize

import (
	"strings"

	"github.com/TobiSchelling/portfolio-necromancer/internal/model"
)

var writingKeywords = []string{
	"article", "blog", "post", "writing", "content", "copy", "documentation",
	"guide", "tutorial", "story", "book", "whitepaper", "report", "paper",
	"essay", "document",
}

var designKeywords = []string{
	"design", "mockup", "ui", "ux", "interface", "wireframe", "prototype",
	"figma", "sketch", "graphic", "logo", "brand", "illustration", "visual",
	"layout", "style", "theme", "image", "photo", "artwork",
}

var codeKeywords = []string{
	"code", "programming", "development", "software", "app", "application",
	"website", "web", "api", "backend", "frontend", "script", "function",
	"algorithm", "database", "server", "github", "repository", "commit",
	"pull request", "deploy", "python", "javascript", "java", "react", "node",
	"django",
}

// keywordSets is ordered by tie-break priority.
var keywordSets = []struct {
	category model.Category
	words    []string
}{
	{model.CategoryWriting, writingKeywords},
	{model.CategoryDesign, designKeywords},
	{model.CategoryCode, codeKeywords},
}

// KeywordScores counts, per category, how many of its keywords occur in the
// project's lowercased title, description and tags. Each keyword counts once.
func KeywordScores(p *model.Project) map[model.Category]int {
	text := strings.ToLower(p.Title + " " + p.Description + " " + strings.Join(p.Tags, " "))
	scores := make(map[model.Category]int, len(keywordSets))
	for _, set := range keywordSets {
		n := 0
		for _, w := range set.words {
			if strings.Contains(text, w) {
				n++
			}
		}
		scores[set.category] = n
	}
	return scores
}

// ByKeywords picks the category with the strictly highest keyword score.
// Ties go Writing, then Design, then Code. No hits at all means Miscellaneous.
func ByKeywords(p *model.Project) model.Category {
	scores := KeywordScores(p)
	best, bestScore := model.CategoryMisc, 0
	for _, set := range keywordSets {
		if s := scores[set.category]; s > bestScore {
			best, bestScore = set.category, s
		}
	}
	return best
}
