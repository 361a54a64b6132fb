package summarize

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/TobiSchelling/portfolio-necromancer/internal/model"
)

// templates holds two fallback write-ups per category. %[1]s is the owner's
// name, %[2]s the lowercased category label.
var templates = map[model.Category][2]string{
	model.CategoryWriting: {
		"In this project, %[1]s crafted compelling content that engaged readers and delivered clear value through thoughtful writing.",
		"In this %[2]s project, %[1]s produced high-quality written content that effectively communicated key ideas and insights.",
	},
	model.CategoryDesign: {
		"In this project, %[1]s created visually stunning designs that balanced aesthetics with functionality to deliver an exceptional user experience.",
		"In this %[2]s project, %[1]s designed intuitive interfaces that enhanced usability and visual appeal.",
	},
	model.CategoryCode: {
		"In this project, %[1]s developed robust, efficient code that solved complex technical challenges and delivered measurable results.",
		"In this %[2]s project, %[1]s built scalable software solutions that met technical requirements and exceeded expectations.",
	},
	model.CategoryMisc: {
		"In this project, %[1]s demonstrated versatility and creativity by delivering exceptional results across multiple disciplines.",
		"In this unique project, %[1]s skillfully combined diverse skills to create something truly remarkable.",
	},
}

// StableHash is 32-bit FNV-1a over the UTF-8 bytes of s.
func StableHash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

// Template returns the fallback summary for p, choosing between the two
// variants for its category by StableHash(title) % 2.
func Template(p *model.Project, ownerName string) string {
	pair, ok := templates[p.Category]
	if !ok {
		pair = templates[model.CategoryMisc]
	}
	tmpl := pair[StableHash(p.Title)%2]
	return fmt.Sprintf(tmpl, ownerName, strings.ToLower(string(p.Category)))
}
