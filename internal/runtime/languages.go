package runtime

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
)

// extToLanguage maps source extensions found in compilation databases to
// canonical language names. Case matters: ".C" is C++ by convention.
var extToLanguage = map[string]string{
	".c":   "c",
	".h":   "c",
	".i":   "c",
	".C":   "cpp",
	".cc":  "cpp",
	".cp":  "cpp",
	".cpp": "cpp",
	".cxx": "cpp",
	".c++": "cpp",
	".ii":  "cpp",
	".hh":  "cpp",
	".hpp": "cpp",
	".hxx": "cpp",
	".ipp": "cpp",
	".tcc": "cpp",
}

// langToGrammar maps language names to tree-sitter Language objects.
// Lazily initialized on first call via sync.Once.
var (
	langToGrammar map[string]*sitter.Language
	grammarsOnce  sync.Once
)

func initGrammars() {
	grammarsOnce.Do(func() {
		langToGrammar = map[string]*sitter.Language{
			"c":   c.GetLanguage(),
			"cpp": cpp.GetLanguage(),
		}
	})
}

// LanguageForFile returns the canonical language name for a file path based
// on its extension. Returns ("", false) if the extension is not recognized.
func LanguageForFile(path string) (string, bool) {
	ext := filepath.Ext(path)
	if lang, ok := extToLanguage[ext]; ok {
		return lang, true
	}
	lang, ok := extToLanguage[strings.ToLower(ext)]
	return lang, ok
}

// ParserForLanguage returns the tree-sitter Language for a canonical language
// name. Returns (nil, false) if the language is not supported.
func ParserForLanguage(lang string) (*sitter.Language, bool) {
	initGrammars()
	l, ok := langToGrammar[lang]
	return l, ok
}
