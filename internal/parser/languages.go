package parser

import (
	tree_sitter_zig "github.com/tree-sitter-grammars/tree-sitter-zig/bindings/go"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/andersk/semgrep/internal/types"
)

// languageFactories maps each supported language to its grammar
// constructor. Grammars are loaded lazily: scanning a pure-Go repository
// never touches the other grammars' C objects.
var languageFactories = map[types.Language]func() *tree_sitter.Language{
	types.LangGo: func() *tree_sitter.Language {
		return tree_sitter.NewLanguage(tree_sitter_go.Language())
	},
	types.LangPython: func() *tree_sitter.Language {
		return tree_sitter.NewLanguage(tree_sitter_python.Language())
	},
	types.LangJavaScript: func() *tree_sitter.Language {
		return tree_sitter.NewLanguage(tree_sitter_javascript.Language())
	},
	types.LangTypeScript: func() *tree_sitter.Language {
		return tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	},
	types.LangJava: func() *tree_sitter.Language {
		return tree_sitter.NewLanguage(tree_sitter_java.Language())
	},
	types.LangCSharp: func() *tree_sitter.Language {
		return tree_sitter.NewLanguage(tree_sitter_csharp.Language())
	},
	types.LangCpp: func() *tree_sitter.Language {
		return tree_sitter.NewLanguage(tree_sitter_cpp.Language())
	},
	types.LangC: func() *tree_sitter.Language {
		// The C++ grammar parses C sources; keeping one grammar for
		// both avoids a second C object for no matching benefit.
		return tree_sitter.NewLanguage(tree_sitter_cpp.Language())
	},
	types.LangRust: func() *tree_sitter.Language {
		return tree_sitter.NewLanguage(tree_sitter_rust.Language())
	},
	types.LangPHP: func() *tree_sitter.Language {
		return tree_sitter.NewLanguage(tree_sitter_php.LanguagePHP())
	},
	types.LangZig: func() *tree_sitter.Language {
		return tree_sitter.NewLanguage(tree_sitter_zig.Language())
	},
}

// extensionLanguages maps file extensions to the language used to parse
// them. Extensions not listed here are scanned only by generic rules.
var extensionLanguages = map[string]types.Language{
	".go":    types.LangGo,
	".py":    types.LangPython,
	".js":    types.LangJavaScript,
	".jsx":   types.LangJavaScript,
	".mjs":   types.LangJavaScript,
	".ts":    types.LangTypeScript,
	".tsx":   types.LangTypeScript,
	".java":  types.LangJava,
	".cs":    types.LangCSharp,
	".cpp":   types.LangCpp,
	".cc":    types.LangCpp,
	".cxx":   types.LangCpp,
	".hpp":   types.LangCpp,
	".c":     types.LangC,
	".h":     types.LangC,
	".rs":    types.LangRust,
	".php":   types.LangPHP,
	".phtml": types.LangPHP,
	".zig":   types.LangZig,
}

// LanguageForExtension resolves the language a file extension parses as.
func LanguageForExtension(ext string) (types.Language, bool) {
	lang, ok := extensionLanguages[ext]
	return lang, ok
}
