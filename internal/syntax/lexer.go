package syntax

import "github.com/alecthomas/participle/v2/lexer"

// markupLexer tokenizes component markup. Root covers text, comments,
// transitions and tags; Tag covers the inside of a start tag.
// Both states end in a catch-all rule so lexing never fails on odd input.
var markupLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "Comment", Pattern: `@\*(?s:.*?)\*@`},
		{Name: "OpenComment", Pattern: `@\*(?s:.*)`},
		{Name: "Escape", Pattern: `@@`},
		{Name: "Transition", Pattern: `@[A-Za-z_][A-Za-z0-9_]*|@`},
		{Name: "EndTag", Pattern: `</[A-Za-z0-9_.:-]*\s*>?`},
		{Name: "TagOpen", Pattern: `<[A-Za-z][A-Za-z0-9_.:-]*`, Action: lexer.Push("Tag")},
		{Name: "Lt", Pattern: `<`},
		{Name: "Text", Pattern: `[^@<]+`},
	},
	"Tag": {
		{Name: "TagEnd", Pattern: `/?>`, Action: lexer.Pop()},
		{Name: "Whitespace", Pattern: `\s+`},
		{Name: "TagOpen", Pattern: `<[A-Za-z][A-Za-z0-9_.:-]*`},
		{Name: "AttrName", Pattern: `[@A-Za-z_:][A-Za-z0-9_.:@-]*`},
		{Name: "Equals", Pattern: `=`},
		{Name: "String", Pattern: `"[^"]*"?|'[^']*'?`},
		{Name: "Bare", Pattern: `[^\s"'=<>/]+`},
		{Name: "Stray", Pattern: `.`},
	},
})

// tokenNames maps token types back to rule names.
var tokenNames = func() map[lexer.TokenType]string {
	names := make(map[lexer.TokenType]string)
	for name, typ := range markupLexer.Symbols() {
		names[typ] = name
	}
	return names
}()

func tokenize(text string) ([]lexer.Token, error) {
	lex, err := markupLexer.LexString("", text)
	if err != nil {
		return nil, err
	}
	return lexer.ConsumeAll(lex)
}
