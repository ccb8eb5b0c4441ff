package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexAll(t *testing.T, src string) []Token {
	t.Helper()
	lex := NewLexer(src)
	var toks []Token
	for {
		tok, err := lex.Next()
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Type == TokEOF {
			return toks
		}
	}
}

func TestLexer_Operators(t *testing.T) {
	toks := lexAll(t, "%^*,-&;:(){}!")
	types := make([]TokenType, 0, len(toks))
	for _, tok := range toks {
		types = append(types, tok.Type)
	}
	assert.Equal(t, []TokenType{
		TokPercent, TokCaret, TokStar, TokComma, TokMinus, TokAmp,
		TokSemicolon, TokColon, TokLParen, TokRParen, TokLBrace, TokRBrace,
		TokBang, TokEOF,
	}, types)
}

func TestLexer_Bareword(t *testing.T) {
	toks := lexAll(t, "web-cluster01.example")
	require.Len(t, toks, 2)
	assert.Equal(t, TokBareword, toks[0].Type)
	assert.Equal(t, "web-cluster01.example", toks[0].Literal)
}

func TestLexer_Sequence(t *testing.T) {
	toks := lexAll(t, "host01..host10")
	require.Len(t, toks, 4)
	assert.Equal(t, TokBareword, toks[0].Type)
	assert.Equal(t, "host01", toks[0].Literal)
	assert.Equal(t, TokSequence, toks[1].Type)
	assert.Equal(t, TokBareword, toks[2].Type)
	assert.Equal(t, "host10", toks[2].Literal)
}

func TestLexer_FunctionCall(t *testing.T) {
	toks := lexAll(t, "expand(foo)")
	require.Len(t, toks, 4)
	assert.Equal(t, TokFunction, toks[0].Type)
	assert.Equal(t, "expand", toks[0].Literal)
	assert.Equal(t, TokBareword, toks[1].Type)
	assert.Equal(t, TokRParen, toks[2].Type)
}

func TestLexer_SingleQuoted(t *testing.T) {
	toks := lexAll(t, `'hello \'world\''`)
	require.Len(t, toks, 2)
	assert.Equal(t, TokSingleQuoted, toks[0].Type)
	assert.Equal(t, "hello 'world'", toks[0].Literal)
}

func TestLexer_DoubleQuoted(t *testing.T) {
	toks := lexAll(t, `"a b c"`)
	require.Len(t, toks, 2)
	assert.Equal(t, TokDoubleQuoted, toks[0].Type)
	assert.Equal(t, "a b c", toks[0].Literal)
}

func TestLexer_Regex(t *testing.T) {
	toks := lexAll(t, `/^web-\d+$/`)
	require.Len(t, toks, 2)
	assert.Equal(t, TokRegex, toks[0].Type)
	assert.Equal(t, `^web-\d+$`, toks[0].Literal)
}

func TestLexer_UnterminatedQuoteErrors(t *testing.T) {
	lex := NewLexer(`'unterminated`)
	_, err := lex.Next()
	assert.Error(t, err)
}
