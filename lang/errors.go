package lang

import "errors"

var (
	// ErrInvalidRangeExpression is the umbrella parse/lex error, wrapped
	// with positional detail via fmt.Errorf("...: %w", ...).
	ErrInvalidRangeExpression = errors.New("lang: invalid range expression")
	// ErrIncorrectNumberOfArguments is returned when a builtin function is
	// invoked with a different number of arguments than it requires.
	ErrIncorrectNumberOfArguments = errors.New("lang: incorrect number of arguments")
	// ErrUnknownFunction is returned for a call to an unregistered builtin.
	ErrUnknownFunction = errors.New("lang: unknown function")
)
