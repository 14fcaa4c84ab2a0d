package bitemporal

import (
	"errors"
	"strings"
	"unicode"
)

const symbolPrefix = "?"

// Symbol is a logic variable like "?name", bound to one value per result row.
type Symbol struct {
	name string
}

// BuildSymbol validates the variable name: a "?" followed by a letter, then letters, digits or any of - _ / . * !
func BuildSymbol(name string) (Symbol, error) {
	if !strings.HasPrefix(name, symbolPrefix) {
		return Symbol{}, errors.Join(ErrMalformedSymbol, errors.New("symbol must start with ?: "+name))
	}

	body := []rune(strings.TrimPrefix(name, symbolPrefix))
	if len(body) == 0 || !unicode.IsLetter(body[0]) {
		return Symbol{}, errors.Join(ErrMalformedSymbol, errors.New("symbol must continue with a letter: "+name))
	}

	for _, r := range body[1:] {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("-_/.*!", r) {
			continue
		}

		return Symbol{}, errors.Join(ErrMalformedSymbol, errors.New("invalid character in symbol: "+name))
	}

	return Symbol{name: name}, nil
}

// MustSymbol is BuildSymbol for symbols known at compile time, it panics on a malformed name.
func MustSymbol(name string) Symbol {
	s, err := BuildSymbol(name)
	if err != nil {
		panic(err)
	}

	return s
}

func (s Symbol) Name() string {
	return s.name
}

func (s Symbol) String() string {
	return s.name
}

func (s Symbol) IsZero() bool {
	return s.name == ""
}

// BuildSymbols builds several symbols at once, failing on the first malformed one.
func BuildSymbols(names ...string) ([]Symbol, error) {
	symbols := make([]Symbol, 0, len(names))
	for _, name := range names {
		s, err := BuildSymbol(name)
		if err != nil {
			return nil, err
		}

		symbols = append(symbols, s)
	}

	return symbols, nil
}
