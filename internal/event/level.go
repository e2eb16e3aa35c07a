package event

import (
	"errors"
	"fmt"

	"golang.org/x/text/cases"
)

// Level is the severity of an event, ordered from least to most severe.
type Level int

const (
	Verbose Level = iota
	Debug
	Information
	Warning
	Error
	Fatal
)

// ErrUnknownLevel is returned by ParseLevel for names outside the level set.
var ErrUnknownLevel = errors.New("unknown level")

var levelNames = [...]string{
	Verbose:     "Verbose",
	Debug:       "Debug",
	Information: "Information",
	Warning:     "Warning",
	Error:       "Error",
	Fatal:       "Fatal",
}

var levelAbbrevs = [...]string{
	Verbose:     "VRB",
	Debug:       "DBG",
	Information: "INF",
	Warning:     "WRN",
	Error:       "ERR",
	Fatal:       "FTL",
}

// levelsByFolded maps case-folded names to levels.
var levelsByFolded = func() map[string]Level {
	fold := cases.Fold()
	m := make(map[string]Level, len(levelNames))
	for lvl, name := range levelNames {
		m[fold.String(name)] = Level(lvl)
	}
	return m
}()

// ParseLevel matches s against the level names, ignoring case.
func ParseLevel(s string) (Level, error) {
	// A Caser carries state, so each call gets its own.
	if lvl, ok := levelsByFolded[cases.Fold().String(s)]; ok {
		return lvl, nil
	}
	return Information, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool {
	return l >= Verbose && l <= Fatal
}

// String returns the level name, e.g. "Warning".
func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// Abbrev returns the three-letter upper-case form used on consoles, e.g. "WRN".
func (l Level) Abbrev() string {
	if !l.Valid() {
		return "???"
	}
	return levelAbbrevs[l]
}
