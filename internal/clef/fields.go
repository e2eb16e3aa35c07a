// Package clef holds the catalog of reserved CLEF field names and the
// escaping rule for user properties that collide with them.
package clef

import "strings"

// Reserved field names. Every name starts with '@'.
const (
	Timestamp       = "@t"
	Message         = "@m"
	MessageTemplate = "@mt"
	Level           = "@l"
	Exception       = "@x"
	EventID         = "@i"
	Renderings      = "@r"
	TraceID         = "@tr"
	SpanID          = "@sp"
)

// reservedPrefix marks the metadata namespace.
const reservedPrefix = "@"

var reserved = map[string]struct{}{
	Timestamp:       {},
	Message:         {},
	MessageTemplate: {},
	Level:           {},
	Exception:       {},
	EventID:         {},
	Renderings:      {},
	TraceID:         {},
	SpanID:          {},
}

// All returns the reserved field names in catalog order.
func All() []string {
	return []string{
		Timestamp,
		Message,
		MessageTemplate,
		Level,
		Exception,
		EventID,
		Renderings,
		TraceID,
		SpanID,
	}
}

// IsReserved reports whether name is one of the reserved metadata fields.
func IsReserved(name string) bool {
	_, ok := reserved[name]
	return ok
}

// Escape returns the on-disk spelling of a user property name.
// Names starting with '@' get the '@' doubled so they can never shadow
// metadata: "@t" becomes "@@t", "@@x" becomes "@@@x".
func Escape(name string) string {
	if strings.HasPrefix(name, reservedPrefix) {
		return reservedPrefix + name
	}
	return name
}

// Unescape reverses Escape. Names starting with "@@" lose one '@'; any other
// name, including an unreserved single-'@' name like "@foo", is returned as is.
func Unescape(name string) string {
	if strings.HasPrefix(name, reservedPrefix+reservedPrefix) {
		return name[len(reservedPrefix):]
	}
	return name
}
