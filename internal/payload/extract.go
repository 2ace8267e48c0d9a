// Package payload extracts Wi-Fi credentials from the loosely JSON-shaped body
// posted by the setup page.
//
// The body is not parsed as JSON. It is split on a fixed delimiter set and
// walked as a token stream: a recognized key token makes the following token
// its value. Anything else is ignored, so malformed or partial bodies never
// produce an error, only fewer fields. Values cannot contain any of the
// delimiter characters.
package payload

import "strings"

// Recognized field names.
const (
	KeySSID     = "ssid"
	KeyPassword = "password"
)

// Delimiters are the characters tokens are split on.
const Delimiters = ",{}\":"

// Fields maps recognized field names to their extracted values.
type Fields map[string]string

// SSID returns the extracted network name.
func (f Fields) SSID() (string, bool) {
	v, ok := f[KeySSID]
	return v, ok
}

// Password returns the extracted passphrase.
func (f Fields) Password() (string, bool) {
	v, ok := f[KeyPassword]
	return v, ok
}

// Complete reports whether both ssid and password were extracted.
func (f Fields) Complete() bool {
	_, hasSSID := f[KeySSID]
	_, hasPassword := f[KeyPassword]
	return hasSSID && hasPassword
}

type state int

const (
	expectKey state = iota
	expectValue
)

func isRecognized(token string) bool {
	return token == KeySSID || token == KeyPassword
}

// Extract walks the delimiter-split tokens of body and returns every
// recognized key/value pair. A key appearing twice keeps its last value.
// A recognized key with no following token is dropped.
func Extract(body []byte) Fields {
	fields := make(Fields)

	st := expectKey
	var pending string
	for _, token := range Tokenize(string(body)) {
		switch st {
		case expectKey:
			if isRecognized(token) {
				pending = token
				st = expectValue
			}
		case expectValue:
			fields[pending] = token
			st = expectKey
		}
	}

	return fields
}

// Tokenize splits s on Delimiters, dropping empty tokens the way strtok does.
func Tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(Delimiters, r)
	})
}
