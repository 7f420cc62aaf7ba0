package venuebot

import (
	"encoding/base64"
	"fmt"
	"unicode/utf8"
)

// DecodeError indicates a token could not be decoded back into a display
// name - either because it isn't valid base64, or because the decoded
// bytes aren't valid UTF-8.
type DecodeError struct {
	Token string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cannot decode token %q", e.Token)
	}
	return fmt.Sprintf("cannot decode token %q: %s", e.Token, e.Err.Error())
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodeName encodes a Zoom display name into the base64 token form used
// as the queue payload and TriggerCMD parameter. Encoding is reversible,
// byte-for-byte: DecodeName(EncodeName(name)) == name for any name.
func EncodeName(name string) string {
	return base64.StdEncoding.EncodeToString([]byte(name))
}

// DecodeName recovers the original display name from a token produced by
// EncodeName. The returned error is always a *DecodeError when decoding
// fails.
func DecodeName(token string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", &DecodeError{Token: token, Err: err}
	}
	if !utf8.Valid(raw) {
		return "", &DecodeError{Token: token}
	}
	return string(raw), nil
}
