// Package parse reads decoded message text into a model.Message with one
// renderable body.
package parse

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/textproto"
	"strings"

	"github.com/emersion/go-message"
	"golang.org/x/net/html/charset"

	"github.com/dhcgn/eml-digest/model"
)

var (
	// ErrNotMessage reports input that has no parseable header block.
	ErrNotMessage = errors.New("not a message")
	// ErrNoBody reports a message without a text/plain or text/html part.
	ErrNoBody = errors.New("no renderable body")
)

// IsSkip reports whether err means the item should be dropped silently.
func IsSkip(err error) bool {
	return errors.Is(err, ErrNotMessage) || errors.Is(err, ErrNoBody)
}

var wordDecoder = &mime.WordDecoder{CharsetReader: charset.NewReaderLabel}

// Parse parses text as an internet message and selects its body, plain
// text first, HTML second.
func Parse(text string) (model.Message, error) {
	entity, err := message.Read(strings.NewReader(text))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return model.Message{}, fmt.Errorf("%w: %v", ErrNotMessage, err)
	}

	headers := collectHeaders(entity.Header)
	if len(headers) == 0 {
		return model.Message{}, ErrNotMessage
	}

	body, isHTML, err := selectBody(entity)
	if err != nil {
		return model.Message{}, err
	}

	return model.Message{
		Headers:    headers,
		BodyText:   body,
		BodyIsHTML: isHTML,
	}, nil
}

func collectHeaders(h message.Header) map[string]string {
	headers := make(map[string]string)
	fields := h.Fields()
	for fields.Next() {
		key := textproto.CanonicalMIMEHeaderKey(fields.Key())
		headers[key] = decodeWords(unfold.Replace(fields.Value()))
	}
	return headers
}

var unfold = strings.NewReplacer("\r\n", "", "\n", "")

func decodeWords(v string) string {
	decoded, err := wordDecoder.DecodeHeader(v)
	if err != nil {
		return v
	}
	return decoded
}

type candidate struct {
	text  string
	found bool
}

func selectBody(entity *message.Entity) (string, bool, error) {
	var plain, html candidate

	err := entity.Walk(func(path []int, part *message.Entity, err error) error {
		if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
			return err
		}
		if plain.found {
			return nil
		}

		mediaType, params := "text/plain", map[string]string(nil)
		if part.Header.Has("Content-Type") {
			var ctErr error
			mediaType, params, ctErr = part.Header.ContentType()
			if ctErr != nil {
				return nil
			}
		}
		if strings.HasPrefix(mediaType, "multipart/") {
			return nil
		}
		if disp, _, _ := part.Header.ContentDisposition(); disp == "attachment" {
			return nil
		}

		var target *candidate
		switch mediaType {
		case "text/plain":
			target = &plain
		case "text/html":
			if html.found {
				return nil
			}
			target = &html
		default:
			return nil
		}

		text, readErr := readPart(part, params["charset"])
		if readErr != nil {
			return nil
		}
		*target = candidate{text: text, found: true}
		return nil
	})
	if err != nil && !plain.found && !html.found {
		return "", false, fmt.Errorf("%w: %v", ErrNoBody, err)
	}

	switch {
	case plain.found:
		return plain.text, false, nil
	case html.found:
		return html.text, true, nil
	}
	return "", false, ErrNoBody
}

// readPart returns the part's body as text. Parts carried in base64 or
// quoted-printable hold bytes in their declared charset; 7bit and 8bit parts
// were already decoded along with the whole message.
func readPart(part *message.Entity, label string) (string, error) {
	var body io.Reader = part.Body

	label = strings.ToLower(strings.TrimSpace(label))
	cte := strings.ToLower(strings.TrimSpace(part.Header.Get("Content-Transfer-Encoding")))
	if transferEncoded(cte) && label != "" && label != "utf-8" && label != "us-ascii" {
		converted, err := charset.NewReaderLabel(label, body)
		if err == nil {
			body = converted
		}
	}

	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func transferEncoded(cte string) bool {
	return cte == "base64" || cte == "quoted-printable"
}
