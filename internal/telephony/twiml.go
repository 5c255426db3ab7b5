package telephony

import (
	"bytes"
	"encoding/xml"
	"strings"
)

// Minimal TwiML messaging response builder. Only the verbs the webhooks use.

type twimlResponse struct {
	XMLName  xml.Name       `xml:"Response"`
	Messages []twimlMessage `xml:"Message"`
}

type twimlMessage struct {
	Body string `xml:",chardata"`
}

// RenderMessagingResponse renders <Response/> with one <Message> per non-empty
// body, in order.
func RenderMessagingResponse(bodies ...string) (string, error) {
	var r twimlResponse
	for _, b := range bodies {
		if strings.TrimSpace(b) == "" {
			continue
		}
		r.Messages = append(r.Messages, twimlMessage{Body: b})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
