// Package wire builds outbound APNs HTTP/2 request tuples and decodes
// inbound HEADERS+DATA frame pairs into a typed Response.
package wire

import (
	"net/url"
	"strconv"

	"golang.org/x/net/http2/hpack"
)

// Request is the fully materialised (headers, body) pair that proto.Conn
// writes as HEADERS (end-stream=false) followed by DATA (end-stream=true).
type Request struct {
	Headers []hpack.HeaderField
	Body    []byte
}

// EncodeRequest builds the bit-exact APNs HTTP/2 request headers and body.
func EncodeRequest(deviceToken, topic string, apnsID string, expiration *int64, priority int, collapseID, bearer string, body []byte) Request {
	hf := func(name, value string) hpack.HeaderField {
		return hpack.HeaderField{Name: name, Value: value}
	}

	headers := []hpack.HeaderField{
		hf(":method", "POST"),
		hf(":path", "/3/device/"+url.PathEscape(deviceToken)),
		hf(":scheme", "https"),
	}
	headers = append(headers, hf("apns-topic", topic))

	if apnsID != "" {
		headers = append(headers, hf("apns-id", apnsID))
	}
	if expiration != nil {
		// apns-expiration is always written verbatim, including 0: 0 is a
		// no-retention marker, never "header absent".
		headers = append(headers, hf("apns-expiration", strconv.FormatInt(*expiration, 10)))
	}
	if priority == 10 || priority == 5 {
		headers = append(headers, hf("apns-priority", strconv.Itoa(priority)))
	}
	if collapseID != "" {
		headers = append(headers, hf("apns-collapse-id", collapseID))
	}
	if bearer != "" {
		headers = append(headers, hf("authorization", bearer))
	}
	headers = append(headers, hf("content-length", strconv.Itoa(len(body))))

	return Request{Headers: headers, Body: body}
}
