package wire

import (
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/net/http2/hpack"
)

// StreamDecoder accumulates one stream's HEADERS and (optional) DATA
// frames and emits a Response once the stream completes. It keeps
// headers buffered until the terminating DATA (or an end-of-stream
// HEADERS) arrives.
type StreamDecoder struct {
	headersDone bool
	status      int
	apnsID      string
	body        []byte
}

// NewStreamDecoder returns an empty decoder for one stream.
func NewStreamDecoder() *StreamDecoder {
	return &StreamDecoder{}
}

// OnHeaders records the HEADERS frame for this stream. If endStream is
// true the stream is already complete (the 200-and-no-body accept path);
// the returned Response is non-nil and done is true.
func (d *StreamDecoder) OnHeaders(fields []hpack.HeaderField, endStream bool) (*Response, bool, error) {
	if d.headersDone {
		return nil, false, fmt.Errorf("wire: duplicate HEADERS frame for stream")
	}
	d.headersDone = true

	for _, f := range fields {
		switch f.Name {
		case ":status":
			status, err := strconv.Atoi(f.Value)
			if err != nil {
				return nil, false, fmt.Errorf("wire: malformed :status %q: %w", f.Value, err)
			}
			d.status = status
		case "apns-id":
			d.apnsID = f.Value
		}
	}

	if endStream {
		return d.finish(nil)
	}
	return nil, false, nil
}

// OnData appends a DATA frame's payload. When endStream is true, the
// accumulated body (if any) is parsed and a Response is emitted.
func (d *StreamDecoder) OnData(data []byte, endStream bool) (*Response, bool, error) {
	if !d.headersDone {
		return nil, false, fmt.Errorf("wire: DATA frame received before HEADERS")
	}
	d.body = append(d.body, data...)
	if !endStream {
		return nil, false, nil
	}
	return d.finish(d.body)
}

func (d *StreamDecoder) finish(body []byte) (*Response, bool, error) {
	resp := &Response{APNsID: d.apnsID, Status: d.status}
	if d.status == 200 {
		resp.Accepted = true
		return resp, true, nil
	}

	if len(body) > 0 {
		var eb errorBody
		if err := json.Unmarshal(body, &eb); err != nil {
			return nil, false, fmt.Errorf("wire: malformed error body: %w", err)
		}
		resp.Reason = eb.Reason
		resp.Timestamp = eb.Timestamp
	}
	return resp, true, nil
}
