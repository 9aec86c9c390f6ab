// Package sink delivers cleaned document text to the downstream indexing
// service. Delivery is best effort and never affects the upload response.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
)

// Entry is one document handed to the index.
type Entry struct {
	DocID    int64  `json:"doc_id"`
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

func (e Entry) IDString() string { return strconv.FormatInt(e.DocID, 10) }

type Sink interface {
	Index(ctx context.Context, e Entry) error
}

// NopSink drops every entry.
type NopSink struct{}

func (NopSink) Index(context.Context, Entry) error { return nil }

// reply is the status object both the HTTP service and the script print.
type reply struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

// checkReply fails when raw is a JSON object carrying success=false. Bodies
// that are not JSON or omit the flag are accepted.
func checkReply(raw []byte) error {
	var r reply
	if err := json.Unmarshal(raw, &r); err != nil || r.Success == nil || *r.Success {
		return nil
	}
	if r.Error == "" {
		return errors.New("index rejected entry")
	}
	return errors.New(r.Error)
}
