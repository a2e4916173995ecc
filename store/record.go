package store

import (
	"fmt"

	rc "github.com/unkn0wn-root/revalcache"
	"github.com/unkn0wn-root/revalcache/internal/wire"
)

// Record is the codec-facing form of a cached value. The kind lives in the
// envelope, so one flat record covers all three shapes.
type Record struct {
	HTML           string            `json:"html,omitempty"`
	Payload        []byte            `json:"payload,omitempty"`
	Stream         []byte            `json:"stream,omitempty"`
	PostponedState []byte            `json:"postponed,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           string            `json:"body,omitempty"`
	URL            string            `json:"url,omitempty"`
	StatusCode     int               `json:"status,omitempty"`
}

func recordFrom(v rc.CachedValue) (byte, Record, error) {
	switch vv := v.(type) {
	case *rc.PageValue:
		if vv == nil {
			return 0, Record{}, fmt.Errorf("store: nil %T: %w", v, rc.ErrInvalidKind)
		}
		return wire.KindPage, Record{HTML: vv.HTML, Payload: vv.Payload, StatusCode: vv.StatusCode}, nil
	case *rc.ComponentValue:
		if vv == nil {
			return 0, Record{}, fmt.Errorf("store: nil %T: %w", v, rc.ErrInvalidKind)
		}
		return wire.KindComponent, Record{
			HTML:           vv.HTML,
			Stream:         vv.Stream,
			PostponedState: vv.PostponedState,
			StatusCode:     vv.StatusCode,
		}, nil
	case *rc.CallResult:
		if vv == nil {
			return 0, Record{}, fmt.Errorf("store: nil %T: %w", v, rc.ErrInvalidKind)
		}
		return wire.KindCall, Record{
			Headers:    vv.Headers,
			Body:       vv.Body,
			URL:        vv.URL,
			StatusCode: vv.StatusCode,
		}, nil
	default:
		return 0, Record{}, fmt.Errorf("store: unsupported value %T: %w", v, rc.ErrInvalidKind)
	}
}

func (r Record) value(kind byte) rc.CachedValue {
	switch kind {
	case wire.KindPage:
		return &rc.PageValue{HTML: r.HTML, Payload: r.Payload, StatusCode: r.StatusCode}
	case wire.KindComponent:
		return &rc.ComponentValue{
			HTML:           r.HTML,
			Stream:         r.Stream,
			PostponedState: r.PostponedState,
			StatusCode:     r.StatusCode,
		}
	default:
		return &rc.CallResult{Headers: r.Headers, Body: r.Body, URL: r.URL, StatusCode: r.StatusCode}
	}
}

func wireKind(k rc.Kind) byte {
	switch k {
	case rc.KindPage:
		return wire.KindPage
	case rc.KindComponent:
		return wire.KindComponent
	case rc.KindCall:
		return wire.KindCall
	}
	return 0
}
