package revalcache

// Kind names the artifact shape stored under a key. It doubles as the key
// prefix ("page:", "component:", "call:").
type Kind string

const (
	KindPage      Kind = "page"
	KindComponent Kind = "component"
	KindCall      Kind = "call"
)

func (k Kind) Valid() bool {
	switch k {
	case KindPage, KindComponent, KindCall:
		return true
	}
	return false
}

func (k Kind) prefix() string { return string(k) + ":" }

// CachedValue is one of *PageValue, *ComponentValue or *CallResult.
// Tags and TTL are not part of the value; they travel in SetOptions and are
// kept by the backend next to it.
type CachedValue interface {
	Kind() Kind
	isCachedValue()
}

// PageValue is a fully rendered page. StatusCode 0 means "not recorded".
type PageValue struct {
	HTML       string
	Payload    []byte // auxiliary data payload, opaque to the cache
	StatusCode int
}

// ComponentValue is a component-tree rendering. PostponedState is the
// serialized resumption state of a partial render, if any.
type ComponentValue struct {
	HTML           string
	Stream         []byte
	PostponedState []byte
	StatusCode     int
}

// CallResult is the captured result of a single outbound HTTP call.
type CallResult struct {
	Headers    map[string]string
	Body       string
	URL        string
	StatusCode int
}

func (*PageValue) Kind() Kind      { return KindPage }
func (*ComponentValue) Kind() Kind { return KindComponent }
func (*CallResult) Kind() Kind     { return KindCall }

func (*PageValue) isCachedValue()      {}
func (*ComponentValue) isCachedValue() {}
func (*CallResult) isCachedValue()     {}

// isNilValue reports whether v is nil or a typed nil pointer.
func isNilValue(v CachedValue) bool {
	switch vv := v.(type) {
	case nil:
		return true
	case *PageValue:
		return vv == nil
	case *ComponentValue:
		return vv == nil
	case *CallResult:
		return vv == nil
	}
	return false
}

// IsEmpty reports whether v carries nothing worth serving. The page layer
// treats an empty value like a miss.
func IsEmpty(v CachedValue) bool {
	switch vv := v.(type) {
	case nil:
		return true
	case *PageValue:
		return vv == nil || (vv.HTML == "" && len(vv.Payload) == 0)
	case *ComponentValue:
		return vv == nil || (vv.HTML == "" && len(vv.Stream) == 0 && len(vv.PostponedState) == 0)
	case *CallResult:
		return vv == nil || vv.StatusCode == 0
	default:
		return true
	}
}
