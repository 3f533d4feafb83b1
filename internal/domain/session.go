package domain

const attrLastRequestID = "lastRequestId"

// SessionState is the caller-side state round-tripped through the voice
// platform's session attributes between turns. Attribute keys this service
// does not own are preserved untouched.
type SessionState struct {
	LastRequestID string

	extra map[string]any
}

// SessionFromAttributes parses the platform attribute bag into SessionState.
func SessionFromAttributes(attrs map[string]any) SessionState {
	var s SessionState
	for k, v := range attrs {
		if k == attrLastRequestID {
			if id, ok := v.(string); ok {
				s.LastRequestID = id
			}
			continue
		}
		if s.extra == nil {
			s.extra = make(map[string]any)
		}
		s.extra[k] = v
	}
	return s
}

// Attributes renders the session back into a platform attribute bag, or nil
// when there is nothing to carry.
func (s SessionState) Attributes() map[string]any {
	if s.LastRequestID == "" && len(s.extra) == 0 {
		return nil
	}
	out := make(map[string]any, len(s.extra)+1)
	for k, v := range s.extra {
		out[k] = v
	}
	if s.LastRequestID != "" {
		out[attrLastRequestID] = s.LastRequestID
	}
	return out
}
