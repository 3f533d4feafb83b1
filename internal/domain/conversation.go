package domain

// Turn roles as stored in conversation history and sent to the model.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is a single conversation entry: one user utterance or one model
// reply. The JSON field names are the serialized history format stored in
// the correlation table.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// ExtendHistory returns history followed by the (prompt, response) pair of
// a completed turn. The input slice is not modified.
func ExtendHistory(history []Turn, prompt, response string) []Turn {
	out := make([]Turn, 0, len(history)+2)
	out = append(out, history...)
	out = append(out,
		Turn{Role: RoleUser, Text: prompt},
		Turn{Role: RoleModel, Text: response},
	)
	return out
}
