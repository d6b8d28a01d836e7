package community

// CreateSpaceRequestDTO is the body of POST /api/v1/collaboration-spaces.
type CreateSpaceRequestDTO struct {
	MatchID string `json:"match_id"`
	Kind    string `json:"kind"`
}

// SpaceDTO is a collaboration space.
type SpaceDTO struct {
	ID      string `json:"id"`
	MatchID string `json:"match_id"`
	URL     string `json:"url,omitempty"`
}

// ErrorDTO is the API error envelope. Older endpoints use "error", newer "message".
type ErrorDTO struct {
	Error  string `json:"error"`
	Detail  string `json:"message"`
}

// Message returns whichever field is set.
func (e ErrorDTO) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Error
}
