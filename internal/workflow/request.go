package workflow

import (
	"strings"

	"siksha/internal/audience"
	"siksha/internal/fingerprint"
	"siksha/internal/services"
)

// Request is what a caller asks the pipeline to produce.
type Request struct {
	Topic     string   `json:"topic"`
	Audience  string   `json:"audience"`
	Interests []string `json:"interests"`
}

// Normalize trims the topic and rejects an empty one. Unknown audiences are
// kept as given; the stages map them to the default level.
func (r Request) Normalize() (Request, error) {
	r.Topic = strings.TrimSpace(r.Topic)
	if r.Topic == "" {
		return r, services.Wrap(services.ErrValidation, "workflow", "validate request", "topic is required", nil)
	}
	r.Audience = strings.TrimSpace(r.Audience)
	return r, nil
}

// Folder is the output directory name for the request.
func (r Request) Folder() string {
	return fingerprint.FolderName(strings.TrimSpace(r.Topic), r.Interests)
}

// Level resolves the audience string.
func (r Request) Level() audience.Level {
	return audience.Parse(r.Audience)
}
