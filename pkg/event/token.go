package event

import (
	"github.com/google/uuid"
	"github.com/wolfeidau/humanhash"
)

// NewToken generates an opaque run token: a fresh UUID humanized into a
// readable word sequence, so tokens stay easy to pass around on a shell.
func NewToken() string {
	id := uuid.New()

	token, err := humanhash.Humanize(id[:], 4)
	if err != nil {
		return id.String()
	}

	return token
}
