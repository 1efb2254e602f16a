package binary

import "github.com/google/uuid"

// newDocumentID generates the 32-hex-character random identifier Post
// assigns when the caller supplies no id (spec §4.C). A UUID v4 with its
// dashes stripped gives exactly 32 lowercase hex characters, matching the
// teacher's own convention for entity identifiers.
func newDocumentID() string {
	id := uuid.New()
	return hexNoDashes(id)
}

func hexNoDashes(id uuid.UUID) string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, 32)
	for i, b := range id {
		buf[i*2] = hextable[b>>4]
		buf[i*2+1] = hextable[b&0x0f]
	}
	return string(buf)
}
