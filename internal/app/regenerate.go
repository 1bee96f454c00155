package app

// RegenerateController implements the truncate-and-replay half of regenerate:
// given the message to regenerate from, it cuts the transcript to the prefix
// strictly before that message. The replacement stream is then run as an
// ordinary chat turn against the shortened history. Truncation is atomic and
// must be rendered before the first replacement byte is applied, so the old
// tail and the new tail never coexist on screen.
type RegenerateController struct {
	transcript *Transcript
}

func NewRegenerateController(t *Transcript) *RegenerateController {
	return &RegenerateController{transcript: t}
}

// Truncate drops the target message and everything after it. A missing id is
// a no-op (the message may no longer be in local memory), reported as false.
func (c *RegenerateController) Truncate(messageID int) bool {
	return c.transcript.TruncateFrom(messageID)
}
