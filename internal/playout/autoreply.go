package playout

const (
	replyThanks = "Thank you for your message! - WBOR \n\n(Note: DJs cannot reply to texts.)"

	replyMedia = "Thank you for your message! Unfortunately, we don't support " +
		"media at this time, so the DJ won't see any photos or videos" +
		" sent. - WBOR \n\n(Note: DJs cannot reply to texts.)"

	replyUnsupportedMedia = "Thank you for your message! Unfortunately, it contains " +
		"one or more unsupported media types. " +
		"As a result, it may not be delivered as expected. " +
		"- WBOR \n\n(Note: DJs cannot reply to texts.)"

	replyNoLiveDJ = "According to our records, we don't see a live DJ playlist active, " +
		"so there might not currently be any DJs in the studio to receive " +
		"your text :( \n\n" +
		"Try again later or view our schedule at wbor.org/schedule"
)

// Media classifies a text's attachments for the auto-reply.
type Media int

const (
	NoMedia Media = iota
	SupportedMedia
	UnsupportedMedia
)

// AutoReply picks the acknowledgement texted back in the webhook response.
func AutoReply(automated bool, media Media) string {
	switch {
	case automated:
		return replyNoLiveDJ
	case media == UnsupportedMedia:
		return replyUnsupportedMedia
	case media == SupportedMedia:
		return replyMedia
	default:
		return replyThanks
	}
}
