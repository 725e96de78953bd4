package email

// Message is a single outgoing email. BookingRef, when set, is added as the
// X-Booking-Ref header.
type Message struct {
	To         []string
	ReplyTo    string
	Subject    string
	TextBody   string
	HTMLBody   string
	BookingRef string
}
