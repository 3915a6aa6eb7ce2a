package registration

import (
	"context"
	"errors"
)

// ErrNoAnswer is returned by a Solver when no answer arrived before its soft
// deadline. The attempt loop counts it as a consumed attempt.
var ErrNoAnswer = errors.New("solver: no answer before deadline")

// Gateway is the HTTP+HTML facade over the target registration form.
// Implementations must be safe for concurrent use by multiple day workers
// and must share one cookie session, since captcha challenges are bound
// server-side to the session that fetched them.
type Gateway interface {
	// FetchFormPage retrieves the main form page markup.
	FetchFormPage(ctx context.Context) (string, error)
	// SalesDayLabels extracts all visible day labels from the form markup,
	// in document order, skipping entries missing either label or value.
	SalesDayLabels(html string) []string
	// MapLabelToID resolves a day label to its form value.
	MapLabelToID(html, label string) (string, bool)
	// LoadSessions lists the sessions open under a day id.
	LoadSessions(ctx context.Context, dayID string) ([]Session, error)
	// FetchCaptcha requests a fresh challenge and returns the image URL.
	FetchCaptcha(ctx context.Context) (string, error)
	// DownloadImage fetches the challenge image bytes.
	DownloadImage(ctx context.Context, ref string) ([]byte, error)
	// SubmitRegistration posts the payload and returns the raw response text.
	SubmitRegistration(ctx context.Context, fields map[string]string) (string, error)
}

// Solver resolves a captcha image to its text answer, or ErrNoAnswer if the
// solving service did not respond within its soft timeout.
type Solver interface {
	Solve(ctx context.Context, image []byte) (string, error)
}

// Messenger delivers operator-facing output. SendImage returns the transport
// message id so manual captcha replies can be routed back by reference.
type Messenger interface {
	SendText(ctx context.Context, channelID int64, text string) error
	SendImage(ctx context.Context, channelID int64, image []byte, caption string) (int, error)
}
