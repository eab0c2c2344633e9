package transport

import (
	"errors"
	"fmt"
)

// DeliveryError is a failed send, classified by the adapter that saw the
// platform's response.
//
// Permanent means the recipient can never be reached again (blocked the bot,
// chat deleted, account deactivated). Everything else, including rate limits
// and timeouts, is transient.
type DeliveryError struct {
	ChatID    int64
	Permanent bool
	Err       error
}

func (e *DeliveryError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	return fmt.Sprintf("deliver to %d (%s): %v", e.ChatID, kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// IsPermanent reports whether err carries a permanent DeliveryError.
func IsPermanent(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de) && de.Permanent
}
