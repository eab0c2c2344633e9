package adapter

import (
	"errors"
	"net/http"

	tele "gopkg.in/telebot.v4"

	kit "jobtracker/internal/transport"
)

// unreachable lists Bot API errors after which a chat can never be written to
// again without the user acting first.
var unreachable = []error{
	tele.ErrBlockedByUser,
	tele.ErrKickedFromGroup,
	tele.ErrKickedFromSuperGroup,
	tele.ErrKickedFromChannel,
	tele.ErrUserIsDeactivated,
	tele.ErrNotStartedByUser,
	tele.ErrChatNotFound,
}

// classify wraps a send error into a *kit.DeliveryError. Only the structured
// Bot API error is consulted, never the description text.
func classify(chatID int64, err error) error {
	if err == nil {
		return nil
	}
	return &kit.DeliveryError{ChatID: chatID, Permanent: isPermanent(err), Err: err}
}

func isPermanent(err error) bool {
	for _, target := range unreachable {
		if errors.Is(err, target) {
			return true
		}
	}
	var te *tele.Error
	return errors.As(err, &te) && te.Code == http.StatusForbidden
}
