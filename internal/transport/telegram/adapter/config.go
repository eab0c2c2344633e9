package adapter

import "time"

type Config struct {
	Token       string
	PollTimeout time.Duration
	// SendTimeout bounds one Bot API call. Zero uses telebot's client default.
	SendTimeout time.Duration
}
