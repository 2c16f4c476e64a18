package client

import "errors"

var (
	// ErrUnexpected covers failures that have no more specific class,
	// typically misuse caught at runtime.
	ErrUnexpected = errors.New("unexpected client error")

	// ErrUnimplemented marks payload kinds the engine recognizes but
	// does not handle yet.
	ErrUnimplemented = errors.New("unimplemented")
)
