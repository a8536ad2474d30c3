//go:build !linux

package gpio

import "errors"

// NewBoard returns an error on non-Linux platforms.
func NewBoard(BoardConfig) (*Board, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}
