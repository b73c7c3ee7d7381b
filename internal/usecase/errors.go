package usecase

import (
	"errors"
	"fmt"
)

var (
	ErrRepository    = errors.New("repository error")
	errMissingSource = errors.New("torrent source not available")
)

func wrapRepo(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrRepository, err)
}
