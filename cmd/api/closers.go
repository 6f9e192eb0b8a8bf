package main

import (
	"fmt"

	"go.uber.org/multierr"
)

type namedCloser struct {
	name  string
	close func() error
}

// closerStack closes dependencies in reverse order of acquisition.
type closerStack struct {
	items []namedCloser
}

func (s *closerStack) push(name string, fn func() error) {
	s.items = append(s.items, namedCloser{name: name, close: fn})
}

func (s *closerStack) Close() error {
	var err error
	for i := len(s.items) - 1; i >= 0; i-- {
		item := s.items[i]
		if cerr := item.close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close %s: %w", item.name, cerr))
		}
	}
	s.items = nil
	return err
}
