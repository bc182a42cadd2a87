package llm

import "context"

type Provider interface {
	// StreamAnswer returns a stream of text chunks (incremental). system may be
	// empty.
	StreamAnswer(ctx context.Context, system, prompt string) (chunks <-chan string, errs <-chan error)
	Close() error
}
