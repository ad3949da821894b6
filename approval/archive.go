package approval

import "context"

// Archive is a write-only journal of terminal approval requests, kept for
// operators after the registry purges its live table. The registry never
// reads decisions back from it.
type Archive interface {
	Store(ctx context.Context, req Request) error
}
