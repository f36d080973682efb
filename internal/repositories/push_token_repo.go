package repositories

import "context"

// PushTokenRepository stores device push tokens.
type PushTokenRepository interface {
	// Upsert registers token, refreshing its timestamp if it already exists.
	Upsert(ctx context.Context, token string) error
	ListTokens(ctx context.Context) ([]string, error)
}
