package pdf

import "context"

// Provider renders the printable artifact stored with each official copy.
type Provider interface {
	RenderDocument(ctx context.Context, data DocumentData) ([]byte, error)
}

// NoOpProvider renders nothing. Official copies then carry only their hash.
type NoOpProvider struct{}

func (p *NoOpProvider) RenderDocument(ctx context.Context, data DocumentData) ([]byte, error) {
	return nil, nil
}
