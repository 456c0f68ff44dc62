package pipeline

import (
	"fmt"
	"sync"

	"github.com/AnyUserName/imgcrush/internal/codec"
	"tailscale.com/types/lazy"
)

// session caches the codec capabilities acquired during one pipeline run.
// Each factory runs at most once per session, and a failed acquisition is
// remembered rather than retried.
type session struct {
	mu       sync.Mutex
	decoders map[string]*lazy.SyncValue[codec.Decoder]
	encoders map[string]*lazy.SyncValue[codec.Encoder]
}

func newSession() *session {
	return &session{
		decoders: make(map[string]*lazy.SyncValue[codec.Decoder]),
		encoders: make(map[string]*lazy.SyncValue[codec.Encoder]),
	}
}

func (s *session) decoder(d *codec.Descriptor) (codec.Decoder, error) {
	if !d.CanDecode() {
		return nil, fmt.Errorf("%w: %s", codec.ErrNoDecoder, d.Name)
	}
	dec, err := handle(&s.mu, s.decoders, d.Name).GetErr(d.Decoder)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", codec.ErrNoDecoder, d.Name, err)
	}
	return dec, nil
}

func (s *session) encoder(d *codec.Descriptor) (codec.Encoder, error) {
	if !d.CanEncode() {
		return nil, fmt.Errorf("%w: %s", codec.ErrNoEncoder, d.Name)
	}
	enc, err := handle(&s.mu, s.encoders, d.Name).GetErr(d.Encoder)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", codec.ErrNoEncoder, d.Name, err)
	}
	return enc, nil
}

func handle[T any](mu *sync.Mutex, m map[string]*lazy.SyncValue[T], name string) *lazy.SyncValue[T] {
	mu.Lock()
	defer mu.Unlock()
	v, ok := m[name]
	if !ok {
		v = new(lazy.SyncValue[T])
		m[name] = v
	}
	return v
}
