package session

import (
	"fmt"

	"github.com/roach88/mxcache/internal/pickle"
)

// Additional data binding a sealed pickle to its session kind.
var (
	aadOlm      = []byte("olm")
	aadInbound  = []byte("megolm-inbound")
	aadOutbound = []byte("megolm-outbound")
)

type sealed struct {
	inner  Pickler
	sealer *pickle.Sealer
}

// Sealed wraps p so every pickle is encrypted with s before it is stored.
// A pickle of one kind does not open as another.
func Sealed(p Pickler, s *pickle.Sealer) Pickler {
	return &sealed{inner: p, sealer: s}
}

func (p *sealed) seal(data []byte, err error, aad []byte) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	out, err := p.sealer.Seal(data, aad)
	if err != nil {
		return nil, fmt.Errorf("seal pickle: %w", err)
	}
	return out, nil
}

func (p *sealed) open(data, aad []byte) ([]byte, error) {
	out, err := p.sealer.Open(data, aad)
	if err != nil {
		return nil, fmt.Errorf("open pickle: %w", err)
	}
	return out, nil
}

func (p *sealed) PickleOlm(s OlmSession) ([]byte, error) {
	data, err := p.inner.PickleOlm(s)
	return p.seal(data, err, aadOlm)
}

func (p *sealed) UnpickleOlm(data []byte) (OlmSession, error) {
	plain, err := p.open(data, aadOlm)
	if err != nil {
		return nil, err
	}
	return p.inner.UnpickleOlm(plain)
}

func (p *sealed) PickleInbound(s InboundGroupSession) ([]byte, error) {
	data, err := p.inner.PickleInbound(s)
	return p.seal(data, err, aadInbound)
}

func (p *sealed) UnpickleInbound(data []byte) (InboundGroupSession, error) {
	plain, err := p.open(data, aadInbound)
	if err != nil {
		return nil, err
	}
	return p.inner.UnpickleInbound(plain)
}

func (p *sealed) PickleOutbound(s OutboundGroupSession) ([]byte, error) {
	data, err := p.inner.PickleOutbound(s)
	return p.seal(data, err, aadOutbound)
}

func (p *sealed) UnpickleOutbound(data []byte) (OutboundGroupSession, error) {
	plain, err := p.open(data, aadOutbound)
	if err != nil {
		return nil, err
	}
	return p.inner.UnpickleOutbound(plain)
}
