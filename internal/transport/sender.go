package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ContentType es el content type de los bodies protobuf en ambos sentidos.
const ContentType = "application/x-protobuf"

// ErrResponseTooLarge indica que el body superó MaxResponseBytes.
var ErrResponseTooLarge = errors.New("response body too large")

// Reply es la respuesta cruda del transporte.
type Reply struct {
	StatusCode int
	StatusText string
	Body       []byte
}

// Sender intercambia un payload codificado por los bytes crudos de la
// respuesta. endpoint es el nombre de la acción.
type Sender interface {
	Send(ctx context.Context, endpoint string, body []byte) (*Reply, error)
}

// HTTPOptions configura un HTTPSender.
type HTTPOptions struct {
	BaseURL          string
	BasePath         string
	EntityKind       string
	Timeout          time.Duration
	MaxResponseBytes int64
	Client           *http.Client // opcional
}

// HTTPSender hace POST a <BaseURL><BasePath>/<EntityKind>/<endpoint>.
// No guarda estado entre llamadas.
type HTTPSender struct {
	prefix   string
	maxBytes int64
	http     *http.Client
}

// NewHTTPSender construye el sender.
func NewHTTPSender(opts HTTPOptions) *HTTPSender {
	kind := opts.EntityKind
	if kind == "" {
		kind = "User"
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	path := strings.Trim(opts.BasePath, "/")
	if path != "" {
		base += "/" + path
	}

	hc := opts.Client
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	max := opts.MaxResponseBytes
	if max <= 0 {
		max = 4 << 20
	}
	return &HTTPSender{
		prefix:   base + "/" + kind + "/",
		maxBytes: max,
		http:     hc,
	}
}

// URL retorna la URL completa de una acción.
func (s *HTTPSender) URL(endpoint string) string {
	return s.prefix + endpoint
}

func (s *HTTPSender) Send(ctx context.Context, endpoint string, body []byte) (*Reply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL(endpoint), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", ContentType)
	req.Header.Set("Accept", ContentType)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if int64(len(b)) > s.maxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrResponseTooLarge, s.maxBytes)
	}
	return &Reply{
		StatusCode: resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Body:       b,
	}, nil
}
