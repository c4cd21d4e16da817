package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alejandrodnm/gapbot/internal/ports"
)

const (
	defaultStreamBase = "wss://stream.binance.com:9443/stream"

	pingInterval = 30 * time.Second
	// El stream @trade emite varias veces por segundo; si no llega nada en
	// este tiempo la conexión está muerta aunque el socket siga abierto.
	readTimeout  = 75 * time.Second
	writeTimeout = 5 * time.Second

	tickBuffer = 1024
)

// Stream implementa ports.PriceStream sobre el combined stream de Binance.
// Cada Connect abre una conexión fresca; los canales de ticks y errores
// sobreviven a las reconexiones.
type Stream struct {
	base    string
	symbols []string          // btcusdt, ethusdt, ...
	assets  map[string]string // BTCUSDT → BTC

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc

	ticks chan ports.Tick
	errs  chan error
}

// NewStream crea un Stream para los assets dados (BTC, ETH, SOL).
// Si base está vacío usa el URL de producción de Binance.
func NewStream(base string, assetList []string) *Stream {
	if base == "" {
		base = defaultStreamBase
	}
	symbols := make([]string, 0, len(assetList))
	assets := make(map[string]string, len(assetList))
	for _, a := range assetList {
		a = strings.ToUpper(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		sym := strings.ToLower(a) + "usdt"
		symbols = append(symbols, sym)
		assets[strings.ToUpper(sym)] = a
	}
	return &Stream{
		base:    base,
		symbols: symbols,
		assets:  assets,
		ticks:   make(chan ports.Tick, tickBuffer),
		errs:    make(chan error, 1),
	}
}

// Connect abre la conexión al combined stream y arranca los loops de
// lectura y ping. Una conexión previa se cierra antes de abrir la nueva.
func (s *Stream) Connect(ctx context.Context) error {
	streams := make([]string, len(s.symbols))
	for i, sym := range s.symbols {
		streams[i] = sym + "@trade"
	}
	url := fmt.Sprintf("%s?streams=%s", s.base, strings.Join(streams, "/"))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("binance.Connect: dial %q: %w", s.base, err)
	}

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.conn != nil {
		s.conn.Close()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.conn = conn
	s.cancel = cancel
	s.mu.Unlock()

	go s.pingLoop(runCtx, conn)
	go s.readLoop(runCtx, conn)

	slog.Info("binance: connected", "url", s.base, "symbols", len(s.symbols))
	return nil
}

// Ticks devuelve el canal de updates de precio.
func (s *Stream) Ticks() <-chan ports.Tick { return s.ticks }

// Errs devuelve el canal de errores de lectura.
func (s *Stream) Errs() <-chan error { return s.errs }

// Close cierra la conexión actual y detiene sus loops.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// pingLoop manda un ping periódico mientras la conexión viva.
func (s *Stream) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				slog.Debug("binance: ping failed", "err", err)
				return
			}
		}
	}
}

// readLoop lee frames del combined stream y publica ticks.
// Un error de lectura se reporta por el canal de errores y termina el loop;
// la reconexión es responsabilidad del feed.
func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return // cierre deliberado
			}
			select {
			case s.errs <- fmt.Errorf("binance: read: %w", err):
			default:
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		tick, ok := s.decodeFrame(data)
		if !ok {
			continue
		}

		select {
		case s.ticks <- tick:
		default:
			// backpressure: descartar el tick más viejo implícitamente
			slog.Debug("binance: tick buffer full, dropping", "asset", tick.Asset)
		}
	}
}

// combinedFrame es un mensaje del combined stream: {"stream": ..., "data": {...}}.
type combinedFrame struct {
	Stream string     `json:"stream"`
	Data   tradeEvent `json:"data"`
}

// tradeEvent es un evento @trade de Binance. El precio llega como string.
type tradeEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"` // epoch ms
	Symbol    string `json:"s"`
	Price     string `json:"p"`
}

// decodeFrame parsea un frame crudo a un Tick. Frames que no son trades de
// un símbolo suscrito se ignoran.
func (s *Stream) decodeFrame(data []byte) (ports.Tick, bool) {
	var frame combinedFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return ports.Tick{}, false
	}
	if frame.Data.EventType != "trade" {
		return ports.Tick{}, false
	}

	asset, ok := s.assets[strings.ToUpper(frame.Data.Symbol)]
	if !ok {
		return ports.Tick{}, false
	}

	price, err := strconv.ParseFloat(frame.Data.Price, 64)
	if err != nil || price <= 0 {
		return ports.Tick{}, false
	}

	return ports.Tick{
		Asset: asset,
		Price: price,
		Time:  time.UnixMilli(frame.Data.EventTime).UTC(),
	}, true
}
