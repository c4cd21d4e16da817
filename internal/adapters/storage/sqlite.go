package storage

// sqlite.go — repositorio del core sobre SQLite (pure Go, sin CGo).
//
// Tres tablas:
//   - `markets`: un row por mercado threshold descubierto (UPSERT por ID).
//   - `opportunities`: una fila por oportunidad detectada; solo muta el status.
//   - `positions`: ciclo de vida OPEN → CLOSING → CLOSED. La transición
//     OPEN → CLOSING es un UPDATE condicional: quien afecta la fila gana el
//     cierre, el resto recibe false.
//
// Los agregados de riesgo (exposición, posiciones abiertas, P&L diario,
// trades diarios) se calculan con queries sobre `positions` en cada check.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/gapbot/internal/domain"
)

const schema = `
-- Mercados threshold descubiertos, una fila por market ID
CREATE TABLE IF NOT EXISTS markets (
    id            TEXT PRIMARY KEY,
    question      TEXT    NOT NULL,
    asset         TEXT    NOT NULL,
    threshold     REAL    NOT NULL,
    direction     TEXT    NOT NULL,
    end_date      TEXT,
    volume_24h    REAL    NOT NULL DEFAULT 0,
    whitelisted   INTEGER NOT NULL DEFAULT 0,
    status        TEXT    NOT NULL,
    yes_token_id  TEXT    NOT NULL DEFAULT '',
    no_token_id   TEXT    NOT NULL DEFAULT '',
    discovered_at TEXT    NOT NULL
);

-- Oportunidades detectadas; inmutables salvo el status
CREATE TABLE IF NOT EXISTS opportunities (
    id             TEXT PRIMARY KEY,
    market_id      TEXT NOT NULL,
    asset          TEXT NOT NULL,
    threshold      REAL NOT NULL,
    asset_price    REAL NOT NULL,
    expected_price REAL NOT NULL,
    actual_price   REAL NOT NULL,
    gap            REAL NOT NULL,
    side           TEXT NOT NULL,
    detected_at    TEXT NOT NULL,
    status         TEXT NOT NULL
);

-- Posiciones simuladas
CREATE TABLE IF NOT EXISTS positions (
    id             TEXT PRIMARY KEY,
    market_id      TEXT NOT NULL,
    asset          TEXT NOT NULL,
    side           TEXT NOT NULL,
    entry_price    REAL NOT NULL,
    quantity       REAL NOT NULL,
    entry_time     TEXT NOT NULL,
    price_at_entry REAL NOT NULL,
    exit_price     REAL,
    exit_time      TEXT,
    exit_reason    TEXT,
    realized_pnl   REAL,
    status         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_markets_asset   ON markets(asset, status);
CREATE INDEX IF NOT EXISTS idx_opp_market      ON opportunities(market_id);
CREATE INDEX IF NOT EXISTS idx_opp_detected    ON opportunities(detected_at DESC);
CREATE INDEX IF NOT EXISTS idx_pos_status      ON positions(status);
CREATE INDEX IF NOT EXISTS idx_pos_entry       ON positions(entry_time DESC);
CREATE INDEX IF NOT EXISTS idx_pos_exit        ON positions(exit_time DESC);
`

// timeLayout es un formato de ancho fijo en UTC: las comparaciones
// lexicográficas en SQL coinciden con el orden temporal.
const timeLayout = "2006-01-02 15:04:05.000"

// SQLite implementa ports.Repository usando SQLite.
type SQLite struct {
	db *sql.DB
}

// NewSQLite abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLite: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLite: apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// UpsertMarket inserta o actualiza un mercado por ID.
// discovered_at se conserva del primer descubrimiento.
func (s *SQLite) UpsertMarket(ctx context.Context, m domain.ThresholdMarket) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO markets
			(id, question, asset, threshold, direction, end_date, volume_24h,
			 whitelisted, status, yes_token_id, no_token_id, discovered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			question     = excluded.question,
			asset        = excluded.asset,
			threshold    = excluded.threshold,
			direction    = excluded.direction,
			end_date     = excluded.end_date,
			volume_24h   = excluded.volume_24h,
			whitelisted  = excluded.whitelisted,
			status       = excluded.status,
			yes_token_id = excluded.yes_token_id,
			no_token_id  = excluded.no_token_id
	`,
		m.ID, m.Question, m.Asset, m.Threshold, string(m.Direction),
		fmtNullableTime(m.EndDate), m.Volume24h, boolToInt(m.Whitelisted),
		string(m.Status), m.YesTokenID, m.NoTokenID, fmtTime(m.DiscoveredAt),
	)
	if err != nil {
		return fmt.Errorf("storage.UpsertMarket %s: %w", m.ID, err)
	}
	return nil
}

// GetMarket devuelve un mercado por ID.
func (s *SQLite) GetMarket(ctx context.Context, id string) (domain.ThresholdMarket, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, question, asset, threshold, direction, end_date, volume_24h,
		       whitelisted, status, yes_token_id, no_token_id, discovered_at
		FROM markets WHERE id = ?
	`, id)
	m, err := scanMarket(row)
	if err != nil {
		return domain.ThresholdMarket{}, fmt.Errorf("storage.GetMarket %s: %w", id, err)
	}
	return m, nil
}

// ListActiveMarkets devuelve todos los mercados con status ACTIVE.
func (s *SQLite) ListActiveMarkets(ctx context.Context) ([]domain.ThresholdMarket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question, asset, threshold, direction, end_date, volume_24h,
		       whitelisted, status, yes_token_id, no_token_id, discovered_at
		FROM markets WHERE status = ? ORDER BY asset, threshold
	`, string(domain.MarketActive))
	if err != nil {
		return nil, fmt.Errorf("storage.ListActiveMarkets: query: %w", err)
	}
	defer rows.Close()

	var markets []domain.ThresholdMarket
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListActiveMarkets: scan: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// SaveOpportunity persiste una oportunidad recién detectada.
func (s *SQLite) SaveOpportunity(ctx context.Context, o domain.Opportunity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO opportunities
			(id, market_id, asset, threshold, asset_price, expected_price,
			 actual_price, gap, side, detected_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		o.ID, o.MarketID, o.Asset, o.Threshold, o.AssetPrice, o.ExpectedPrice,
		o.ActualPrice, o.Gap, string(o.Side), fmtTime(o.DetectedAt), string(o.Status),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveOpportunity %s: %w", o.ID, err)
	}
	return nil
}

// UpdateOpportunityStatus transiciona el status de una oportunidad.
func (s *SQLite) UpdateOpportunityStatus(ctx context.Context, id string, status domain.OpportunityStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE opportunities SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("storage.UpdateOpportunityStatus %s: %w", id, err)
	}
	return nil
}

// OpenPosition inserta la posición y marca la oportunidad EXECUTED en una
// sola transacción: o se persisten ambas o ninguna.
func (s *SQLite) OpenPosition(ctx context.Context, p domain.Position, opportunityID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.OpenPosition: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO positions
			(id, market_id, asset, side, entry_price, quantity, entry_time,
			 price_at_entry, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.MarketID, p.Asset, string(p.Side), p.EntryPrice, p.Quantity,
		fmtTime(p.EntryTime), p.PriceAtEntry, string(p.Status),
	); err != nil {
		return fmt.Errorf("storage.OpenPosition: insert %s: %w", p.ID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE opportunities SET status = ? WHERE id = ?`,
		string(domain.OpportunityExecuted), opportunityID,
	); err != nil {
		return fmt.Errorf("storage.OpenPosition: mark opportunity %s: %w", opportunityID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.OpenPosition: commit: %w", err)
	}
	return nil
}

// GetOpenPositions devuelve las posiciones con status OPEN.
func (s *SQLite) GetOpenPositions(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, market_id, asset, side, entry_price, quantity, entry_time,
		       price_at_entry, exit_price, exit_time, exit_reason, realized_pnl, status
		FROM positions WHERE status = ? ORDER BY entry_time
	`, string(domain.PositionOpen))
	if err != nil {
		return nil, fmt.Errorf("storage.GetOpenPositions: query: %w", err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

// ClaimClosing intenta la transición OPEN → CLOSING. El UPDATE condicional
// sobre el status resuelve la carrera: solo un caller afecta la fila.
func (s *SQLite) ClaimClosing(ctx context.Context, positionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE positions SET status = ? WHERE id = ? AND status = ?`,
		string(domain.PositionClosing), positionID, string(domain.PositionOpen),
	)
	if err != nil {
		return false, fmt.Errorf("storage.ClaimClosing %s: %w", positionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage.ClaimClosing %s: rows affected: %w", positionID, err)
	}
	return n == 1, nil
}

// ClosePosition persiste el cierre completo de una posición.
func (s *SQLite) ClosePosition(ctx context.Context, p domain.Position) error {
	if p.ExitPrice == nil || p.ExitTime == nil || p.RealizedPnL == nil {
		return fmt.Errorf("storage.ClosePosition %s: incomplete exit data", p.ID)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE positions
		SET exit_price = ?, exit_time = ?, exit_reason = ?, realized_pnl = ?, status = ?
		WHERE id = ?
	`,
		*p.ExitPrice, fmtTime(*p.ExitTime), string(p.ExitReason), *p.RealizedPnL,
		string(domain.PositionClosed), p.ID,
	)
	if err != nil {
		return fmt.Errorf("storage.ClosePosition %s: %w", p.ID, err)
	}
	return nil
}

// ClosedPositionsSince devuelve las posiciones cerradas desde el instante dado.
func (s *SQLite) ClosedPositionsSince(ctx context.Context, since time.Time) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, market_id, asset, side, entry_price, quantity, entry_time,
		       price_at_entry, exit_price, exit_time, exit_reason, realized_pnl, status
		FROM positions WHERE status = ? AND exit_time >= ? ORDER BY exit_time
	`, string(domain.PositionClosed), fmtTime(since))
	if err != nil {
		return nil, fmt.Errorf("storage.ClosedPositionsSince: query: %w", err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

// OpenExposure devuelve la suma de cost basis de las posiciones no cerradas.
// CLOSING cuenta como expuesto: el capital sigue comprometido hasta el cierre.
func (s *SQLite) OpenExposure(ctx context.Context) (float64, error) {
	var exposure float64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(quantity * entry_price), 0) FROM positions WHERE status != ?`,
		string(domain.PositionClosed),
	).Scan(&exposure)
	if err != nil {
		return 0, fmt.Errorf("storage.OpenExposure: %w", err)
	}
	return exposure, nil
}

// OpenPositionCount devuelve cuántas posiciones siguen abiertas (incluye CLOSING).
func (s *SQLite) OpenPositionCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM positions WHERE status != ?`,
		string(domain.PositionClosed),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("storage.OpenPositionCount: %w", err)
	}
	return count, nil
}

// RealizedPnLSince devuelve el P&L realizado desde el instante dado.
func (s *SQLite) RealizedPnLSince(ctx context.Context, since time.Time) (float64, error) {
	var pnl float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(realized_pnl), 0) FROM positions
		WHERE status = ? AND exit_time >= ?
	`, string(domain.PositionClosed), fmtTime(since)).Scan(&pnl)
	if err != nil {
		return 0, fmt.Errorf("storage.RealizedPnLSince: %w", err)
	}
	return pnl, nil
}

// TradesSince devuelve cuántas posiciones se abrieron desde el instante dado.
func (s *SQLite) TradesSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM positions WHERE entry_time >= ?`, fmtTime(since),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("storage.TradesSince: %w", err)
	}
	return count, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// scanner cubre *sql.Row y *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMarket(row scanner) (domain.ThresholdMarket, error) {
	var m domain.ThresholdMarket
	var direction, status, discoveredAt string
	var endDate sql.NullString
	var whitelisted int

	if err := row.Scan(
		&m.ID, &m.Question, &m.Asset, &m.Threshold, &direction, &endDate,
		&m.Volume24h, &whitelisted, &status, &m.YesTokenID, &m.NoTokenID,
		&discoveredAt,
	); err != nil {
		return domain.ThresholdMarket{}, err
	}

	m.Direction = domain.Direction(direction)
	m.Status = domain.MarketStatus(status)
	m.Whitelisted = whitelisted == 1
	m.DiscoveredAt = parseTime(discoveredAt)
	if endDate.Valid {
		m.EndDate = parseTime(endDate.String)
	}
	return m, nil
}

func scanPositions(rows *sql.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		var side, status, entryTime string
		var exitPrice, realizedPnL sql.NullFloat64
		var exitTime, exitReason sql.NullString

		if err := rows.Scan(
			&p.ID, &p.MarketID, &p.Asset, &side, &p.EntryPrice, &p.Quantity,
			&entryTime, &p.PriceAtEntry, &exitPrice, &exitTime, &exitReason,
			&realizedPnL, &status,
		); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}

		p.Side = domain.Side(side)
		p.Status = domain.PositionStatus(status)
		p.EntryTime = parseTime(entryTime)
		if exitPrice.Valid {
			v := exitPrice.Float64
			p.ExitPrice = &v
		}
		if exitTime.Valid {
			t := parseTime(exitTime.String)
			p.ExitTime = &t
		}
		if exitReason.Valid {
			p.ExitReason = domain.ExitReason(exitReason.String)
		}
		if realizedPnL.Valid {
			v := realizedPnL.Float64
			p.RealizedPnL = &v
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// fmtNullableTime devuelve NULL para fechas sin definir.
func fmtNullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return fmtTime(t)
}

func parseTime(s string) time.Time {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
