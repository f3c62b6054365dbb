package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mselser95/betledger/pkg/types"
)

const (
	marketColumns = `market_id, title, status, creator_id, resolver_id, close_at, winning_outcome, created_at, resolved_at`
	offerColumns  = `bet_id, market_id, bettor_id, outcome, offer_amount, ask_amount, status, target_user_id, created_at`

	matchedColumns = `bo.bet_id, bo.market_id, bo.bettor_id, bo.outcome, bo.offer_amount, bo.ask_amount, bo.status,
		bo.target_user_id, bo.created_at, ab.accepted_bet_id, ab.acceptor_id, ab.status, ab.accepted_at`
)

type scanner interface {
	Scan(dest ...any) error
}

// ledgerTx implements Tx on a database/sql transaction.
type ledgerTx struct {
	tx      *sql.Tx
	dialect dialect
}

func (t *ledgerTx) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, t.dialect.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *ledgerTx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.dialect.rebind(query), args...)
}

func (t *ledgerTx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.dialect.rebind(query), args...)
}

// InsertMarket persists a market and its outcomes in creation order.
func (t *ledgerTx) InsertMarket(ctx context.Context, m types.Market) (types.Market, error) {
	if m.Status == "" {
		m.Status = types.MarketOpen
	}
	m.CreatedAt = m.CreatedAt.UTC()

	err := t.queryRow(ctx, `
		INSERT INTO markets (title, status, creator_id, resolver_id, close_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING market_id`,
		m.Title, string(m.Status), m.CreatorID, m.ResolverID, nullTime(m.CloseAt), m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		return types.Market{}, fmt.Errorf("insert market: %w", err)
	}

	for _, outcome := range m.Outcomes {
		_, err = t.exec(ctx, `INSERT INTO market_outcomes (market_id, outcome_name) VALUES ($1, $2)`, m.ID, outcome)
		if err != nil {
			return types.Market{}, fmt.Errorf("insert outcome %q: %w", outcome, err)
		}
	}

	return m, nil
}

// GetMarket loads one market. The lock applies to the market row only.
func (t *ledgerTx) GetMarket(ctx context.Context, id int64, lock Lock) (types.Market, error) {
	row := t.queryRow(ctx,
		`SELECT `+marketColumns+` FROM markets WHERE market_id = $1`+t.dialect.lockClause(lock), id)

	m, err := scanMarket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Market{}, ErrNotFound
	}
	if err != nil {
		return types.Market{}, fmt.Errorf("get market %d: %w", id, err)
	}

	outcomes, err := t.loadOutcomes(ctx, []int64{id})
	if err != nil {
		return types.Market{}, err
	}
	m.Outcomes = outcomes[id]

	return m, nil
}

// ListMarkets returns markets ordered by ID.
func (t *ledgerTx) ListMarkets(ctx context.Context, filter types.MarketFilter) ([]types.Market, error) {
	var conds []string
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.CreatorID != "" {
		args = append(args, filter.CreatorID)
		conds = append(conds, fmt.Sprintf("creator_id = $%d", len(args)))
	}

	query := `SELECT ` + marketColumns + ` FROM markets` + where(conds) + ` ORDER BY market_id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := t.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	defer rows.Close()

	markets := make([]types.Market, 0)
	for rows.Next() {
		m, scanErr := scanMarket(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan market: %w", scanErr)
		}
		markets = append(markets, m)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate markets: %w", err)
	}

	if len(markets) == 0 {
		return markets, nil
	}

	ids := make([]int64, len(markets))
	for i := range markets {
		ids[i] = markets[i].ID
	}

	outcomes, err := t.loadOutcomes(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range markets {
		markets[i].Outcomes = outcomes[markets[i].ID]
	}

	return markets, nil
}

// DueMarkets returns open markets whose close deadline has passed.
// The deadline comparison happens here rather than in SQL because SQLite
// stores timestamps as text.
func (t *ledgerTx) DueMarkets(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := t.query(ctx, `
		SELECT market_id, close_at FROM markets
		WHERE status = $1 AND close_at IS NOT NULL
		ORDER BY market_id`, string(types.MarketOpen))
	if err != nil {
		return nil, fmt.Errorf("query due markets: %w", err)
	}
	defer rows.Close()

	var due []int64
	for rows.Next() {
		var id int64
		var closeAt time.Time
		err = rows.Scan(&id, &closeAt)
		if err != nil {
			return nil, fmt.Errorf("scan due market: %w", err)
		}
		if !closeAt.After(now) {
			due = append(due, id)
		}
	}

	return due, rows.Err()
}

func (t *ledgerTx) SetResolver(ctx context.Context, id int64, resolverID string) error {
	n, err := t.exec(ctx, `UPDATE markets SET resolver_id = $1 WHERE market_id = $2`, resolverID, id)
	if err != nil {
		return fmt.Errorf("set resolver on market %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *ledgerTx) SetCloseAt(ctx context.Context, id int64, closeAt time.Time) error {
	n, err := t.exec(ctx, `UPDATE markets SET close_at = $1 WHERE market_id = $2`, closeAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("set close deadline on market %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *ledgerTx) TransitionMarket(
	ctx context.Context,
	id int64,
	from types.MarketStatus,
	to types.MarketStatus,
) (bool, error) {
	n, err := t.exec(ctx, `UPDATE markets SET status = $1 WHERE market_id = $2 AND status = $3`,
		string(to), id, string(from))
	if err != nil {
		return false, fmt.Errorf("transition market %d to %s: %w", id, to, err)
	}
	return n == 1, nil
}

func (t *ledgerTx) MarkResolved(ctx context.Context, id int64, winningOutcome string, at time.Time) (bool, error) {
	n, err := t.exec(ctx, `
		UPDATE markets SET status = $1, winning_outcome = $2, resolved_at = $3
		WHERE market_id = $4 AND status <> $1`,
		string(types.MarketResolved), winningOutcome, at.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("resolve market %d: %w", id, err)
	}
	return n == 1, nil
}

// DeleteMarkets removes dependents explicitly so the result does not rely on
// the backend enforcing ON DELETE CASCADE.
func (t *ledgerTx) DeleteMarkets(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	args := int64Args(ids)
	in := placeholders(1, len(ids))

	statements := []string{
		`DELETE FROM accepted_bets WHERE bet_id IN (SELECT bet_id FROM bet_offers WHERE market_id IN (` + in + `))`,
		`DELETE FROM bet_offers WHERE market_id IN (` + in + `)`,
		`DELETE FROM market_outcomes WHERE market_id IN (` + in + `)`,
	}
	for _, stmt := range statements {
		_, err := t.exec(ctx, stmt, args...)
		if err != nil {
			return 0, fmt.Errorf("delete market dependents: %w", err)
		}
	}

	n, err := t.exec(ctx, `DELETE FROM markets WHERE market_id IN (`+in+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete markets: %w", err)
	}

	return n, nil
}

func (t *ledgerTx) InsertOffer(ctx context.Context, o types.BetOffer) (types.BetOffer, error) {
	if o.Status == "" {
		o.Status = types.OfferOpen
	}
	o.CreatedAt = o.CreatedAt.UTC()

	err := t.queryRow(ctx, `
		INSERT INTO bet_offers (market_id, bettor_id, outcome, offer_amount, ask_amount, status, target_user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING bet_id`,
		o.MarketID, o.BettorID, o.Outcome, o.OfferAmount, o.AskAmount, string(o.Status),
		nullString(o.TargetID), o.CreatedAt,
	).Scan(&o.ID)
	if err != nil {
		return types.BetOffer{}, fmt.Errorf("insert offer: %w", err)
	}

	return o, nil
}

func (t *ledgerTx) GetOffer(ctx context.Context, id int64, lock Lock) (types.BetOffer, error) {
	row := t.queryRow(ctx,
		`SELECT `+offerColumns+` FROM bet_offers WHERE bet_id = $1`+t.dialect.lockClause(lock), id)

	o, err := scanOffer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.BetOffer{}, ErrNotFound
	}
	if err != nil {
		return types.BetOffer{}, fmt.Errorf("get offer %d: %w", id, err)
	}

	return o, nil
}

// ListOffers returns offers ordered by ID.
func (t *ledgerTx) ListOffers(ctx context.Context, filter types.OfferFilter) ([]types.BetOffer, error) {
	var conds []string
	var args []any

	if filter.MarketID != 0 {
		args = append(args, filter.MarketID)
		conds = append(conds, fmt.Sprintf("market_id = $%d", len(args)))
	}
	if filter.BettorID != "" {
		args = append(args, filter.BettorID)
		conds = append(conds, fmt.Sprintf("bettor_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	rows, err := t.query(ctx, `SELECT `+offerColumns+` FROM bet_offers`+where(conds)+` ORDER BY bet_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	offers := make([]types.BetOffer, 0)
	for rows.Next() {
		o, scanErr := scanOffer(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan offer: %w", scanErr)
		}
		offers = append(offers, o)
	}

	return offers, rows.Err()
}

func (t *ledgerTx) TransitionOffer(
	ctx context.Context,
	id int64,
	from types.OfferStatus,
	to types.OfferStatus,
) (bool, error) {
	n, err := t.exec(ctx, `UPDATE bet_offers SET status = $1 WHERE bet_id = $2 AND status = $3`,
		string(to), id, string(from))
	if err != nil {
		return false, fmt.Errorf("transition offer %d to %s: %w", id, to, err)
	}
	return n == 1, nil
}

func (t *ledgerTx) CancelOpenOffers(ctx context.Context, marketID int64) (int64, error) {
	n, err := t.exec(ctx, `UPDATE bet_offers SET status = $1 WHERE market_id = $2 AND status = $3`,
		string(types.OfferCancelled), marketID, string(types.OfferOpen))
	if err != nil {
		return 0, fmt.Errorf("cancel open offers on market %d: %w", marketID, err)
	}
	return n, nil
}

func (t *ledgerTx) InsertAcceptedBet(
	ctx context.Context,
	betID int64,
	acceptorID string,
	at time.Time,
) (types.AcceptedBet, error) {
	ab := types.AcceptedBet{
		BetID:      betID,
		AcceptorID: acceptorID,
		Status:     types.AcceptedActive,
		AcceptedAt: at.UTC(),
	}

	err := t.queryRow(ctx, `
		INSERT INTO accepted_bets (bet_id, acceptor_id, status, accepted_at)
		VALUES ($1, $2, $3, $4)
		RETURNING accepted_bet_id`,
		ab.BetID, ab.AcceptorID, string(ab.Status), ab.AcceptedAt,
	).Scan(&ab.ID)
	if err != nil {
		return types.AcceptedBet{}, fmt.Errorf("insert accepted bet for offer %d: %w", betID, err)
	}

	return ab, nil
}

// ListMatchedBets returns accepted offers joined with their acceptance, ordered by bet ID.
func (t *ledgerTx) ListMatchedBets(ctx context.Context, filter types.MatchedFilter) ([]types.MatchedBet, error) {
	var conds []string
	var args []any

	if filter.MarketID != 0 {
		args = append(args, filter.MarketID)
		conds = append(conds, fmt.Sprintf("bo.market_id = $%d", len(args)))
	}
	if filter.BettorID != "" {
		args = append(args, filter.BettorID)
		conds = append(conds, fmt.Sprintf("bo.bettor_id = $%d", len(args)))
	}
	if filter.AcceptorID != "" {
		args = append(args, filter.AcceptorID)
		conds = append(conds, fmt.Sprintf("ab.acceptor_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("ab.status = $%d", len(args)))
	}

	rows, err := t.query(ctx, `
		SELECT `+matchedColumns+`
		FROM accepted_bets ab
		JOIN bet_offers bo ON bo.bet_id = ab.bet_id`+where(conds)+`
		ORDER BY bo.bet_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list matched bets: %w", err)
	}
	defer rows.Close()

	bets := make([]types.MatchedBet, 0)
	for rows.Next() {
		mb, scanErr := scanMatched(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan matched bet: %w", scanErr)
		}
		bets = append(bets, mb)
	}

	return bets, rows.Err()
}

func (t *ledgerTx) CompleteActiveBets(ctx context.Context, marketID int64) (int64, error) {
	n, err := t.exec(ctx, `
		UPDATE accepted_bets SET status = $1
		WHERE status = $2 AND bet_id IN (SELECT bet_id FROM bet_offers WHERE market_id = $3)`,
		string(types.AcceptedCompleted), string(types.AcceptedActive), marketID)
	if err != nil {
		return 0, fmt.Errorf("complete bets on market %d: %w", marketID, err)
	}
	return n, nil
}

func (t *ledgerTx) ListMarketStats(ctx context.Context, ids []int64) (map[int64]types.MarketStats, error) {
	stats := make(map[int64]types.MarketStats, len(ids))
	if len(ids) == 0 {
		return stats, nil
	}

	args := append([]any{string(types.OfferOpen)}, int64Args(ids)...)
	rows, err := t.query(ctx, `
		SELECT market_id, COUNT(*), COALESCE(SUM(offer_amount), 0) FROM bet_offers
		WHERE status = $1 AND market_id IN (`+placeholders(2, len(ids))+`)
		GROUP BY market_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("count open offers: %w", err)
	}
	err = scanStats(rows, stats, func(s *types.MarketStats, n int64, volume float64) {
		s.OpenOffers, s.OpenVolume = n, volume
	})
	if err != nil {
		return nil, err
	}

	args[0] = string(types.AcceptedActive)
	rows, err = t.query(ctx, `
		SELECT bo.market_id, COUNT(*), COALESCE(SUM(bo.offer_amount), 0)
		FROM bet_offers bo JOIN accepted_bets ab ON ab.bet_id = bo.bet_id
		WHERE ab.status = $1 AND bo.market_id IN (`+placeholders(2, len(ids))+`)
		GROUP BY bo.market_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("count active bets: %w", err)
	}
	err = scanStats(rows, stats, func(s *types.MarketStats, n int64, volume float64) {
		s.ActiveBets, s.ActiveVolume = n, volume
	})
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// scanStats folds (market_id, count, volume) rows into stats and closes rows.
func scanStats(rows *sql.Rows, stats map[int64]types.MarketStats, set func(s *types.MarketStats, n int64, volume float64)) error {
	defer rows.Close()

	for rows.Next() {
		var id, n int64
		var volume float64
		err := rows.Scan(&id, &n, &volume)
		if err != nil {
			return fmt.Errorf("scan market stats: %w", err)
		}

		s := stats[id]
		s.MarketID = id
		set(&s, n, volume)
		stats[id] = s
	}

	return rows.Err()
}

func (t *ledgerTx) loadOutcomes(ctx context.Context, ids []int64) (map[int64][]string, error) {
	rows, err := t.query(ctx, `
		SELECT market_id, outcome_name FROM market_outcomes
		WHERE market_id IN (`+placeholders(1, len(ids))+`)
		ORDER BY market_id, outcome_id`, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("load outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := make(map[int64][]string, len(ids))
	for rows.Next() {
		var id int64
		var name string
		err = rows.Scan(&id, &name)
		if err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		outcomes[id] = append(outcomes[id], name)
	}

	return outcomes, rows.Err()
}

func scanMarket(row scanner) (types.Market, error) {
	var m types.Market
	var status string
	var closeAt, resolvedAt sql.NullTime
	var winning sql.NullString

	err := row.Scan(&m.ID, &m.Title, &status, &m.CreatorID, &m.ResolverID,
		&closeAt, &winning, &m.CreatedAt, &resolvedAt)
	if err != nil {
		return types.Market{}, err
	}

	m.Status = types.MarketStatus(status)
	m.CloseAt = timePtr(closeAt)
	m.ResolvedAt = timePtr(resolvedAt)
	if winning.Valid {
		m.WinningOutcome = &winning.String
	}

	return m, nil
}

func scanOffer(row scanner) (types.BetOffer, error) {
	var o types.BetOffer
	var status string
	var target sql.NullString

	err := row.Scan(&o.ID, &o.MarketID, &o.BettorID, &o.Outcome, &o.OfferAmount, &o.AskAmount,
		&status, &target, &o.CreatedAt)
	if err != nil {
		return types.BetOffer{}, err
	}

	o.Status = types.OfferStatus(status)
	if target.Valid {
		o.TargetID = &target.String
	}

	return o, nil
}

func scanMatched(row scanner) (types.MatchedBet, error) {
	var mb types.MatchedBet
	var offerStatus, acceptedStatus string
	var target sql.NullString

	err := row.Scan(&mb.Offer.ID, &mb.Offer.MarketID, &mb.Offer.BettorID, &mb.Offer.Outcome,
		&mb.Offer.OfferAmount, &mb.Offer.AskAmount, &offerStatus, &target, &mb.Offer.CreatedAt,
		&mb.Accepted.ID, &mb.Accepted.AcceptorID, &acceptedStatus, &mb.Accepted.AcceptedAt)
	if err != nil {
		return types.MatchedBet{}, err
	}

	mb.Offer.Status = types.OfferStatus(offerStatus)
	mb.Accepted.Status = types.AcceptedStatus(acceptedStatus)
	mb.Accepted.BetID = mb.Offer.ID
	if target.Valid {
		mb.Offer.TargetID = &target.String
	}

	return mb, nil
}

func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
