package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/storage"
)

// postgresStorage реализует интерфейс Storage поверх pgx.
// Суммы хранятся как NUMERIC(78,0) и передаются текстом.
type postgresStorage struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewStorage wraps a migrated pool.
func NewStorage(pool *pgxpool.Pool, logger *zap.Logger) storage.Storage {
	return &postgresStorage{pool: pool, logger: logger.Named("postgres")}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *postgresStorage) Next(ctx context.Context) (domain.ListingID, error) {
	var id int64
	if err := s.pool.QueryRow(ctx, "SELECT nextval('listing_id_seq')").Scan(&id); err != nil {
		return 0, fmt.Errorf("postgres: next listing id: %w", err)
	}
	return domain.ListingID(id), nil
}

const listingSelectCols = `id, token, creator, name, symbol, metadata_uri,
	sold::text, raised::text, is_open, liquidity_created, reward_reserve::text,
	created_at, graduated_at`

func scanListing(row pgx.Row) (*domain.Listing, error) {
	var (
		l                     domain.Listing
		id                    int64
		token, creator        string
		sold, raised, reserve string
		graduatedAt           *time.Time
	)
	if err := row.Scan(
		&id, &token, &creator, &l.Name, &l.Symbol, &l.MetadataURI,
		&sold, &raised, &l.IsOpen, &l.LiquidityCreated, &reserve,
		&l.CreatedAt, &graduatedAt,
	); err != nil {
		return nil, err
	}

	l.ID = domain.ListingID(id)
	l.Token = common.HexToAddress(token)
	l.Creator = common.HexToAddress(creator)
	if graduatedAt != nil {
		l.GraduatedAt = *graduatedAt
	}

	var err error
	if l.Sold, err = parseAmount(sold); err != nil {
		return nil, err
	}
	if l.Raised, err = parseAmount(raised); err != nil {
		return nil, err
	}
	if l.RewardReserve, err = parseAmount(reserve); err != nil {
		return nil, err
	}
	l.Contributions = make(map[common.Address]*domain.Contribution)
	return &l, nil
}

func parseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse amount %q: %w", s, err)
	}
	return v, nil
}

func (s *postgresStorage) Load(ctx context.Context, id domain.ListingID) (*domain.Listing, *domain.Pool, error) {
	return s.load(ctx, s.pool, "WHERE id = $1", int64(id))
}

func (s *postgresStorage) LoadByToken(ctx context.Context, token common.Address) (*domain.Listing, *domain.Pool, error) {
	return s.load(ctx, s.pool, "WHERE token = $1", token.Hex())
}

func (s *postgresStorage) load(ctx context.Context, q querier, where string, arg any) (*domain.Listing, *domain.Pool, error) {
	l, err := scanListing(q.QueryRow(ctx, "SELECT "+listingSelectCols+" FROM listings "+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, domain.ErrListingNotFound
		}
		return nil, nil, fmt.Errorf("postgres: load listing: %w", err)
	}

	if err := s.loadContributions(ctx, q, l); err != nil {
		return nil, nil, err
	}
	p, err := s.loadPool(ctx, q, l)
	if err != nil {
		return nil, nil, err
	}
	return l, p, nil
}

func (s *postgresStorage) loadContributions(ctx context.Context, q querier, l *domain.Listing) error {
	rows, err := q.Query(ctx, `
		SELECT account, tokens::text, paid::text, reward_claimed
		FROM contributions WHERE listing_id = $1 ORDER BY position`, int64(l.ID))
	if err != nil {
		return fmt.Errorf("postgres: load contributions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var account, tokens, paid string
		var claimed bool
		if err := rows.Scan(&account, &tokens, &paid, &claimed); err != nil {
			return fmt.Errorf("postgres: scan contribution: %w", err)
		}
		c := &domain.Contribution{RewardClaimed: claimed}
		if c.Tokens, err = parseAmount(tokens); err != nil {
			return err
		}
		if c.Paid, err = parseAmount(paid); err != nil {
			return err
		}
		addr := common.HexToAddress(account)
		l.Contributors = append(l.Contributors, addr)
		l.Contributions[addr] = c
	}
	return rows.Err()
}

func (s *postgresStorage) loadPool(ctx context.Context, q querier, l *domain.Listing) (*domain.Pool, error) {
	p := domain.NewPool(l.ID, l.Token)

	var currency, tokens, total string
	err := q.QueryRow(ctx, `
		SELECT seeded, currency_reserve::text, token_reserve::text, total_liquidity::text
		FROM pools WHERE listing_id = $1`, int64(l.ID)).Scan(&p.Seeded, &currency, &tokens, &total)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load pool: %w", err)
	}
	if p.CurrencyReserve, err = parseAmount(currency); err != nil {
		return nil, err
	}
	if p.TokenReserve, err = parseAmount(tokens); err != nil {
		return nil, err
	}
	if p.TotalLiquidity, err = parseAmount(total); err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT provider, liquidity::text, lock_expiry
		FROM positions WHERE listing_id = $1 ORDER BY position`, int64(l.ID))
	if err != nil {
		return nil, fmt.Errorf("postgres: load positions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var provider, liquidity string
		var expiry time.Time
		if err := rows.Scan(&provider, &liquidity, &expiry); err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		amount, err := parseAmount(liquidity)
		if err != nil {
			return nil, err
		}
		pos := p.Position(common.HexToAddress(provider))
		pos.Liquidity = amount
		pos.LockExpiry = expiry
	}
	return p, rows.Err()
}

// List returns listings with their contributions, ordered by id.
func (s *postgresStorage) List(ctx context.Context) ([]*domain.Listing, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+listingSelectCols+" FROM listings ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("postgres: list listings: %w", err)
	}

	var out []*domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("postgres: scan listing: %w", err)
		}
		out = append(out, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, l := range out {
		if err := s.loadContributions(ctx, s.pool, l); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Commit writes the change in one transaction.
func (s *postgresStorage) Commit(ctx context.Context, change storage.Change) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if change.Listing != nil {
		if err := writeListing(ctx, tx, change.Listing); err != nil {
			return err
		}
	}
	if change.Pool != nil {
		if err := writePool(ctx, tx, change.Pool); err != nil {
			return err
		}
	}
	if change.Treasury != nil {
		if _, err := tx.Exec(ctx,
			"UPDATE treasury SET balance = $1::numeric WHERE id = 1",
			change.Treasury.Dec()); err != nil {
			return fmt.Errorf("postgres: save treasury: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func writeListing(ctx context.Context, tx pgx.Tx, l *domain.Listing) error {
	var graduatedAt *time.Time
	if !l.GraduatedAt.IsZero() {
		graduatedAt = &l.GraduatedAt
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO listings (
			id, token, creator, name, symbol, metadata_uri,
			sold, raised, is_open, liquidity_created, reward_reserve,
			created_at, graduated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7::numeric, $8::numeric, $9, $10, $11::numeric,
			$12, $13
		) ON CONFLICT (id) DO UPDATE SET
			sold = EXCLUDED.sold,
			raised = EXCLUDED.raised,
			is_open = EXCLUDED.is_open,
			liquidity_created = EXCLUDED.liquidity_created,
			reward_reserve = EXCLUDED.reward_reserve,
			graduated_at = EXCLUDED.graduated_at`,
		int64(l.ID), l.Token.Hex(), l.Creator.Hex(), l.Name, l.Symbol, l.MetadataURI,
		domain.CloneAmount(l.Sold).Dec(), domain.CloneAmount(l.Raised).Dec(), l.IsOpen, l.LiquidityCreated,
		domain.CloneAmount(l.RewardReserve).Dec(),
		l.CreatedAt, graduatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: write listing %d: %w", l.ID, err)
	}

	batch := &pgx.Batch{}
	for i, addr := range l.Contributors {
		c := l.Contributions[addr]
		batch.Queue(`
			INSERT INTO contributions (listing_id, account, position, tokens, paid, reward_claimed)
			VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6)
			ON CONFLICT (listing_id, account) DO UPDATE SET
				tokens = EXCLUDED.tokens,
				paid = EXCLUDED.paid,
				reward_claimed = EXCLUDED.reward_claimed`,
			int64(l.ID), addr.Hex(), i, c.Tokens.Dec(), c.Paid.Dec(), c.RewardClaimed)
	}
	return sendBatch(ctx, tx, batch, "contribution")
}

func writePool(ctx context.Context, tx pgx.Tx, p *domain.Pool) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO pools (listing_id, token, seeded, currency_reserve, token_reserve, total_liquidity)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric)
		ON CONFLICT (listing_id) DO UPDATE SET
			seeded = EXCLUDED.seeded,
			currency_reserve = EXCLUDED.currency_reserve,
			token_reserve = EXCLUDED.token_reserve,
			total_liquidity = EXCLUDED.total_liquidity`,
		int64(p.ListingID), p.Token.Hex(), p.Seeded,
		p.CurrencyReserve.Dec(), p.TokenReserve.Dec(), p.TotalLiquidity.Dec(),
	)
	if err != nil {
		return fmt.Errorf("postgres: write pool %d: %w", p.ListingID, err)
	}

	batch := &pgx.Batch{}
	for i, addr := range p.Providers {
		pos := p.Positions[addr]
		batch.Queue(`
			INSERT INTO positions (listing_id, provider, position, liquidity, lock_expiry)
			VALUES ($1, $2, $3, $4::numeric, $5)
			ON CONFLICT (listing_id, provider) DO UPDATE SET
				liquidity = EXCLUDED.liquidity,
				lock_expiry = EXCLUDED.lock_expiry`,
			int64(p.ListingID), addr.Hex(), i, pos.Liquidity.Dec(), pos.LockExpiry)
	}
	return sendBatch(ctx, tx, batch, "position")
}

func sendBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch, what string) error {
	if batch.Len() == 0 {
		return nil
	}
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("postgres: write %s %d: %w", what, i, err)
		}
	}
	return br.Close()
}

func (s *postgresStorage) LoadTreasury(ctx context.Context) (*uint256.Int, error) {
	var balance string
	if err := s.pool.QueryRow(ctx, "SELECT balance::text FROM treasury WHERE id = 1").Scan(&balance); err != nil {
		return nil, fmt.Errorf("postgres: load treasury: %w", err)
	}
	return parseAmount(balance)
}

func (s *postgresStorage) SaveTreasury(ctx context.Context, balance *uint256.Int) error {
	return s.Commit(ctx, storage.Change{Treasury: domain.CloneAmount(balance)})
}
