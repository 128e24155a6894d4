package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"NewsSignals/internal/domain"
	"NewsSignals/internal/ports"
)

// idChunk bounds the size of IN lists.
const idChunk = 500

// Repository reads mentions, embeddings, articles and prices and appends
// cluster snapshots. It speaks Postgres and SQLite.
type Repository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var (
	_ ports.ClusterStore        = (*Repository)(nil)
	_ ports.NormalizationReader = (*Repository)(nil)
)

// NewRepository wires a sql.DB opened with the given driver.
func NewRepository(db *sql.DB, driver string) (*Repository, error) {
	format, err := placeholders(driver)
	if err != nil {
		return nil, err
	}
	return &Repository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(format),
	}, nil
}

// ListMentions returns extraction rows whose article was published in [From, To].
func (r *Repository) ListMentions(ctx context.Context, q ports.MentionQuery) ([]domain.MentionRecord, error) {
	where := sq.And{
		sq.GtOrEq{"r.published_at": q.From.UTC()},
		sq.LtOrEq{"r.published_at": q.To.UTC()},
	}
	if q.Model != "" {
		where = append(where, sq.Eq{"e.extractor_model": q.Model})
	}
	if q.PromptVersion != "" {
		where = append(where, sq.Eq{"e.prompt_version": q.PromptVersion})
	}

	query, args, err := r.sb.
		Select("e.news_id", "r.published_at", "e.keywords").
		From("news_extraction e").
		Join("news_raw r ON r.id = e.news_id").
		Where(where).
		OrderBy("e.news_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build mentions query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query mentions: %w", err)
	}

	var records []domain.MentionRecord
	err = drain(rows, func() error {
		var (
			rec domain.MentionRecord
			raw string
		)
		if err := rows.Scan(&rec.ArticleID, &rec.PublishedAt, &raw); err != nil {
			return fmt.Errorf("scan mention: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &rec.Keywords); err != nil {
			return fmt.Errorf("decode keywords of news %d: %w", rec.ArticleID, err)
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// NormalizationEntries loads all three normalization tables.
func (r *Repository) NormalizationEntries(ctx context.Context) ([]domain.NormalizationEntry, error) {
	sources := []struct {
		kind  domain.EntryKind
		query sq.SelectBuilder
	}{
		{domain.KindCanonical, r.sb.
			Select("m.stock_name", "m.stock_code", "m.stock_name").
			From("stock_master m")},
		{domain.KindAlias, r.sb.
			Select("a.alias", "a.stock_code", "COALESCE(m.stock_name, '')").
			From("stock_alias a").
			LeftJoin("stock_master m ON m.stock_code = a.stock_code")},
		{domain.KindSubsidiary, r.sb.
			Select("s.subsidiary_name", "s.stock_code", "COALESCE(m.stock_name, '')").
			From("subsidiary_mapping s").
			LeftJoin("stock_master m ON m.stock_code = s.stock_code")},
	}

	var entries []domain.NormalizationEntry
	for _, src := range sources {
		query, args, err := src.query.ToSql()
		if err != nil {
			return nil, fmt.Errorf("build %s query: %w", src.kind, err)
		}
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query %s entries: %w", src.kind, err)
		}
		err = drain(rows, func() error {
			e := domain.NormalizationEntry{Kind: src.kind}
			if err := rows.Scan(&e.Text, &e.StockCode, &e.StockName); err != nil {
				return fmt.Errorf("scan %s entry: %w", src.kind, err)
			}
			entries = append(entries, e)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// Embeddings returns the vectors stored for the given articles.
func (r *Repository) Embeddings(ctx context.Context, ids []int64) (map[int64][]float64, error) {
	out := make(map[int64][]float64, len(ids))
	err := r.inChunks(ids, func(chunk []int64) error {
		query, args, err := r.sb.
			Select("news_id", "vector").
			From("news_embedding").
			Where(sq.Eq{"news_id": chunk}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build embeddings query: %w", err)
		}
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query embeddings: %w", err)
		}
		return drain(rows, func() error {
			var (
				id  int64
				raw string
				vec []float64
			)
			if err := rows.Scan(&id, &raw); err != nil {
				return fmt.Errorf("scan embedding: %w", err)
			}
			if err := json.Unmarshal([]byte(raw), &vec); err != nil {
				return fmt.Errorf("decode embedding of news %d: %w", id, err)
			}
			out[id] = vec
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EmbeddedIDs returns which of ids have a non-empty stored vector. Vectors
// are not read.
func (r *Repository) EmbeddedIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error) {
	out := make(map[int64]struct{}, len(ids))
	err := r.inChunks(ids, func(chunk []int64) error {
		query, args, err := r.sb.
			Select("news_id").
			From("news_embedding").
			Where(sq.And{
				sq.Eq{"news_id": chunk},
				sq.NotEq{"vector": []string{"[]", "null"}},
			}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build embedded ids query: %w", err)
		}
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query embedded ids: %w", err)
		}
		return drain(rows, func() error {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("scan embedded id: %w", err)
			}
			out[id] = struct{}{}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Articles returns raw article rows for the given ids.
func (r *Repository) Articles(ctx context.Context, ids []int64) (map[int64]domain.Article, error) {
	out := make(map[int64]domain.Article, len(ids))
	err := r.inChunks(ids, func(chunk []int64) error {
		query, args, err := r.sb.
			Select("id", "title", "body", "press", "url", "published_at").
			From("news_raw").
			Where(sq.Eq{"id": chunk}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build articles query: %w", err)
		}
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query articles: %w", err)
		}
		return drain(rows, func() error {
			var (
				a          domain.Article
				press, url sql.NullString
			)
			if err := rows.Scan(&a.ID, &a.Title, &a.Body, &press, &url, &a.PublishedAt); err != nil {
				return fmt.Errorf("scan article: %w", err)
			}
			a.Press = press.String
			a.URL = url.String
			out[a.ID] = a
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LatestPrice returns the most recent daily price row, or nil.
func (r *Repository) LatestPrice(ctx context.Context, stockCode string) (*domain.PriceRow, error) {
	query, args, err := r.sb.
		Select("stock_code", "trade_date", "close_price", "diff", "diff_rate").
		From("stock_price_daily_raw").
		Where(sq.Eq{"stock_code": stockCode}).
		OrderBy("trade_date DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build price query: %w", err)
	}

	var (
		row        domain.PriceRow
		closePrice sql.NullInt64
		diff       sql.NullInt64
		diffRate   sql.NullFloat64
	)
	err = r.db.QueryRowContext(ctx, query, args...).
		Scan(&row.StockCode, &row.TradeDate, &closePrice, &diff, &diffRate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest price: %w", err)
	}

	if closePrice.Valid {
		row.Close = &closePrice.Int64
	}
	if diff.Valid {
		row.Diff = &diff.Int64
	}
	if diffRate.Valid {
		row.DiffRate = &diffRate.Float64
	}
	return &row, nil
}

// LatestInputHash returns the input hash of the newest snapshot for a stock.
func (r *Repository) LatestInputHash(ctx context.Context, stockCode string) (string, bool, error) {
	query, args, err := r.latestSnapshotQuery(stockCode, "input_hash")
	if err != nil {
		return "", false, err
	}

	var hash string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query latest input hash: %w", err)
	}
	return hash, true, nil
}

// LatestSnapshot returns the newest snapshot for a stock, or nil.
func (r *Repository) LatestSnapshot(ctx context.Context, stockCode string) (*domain.ClusterSnapshot, error) {
	query, args, err := r.latestSnapshotQuery(stockCode,
		"id", "stock_code", "stock_name", "total_count", "input_hash", "computed_at", "result_json")
	if err != nil {
		return nil, err
	}

	var (
		snap domain.ClusterSnapshot
		raw  string
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&snap.ID, &snap.StockCode, &snap.StockName, &snap.TotalCount,
		&snap.InputHash, &snap.ComputedAt, &raw,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &snap.Result); err != nil {
		return nil, fmt.Errorf("decode snapshot %d: %w", snap.ID, err)
	}
	return &snap, nil
}

func (r *Repository) latestSnapshotQuery(stockCode string, columns ...string) (string, []any, error) {
	query, args, err := r.sb.
		Select(columns...).
		From("stock_cluster_result").
		Where(sq.Eq{"stock_code": stockCode}).
		OrderBy("computed_at DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build snapshot query: %w", err)
	}
	return query, args, nil
}

// AppendSnapshot inserts a new snapshot row inside its own transaction.
func (r *Repository) AppendSnapshot(ctx context.Context, snap domain.ClusterSnapshot) (int64, error) {
	payload, err := json.Marshal(snap.Result)
	if err != nil {
		return 0, fmt.Errorf("encode snapshot: %w", err)
	}
	computedAt := snap.ComputedAt
	if computedAt.IsZero() {
		computedAt = time.Now()
	}

	query, args, err := r.sb.
		Insert("stock_cluster_result").
		Columns("stock_code", "stock_name", "total_count", "input_hash", "computed_at", "result_json").
		Values(snap.StockCode, snap.StockName, snap.TotalCount, snap.InputHash, computedAt.UTC(), string(payload)).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build snapshot insert: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit snapshot: %w", err)
	}
	return id, nil
}

func (r *Repository) inChunks(ids []int64, fn func([]int64) error) error {
	for start := 0; start < len(ids); start += idChunk {
		end := min(start+idChunk, len(ids))
		if err := fn(ids[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// drain calls scan for every row and closes rows.
func drain(rows *sql.Rows, scan func() error) error {
	for rows.Next() {
		if err := scan(); err != nil {
			_ = rows.Close()
			return err
		}
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return fmt.Errorf("close rows: %w", closeErr)
	}
	return nil
}
