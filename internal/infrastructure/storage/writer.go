package storage

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"NewsSignals/internal/domain"
)

// InsertArticle stores a raw article and returns its id.
func (r *Repository) InsertArticle(ctx context.Context, a domain.Article) (int64, error) {
	query, args, err := r.sb.
		Insert("news_raw").
		Columns("title", "body", "press", "url", "published_at").
		Values(a.Title, a.Body, nullable(a.Press), nullable(a.URL), a.PublishedAt.UTC()).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build article insert: %w", err)
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert article: %w", err)
	}
	return id, nil
}

// SaveExtraction upserts the keywords extracted from an article by one
// model and prompt version.
func (r *Repository) SaveExtraction(ctx context.Context, newsID int64, keywords []string, model, promptVersion string) error {
	if keywords == nil {
		keywords = []string{}
	}
	raw, err := json.Marshal(keywords)
	if err != nil {
		return fmt.Errorf("encode keywords: %w", err)
	}

	return r.exec(ctx, "upsert extraction", r.sb.
		Insert("news_extraction").
		Columns("news_id", "keywords", "extractor_model", "prompt_version").
		Values(newsID, string(raw), model, promptVersion).
		Suffix("ON CONFLICT (news_id, extractor_model, prompt_version) DO UPDATE SET keywords = EXCLUDED.keywords"))
}

// SaveEmbedding upserts the embedding vector of an article.
func (r *Repository) SaveEmbedding(ctx context.Context, newsID int64, model string, vector []float64) error {
	raw, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}

	return r.exec(ctx, "upsert embedding", r.sb.
		Insert("news_embedding").
		Columns("news_id", "model", "vector").
		Values(newsID, model, string(raw)).
		Suffix("ON CONFLICT (news_id) DO UPDATE SET model = EXCLUDED.model, vector = EXCLUDED.vector"))
}

// UpsertStock registers a stock and its canonical name.
func (r *Repository) UpsertStock(ctx context.Context, code, name string) error {
	return r.exec(ctx, "upsert stock", r.sb.
		Insert("stock_master").
		Columns("stock_code", "stock_name").
		Values(code, name).
		Suffix("ON CONFLICT (stock_code) DO UPDATE SET stock_name = EXCLUDED.stock_name"))
}

// AddAlias maps an alternative name to a stock.
func (r *Repository) AddAlias(ctx context.Context, alias, code string) error {
	return r.exec(ctx, "insert alias", r.sb.
		Insert("stock_alias").
		Columns("alias", "stock_code").
		Values(alias, code).
		Suffix("ON CONFLICT DO NOTHING"))
}

// AddSubsidiary maps a subsidiary name to its listed parent.
func (r *Repository) AddSubsidiary(ctx context.Context, name, code string) error {
	return r.exec(ctx, "insert subsidiary", r.sb.
		Insert("subsidiary_mapping").
		Columns("subsidiary_name", "stock_code").
		Values(name, code).
		Suffix("ON CONFLICT DO NOTHING"))
}

// SavePrice upserts one daily price row.
func (r *Repository) SavePrice(ctx context.Context, p domain.PriceRow) error {
	return r.exec(ctx, "upsert price", r.sb.
		Insert("stock_price_daily_raw").
		Columns("stock_code", "trade_date", "close_price", "diff", "diff_rate").
		Values(p.StockCode, p.TradeDate.UTC(), p.Close, p.Diff, p.DiffRate).
		Suffix("ON CONFLICT (stock_code, trade_date) DO UPDATE SET " +
			"close_price = EXCLUDED.close_price, diff = EXCLUDED.diff, diff_rate = EXCLUDED.diff_rate"))
}

func (r *Repository) exec(ctx context.Context, op string, b sq.InsertBuilder) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build %s: %w", op, err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
