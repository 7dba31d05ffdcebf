package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/foodsignal/pkg/foodsignal/ingest"
	"github.com/cognicore/foodsignal/pkg/foodsignal/internalerr"
	"github.com/cognicore/foodsignal/pkg/foodsignal/score"
	"github.com/cognicore/foodsignal/pkg/foodsignal/store"
	"github.com/cognicore/foodsignal/pkg/foodsignal/taxonomy"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled and creates the
// schema when missing.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	policy TEXT NOT NULL,
	aggregate_code TEXT,
	normalization TEXT NOT NULL,
	time_window TEXT NOT NULL,
	weights_json TEXT NOT NULL,
	topic_applied INTEGER NOT NULL DEFAULT 0,
	languages_json TEXT NOT NULL,
	articles_json TEXT NOT NULL,
	skipped_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS mentions (
	run_id TEXT NOT NULL,
	language TEXT NOT NULL,
	article_id TEXT NOT NULL,
	region_id TEXT NOT NULL,
	raw INTEGER NOT NULL,
	rolled_up INTEGER NOT NULL,
	PRIMARY KEY(run_id, language, article_id, region_id),
	FOREIGN KEY(run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS risk_mentions (
	run_id TEXT NOT NULL,
	language TEXT NOT NULL,
	article_id TEXT NOT NULL,
	factor_id TEXT NOT NULL,
	cluster TEXT NOT NULL,
	count INTEGER NOT NULL,
	spans_json TEXT NOT NULL,
	PRIMARY KEY(run_id, language, article_id, factor_id),
	FOREIGN KEY(run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS region_scores (
	run_id TEXT NOT NULL,
	time_window TEXT NOT NULL,
	scope TEXT NOT NULL,
	region_id TEXT NOT NULL,
	level INTEGER NOT NULL,
	aggregate INTEGER NOT NULL DEFAULT 0,
	articles INTEGER NOT NULL,
	raw_geo_density REAL NOT NULL,
	raw_risk_freq REAL NOT NULL,
	raw_lang_breadth REAL NOT NULL,
	raw_admin_diversity REAL NOT NULL,
	raw_topic REAL NOT NULL,
	geo_density REAL NOT NULL,
	risk_freq REAL NOT NULL,
	lang_breadth REAL NOT NULL,
	admin_diversity REAL NOT NULL,
	topic REAL NOT NULL,
	composite REAL NOT NULL,
	PRIMARY KEY(run_id, time_window, scope, region_id),
	FOREIGN KEY(run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS associations (
	run_id TEXT NOT NULL,
	time_window TEXT NOT NULL,
	region_id TEXT NOT NULL,
	cluster TEXT NOT NULL,
	articles INTEGER NOT NULL,
	npmi REAL NOT NULL,
	PRIMARY KEY(run_id, time_window, region_id, cluster),
	FOREIGN KEY(run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_region_scores_region ON region_scores(region_id);
CREATE INDEX IF NOT EXISTS idx_risk_mentions_factor ON risk_mentions(factor_id);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return err
	}
	// Databases written before region_scores carried the aggregate flag.
	return ensureColumn(ctx, db, "region_scores", "aggregate", "INTEGER NOT NULL DEFAULT 0")
}

func ensureColumn(ctx context.Context, db *sql.DB, table, column, decl string) error {
	rows, err := db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl))
	return err
}

// SaveRun writes the manifest and all tables in one transaction.
func (s *sqliteStore) SaveRun(ctx context.Context, run store.Run) (err error) {
	m := run.Manifest
	if m.RunID == "" {
		return fmt.Errorf("%w: run id is required", internalerr.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = insertManifest(ctx, tx, m); err != nil {
		return err
	}
	if err = insertMentions(ctx, tx, m.RunID, run.Mentions); err != nil {
		return err
	}
	if err = insertRisks(ctx, tx, m.RunID, run.Risks); err != nil {
		return err
	}
	if err = insertScores(ctx, tx, m.RunID, run.Scores); err != nil {
		return err
	}
	if err = insertAssociations(ctx, tx, m.RunID, run.Associations); err != nil {
		return err
	}
	return tx.Commit()
}

func insertManifest(ctx context.Context, tx *sql.Tx, m store.Manifest) error {
	weights, err := json.Marshal(m.Weights)
	if err != nil {
		return err
	}
	langs, err := json.Marshal(m.Languages)
	if err != nil {
		return err
	}
	articles, err := json.Marshal(m.Articles)
	if err != nil {
		return err
	}
	skipped, err := json.Marshal(m.SkippedHits)
	if err != nil {
		return err
	}

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE run_id = ?`, m.RunID).Scan(&exists); err != nil {
		return err
	}
	if exists > 0 {
		return fmt.Errorf("%w: run %s", internalerr.ErrDuplicate, m.RunID)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO runs (run_id, created_at, policy, aggregate_code, normalization, time_window,
	weights_json, topic_applied, languages_json, articles_json, skipped_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, m.RunID, m.CreatedAt.UTC().Format(time.RFC3339Nano), m.Policy, m.AggregateCode, m.Normalization, m.Window,
		string(weights), boolToInt(m.TopicApplied), string(langs), string(articles), string(skipped))
	return err
}

func insertMentions(ctx context.Context, tx *sql.Tx, runID string, rows []store.MentionRow) error {
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO mentions (run_id, language, article_id, region_id, raw, rolled_up)
VALUES (?, ?, ?, ?, ?, ?);
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, runID, string(r.Language), r.ArticleID, string(r.RegionID), r.Raw, r.RolledUp); err != nil {
			return fmt.Errorf("insert mention %s/%s: %w", r.ArticleID, r.RegionID, err)
		}
	}
	return nil
}

func insertRisks(ctx context.Context, tx *sql.Tx, runID string, rows []store.RiskRow) error {
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO risk_mentions (run_id, language, article_id, factor_id, cluster, count, spans_json)
VALUES (?, ?, ?, ?, ?, ?, ?);
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		spans, err := json.Marshal(r.Spans)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, runID, string(r.Language), r.ArticleID, r.FactorID, r.Cluster, r.Count, string(spans)); err != nil {
			return fmt.Errorf("insert risk mention %s/%s: %w", r.ArticleID, r.FactorID, err)
		}
	}
	return nil
}

func insertScores(ctx context.Context, tx *sql.Tx, runID string, rows []score.RegionScore) error {
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO region_scores (run_id, time_window, scope, region_id, level, aggregate, articles,
	raw_geo_density, raw_risk_freq, raw_lang_breadth, raw_admin_diversity, raw_topic,
	geo_density, risk_freq, lang_breadth, admin_diversity, topic, composite)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, runID, r.Window, r.Scope, string(r.RegionID), int(r.Level), boolToInt(r.Aggregate), r.Articles,
			r.Raw.GeoDensity, r.Raw.RiskFreq, r.Raw.LangBreadth, r.Raw.AdminDiversity, r.Raw.Topic,
			r.Normalized.GeoDensity, r.Normalized.RiskFreq, r.Normalized.LangBreadth, r.Normalized.AdminDiversity, r.Normalized.Topic,
			r.Composite); err != nil {
			return fmt.Errorf("insert score %s/%s/%s: %w", r.Window, r.Scope, r.RegionID, err)
		}
	}
	return nil
}

func insertAssociations(ctx context.Context, tx *sql.Tx, runID string, rows []score.Association) error {
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO associations (run_id, time_window, region_id, cluster, articles, npmi)
VALUES (?, ?, ?, ?, ?, ?);
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range rows {
		if _, err := stmt.ExecContext(ctx, runID, a.Window, a.Region, a.Cluster, a.Articles, a.NPMI); err != nil {
			return fmt.Errorf("insert association %s/%s/%s: %w", a.Window, a.Region, a.Cluster, err)
		}
	}
	return nil
}

// GetManifest loads a run manifest.
func (s *sqliteStore) GetManifest(ctx context.Context, runID string) (store.Manifest, error) {
	row := s.db.QueryRowContext(ctx, manifestQuery+` WHERE run_id = ?;`, runID)
	m, err := scanManifest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Manifest{}, fmt.Errorf("%w: run %s", internalerr.ErrNotFound, runID)
	}
	return m, err
}

// ListRuns returns every manifest, oldest first.
func (s *sqliteStore) ListRuns(ctx context.Context) ([]store.Manifest, error) {
	rows, err := s.db.QueryContext(ctx, manifestQuery+` ORDER BY run_id;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Manifest
	for rows.Next() {
		m, err := scanManifest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

const manifestQuery = `
SELECT run_id, created_at, policy, aggregate_code, normalization, time_window,
	weights_json, topic_applied, languages_json, articles_json, skipped_json
FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanManifest(sc scanner) (store.Manifest, error) {
	var m store.Manifest
	var created, weights, langs, articles, skipped string
	var topic int
	if err := sc.Scan(&m.RunID, &created, &m.Policy, &m.AggregateCode, &m.Normalization, &m.Window,
		&weights, &topic, &langs, &articles, &skipped); err != nil {
		return store.Manifest{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return store.Manifest{}, fmt.Errorf("run %s created_at: %w", m.RunID, err)
	}
	m.CreatedAt = t
	m.TopicApplied = topic != 0
	for _, field := range []struct {
		raw string
		dst any
	}{
		{weights, &m.Weights},
		{langs, &m.Languages},
		{articles, &m.Articles},
		{skipped, &m.SkippedHits},
	} {
		if err := json.Unmarshal([]byte(field.raw), field.dst); err != nil {
			return store.Manifest{}, fmt.Errorf("run %s manifest: %w", m.RunID, err)
		}
	}
	return m, nil
}

// Mentions returns the mention table of a run sorted by language, article, region.
func (s *sqliteStore) Mentions(ctx context.Context, runID string) ([]store.MentionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT language, article_id, region_id, raw, rolled_up
FROM mentions
WHERE run_id = ?
ORDER BY language, article_id, region_id;
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.MentionRow
	for rows.Next() {
		var r store.MentionRow
		var lang, region string
		if err := rows.Scan(&lang, &r.ArticleID, &region, &r.Raw, &r.RolledUp); err != nil {
			return nil, err
		}
		r.Language = ingest.Language(lang)
		r.RegionID = taxonomy.RegionID(region)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RiskMentions returns the risk mention table of a run sorted by language,
// article, factor.
func (s *sqliteStore) RiskMentions(ctx context.Context, runID string) ([]store.RiskRow, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT language, article_id, factor_id, cluster, count, spans_json
FROM risk_mentions
WHERE run_id = ?
ORDER BY language, article_id, factor_id;
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.RiskRow
	for rows.Next() {
		var r store.RiskRow
		var lang, spans string
		if err := rows.Scan(&lang, &r.ArticleID, &r.FactorID, &r.Cluster, &r.Count, &spans); err != nil {
			return nil, err
		}
		r.Language = ingest.Language(lang)
		if err := json.Unmarshal([]byte(spans), &r.Spans); err != nil {
			return nil, fmt.Errorf("spans of %s/%s: %w", r.ArticleID, r.FactorID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Scores returns the region score table of a run sorted by window, scope, region.
func (s *sqliteStore) Scores(ctx context.Context, runID string) ([]score.RegionScore, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT time_window, scope, region_id, level, aggregate, articles,
	raw_geo_density, raw_risk_freq, raw_lang_breadth, raw_admin_diversity, raw_topic,
	geo_density, risk_freq, lang_breadth, admin_diversity, topic, composite
FROM region_scores
WHERE run_id = ?
ORDER BY time_window, scope, region_id;
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []score.RegionScore
	for rows.Next() {
		var r score.RegionScore
		var region string
		var level int
		if err := rows.Scan(&r.Window, &r.Scope, &region, &level, &r.Aggregate, &r.Articles,
			&r.Raw.GeoDensity, &r.Raw.RiskFreq, &r.Raw.LangBreadth, &r.Raw.AdminDiversity, &r.Raw.Topic,
			&r.Normalized.GeoDensity, &r.Normalized.RiskFreq, &r.Normalized.LangBreadth, &r.Normalized.AdminDiversity, &r.Normalized.Topic,
			&r.Composite); err != nil {
			return nil, err
		}
		r.RegionID = taxonomy.RegionID(region)
		r.Level = taxonomy.Level(level)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Associations returns the region and risk-cluster associations of a run
// sorted by window, region, cluster.
func (s *sqliteStore) Associations(ctx context.Context, runID string) ([]score.Association, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT time_window, region_id, cluster, articles, npmi
FROM associations
WHERE run_id = ?
ORDER BY time_window, region_id, cluster;
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []score.Association
	for rows.Next() {
		var a score.Association
		if err := rows.Scan(&a.Window, &a.Region, &a.Cluster, &a.Articles, &a.NPMI); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
