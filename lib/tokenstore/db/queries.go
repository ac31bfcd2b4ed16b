package db

import (
	"context"
	"database/sql"
)

const setImageUrlIfEmpty = `
UPDATE token_deployments
SET image_url = ?
WHERE token_address = ?
AND (image_url IS NULL OR image_url = '')
`

type SetImageUrlIfEmptyParams struct {
	ImageUrl     string
	TokenAddress string
}

// SetImageUrlIfEmpty fills in the canonical image URL only when the row
// does not already hold one. Returns the number of rows changed, which is
// zero when the row is missing or already populated.
func (q *Queries) SetImageUrlIfEmpty(ctx context.Context, arg SetImageUrlIfEmptyParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, setImageUrlIfEmpty, arg.ImageUrl, arg.TokenAddress)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listAddressesNeedingArenaImage = `
SELECT token_address FROM token_deployments
WHERE (
    arena_image_scraped_at IS NULL
    OR arena_image_scrape_status = 'failed'
    OR arena_image_scraped_at < ?
    OR arena_image_url IS NULL
)
AND (? = '' OR image_url IS NULL OR image_url NOT LIKE '%' || ? || '%')
LIMIT ?
`

type ListAddressesNeedingArenaImageParams struct {
	StaleBefore int64
	SkipHost    string
	Limit       int64
}

// ListAddressesNeedingArenaImage selects addresses that were never
// scraped, failed, went stale, or have no recorded URL. When SkipHost is
// set, rows whose canonical URL already comes from that host are excluded.
// A negative Limit disables the limit.
func (q *Queries) ListAddressesNeedingArenaImage(ctx context.Context, arg ListAddressesNeedingArenaImageParams) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listAddressesNeedingArenaImage,
		arg.StaleBefore,
		arg.SkipHost,
		arg.SkipHost,
		arg.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var tokenAddress string
		if err := rows.Scan(&tokenAddress); err != nil {
			return nil, err
		}
		items = append(items, tokenAddress)
	}
	return items, rows.Err()
}

const recordArenaImageResult = `
UPDATE token_deployments
SET arena_image_scraped_at = ?,
    arena_image_scrape_status = ?,
    arena_image_url = ?,
    arena_image_file_path = ?
WHERE token_address = ?
`

type RecordArenaImageResultParams struct {
	ScrapedAt    int64
	Status       string
	ImageUrl     sql.NullString
	FilePath     sql.NullString
	TokenAddress string
}

func (q *Queries) RecordArenaImageResult(ctx context.Context, arg RecordArenaImageResultParams) error {
	_, err := q.db.ExecContext(ctx, recordArenaImageResult,
		arg.ScrapedAt,
		arg.Status,
		arg.ImageUrl,
		arg.FilePath,
		arg.TokenAddress,
	)
	return err
}

const listBondedTokens = `
SELECT token_address, token_name, token_symbol
FROM token_deployments
WHERE lp_deployed = TRUE
`

type ListBondedTokensRow struct {
	TokenAddress string
	TokenName    sql.NullString
	TokenSymbol  sql.NullString
}

func (q *Queries) ListBondedTokens(ctx context.Context) ([]ListBondedTokensRow, error) {
	rows, err := q.db.QueryContext(ctx, listBondedTokens)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListBondedTokensRow
	for rows.Next() {
		var i ListBondedTokensRow
		if err := rows.Scan(&i.TokenAddress, &i.TokenName, &i.TokenSymbol); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const upsertMarketData = `
INSERT INTO arena_market_data (
    token_address, token_name, token_symbol, market_cap,
    price_usd, volume_24h, liquidity_usd, website, last_updated
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (token_address) DO UPDATE SET
    token_name = excluded.token_name,
    token_symbol = excluded.token_symbol,
    market_cap = excluded.market_cap,
    price_usd = excluded.price_usd,
    volume_24h = excluded.volume_24h,
    liquidity_usd = excluded.liquidity_usd,
    website = excluded.website,
    last_updated = excluded.last_updated
`

type UpsertMarketDataParams struct {
	TokenAddress string
	TokenName    sql.NullString
	TokenSymbol  sql.NullString
	MarketCap    sql.NullInt64
	PriceUsd     sql.NullFloat64
	Volume24h    sql.NullFloat64
	LiquidityUsd sql.NullFloat64
	Website      sql.NullString
	LastUpdated  int64
}

func (q *Queries) UpsertMarketData(ctx context.Context, arg UpsertMarketDataParams) error {
	_, err := q.db.ExecContext(ctx, upsertMarketData,
		arg.TokenAddress,
		arg.TokenName,
		arg.TokenSymbol,
		arg.MarketCap,
		arg.PriceUsd,
		arg.Volume24h,
		arg.LiquidityUsd,
		arg.Website,
		arg.LastUpdated,
	)
	return err
}

const getMarketData = `
SELECT token_address, token_name, token_symbol, market_cap,
    price_usd, volume_24h, liquidity_usd, website, last_updated
FROM arena_market_data
WHERE token_address = ?
`

type ArenaMarketData struct {
	TokenAddress string
	TokenName    sql.NullString
	TokenSymbol  sql.NullString
	MarketCap    sql.NullInt64
	PriceUsd     sql.NullFloat64
	Volume24h    sql.NullFloat64
	LiquidityUsd sql.NullFloat64
	Website      sql.NullString
	LastUpdated  int64
}

func (q *Queries) GetMarketData(ctx context.Context, tokenAddress string) (ArenaMarketData, error) {
	row := q.db.QueryRowContext(ctx, getMarketData, tokenAddress)
	var i ArenaMarketData
	err := row.Scan(
		&i.TokenAddress,
		&i.TokenName,
		&i.TokenSymbol,
		&i.MarketCap,
		&i.PriceUsd,
		&i.Volume24h,
		&i.LiquidityUsd,
		&i.Website,
		&i.LastUpdated,
	)
	return i, err
}

const getTokenImages = `
SELECT image_url, arena_image_url, arena_image_scrape_status, arena_image_file_path
FROM token_deployments
WHERE token_address = ?
`

type GetTokenImagesRow struct {
	ImageUrl               sql.NullString
	ArenaImageUrl          sql.NullString
	ArenaImageScrapeStatus sql.NullString
	ArenaImageFilePath     sql.NullString
}

func (q *Queries) GetTokenImages(ctx context.Context, tokenAddress string) (GetTokenImagesRow, error) {
	row := q.db.QueryRowContext(ctx, getTokenImages, tokenAddress)
	var i GetTokenImagesRow
	err := row.Scan(&i.ImageUrl, &i.ArenaImageUrl, &i.ArenaImageScrapeStatus, &i.ArenaImageFilePath)
	return i, err
}

const listOrphanedImageRows = `
SELECT token_address, arena_image_file_path
FROM token_deployments
WHERE arena_image_scrape_status IS NOT NULL
AND arena_image_scrape_status != 'success'
AND arena_image_file_path IS NOT NULL
`

type ListOrphanedImageRowsRow struct {
	TokenAddress       string
	ArenaImageFilePath sql.NullString
}

func (q *Queries) ListOrphanedImageRows(ctx context.Context) ([]ListOrphanedImageRowsRow, error) {
	rows, err := q.db.QueryContext(ctx, listOrphanedImageRows)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListOrphanedImageRowsRow
	for rows.Next() {
		var i ListOrphanedImageRowsRow
		if err := rows.Scan(&i.TokenAddress, &i.ArenaImageFilePath); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const clearFailedImagePaths = `
UPDATE token_deployments
SET arena_image_file_path = NULL
WHERE arena_image_scrape_status IS NOT NULL
AND arena_image_scrape_status != 'success'
`

func (q *Queries) ClearFailedImagePaths(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, clearFailedImagePaths)
	return err
}

const countTokenDeployments = `SELECT COUNT(*) FROM token_deployments`

func (q *Queries) CountTokenDeployments(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countTokenDeployments)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countArenaImageStatus = `
SELECT COUNT(*) FROM token_deployments WHERE arena_image_scrape_status = ?
`

func (q *Queries) CountArenaImageStatus(ctx context.Context, status string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countArenaImageStatus, status)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countArenaImageNotAttempted = `
SELECT COUNT(*) FROM token_deployments WHERE arena_image_scraped_at IS NULL
`

func (q *Queries) CountArenaImageNotAttempted(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countArenaImageNotAttempted)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countWithArenaImageUrl = `
SELECT COUNT(*) FROM token_deployments WHERE arena_image_url IS NOT NULL
`

func (q *Queries) CountWithArenaImageUrl(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countWithArenaImageUrl)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countWithImageUrl = `
SELECT COUNT(*) FROM token_deployments
WHERE image_url IS NOT NULL AND image_url != ''
`

func (q *Queries) CountWithImageUrl(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countWithImageUrl)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countImageUrlFromHost = `
SELECT COUNT(*) FROM token_deployments
WHERE image_url LIKE '%' || ? || '%'
`

func (q *Queries) CountImageUrlFromHost(ctx context.Context, host string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countImageUrlFromHost, host)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listImageSourcePairs = `
SELECT token_address, token_name, token_symbol, image_url, arena_image_url
FROM token_deployments
WHERE image_url IS NOT NULL AND image_url != '' AND arena_image_url IS NOT NULL
LIMIT ?
`

type ListImageSourcePairsRow struct {
	TokenAddress  string
	TokenName     sql.NullString
	TokenSymbol   sql.NullString
	ImageUrl      sql.NullString
	ArenaImageUrl sql.NullString
}

// ListImageSourcePairs returns tokens that have images from both sources,
// for side by side comparison.
func (q *Queries) ListImageSourcePairs(ctx context.Context, limit int64) ([]ListImageSourcePairsRow, error) {
	rows, err := q.db.QueryContext(ctx, listImageSourcePairs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListImageSourcePairsRow
	for rows.Next() {
		var i ListImageSourcePairsRow
		if err := rows.Scan(&i.TokenAddress, &i.TokenName, &i.TokenSymbol, &i.ImageUrl, &i.ArenaImageUrl); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
