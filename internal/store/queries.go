package store

// SQL query constants organized by entity.
// All SQL lives here — SQLiteStore methods reference these constants.

// Product queries.
const (
	queryTrackedProductIDs = `
		SELECT id FROM products`

	queryUpsertProduct = `
		INSERT INTO products (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			updated_at = excluded.updated_at`

	queryRemoveProduct = `
		DELETE FROM products WHERE id = ?`

	queryListProducts = `
		SELECT id, name, created_at, updated_at
		FROM products
		ORDER BY id`
)

// Price history queries.
const (
	queryHistoricalLow = `
		SELECT MIN(price)
		FROM price_history
		WHERE product_id = ?`

	queryLatestPrice = `
		SELECT price
		FROM price_history
		WHERE product_id = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1`

	// Guarded insert: zero rows affected means the product is unknown.
	queryRecordPrice = `
		INSERT INTO price_history (product_id, price, recorded_at)
		SELECT ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM products WHERE id = ?)`

	queryTouchProduct = `
		UPDATE products SET updated_at = ? WHERE id = ?`

	queryPriceHistory = `
		SELECT product_id, price, recorded_at
		FROM price_history
		WHERE product_id = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`

	queryCountObservations = `
		SELECT COUNT(*)
		FROM price_history
		WHERE product_id = ?`
)

// Run bookkeeping queries.
const (
	queryInsertRunRecord = `
		INSERT INTO runs (id, started_at, status)
		VALUES (?, ?, ?)`

	queryCompleteRunRecord = `
		UPDATE runs SET
			completed_at = ?,
			status = ?,
			error = ?,
			tracked = ?,
			added = ?,
			removed = ?,
			new_lows = ?,
			alerts_sent = ?
		WHERE id = ?`

	queryListRunRecords = `
		SELECT id, started_at, completed_at, status, error,
			tracked, added, removed, new_lows, alerts_sent
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?`
)
