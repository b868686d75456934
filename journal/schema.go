package journal

const Schema = `
CREATE TABLE IF NOT EXISTS candles (
	symbol TEXT NOT NULL,
	start DATETIME NOT NULL,
	width_seconds INTEGER NOT NULL,
	open TEXT NOT NULL,
	high TEXT NOT NULL,
	low TEXT NOT NULL,
	close TEXT NOT NULL,
	volume INTEGER NOT NULL,
	PRIMARY KEY (symbol, width_seconds, start)
);

CREATE TABLE IF NOT EXISTS valuations (
	account_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	cash TEXT NOT NULL,
	invested TEXT NOT NULL,
	current_value TEXT NOT NULL,
	net_worth TEXT NOT NULL,
	total_pnl TEXT NOT NULL,
	day_pnl TEXT NOT NULL,
	holdings INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_valuations_account_time ON valuations(account_id, time);
`
