package storage

// The four ledger relations. Both schemas enforce the same invariants:
// winning_outcome is set iff status is resolved, offers reference an outcome of
// their own market, and an offer is accepted at most once.

const postgresSchema = `
CREATE TABLE IF NOT EXISTS markets (
    market_id       BIGSERIAL PRIMARY KEY,
    title           TEXT NOT NULL CHECK (title <> ''),
    status          TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'closed', 'resolved')),
    creator_id      TEXT NOT NULL,
    resolver_id     TEXT NOT NULL,
    close_at        TIMESTAMPTZ,
    winning_outcome TEXT,
    created_at      TIMESTAMPTZ NOT NULL,
    resolved_at     TIMESTAMPTZ,
    CHECK ((status = 'resolved') = (winning_outcome IS NOT NULL))
);

CREATE TABLE IF NOT EXISTS market_outcomes (
    outcome_id   BIGSERIAL PRIMARY KEY,
    market_id    BIGINT NOT NULL REFERENCES markets(market_id) ON DELETE CASCADE,
    outcome_name TEXT NOT NULL CHECK (outcome_name <> ''),
    UNIQUE (market_id, outcome_name)
);

CREATE TABLE IF NOT EXISTS bet_offers (
    bet_id         BIGSERIAL PRIMARY KEY,
    market_id      BIGINT NOT NULL REFERENCES markets(market_id) ON DELETE CASCADE,
    bettor_id      TEXT NOT NULL,
    outcome        TEXT NOT NULL,
    offer_amount   DOUBLE PRECISION NOT NULL CHECK (offer_amount > 0),
    ask_amount     DOUBLE PRECISION NOT NULL CHECK (ask_amount >= 0),
    status         TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'accepted', 'cancelled')),
    target_user_id TEXT,
    created_at     TIMESTAMPTZ NOT NULL,
    FOREIGN KEY (market_id, outcome) REFERENCES market_outcomes(market_id, outcome_name) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS accepted_bets (
    accepted_bet_id BIGSERIAL PRIMARY KEY,
    bet_id          BIGINT NOT NULL UNIQUE REFERENCES bet_offers(bet_id) ON DELETE CASCADE,
    acceptor_id     TEXT NOT NULL,
    status          TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'completed', 'void')),
    accepted_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_markets_status_close ON markets(status, close_at);
CREATE INDEX IF NOT EXISTS idx_offers_market_status ON bet_offers(market_id, status);
CREATE INDEX IF NOT EXISTS idx_offers_bettor ON bet_offers(bettor_id);
CREATE INDEX IF NOT EXISTS idx_accepted_acceptor ON accepted_bets(acceptor_id);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS markets (
    market_id       INTEGER PRIMARY KEY AUTOINCREMENT,
    title           TEXT NOT NULL CHECK (title <> ''),
    status          TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'closed', 'resolved')),
    creator_id      TEXT NOT NULL,
    resolver_id     TEXT NOT NULL,
    close_at        DATETIME,
    winning_outcome TEXT,
    created_at      DATETIME NOT NULL,
    resolved_at     DATETIME,
    CHECK ((status = 'resolved') = (winning_outcome IS NOT NULL))
);

CREATE TABLE IF NOT EXISTS market_outcomes (
    outcome_id   INTEGER PRIMARY KEY AUTOINCREMENT,
    market_id    INTEGER NOT NULL REFERENCES markets(market_id) ON DELETE CASCADE,
    outcome_name TEXT NOT NULL CHECK (outcome_name <> ''),
    UNIQUE (market_id, outcome_name)
);

CREATE TABLE IF NOT EXISTS bet_offers (
    bet_id         INTEGER PRIMARY KEY AUTOINCREMENT,
    market_id      INTEGER NOT NULL REFERENCES markets(market_id) ON DELETE CASCADE,
    bettor_id      TEXT NOT NULL,
    outcome        TEXT NOT NULL,
    offer_amount   REAL NOT NULL CHECK (offer_amount > 0),
    ask_amount     REAL NOT NULL CHECK (ask_amount >= 0),
    status         TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'accepted', 'cancelled')),
    target_user_id TEXT,
    created_at     DATETIME NOT NULL,
    FOREIGN KEY (market_id, outcome) REFERENCES market_outcomes(market_id, outcome_name) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS accepted_bets (
    accepted_bet_id INTEGER PRIMARY KEY AUTOINCREMENT,
    bet_id          INTEGER NOT NULL UNIQUE REFERENCES bet_offers(bet_id) ON DELETE CASCADE,
    acceptor_id     TEXT NOT NULL,
    status          TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'completed', 'void')),
    accepted_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_markets_status_close ON markets(status, close_at);
CREATE INDEX IF NOT EXISTS idx_offers_market_status ON bet_offers(market_id, status);
CREATE INDEX IF NOT EXISTS idx_offers_bettor ON bet_offers(bettor_id);
CREATE INDEX IF NOT EXISTS idx_accepted_acceptor ON accepted_bets(acceptor_id);
`
