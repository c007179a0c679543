package storage

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (
                      start_time,
                      node,
                      device,
                      config)
VALUES (CURRENT_TIMESTAMP, ?, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    start_time,
    node,
    device,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    node,
    device,
    config
FROM sessions`

	insertSamplesSQL = `
INSERT INTO samples (session_id,
                     sweep,
                     timestamp,
                     frequency,
                     power)
VALUES `

	selectFilterValuesSQL = `
SELECT
    MIN(frequency),
    MAX(frequency),
    MIN(timestamp),
    MAX(timestamp)
FROM samples
WHERE
    session_id = ?`

	selectSamplesSQL = `
SELECT
    sweep,
    timestamp,
    frequency,
    power
FROM samples
WHERE
    session_id = ?
    AND timestamp BETWEEN ? AND ?
    AND frequency BETWEEN ? AND ?
ORDER BY sweep, frequency`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_samples_session_sweep ON samples (session_id, sweep);
CREATE INDEX IF NOT EXISTS idx_samples_session_frequency ON samples (session_id, frequency);`
)

//go:embed schema.sql
var initSchemaSQL string
