// Package postgres implements the PostgreSQL persistence layer for the
// engagement monitoring service.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE ENGAGEMENT SAMPLES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create engagement samples table
-- Version: 001

-- Append-only log of behavioral engagement samples.
CREATE TABLE IF NOT EXISTS engagement_samples (
    id UUID PRIMARY KEY,
    student_id VARCHAR(64) NOT NULL,
    class_id VARCHAR(64) NOT NULL,
    idle_time_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
    interactions INTEGER NOT NULL DEFAULT 0,
    poll_participation SMALLINT NOT NULL DEFAULT 0,
    tab_focus_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
    engagement_index DOUBLE PRECISION NOT NULL,
    recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_engagement_index CHECK (engagement_index >= 0 AND engagement_index <= 1),
    CONSTRAINT valid_idle_time CHECK (idle_time_seconds >= 0),
    CONSTRAINT valid_interactions CHECK (interactions >= 0),
    CONSTRAINT valid_poll_participation CHECK (poll_participation IN (0, 1)),
    CONSTRAINT valid_tab_focus CHECK (tab_focus_percent >= 0 AND tab_focus_percent <= 100)
);

-- Indexes for the class feed, the student feed and the alert sweep window
CREATE INDEX IF NOT EXISTS idx_engagement_samples_class_at ON engagement_samples(class_id, recorded_at DESC);
CREATE INDEX IF NOT EXISTS idx_engagement_samples_student_at ON engagement_samples(student_id, recorded_at DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS engagement_samples;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE MASTERY
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create mastery tables
-- Version: 002

-- Append-only mastery snapshots; velocity queries read time windows.
CREATE TABLE IF NOT EXISTS mastery_snapshots (
    id UUID PRIMARY KEY,
    student_id VARCHAR(64) NOT NULL,
    level_type VARCHAR(20) NOT NULL,
    level_id VARCHAR(64) NOT NULL,
    mastery_score DOUBLE PRECISION NOT NULL,
    recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_level_type CHECK (level_type IN ('concept', 'module', 'subject')),
    CONSTRAINT valid_mastery_score CHECK (mastery_score >= 0 AND mastery_score <= 100)
);

CREATE INDEX IF NOT EXISTS idx_mastery_snapshots_window
    ON mastery_snapshots(student_id, level_id, recorded_at);

-- Latest per-concept mastery estimates, cached from the mastery engine.
CREATE TABLE IF NOT EXISTS mastery_records (
    student_id VARCHAR(64) NOT NULL,
    concept_id VARCHAR(64) NOT NULL,
    mastery_score DOUBLE PRECISION NOT NULL,
    confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
    last_updated TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (student_id, concept_id),
    CONSTRAINT valid_record_score CHECK (mastery_score >= 0 AND mastery_score <= 100),
    CONSTRAINT valid_confidence CHECK (confidence >= 0 AND confidence <= 1)
);

CREATE INDEX IF NOT EXISTS idx_mastery_records_low_score
    ON mastery_records(student_id) WHERE mastery_score < 50;
`

const migration002Down = `
DROP TABLE IF EXISTS mastery_records;
DROP TABLE IF EXISTS mastery_snapshots;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE ALERTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create alerts table
-- Version: 003

CREATE TABLE IF NOT EXISTS alerts (
    id UUID PRIMARY KEY,
    class_id VARCHAR(64) NOT NULL,
    student_id VARCHAR(64),
    concept_id VARCHAR(64),
    alert_type VARCHAR(30) NOT NULL,
    severity VARCHAR(10) NOT NULL,
    message TEXT NOT NULL,
    resolved BOOLEAN NOT NULL DEFAULT FALSE,
    resolved_at TIMESTAMP WITH TIME ZONE,
    resolved_by VARCHAR(64),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_alert_type CHECK (alert_type IN ('CONFUSION', 'ENGAGEMENT_DROP', 'MASTERY_THRESHOLD', 'POLL_CONFUSION')),
    CONSTRAINT valid_severity CHECK (severity IN ('LOW', 'MEDIUM', 'HIGH'))
);

-- Class feed reads newest first; the broadcast sweep scans fresh unresolved rows.
CREATE INDEX IF NOT EXISTS idx_alerts_class_created ON alerts(class_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_alerts_unresolved_created ON alerts(created_at DESC) WHERE resolved = FALSE;
`

const migration003Down = `
DROP TABLE IF EXISTS alerts;
`
