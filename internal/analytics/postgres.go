package analytics

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Skufu/excipredict/internal/prediction"
)

type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRecorder keeps named counters in analytics_counters and one row per
// prediction in prediction_events.
type PostgresRecorder struct {
	db DB
}

func NewPostgresRecorder(db DB) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

const incrementCounters = `
	INSERT INTO analytics_counters (name, value)
	SELECT unnest($1::text[]), 1
	ON CONFLICT (name) DO UPDATE SET value = analytics_counters.value + 1`

// RecordPrediction bumps the counters and stores the event in one transaction.
func (r *PostgresRecorder) RecordPrediction(ctx context.Context, userID string, out prediction.Outcome) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, incrementCounters, counterNames(out)); err != nil {
			return fmt.Errorf("increment counters: %w", err)
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO prediction_events (id, user_id, compatible, probability, risk_level)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), userID, out.Compatible, out.Probability, string(out.RiskLevel))
		if err != nil {
			return fmt.Errorf("insert prediction event: %w", err)
		}
		return nil
	})
}

func (r *PostgresRecorder) RegisterVisitor(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO visitors (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
		if err != nil {
			return fmt.Errorf("insert visitor: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, incrementCounters, []string{"total_visitors"}); err != nil {
			return fmt.Errorf("increment visitors: %w", err)
		}
		return nil
	})
}

func (r *PostgresRecorder) Counters(ctx context.Context) (Counters, error) {
	var c Counters
	err := r.db.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(value) FILTER (WHERE name = 'total_predictions'), 0),
			COALESCE(SUM(value) FILTER (WHERE name = 'compatible'), 0),
			COALESCE(SUM(value) FILTER (WHERE name = 'non_compatible'), 0),
			COALESCE(SUM(value) FILTER (WHERE name = 'low_risk'), 0),
			COALESCE(SUM(value) FILTER (WHERE name = 'medium_risk'), 0),
			COALESCE(SUM(value) FILTER (WHERE name = 'high_risk'), 0),
			COALESCE(SUM(value) FILTER (WHERE name = 'total_visitors'), 0)
		FROM analytics_counters`).
		Scan(&c.TotalPredictions, &c.Compatible, &c.NonCompatible,
			&c.LowRisk, &c.MediumRisk, &c.HighRisk, &c.TotalVisitors)
	if err != nil {
		return Counters{}, fmt.Errorf("read counters: %w", err)
	}
	return c, nil
}

// counterNames lists the counters one outcome bumps, using the JSON field names.
func counterNames(out prediction.Outcome) []string {
	names := []string{"total_predictions"}
	if out.Compatible {
		names = append(names, "compatible")
	} else {
		names = append(names, "non_compatible")
	}
	switch out.RiskLevel {
	case prediction.RiskLow:
		names = append(names, "low_risk")
	case prediction.RiskMedium:
		names = append(names, "medium_risk")
	default:
		names = append(names, "high_risk")
	}
	return names
}
