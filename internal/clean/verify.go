package clean

import (
	"context"
	"fmt"

	"github.com/kayla-hekim/ds3022-data-project-1/internal/ingest"
	"github.com/kayla-hekim/ds3022-data-project-1/internal/trips"
)

// Finding is one verification failure. Verification reports findings
// without aborting anything; an empty slice means the cleaned tables
// hold every post-filter invariant.
type Finding struct {
	Table  string
	Check  string
	Detail string
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s: %s", f.Table, f.Check, f.Detail)
}

// Verify re-checks the post-filter invariants over every staged batch:
// no full-row duplicates, positive passenger counts, distances in
// (0, 100], durations in (0, 24h]. It also re-checks the emission factor
// reference table. Missing batches are skipped silently; they were
// already reported during cleaning.
func (c *Cleaner) Verify(ctx context.Context, periods []trips.Period) ([]Finding, error) {
	var findings []Finding

	for _, p := range periods {
		stg := p.StagingTableName()
		exists, err := c.wh.TableExists(ctx, stg)
		if err != nil {
			return findings, fmt.Errorf("failed to check %s: %w", stg, err)
		}
		if !exists {
			continue
		}
		tableFindings, err := c.verifyTable(ctx, stg)
		if err != nil {
			return findings, err
		}
		findings = append(findings, tableFindings...)
	}

	factorFindings, err := c.verifyEmissionFactors(ctx)
	if err != nil {
		return findings, err
	}
	findings = append(findings, factorFindings...)

	if len(findings) == 0 {
		c.logger.Info("verification passed", "tables", len(periods))
	} else {
		c.logger.Warn("verification found problems", "findings", len(findings))
	}
	return findings, nil
}

func (c *Cleaner) verifyTable(ctx context.Context, table string) ([]Finding, error) {
	var findings []Finding

	var total, distinct int64
	if err := c.wh.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", table, err)
	}
	if err := c.wh.QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM (SELECT DISTINCT * FROM %s)", table),
	).Scan(&distinct); err != nil {
		return nil, fmt.Errorf("failed to count distinct rows of %s: %w", table, err)
	}
	if total != distinct {
		findings = append(findings, Finding{
			Table: table, Check: "duplicates",
			Detail: fmt.Sprintf("total=%d distinct=%d", total, distinct),
		})
	}

	for _, stage := range filterStages {
		var bad int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, stage.predicate)
		if err := c.wh.QueryRow(ctx, query).Scan(&bad); err != nil {
			return nil, fmt.Errorf("failed to verify %s on %s: %w", stage.name, table, err)
		}
		if bad > 0 {
			findings = append(findings, Finding{
				Table: table, Check: stage.name,
				Detail: fmt.Sprintf("%d rows violate the %s bound", bad, stage.name),
			})
		}
	}
	return findings, nil
}

func (c *Cleaner) verifyEmissionFactors(ctx context.Context) ([]Finding, error) {
	table := ingest.EmissionsTable
	exists, err := c.wh.TableExists(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to check %s: %w", table, err)
	}
	if !exists {
		return []Finding{{Table: table, Check: "present", Detail: "reference table missing"}}, nil
	}

	var findings []Finding

	var negCO2 int64
	if err := c.wh.QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE co2_grams_per_mile < 0", table),
	).Scan(&negCO2); err != nil {
		return nil, fmt.Errorf("failed to verify %s: %w", table, err)
	}
	if negCO2 > 0 {
		findings = append(findings, Finding{
			Table: table, Check: "co2_grams_per_mile",
			Detail: fmt.Sprintf("%d rows with negative co2_grams_per_mile", negCO2),
		})
	}

	var badYears int64
	if err := c.wh.QueryRow(ctx, fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE vehicle_year_avg IS NULL OR vehicle_year_avg < 1980 OR vehicle_year_avg > 2035",
		table,
	)).Scan(&badYears); err != nil {
		return nil, fmt.Errorf("failed to verify %s: %w", table, err)
	}
	if badYears > 0 {
		findings = append(findings, Finding{
			Table: table, Check: "vehicle_year_avg",
			Detail: fmt.Sprintf("%d rows with null or out-of-range model year", badYears),
		})
	}
	return findings, nil
}
