//go:build integration

package testutil

import (
	"context"
	"time"
)

// CleanAll truncates every table the tests write to and restores the
// default program configuration.
func (env *TestEnv) CleanAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := env.Pool.Exec(ctx, `
		TRUNCATE payout_items, affiliate_conversions, affiliate_payouts, affiliate_payout_batches,
			affiliates, admin_activity_log, admin_verifications, event_outbox,
			login_attempts, admin_users
		RESTART IDENTITY CASCADE`)
	if err != nil {
		env.t.Fatalf("CleanAll: truncate: %v", err)
	}

	_, err = env.Pool.Exec(ctx, `
		UPDATE affiliate_program_config SET
			min_payout_threshold = 2000,
			enabled_payout_methods = ARRAY['gcash'],
			require_verification_for_bank_transfer = TRUE,
			require_verification_for_gcash = FALSE,
			updated_at = now()
		WHERE id = 1`)
	if err != nil {
		env.t.Fatalf("CleanAll: reset program config: %v", err)
	}
}
