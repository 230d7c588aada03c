package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"monetiq/internal/domain"
	"monetiq/internal/infra"
	"monetiq/internal/quota"
)

func main() {
	var (
		userFlag    string
		tierFlag    string
		secondsFlag int
		reasonFlag  string
	)
	flag.StringVar(&userFlag, "user", "", "user ID to credit (UUID)")
	flag.StringVar(&tierFlag, "tier", "standard", "quota tier to credit (standard or premium)")
	flag.IntVar(&secondsFlag, "seconds", 300, "seconds to add to the tier balance")
	flag.StringVar(&reasonFlag, "reason", "manual_grant", "ledger reason recorded with the grant")
	flag.Parse()

	userID := strings.TrimSpace(userFlag)
	if userID == "" {
		exitWithError(errors.New("-user is required"))
	}
	tier := domain.QuotaTier(strings.TrimSpace(strings.ToLower(tierFlag)))
	switch tier {
	case domain.QuotaTierStandard, domain.QuotaTierPremium:
	default:
		exitWithError(fmt.Errorf("unsupported tier %q", tierFlag))
	}
	if secondsFlag <= 0 {
		exitWithError(fmt.Errorf("-seconds must be positive, got %d", secondsFlag))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "grantquota").Logger()
	ledger := quota.NewLedger(infra.NewSQLRunner(pool, logger))

	grantCtx, cancelGrant := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelGrant()
	if err := ledger.Grant(grantCtx, userID, tier, secondsFlag, strings.TrimSpace(reasonFlag)); err != nil {
		exitWithError(fmt.Errorf("failed to grant quota: %w", err))
	}

	acct, err := ledger.Account(grantCtx, userID)
	if err != nil {
		exitWithError(fmt.Errorf("grant applied but balance read failed: %w", err))
	}
	fmt.Printf("User %s credited %d %s second(s)\n", userID, secondsFlag, tier)
	fmt.Printf("seconds_standard=%d\nseconds_premium=%d\n", acct.SecondsStandard, acct.SecondsPremium)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
