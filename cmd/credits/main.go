// Command credits administers balances and payment settings directly in the
// Postgres store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"studio/internal/account"
	"studio/internal/infra"
	"studio/internal/infra/kvstore"
)

func main() {
	var (
		emailFlag    string
		addFlag      int
		whatsappFlag string
		priceFlag    float64
		listFlag     bool
	)
	flag.StringVar(&emailFlag, "email", "", "user email to grant credits to")
	flag.IntVar(&addFlag, "add", 0, "credits to add to -email")
	flag.StringVar(&whatsappFlag, "whatsapp", "", "WhatsApp number that receives payment requests")
	flag.Float64Var(&priceFlag, "price", 0, "price per credit")
	flag.BoolVar(&listFlag, "list", false, "list users and balances")
	flag.Parse()

	_ = godotenv.Load()

	email := strings.TrimSpace(emailFlag)
	whatsapp := strings.TrimSpace(whatsappFlag)
	if email == "" && whatsapp == "" && priceFlag == 0 && !listFlag {
		exitWithError(errors.New("nothing to do: pass -email with -add, -whatsapp, -price or -list"))
	}
	if email != "" && addFlag <= 0 {
		exitWithError(errors.New("-add must be positive when -email is set"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := infra.NewDBPool(ctx, dbURL)
	if err != nil {
		exitWithError(err)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "credits").Logger()
	accounts, err := account.NewService(account.Options{
		Store:      kvstore.NewPostgres(infra.NewSQLRunner(pool, logger)),
		AdminEmail: os.Getenv("ADMIN_EMAIL"),
		Logger:     &logger,
	})
	if err != nil {
		exitWithError(err)
	}
	if err := accounts.Init(ctx); err != nil {
		exitWithError(fmt.Errorf("initialize store: %w", err))
	}

	if email != "" {
		user, err := accounts.UserByEmail(ctx, email)
		if err != nil {
			exitWithError(fmt.Errorf("find %s: %w", email, err))
		}
		user, err = accounts.AddCredits(ctx, user.ID, addFlag)
		if err != nil {
			exitWithError(err)
		}
		fmt.Printf("%s now has %d credits\n", user.Email, user.Credits)
	}

	if whatsapp != "" || priceFlag != 0 {
		if err := updateConfig(ctx, accounts, whatsapp, priceFlag); err != nil {
			exitWithError(err)
		}
	}

	if listFlag {
		users, err := accounts.Users(ctx)
		if err != nil {
			exitWithError(err)
		}
		for _, u := range users {
			fmt.Printf("%s\t%s\t%s\t%d\n", u.ID, u.Email, u.Role, u.Credits)
		}
	}
}

func updateConfig(ctx context.Context, accounts *account.Service, whatsapp string, price float64) error {
	cfg, err := accounts.AdminConfig(ctx)
	if err != nil {
		return err
	}
	next := cfg
	if whatsapp != "" {
		next.WhatsAppNumber = whatsapp
	}
	if price != 0 {
		next.PricePerCredit = price
	}
	if err := accounts.SaveAdminConfig(ctx, next); err != nil {
		return err
	}
	saved, err := accounts.AdminConfig(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("payment config: whatsapp=%s price_per_credit=%.2f\n", saved.WhatsAppNumber, saved.PricePerCredit)
	return nil
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "credits: %v\n", err)
	os.Exit(1)
}
