package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample accounts and invoices for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlxDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		db, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: sqlxDB.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to open gorm session: %v", err)
		}

		if clearData {
			for _, table := range []string{"invoice_items", "invoices", "accounts"} {
				if err := db.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
					log.Fatalf("failed to clear table %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing billing data")
		}

		accounts := []struct {
			Name    string
			Email   string
			Balance int64
		}{
			{"Fadhil", "fadhil@mail.com", 0},
			{"Padil Admin", "padil@mail.com", 25000},
		}

		for _, a := range accounts {
			var exists int
			row := db.Raw("SELECT 1 FROM accounts WHERE email = ?", a.Email).Row()
			if err := row.Scan(&exists); err == nil {
				fmt.Println("account already exists:", a.Email)
				continue
			}

			if err := db.Exec("INSERT INTO accounts (name, email, balance, created_at, updated_at) VALUES (?, ?, ?, now(), now())", a.Name, a.Email, a.Balance).Error; err != nil {
				log.Fatalf("failed to insert account %s: %v", a.Email, err)
			}
			fmt.Println("Seeded account:", a.Email)
		}

		var accountID int64
		if err := db.Raw("SELECT id FROM accounts WHERE email = ?", "fadhil@mail.com").Row().Scan(&accountID); err != nil {
			log.Fatalf("failed to lookup seeded account: %v", err)
		}

		ref := fmt.Sprintf("TOPSEED%d", time.Now().Unix())
		var invoiceExists int
		row := db.Raw("SELECT 1 FROM invoices WHERE account_id = ? AND status = 'UNPAID'", accountID).Row()
		if err := row.Scan(&invoiceExists); err == nil {
			fmt.Println("unpaid invoice already exists for seeded account")
			return
		}

		expiredAt := time.Now().UTC().Add(time.Hour)
		if err := db.Exec(
			"INSERT INTO invoices (ref, account_id, type, title, payment_method, status, fee_customer, expired_at, created_at, updated_at) VALUES (?, ?, 'TOPUP', 'Topup Balance', 'TRIPAY.QRIS', 'UNPAID', 0, ?, now(), now())",
			ref, accountID, expiredAt,
		).Error; err != nil {
			log.Fatalf("failed to insert sample invoice: %v", err)
		}

		var invoiceID int64
		if err := db.Raw("SELECT id FROM invoices WHERE ref = ?", ref).Row().Scan(&invoiceID); err != nil {
			log.Fatalf("failed to lookup sample invoice: %v", err)
		}

		if err := db.Exec(
			"INSERT INTO invoice_items (invoice_id, title, qty, price, total_price, created_at, updated_at) VALUES (?, 'Topup Balance', 1, 10000, 10000, now(), now())",
			invoiceID,
		).Error; err != nil {
			log.Fatalf("failed to insert sample invoice item: %v", err)
		}

		fmt.Println("Seeded sample unpaid topup invoice:", ref)
	},
}
