package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"libroreads/internal"
)

// inspect dumps the message keyspace of a running (or stopped) instance
// as a table. Read-only with BypassLockGuard, so it can run alongside
// the server without stealing the lock.
func main() {
	prefix := flag.String("prefix", "msg:", "Key prefix to scan")
	flag.Parse()

	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "ID", "From", "To", "Sent At", "Status", "Content"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	rows := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			rawKey := string(item.Key())

			err := item.Value(func(v []byte) error {
				var rec struct {
					ID         uint64 `json:"id"`
					SenderID   int    `json:"sender_id"`
					ReceiverID int    `json:"receiver_id"`
					Content    string `json:"content"`
					SentAt     int64  `json:"sent_at"`
					Status     string `json:"status"`
				}
				if err := json.Unmarshal(v, &rec); err != nil {
					// Index keys hold primary keys, not records; show them raw.
					table.Append([]string{rawKey, "", "", "", "", "", string(v)})
					rows++
					return nil
				}

				status := rec.Status
				if status == "read" {
					status = color.Green.Sprint(status)
				} else {
					status = color.Yellow.Sprint(status)
				}

				content := rec.Content
				if len(content) > 60 {
					content = content[:57] + "..."
				}

				table.Append([]string{
					rawKey,
					fmt.Sprintf("%d", rec.ID),
					fmt.Sprintf("%d", rec.SenderID),
					fmt.Sprintf("%d", rec.ReceiverID),
					time.Unix(0, rec.SentAt).Format("2006-01-02 15:04:05"),
					status,
					content,
				})
				rows++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	color.Cyan.Printf("Scanned %q: %d entries\n\n", *prefix, rows)
	table.Render()
}
