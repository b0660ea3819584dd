package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"chat-relay/repositories"
)

// relayctl inspects a relay database from the command line: registered
// profiles and the most recent messages.
func main() {
	dbPath := flag.String("db", "chat-relay.db", "Path to the relay SQLite database")
	limit := flag.Int("limit", 20, "Max messages to display")
	flag.Parse()

	db, err := repositories.Open(*dbPath)
	if err != nil {
		log.Fatal("Error while opening database: ", err)
	}
	defer db.Close()

	if err := printUsers(db); err != nil {
		log.Fatal("Error while listing users: ", err)
	}
	fmt.Println()
	if err := printMessages(db, *limit); err != nil {
		log.Fatal("Error while listing messages: ", err)
	}
}

func printUsers(db *sql.DB) error {
	rows, err := db.Query(`SELECT uid, phone_number, username, profile_pic_url, last_seen FROM users ORDER BY last_seen DESC`)
	if err != nil {
		return err
	}
	defer rows.Close()

	table := newTable([]string{"UID", "Phone", "Username", "Avatar", "Last Seen"})
	for rows.Next() {
		var (
			uid, phone       string
			username, picURL *string
			lastSeen         time.Time
		)
		if err := rows.Scan(&uid, &phone, &username, &picURL, &lastSeen); err != nil {
			return err
		}
		table.Append([]string{
			uid,
			phone,
			lo.FromPtr(username),
			lo.FromPtr(picURL),
			lastSeen.Local().Format("2006-01-02 15:04:05"),
		})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	table.Render()
	return nil
}

func printMessages(db *sql.DB, limit int) error {
	rows, err := db.Query(
		`SELECT id, sender_uid, recipient_uid, content, created_at, status
		 FROM messages ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return err
	}
	defer rows.Close()

	table := newTable([]string{"ID", "Sender", "Recipient", "Content", "Created", "Status"})
	for rows.Next() {
		var msg repositories.Message
		if err := rows.Scan(&msg.ID, &msg.SenderUID, &msg.RecipientUID, &msg.Content, &msg.CreatedAt, &msg.Status); err != nil {
			return err
		}
		content := msg.Content
		if len(content) > 60 {
			content = content[:57] + "..."
		}
		table.Append([]string{
			msg.ID,
			msg.SenderUID,
			msg.RecipientUID,
			content,
			msg.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			msg.Status,
		})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	table.Render()
	return nil
}

func newTable(headers []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(headers)
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
	return table
}
