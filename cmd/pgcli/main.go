// Command pgcli is a minimal interactive-ish demo of the connection
// engine: it dials one connection, runs a single statement, and prints
// the result as a styled table.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/pgwire-go/pgwire/pkg/conn"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00CED1"))
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F5F"))
)

func main() {
	host := flag.String("host", "localhost", "server host")
	port := flag.Int("port", 5432, "server port")
	database := flag.String("database", "postgres", "database name")
	username := flag.String("username", "postgres", "username")
	useSSL := flag.Bool("ssl", false, "upgrade to TLS after connecting")
	timeout := flag.Int("timeout", conn.DefaultTimeoutSeconds, "connect+auth timeout in seconds")
	sql := flag.String("sql", "SELECT 1", "statement to run")
	jsonLogs := flag.Bool("json", false, "emit logs as JSON instead of text")
	flag.Parse()

	var handler slog.Handler
	if *jsonLogs {
		handler = slog.NewJSONHandler(os.Stderr, nil)
	} else {
		handler = slog.NewTextHandler(os.Stderr, nil)
	}
	logger := slog.New(handler)

	password := os.Getenv("PGPASSWORD")
	if password == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, "Password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			logger.Error("failed to read password", "error", err)
			os.Exit(1)
		}
		password = string(raw)
	}

	c, err := conn.New(conn.Config{
		Host:             *host,
		Port:             *port,
		Database:         *database,
		Username:         *username,
		Password:         password,
		UseSSL:           *useSSL,
		TimeoutInSeconds: *timeout,
		Logger:           logger,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeout+1)*time.Second)
	defer cancel()
	if err := c.Open(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("connect failed: "+err.Error()))
		os.Exit(1)
	}
	defer c.Close()

	res, err := c.Query(ctx, *sql, nil, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("query failed: "+err.Error()))
		os.Exit(1)
	}

	printTable(res)
}

func printTable(res *conn.Result) {
	if len(res.Fields) == 0 {
		fmt.Printf("%s\n", res.Command)
		return
	}

	names := make([]string, len(res.Fields))
	for i, f := range res.Fields {
		names[i] = f.Name
	}
	widths := make([]int, len(names))
	for i, n := range names {
		widths[i] = len(n)
	}
	rendered := make([][]string, len(res.Rows))
	for r, row := range res.Rows {
		rendered[r] = make([]string, len(row))
		for c, v := range row {
			s := formatCell(v)
			rendered[r][c] = s
			if len(s) > widths[c] {
				widths[c] = len(s)
			}
		}
	}

	printRow(names, widths, headerStyle)
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	printRow(sep, widths, borderStyle)
	for _, row := range rendered {
		printRow(row, widths, cellStyle)
	}
	fmt.Printf("(%d rows)\n", len(res.Rows))
}

func printRow(cells []string, widths []int, style lipgloss.Style) {
	var b strings.Builder
	for i, c := range cells {
		padded := c + strings.Repeat(" ", widths[i]-len(c))
		b.WriteString(style.Render(padded))
		b.WriteString(" ")
	}
	fmt.Println(b.String())
}

func formatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprintf("%v", t)
	}
}
