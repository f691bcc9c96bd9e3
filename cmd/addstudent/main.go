// Command addstudent is the out-of-band directory management tool: it
// upserts a student record and generates the QR code the kiosk will
// later scan. The check-in pipeline itself never creates students.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	qrcode "github.com/skip2/go-qrcode"

	"CheckinKiosk/config"
	"CheckinKiosk/internal/directory"
	"CheckinKiosk/pkg/logger"
	"CheckinKiosk/storage"
	"CheckinKiosk/storage/database"
)

func main() {
	var (
		number = flag.Int64("number", 0, "student number (required)")
		name   = flag.String("name", "", "display name")
		email1 = flag.String("email1", "", "primary guardian email")
		email2 = flag.String("email2", "", "secondary guardian email")
		list   = flag.String("list", "", "list students matching the query instead of upserting ('*' for all)")
		remove = flag.Bool("delete", false, "delete the student (and their events) instead of upserting")
		noQR   = flag.Bool("no-qr", false, "skip QR code generation")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}
	logger.Init(cfg)
	defer logger.Sync()

	if err := storage.Init(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "failed to open database:", err)
		os.Exit(1)
	}
	defer storage.Close()

	ctx := context.Background()
	gateway := directory.New(database.DB())

	if *list != "" {
		query := *list
		if query == "*" {
			query = ""
		}
		students, err := gateway.List(ctx, query, 1000, 0)
		if err != nil {
			fmt.Fprintln(os.Stderr, "list failed:", err)
			os.Exit(1)
		}
		for _, s := range students {
			fmt.Printf("%d\t%s\t%s\t%s\t%s\n", s.StudentNumber, s.Name, s.Email1, s.Email2, s.Status)
		}
		return
	}

	if *number <= 0 {
		fmt.Fprintln(os.Stderr, "-number is required")
		flag.Usage()
		os.Exit(2)
	}

	if *remove {
		n, err := gateway.Delete(ctx, *number)
		if err != nil {
			fmt.Fprintln(os.Stderr, "delete failed:", err)
			os.Exit(1)
		}
		fmt.Printf("removed %d student(s)\n", n)
		return
	}

	var qrPNG []byte
	if !*noQR {
		qrPNG, err = qrcode.Encode(strconv.FormatInt(*number, 10), qrcode.Medium, 512)
		if err != nil {
			fmt.Fprintln(os.Stderr, "QR generation failed:", err)
			os.Exit(1)
		}
	}

	st, err := gateway.Upsert(ctx, *number, *name, *email1, *email2, qrPNG)
	if err != nil {
		fmt.Fprintln(os.Stderr, "upsert failed:", err)
		os.Exit(1)
	}

	if qrPNG != nil {
		qrDir := filepath.Join(cfg.DataDir, "qrcodes")
		if err := os.MkdirAll(qrDir, 0o755); err == nil {
			qrPath := filepath.Join(qrDir, fmt.Sprintf("aluno_%d.png", st.StudentNumber))
			if err := os.WriteFile(qrPath, qrPNG, 0o644); err == nil {
				fmt.Println("QR saved to", qrPath)
			}
		}
	}
	fmt.Printf("ok: %d %s\n", st.StudentNumber, st.Name)
}
