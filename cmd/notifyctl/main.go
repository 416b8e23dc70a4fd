// Package main is an operator tool for the notification service.
//
// Usage:
//
//	notifyctl vapid-keygen -subject mailto:ops@example.com
//	notifyctl token -subject billing-service [-ttl 720h]
//	notifyctl push-selftest [-message "hello"]
//	notifyctl phone [-rules rules.yaml] +5215512345678 ...
//	notifyctl migrate up|down
package main

import (
	"bytes"
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"

	"gift-notify/internal/domain/phone"
	"gift-notify/internal/handler/http/auth"
	"gift-notify/internal/infra/db"
	"gift-notify/internal/infra/webpush"
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	_ = godotenv.Load()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "vapid-keygen":
		err = vapidKeygen(os.Stdout, args)
	case "token":
		err = issueToken(os.Stdout, args)
	case "push-selftest":
		err = pushSelftest(os.Stdout, args)
	case "phone":
		err = inspectPhones(os.Stdout, args)
	case "migrate":
		err = migrate(os.Stdout, args)
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: notifyctl <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  vapid-keygen   generate a VAPID key pair")
	fmt.Fprintln(w, "  token          issue a service token for the API (reads API_JWT_SECRET)")
	fmt.Fprintln(w, "  push-selftest  encrypt and decrypt a push payload with throwaway keys")
	fmt.Fprintln(w, "  phone          show normalization and routing for phone numbers")
	fmt.Fprintln(w, "  migrate        apply (up) or drop (down) the schema at DATABASE_URL")
}

func vapidKeygen(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("vapid-keygen", flag.ContinueOnError)
	subject := fs.String("subject", "", "contact URI sent with every push (mailto: or https:)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return errors.New("-subject is required")
	}

	keys, err := webpush.GenerateKeyMaterial(*subject)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "VAPID_PUBLIC_KEY=%s\n", keys.PublicKey())
	fmt.Fprintf(w, "VAPID_PRIVATE_KEY=%s\n", keys.PrivateKey())
	fmt.Fprintf(w, "VAPID_SUBJECT=%s\n", keys.Subject())
	return nil
}

func issueToken(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subject", "", "calling service name")
	ttl := fs.Duration("ttl", 30*24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return errors.New("-subject is required")
	}

	secret := os.Getenv("API_JWT_SECRET")
	if secret == "" {
		return errors.New("API_JWT_SECRET is not set")
	}
	token, err := auth.IssueToken([]byte(secret), *subject, []string{auth.ScopeNotify}, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, token)
	return nil
}

// pushSelftest plays the browser: it creates a receiver key pair, encrypts
// for it and decrypts the wire payload again.
func pushSelftest(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("push-selftest", flag.ContinueOnError)
	message := fs.String("message", `{"title":"selftest","body":"ok"}`, "payload to round-trip")
	if err := fs.Parse(args); err != nil {
		return err
	}

	receiver, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	authSecret := make([]byte, 16)
	if _, err := rand.Read(authSecret); err != nil {
		return err
	}

	record, err := webpush.Encrypt(receiver.PublicKey().Bytes(), authSecret, []byte(*message))
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	body := record.Bytes()
	plain, err := webpush.Decrypt(receiver, authSecret, body)
	if err != nil {
		return fmt.Errorf("decrypt: %w", err)
	}
	if !bytes.Equal(plain, []byte(*message)) {
		return errors.New("round trip mismatch")
	}
	fmt.Fprintf(w, "ok: %d byte payload, %d byte record\n", len(plain), len(body))
	return nil
}

type phoneReport struct {
	Input          string `json:"input"`
	Normalized     string `json:"normalized"`
	Country        string `json:"country,omitempty"`
	Preferred      string `json:"preferred_channel"`
	SMSReliability string `json:"sms_reliability"`
	WhatsAppValid  bool   `json:"whatsapp_valid"`
	Reason         string `json:"reason,omitempty"`
}

func inspectPhones(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("phone", flag.ContinueOnError)
	rulesFile := fs.String("rules", os.Getenv("PHONE_RULES_FILE"), "country rules file (default: embedded)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("at least one phone number is required")
	}

	rules := phone.Default()
	if *rulesFile != "" {
		data, err := os.ReadFile(*rulesFile)
		if err != nil {
			return err
		}
		if rules, err = phone.LoadRules(data); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	for _, raw := range fs.Args() {
		valid, reason := rules.ValidateForWhatsApp(raw)
		r := phoneReport{
			Input:          raw,
			Normalized:     phone.Normalize(raw),
			Preferred:      string(rules.PreferredChannel(raw)),
			SMSReliability: string(rules.SmsReliability(raw)),
			WhatsAppValid:  valid,
			Reason:         reason,
		}
		if c, ok := rules.Lookup(raw); ok {
			r.Country = c.Name
		}
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func migrate(w io.Writer, args []string) error {
	if len(args) != 1 || (args[0] != "up" && args[0] != "down") {
		return errors.New("usage: notifyctl migrate up|down")
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return errors.New("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	database, err := db.Open(ctx, dsn, db.DefaultConnectionConfig())
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	if args[0] == "down" {
		err = db.MigrateDown(database)
	} else {
		err = db.MigrateUp(database)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "migrate %s: ok\n", args[0])
	return nil
}
