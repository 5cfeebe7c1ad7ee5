// Command vault manages the encrypted signer-key store: adding a mnemonic
// under a key ref, decrypting one back out, and listing known refs without
// ever printing secret material.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/alejandrodnm/mirrorcore/config"
	"github.com/alejandrodnm/mirrorcore/internal/adapters/storage"
	"github.com/alejandrodnm/mirrorcore/internal/adapters/vault"
	"github.com/olekukonko/tablewriter"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "add":
		runAdd(os.Args[2:])
	case "get":
		runGet(os.Args[2:])
	case "list":
		runList(os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "vault: unknown subcommand %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  vault add  -config path -key-ref vault://name
  vault get  -config path -key-ref vault://name
  vault list -config path`)
}

func runAdd(args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	configPath := fs.String("config", "config/config.yaml", "path to config file")
	keyRef := fs.String("key-ref", "", "key ref to store, must start with vault://")
	fs.Parse(args)

	if *keyRef == "" {
		fmt.Fprintln(os.Stderr, "vault add: -key-ref is required")
		os.Exit(2)
	}

	store := openStore(*configPath)
	defer store.Close()

	mnemonic := promptSecret("mnemonic")
	passphrase := promptSecret("passphrase")

	v := vault.New(store)
	if err := v.AddKey(context.Background(), *keyRef, mnemonic, passphrase); err != nil {
		slog.Error("vault add failed", "err", err, "key_ref", *keyRef)
		os.Exit(1)
	}
	fmt.Printf("stored key %s\n", *keyRef)
}

func runGet(args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	configPath := fs.String("config", "config/config.yaml", "path to config file")
	keyRef := fs.String("key-ref", "", "key ref to decrypt, must start with vault://")
	fs.Parse(args)

	if *keyRef == "" {
		fmt.Fprintln(os.Stderr, "vault get: -key-ref is required")
		os.Exit(2)
	}

	store := openStore(*configPath)
	defer store.Close()

	passphrase := promptSecret("passphrase")

	v := vault.New(store)
	secret, err := v.GetSecret(context.Background(), *keyRef, passphrase)
	if err != nil {
		slog.Error("vault get failed", "err", err, "key_ref", *keyRef)
		os.Exit(1)
	}
	fmt.Println(secret)
}

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", "config/config.yaml", "path to config file")
	fs.Parse(args)

	store := openStore(*configPath)
	defer store.Close()

	v := vault.New(store)
	metas, err := v.List(context.Background())
	if err != nil {
		slog.Error("vault list failed", "err", err)
		os.Exit(1)
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Key Ref", "Status", "Created", "Updated")
	for _, m := range metas {
		table.Append(m.KeyRef, m.Status, fmt.Sprintf("%d", m.CreatedAt), fmt.Sprintf("%d", m.UpdatedAt))
	}
	table.Render()
}

func openStore(configPath string) *storage.SQLiteStorage {
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("vault: failed to load config", "err", err, "path", configPath)
		os.Exit(2)
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("vault: failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(2)
	}
	return store
}

// promptSecret reads one line from stdin without echoing it to a log or
// re-printing it. There is no passphrase-masking terminal library anywhere
// in reach here, so the input is simply not echoed back by this program;
// the caller's own terminal echo still applies.
func promptSecret(label string) string {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		slog.Error("vault: failed to read input", "err", err, "field", label)
		os.Exit(1)
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}
