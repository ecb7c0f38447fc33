package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/parcrypto/starshop/pkg/fragment"
	"github.com/parcrypto/starshop/pkg/handlers"
	"github.com/parcrypto/starshop/pkg/middleware"
	"github.com/parcrypto/starshop/pkg/purchase"
	"github.com/parcrypto/starshop/pkg/tonindex"
	"github.com/parcrypto/starshop/pkg/wallet"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	mnemonic := strings.Fields(os.Getenv("WALLET_MNEMONIC"))
	if len(mnemonic) == 0 {
		log.Fatal("WALLET_MNEMONIC environment variable not set")
	}

	fragmentHash := os.Getenv("FRAGMENT_HASH")
	if fragmentHash == "" {
		log.Fatal("FRAGMENT_HASH environment variable not set")
	}

	cookies := map[string]string{}
	if raw := os.Getenv("FRAGMENT_COOKIES"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cookies); err != nil {
			log.Fatalf("FRAGMENT_COOKIES is not valid JSON: %v", err)
		}
	}

	session := fragment.NewSession(fragmentHash, cookies)
	seqno := tonindex.NewChain(tonindex.NewToncenterV3(), tonindex.NewTonhubV4())
	feed := tonindex.NewEventsClient(os.Getenv("TONAPI_KEY"))

	// A fresh wallet client per purchase; liteserver connections go stale
	// between requests.
	senders := func(ctx context.Context) (purchase.Sender, func(), error) {
		w, err := wallet.New(ctx, mnemonic, seqno, wallet.Config{})
		if err != nil {
			return nil, nil, err
		}
		return w, w.Close, nil
	}

	engine := purchase.New(session, senders, feed, purchase.Config{})
	handler := handlers.NewPurchaseHandler(engine)

	// Create a new Chi router
	router := chi.NewRouter()
	router.Use(middleware.NewStructuredLogger(logger))
	handler.Register(router)

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080" // Default port if not specified
	}

	log.Printf("Starting server on port %s", port)

	// Start the server
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
