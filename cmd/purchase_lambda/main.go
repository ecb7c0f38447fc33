package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"

	"github.com/parcrypto/starshop/pkg/fragment"
	"github.com/parcrypto/starshop/pkg/marketplace"
	"github.com/parcrypto/starshop/pkg/models"
	"github.com/parcrypto/starshop/pkg/purchase"
	"github.com/parcrypto/starshop/pkg/tonindex"
	"github.com/parcrypto/starshop/pkg/wallet"
)

// confirmationText is sent to the buyer's chat once their stars land.
const confirmationText = "⭐️Звёзды уже на вашем аккаунте!⭐️\n\n ❗️Пожалуйста, подтвердите заказ.\n\n Так же будет очень приятно если оставите положительный отзыв за оперативность."

var (
	engine *purchase.Engine
	market marketplace.Client
)

func init() {
	// Load environment variables from .env file (useful for local testing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

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

	senders := func(ctx context.Context) (purchase.Sender, func(), error) {
		w, err := wallet.New(ctx, mnemonic, seqno, wallet.Config{})
		if err != nil {
			return nil, nil, err
		}
		return w, w.Close, nil
	}

	engine = purchase.New(session, senders, feed, purchase.Config{})

	marketURL := os.Getenv("MARKETPLACE_BASE_URL")
	goldenKey := os.Getenv("MARKETPLACE_GOLDEN_KEY")
	if marketURL != "" && goldenKey != "" {
		market = marketplace.NewHTTPClient(marketURL, goldenKey)
	}
}

// HandleRequest processes queued purchase jobs. A job is never retried via
// SQS: resubmitting a purchase that may already have moved money is worse
// than losing the confirmation, so failures are logged and swallowed.
func HandleRequest(ctx context.Context, sqsEvent events.SQSEvent) error {
	for _, message := range sqsEvent.Records {
		log.Printf("Processing message %s", message.MessageId)

		var job models.PurchaseJob
		if err := json.Unmarshal([]byte(message.Body), &job); err != nil {
			log.Printf("ERROR: failed to unmarshal purchase job from SQS message %s: %v", message.MessageId, err)
			continue
		}

		log.Printf("Purchasing %d stars for %s (order %s)", job.Quantity, job.Buyer, job.OrderID)

		outcome, err := engine.PurchaseStars(ctx, job.Buyer, job.Quantity, job.HideSender)
		if err != nil {
			log.Printf("ERROR: purchase job %s rejected: %v", job.ID, err)
			continue
		}
		if outcome.Status != models.SETTLED {
			log.Printf("ERROR: purchase for order %s finished with status %s", job.OrderID, outcome.Status)
			continue
		}

		log.Printf("Order %s settled, tx %s", job.OrderID, outcome.TxHash)

		if market != nil && job.ChatID != "" {
			if err := market.SendMessage(ctx, job.ChatID, confirmationText); err != nil {
				log.Printf("ERROR: failed to send confirmation for order %s: %v", job.OrderID, err)
			}
		}
	}

	return nil
}

func main() {
	lambda.Start(HandleRequest)
}
