package carrier

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// Message is one row handed to the carrier agent.
type Message struct {
	ClientKey      string
	Phone          string
	CallbackNumber string
	Title          string
	Body           string
	MediaPath      string
}

// Result is the latest delivery log row for a client key.
type Result struct {
	ClientKey string
	DoneCode  string
	DoneDesc  string
	DoneAt    *time.Time
}

// Gateway is the only way the rest of the service touches carrier tables.
type Gateway interface {
	Enqueue(ctx context.Context, msg Message) error
	// FetchResult returns nil, nil when no result has arrived yet.
	FetchResult(ctx context.Context, clientKey, period string) (*Result, error)
}

// TxBinder is implemented by gateways whose agent tables share the main
// database, so an enqueue can join the caller's transaction.
type TxBinder interface {
	Bind(ext sqlx.ExtContext) Gateway
}
