package credstore_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/credstore"
	"github.com/MrEthical07/credstore/store"
)

func newExampleEngine() *credstore.Engine {
	cfg := credstore.DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1

	engine, err := credstore.New().
		WithConfig(cfg).
		WithSecret([]byte("example-secret-0123456789abcdef")).
		WithBackend(store.NewMemoryBackend()).
		Build()
	if err != nil {
		panic(err)
	}
	return engine
}

// ExampleNew builds an engine over a JSON file store.
func ExampleNew() {
	engine, err := credstore.New().
		WithSecret([]byte("load-this-from-the-environment!!")).
		WithBackend(store.NewFileBackend("/var/lib/credstore/users.json")).
		Build()
	if err != nil {
		return
	}
	defer engine.Close()
}

func ExampleEngine_Authenticate() {
	engine := newExampleEngine()
	defer engine.Close()
	ctx := context.Background()

	if _, err := engine.Register(ctx, "Alice", "alice@example.com", "correct-horse"); err != nil {
		panic(err)
	}

	res, err := engine.Authenticate(ctx, "ALICE@example.com", "correct-horse")
	if err != nil {
		panic(err)
	}
	claims, ok := engine.VerifyAccessToken(res.AccessToken)
	fmt.Println(res.User.Username, ok, claims.Type())

	_, err = engine.Authenticate(ctx, "alice", "wrong")
	fmt.Println(credstore.CodeOf(err))
	// Output:
	// alice true access
	// invalid_credentials
}

func ExampleEngine_ConsumeResetToken() {
	engine := newExampleEngine()
	defer engine.Close()
	ctx := context.Background()

	if _, err := engine.Register(ctx, "bob", "bob@example.com", "old"); err != nil {
		panic(err)
	}

	// Deliver res.ResetToken out of band, e.g. by email.
	res, err := engine.GenerateResetToken(ctx, "bob@example.com")
	if err != nil {
		panic(err)
	}

	fmt.Println(engine.ConsumeResetToken(ctx, res.ResetToken, "new"))
	err = engine.ConsumeResetToken(ctx, res.ResetToken, "again")
	fmt.Println(errors.Is(err, credstore.ErrInvalidResetToken))
	// Output:
	// <nil>
	// true
}

func ExampleEngine_MetricsSnapshot() {
	engine := newExampleEngine()
	defer engine.Close()

	engine.VerifyAccessToken("not-a-token")
	fmt.Println(engine.MetricsSnapshot().Counters[credstore.MetricAccessTokenRejected])
	// Output:
	// 1
}
