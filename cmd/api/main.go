package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"

	"loanflow/pkg/api/auth"
	"loanflow/pkg/api/loans"
	"loanflow/pkg/core/store"
	"loanflow/pkg/workflow"
)

// temporalLifecycle adapts the Temporal client to the handler port.
type temporalLifecycle struct {
	client client.Client
}

func (t *temporalLifecycle) Start(ctx context.Context, workflowID string, input workflow.LoanInput) error {
	_, err := t.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: workflow.TaskQueue,
	}, workflow.LoanLifecycleWorkflow, input)
	return err
}

func (t *temporalLifecycle) Signal(ctx context.Context, workflowID, name string, arg interface{}) error {
	return t.client.SignalWorkflow(ctx, workflowID, "", name, arg)
}

func (t *temporalLifecycle) QueryString(ctx context.Context, workflowID, query string) (string, error) {
	v, err := t.client.QueryWorkflow(ctx, workflowID, "", query)
	if err != nil {
		return "", err
	}
	var out string
	if err := v.Get(&out); err != nil {
		return "", err
	}
	return out, nil
}

func (t *temporalLifecycle) Terminate(ctx context.Context, workflowID, reason string) error {
	return t.client.TerminateWorkflow(ctx, workflowID, "", reason)
}

func main() {
	// Load environment variables
	godotenv.Load()

	ctx := context.Background()
	if err := store.InitDB(ctx); err != nil {
		fmt.Printf("[WARNING] database unavailable, using file-backed store: %v\n", err)
	}
	repo := store.NewLoanRepo(store.GetPool(), os.Getenv("LOAN_STORE_DIR"))

	hostPort := os.Getenv("TEMPORAL_ADDRESS")
	if hostPort == "" {
		hostPort = client.DefaultHostPort
	}
	c, err := client.Dial(client.Options{HostPort: hostPort})
	if err != nil {
		fmt.Printf("[FATAL] temporal dial: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	uploadsDir := os.Getenv("UPLOADS_DIR")
	if uploadsDir == "" {
		uploadsDir = "uploads"
	}

	authHandler := auth.NewHandler()
	loanHandler := loans.NewHandler(repo, &temporalLifecycle{client: c}, uploadsDir)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", authHandler.HandleRegister)
	mux.HandleFunc("POST /auth/login", authHandler.HandleLogin)
	mux.HandleFunc("POST /apply", authHandler.Middleware(loanHandler.HandleApply))
	mux.HandleFunc("GET /applications", authHandler.Middleware(loanHandler.HandleList))
	mux.HandleFunc("GET /status/{workflow_id}", authHandler.Middleware(loanHandler.HandleStatus))
	mux.HandleFunc("GET /applications/{workflow_id}/structure", authHandler.Middleware(loanHandler.HandleStructure))
	mux.HandleFunc("PATCH /applications/{workflow_id}/fields", authHandler.Middleware(loanHandler.HandleUpdateFields))
	mux.HandleFunc("POST /review", authHandler.Middleware(loanHandler.HandleReview))
	mux.HandleFunc("POST /applications/{workflow_id}/sign", authHandler.Middleware(loanHandler.HandleSign))
	mux.HandleFunc("DELETE /application/{workflow_id}", authHandler.Middleware(loanHandler.HandleDelete))

	addr := os.Getenv("API_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	fmt.Printf("API server starting on %s...\n", addr)
	fmt.Println("  - POST   /auth/register")
	fmt.Println("  - POST   /auth/login")
	fmt.Println("  - POST   /apply")
	fmt.Println("  - GET    /applications")
	fmt.Println("  - GET    /status/{workflow_id}")
	fmt.Println("  - GET    /applications/{workflow_id}/structure")
	fmt.Println("  - PATCH  /applications/{workflow_id}/fields")
	fmt.Println("  - POST   /review")
	fmt.Println("  - POST   /applications/{workflow_id}/sign")
	fmt.Println("  - DELETE /application/{workflow_id}")

	if err := http.ListenAndServe(addr, mux); err != nil {
		fmt.Printf("[FATAL] Server failed to start: %v\n", err)
		os.Exit(1)
	}
}
