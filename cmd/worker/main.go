package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"loanflow/pkg/core/llm"
	"loanflow/pkg/core/store"
	"loanflow/pkg/workflow"
	"loanflow/pkg/workflow/activities"
)

func main() {
	// Load environment variables
	godotenv.Load()

	ctx := context.Background()
	if err := store.InitDB(ctx); err != nil {
		fmt.Printf("[WARNING] database unavailable, using file-backed store: %v\n", err)
	}
	repo := store.NewLoanRepo(store.GetPool(), os.Getenv("LOAN_STORE_DIR"))

	provider := llm.FromEnv()

	hostPort := os.Getenv("TEMPORAL_ADDRESS")
	if hostPort == "" {
		hostPort = client.DefaultHostPort
	}
	c, err := client.Dial(client.Options{HostPort: hostPort})
	if err != nil {
		log.Fatalf("[FATAL] temporal dial: %v", err)
	}
	defer c.Close()

	uploadsDir := os.Getenv("UPLOADS_DIR")
	if uploadsDir == "" {
		uploadsDir = "uploads"
	}

	w := worker.New(c, workflow.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflow.LoanLifecycleWorkflow)
	w.RegisterWorkflow(workflow.LeadCaptureWorkflow)
	w.RegisterWorkflow(workflow.ProcessingWorkflow)
	w.RegisterWorkflow(workflow.UnderwritingWorkflow)
	w.RegisterActivity(activities.NewEncompassActivities(repo))
	w.RegisterActivity(activities.NewCommsActivities())
	w.RegisterActivity(activities.NewDocGenActivities(uploadsDir))
	w.RegisterActivity(activities.NewUnderwritingActivities(uploadsDir))
	w.RegisterActivity(activities.NewAnalysisActivities(provider))

	fmt.Printf("[Worker] listening on task queue %q\n", workflow.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("[FATAL] worker stopped: %v", err)
	}
}
