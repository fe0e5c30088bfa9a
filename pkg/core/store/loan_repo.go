package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"loanflow/pkg/models"
)

// ErrNotFound is returned when no application exists for a workflow id.
var ErrNotFound = errors.New("loan application not found")

// LoanRepo stores LoanApplication rows. Hybrid backing: Postgres when a pool
// is configured, JSON files under a local directory otherwise. The workflow
// id is the natural key in both modes.
//
// Schema assumption (managed by migrations):
//
//	CREATE TABLE IF NOT EXISTS loan_applications (
//	  id UUID PRIMARY KEY,
//	  workflow_id TEXT UNIQUE NOT NULL,
//	  record JSONB NOT NULL,
//	  status TEXT,
//	  loan_stage TEXT,
//	  updated_at TIMESTAMPTZ
//	);
type LoanRepo struct {
	pool    *pgxpool.Pool
	fileDir string
}

// NewLoanRepo creates a repository. If pool is nil it falls back to a
// file-backed store; an empty dir defaults to .cache/loan_applications.
func NewLoanRepo(pool *pgxpool.Pool, dir string) *LoanRepo {
	if pool == nil && dir == "" {
		dir = filepath.Join(".cache", "loan_applications")
	}
	if pool == nil {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Printf("[WARNING] loan store dir: %v\n", err)
		}
	}
	return &LoanRepo{pool: pool, fileDir: dir}
}

// Create persists a new application for a workflow. Idempotent on
// workflow_id: when a row already exists the stored record is returned
// unchanged, so retried create_loan_file activities see the same loan number.
func (r *LoanRepo) Create(ctx context.Context, app *models.LoanApplication) (*models.LoanApplication, error) {
	if existing, err := r.Get(ctx, app.WorkflowID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if app.LoanNumber == "" {
		app.LoanNumber = allocateLoanNumber()
	}
	app.CreatedAt = now
	app.UpdatedAt = now

	if err := r.put(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// Get loads the application for a workflow id.
func (r *LoanRepo) Get(ctx context.Context, workflowID string) (*models.LoanApplication, error) {
	if r.pool != nil {
		query := `SELECT record FROM loan_applications WHERE workflow_id = $1`
		var raw []byte
		err := r.pool.QueryRow(ctx, query, workflowID).Scan(&raw)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("load application: %w", err)
		}
		var app models.LoanApplication
		if err := json.Unmarshal(raw, &app); err != nil {
			return nil, fmt.Errorf("unmarshal application: %w", err)
		}
		return &app, nil
	}

	raw, err := os.ReadFile(r.filePath(workflowID))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var app models.LoanApplication
	if err := json.Unmarshal(raw, &app); err != nil {
		return nil, fmt.Errorf("unmarshal application: %w", err)
	}
	return &app, nil
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Status string
	Stage  models.LoanStage
}

func (f ListFilter) matches(app *models.LoanApplication) bool {
	if f.Status != "" && app.Status != f.Status {
		return false
	}
	if f.Stage != "" && app.LoanStage != f.Stage {
		return false
	}
	return true
}

// List returns the stored applications matching the filter, newest first.
func (r *LoanRepo) List(ctx context.Context, filter ListFilter) ([]*models.LoanApplication, error) {
	var apps []*models.LoanApplication

	if r.pool != nil {
		rows, err := r.pool.Query(ctx, `SELECT record FROM loan_applications ORDER BY updated_at DESC`)
		if err != nil {
			return nil, fmt.Errorf("list applications: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var raw []byte
			if err := rows.Scan(&raw); err != nil {
				return nil, err
			}
			var app models.LoanApplication
			if err := json.Unmarshal(raw, &app); err != nil {
				continue
			}
			if filter.matches(&app) {
				apps = append(apps, &app)
			}
		}
		return apps, rows.Err()
	}

	entries, err := os.ReadDir(r.fileDir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(r.fileDir, entry.Name()))
		if err != nil {
			continue
		}
		var app models.LoanApplication
		if err := json.Unmarshal(raw, &app); err != nil {
			continue
		}
		if filter.matches(&app) {
			apps = append(apps, &app)
		}
	}
	sort.Slice(apps, func(i, j int) bool {
		return apps[i].UpdatedAt.After(apps[j].UpdatedAt)
	})
	return apps, nil
}

// UpdateMetadata applies a patch to the stored application. Recognized scalar
// keys update their columns last-writer-wins; everything else deep-merges
// into application_metadata. Missing rows are an error, not an upsert.
func (r *LoanRepo) UpdateMetadata(ctx context.Context, workflowID string, patch map[string]interface{}) (*models.LoanApplication, error) {
	app, err := r.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	ApplyPatch(app, patch)
	app.UpdatedAt = time.Now().UTC()

	if err := r.put(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// Delete removes the application for a workflow id. Missing rows are not an
// error so DELETE is idempotent.
func (r *LoanRepo) Delete(ctx context.Context, workflowID string) error {
	if r.pool != nil {
		_, err := r.pool.Exec(ctx, `DELETE FROM loan_applications WHERE workflow_id = $1`, workflowID)
		return err
	}
	err := os.Remove(r.filePath(workflowID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (r *LoanRepo) put(ctx context.Context, app *models.LoanApplication) error {
	raw, err := json.MarshalIndent(app, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal application: %w", err)
	}

	if r.pool != nil {
		query := `
			INSERT INTO loan_applications (id, workflow_id, record, status, loan_stage, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (workflow_id)
			DO UPDATE SET
				record = EXCLUDED.record,
				status = EXCLUDED.status,
				loan_stage = EXCLUDED.loan_stage,
				updated_at = EXCLUDED.updated_at;
		`
		_, err := r.pool.Exec(ctx, query, app.ID, app.WorkflowID, raw, app.Status, string(app.LoanStage), app.UpdatedAt)
		if err != nil {
			return fmt.Errorf("save application: %w", err)
		}
		return nil
	}

	return os.WriteFile(r.filePath(app.WorkflowID), raw, 0o644)
}

func (r *LoanRepo) filePath(workflowID string) string {
	safe := strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			return c
		default:
			return '_'
		}
	}, workflowID)
	return filepath.Join(r.fileDir, safe+".json")
}

// allocateLoanNumber mints a mock Encompass loan number.
func allocateLoanNumber() string {
	return "LN-" + strings.ToUpper(uuid.NewString()[:8])
}

// ApplyPatch writes a metadata patch onto an application in memory. Scalar
// keys map to their struct fields; all remaining keys deep-merge into
// ApplicationMetadata without dropping sibling keys.
func ApplyPatch(app *models.LoanApplication, patch map[string]interface{}) {
	rest := make(map[string]interface{}, len(patch))
	for key, value := range patch {
		switch key {
		case "status":
			if s, ok := value.(string); ok {
				app.Status = s
			}
		case "loan_stage":
			if s, ok := value.(string); ok {
				app.LoanStage = models.LoanStage(s)
			}
		case "is_locked":
			if b, ok := value.(bool); ok {
				app.IsLocked = b
			}
		case "underwriting_decision":
			if s, ok := value.(string); ok {
				app.UnderwritingDecision = s
			}
		case "underwriting_decision_reason":
			if s, ok := value.(string); ok {
				app.UnderwritingDecisionReason = s
			}
		case "underwriting_decided_by":
			if s, ok := value.(string); ok {
				app.UnderwritingDecidedBy = s
				now := time.Now().UTC()
				app.UnderwritingDecidedAt = &now
			}
		case "automated_uw_decision":
			if s, ok := value.(string); ok {
				app.AutomatedUWDecision = s
			}
		case "loan_number":
			if s, ok := value.(string); ok {
				app.LoanNumber = s
			}
		default:
			rest[key] = value
		}
	}
	if len(rest) > 0 {
		app.ApplicationMetadata = DeepMerge(app.ApplicationMetadata, rest)
	}
}

// DeepMerge merges patch into base recursively. Nested maps merge key by key;
// any other value in patch replaces the base value. Base is not mutated.
func DeepMerge(base, patch map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		patchMap, patchOK := v.(map[string]interface{})
		baseMap, baseOK := out[k].(map[string]interface{})
		if patchOK && baseOK {
			out[k] = DeepMerge(baseMap, patchMap)
			continue
		}
		out[k] = v
	}
	return out
}
