package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"printshop-workflow/internal/auth"
	"printshop-workflow/internal/models"
	"printshop-workflow/internal/store"
)

// fakeJobStore implements JobStore with the same conditional-write
// semantics the Postgres store expresses in SQL.
type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[int64]models.Job
}

func newFakeJobStore(jobs ...models.Job) *fakeJobStore {
	m := make(map[int64]models.Job)
	for _, j := range jobs {
		m[j.ID] = j
	}
	return &fakeJobStore{jobs: m}
}

func (f *fakeJobStore) GetJob(_ context.Context, id int64) (models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return models.Job{}, store.ErrJobNotFound
	}
	return job, nil
}

func (f *fakeJobStore) PoolJobs(_ context.Context, statuses []models.Status) ([]models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Job
	for _, j := range f.jobs {
		if j.AssignedTo != nil {
			continue
		}
		for _, st := range statuses {
			if j.Status == st {
				out = append(out, j)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeJobStore) ActiveJob(_ context.Context, workerID string, role models.Role) (models.Job, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.AssignedTo != nil && *j.AssignedTo == workerID &&
			j.AssignedRole != nil && *j.AssignedRole == role &&
			j.Status != models.StatusCompleted {
			return j, true, nil
		}
	}
	return models.Job{}, false, nil
}

func (f *fakeJobStore) ClaimJob(_ context.Context, id int64, expected, claimTo models.Status, workerID string, role models.Role) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok || j.Status != expected || j.AssignedTo != nil {
		return false, nil
	}
	j.Status = claimTo
	j.AssignedTo = &workerID
	j.AssignedRole = &role
	f.jobs[id] = j
	return true, nil
}

func (f *fakeJobStore) AdvanceJob(_ context.Context, id int64, from models.Status, patch store.AdvancePatch) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok || j.Status != from {
		return false, nil
	}
	if patch.WorkerID != "" && (j.AssignedTo == nil || *j.AssignedTo != patch.WorkerID) {
		return false, nil
	}
	j.Status = patch.NextStatus
	j.AssignedTo = nil
	j.AssignedRole = patch.NextRole
	if patch.CopyDesignToPrint {
		j.PrintFileURL = j.DesignURL
	}
	if patch.SettleAdvance {
		j.Advance = j.Cost
	}
	if patch.ClearOTP {
		j.OTPCode = nil
		j.OTPVerified = false
		j.OTPGeneratedAt = nil
		j.OTPAttempts = 0
	}
	f.jobs[id] = j
	return true, nil
}

func (f *fakeJobStore) ReassignJob(_ context.Context, id int64, from, to models.Status, workerID *string, role models.Role) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok || j.Status != from {
		return false, nil
	}
	j.Status = to
	j.AssignedTo = workerID
	j.AssignedRole = &role
	f.jobs[id] = j
	return true, nil
}

type fakeLogStore struct {
	mu      sync.Mutex
	entries []models.WorkflowLogEntry
}

func (f *fakeLogStore) AppendOpenLog(_ context.Context, jobID int64, stage, workerID, workerName string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, models.WorkflowLogEntry{
		JobID: jobID, Stage: stage, WorkerID: workerID, WorkerName: workerName, TimeIn: at,
	})
	return nil
}

func (f *fakeLogStore) AppendClosedLog(_ context.Context, jobID int64, stage, workerID, workerName, notes string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := at
	f.entries = append(f.entries, models.WorkflowLogEntry{
		JobID: jobID, Stage: stage, WorkerID: workerID, WorkerName: workerName, Notes: notes, TimeIn: at, TimeOut: &out,
	})
	return nil
}

func (f *fakeLogStore) CloseOpenLog(_ context.Context, jobID int64, stage, workerID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.entries {
		e := &f.entries[i]
		if e.JobID == jobID && e.Stage == stage && (workerID == "" || e.WorkerID == workerID) && e.TimeOut == nil {
			out := at
			e.TimeOut = &out
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLogStore) LastWorkerForStage(_ context.Context, jobID int64, stage string) (string, string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if e.JobID == jobID && e.Stage == stage {
			return e.WorkerID, e.WorkerName, true, nil
		}
	}
	return "", "", false, nil
}

func (f *fakeLogStore) openCount(jobID int64, stage string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.entries {
		if e.JobID == jobID && e.Stage == stage && e.TimeOut == nil {
			n++
		}
	}
	return n
}

type fakeNotifier struct {
	mu       sync.Mutex
	thankYou []int64
}

func (f *fakeNotifier) EnqueueThankYou(_ context.Context, job models.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.thankYou = append(f.thankYou, job.ID)
	return nil
}

func newTestEngine(jobs *fakeJobStore, logs *fakeLogStore, notifier *fakeNotifier) *Engine {
	return NewEngine(jobs, logs, notifier, nil, zerolog.Nop())
}

func designer(id string) auth.Identity {
	return auth.Identity{ID: id, Role: models.RoleDesigner, Name: "Designer " + id}
}

func strPtr(s string) *string { return &s }

func TestClaimMutualExclusion(t *testing.T) {
	jobs := newFakeJobStore(models.Job{ID: 100, Status: models.StatusDesign})
	logs := &fakeLogStore{}
	engine := newTestEngine(jobs, logs, &fakeNotifier{})
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]error, 2)
	workers := []auth.Identity{designer("A"), designer("B")}
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = engine.Claim(ctx, workers[i], 100)
		}(i)
	}
	wg.Wait()

	var wins, losses int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrAlreadyTaken):
			losses++
		default:
			t.Fatalf("unexpected claim error: %v", err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Fatalf("want exactly one winner and one loser, got wins=%d losses=%d", wins, losses)
	}

	job, _ := jobs.GetJob(ctx, 100)
	if job.AssignedTo == nil || (*job.AssignedTo != "A" && *job.AssignedTo != "B") {
		t.Fatalf("job not assigned to a claimant: %+v", job.AssignedTo)
	}
	if logs.openCount(100, "DESIGN") != 1 {
		t.Fatalf("want exactly one open DESIGN log entry, got %d", logs.openCount(100, "DESIGN"))
	}
}

func TestSingleActiveJobGuard(t *testing.T) {
	jobs := newFakeJobStore(
		models.Job{ID: 1, Status: models.StatusDesign},
		models.Job{ID: 2, Status: models.StatusDesign},
	)
	engine := newTestEngine(jobs, &fakeLogStore{}, &fakeNotifier{})
	ctx := context.Background()

	if _, err := engine.Claim(ctx, designer("A"), 1); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := engine.Claim(ctx, designer("A"), 2); !errors.Is(err, ErrGuardViolation) {
		t.Fatalf("want ErrGuardViolation, got %v", err)
	}

	// A different role is a separate queue; the same person can hold one
	// job per role.
	job2, _ := jobs.GetJob(ctx, 2)
	if job2.AssignedTo != nil {
		t.Fatalf("guarded job must stay unassigned, got %v", *job2.AssignedTo)
	}
}

func TestClaimWaitBillingMovesToBilling(t *testing.T) {
	jobs := newFakeJobStore(models.Job{ID: 7, Status: models.StatusWaitBilling})
	engine := newTestEngine(jobs, &fakeLogStore{}, &fakeNotifier{})
	biller := auth.Identity{ID: "B1", Role: models.RoleBilling, Name: "Biller"}

	job, err := engine.Claim(context.Background(), biller, 7)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if job.Status != models.StatusBilling {
		t.Fatalf("want BILLING after claim, got %s", job.Status)
	}
}

func TestAdvanceDesignRequiresArtifact(t *testing.T) {
	jobs := newFakeJobStore(models.Job{ID: 3, Status: models.StatusDesign})
	engine := newTestEngine(jobs, &fakeLogStore{}, &fakeNotifier{})
	ctx := context.Background()

	if _, err := engine.Claim(ctx, designer("A"), 3); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := engine.Advance(ctx, designer("A"), 3); !errors.Is(err, ErrMissingArtifact) {
		t.Fatalf("want ErrMissingArtifact, got %v", err)
	}
	job, _ := jobs.GetJob(ctx, 3)
	if job.Status != models.StatusDesign {
		t.Fatalf("failed advance must not move the job, got %s", job.Status)
	}
}

func TestAdvanceBillingMissingArtifact(t *testing.T) {
	mode := "cash"
	jobs := newFakeJobStore(models.Job{
		ID:            101,
		Status:        models.StatusBilling,
		AssignedTo:    strPtr("B1"),
		AssignedRole:  rolePtr(models.RoleBilling),
		ModeOfPayment: &mode,
	})
	engine := newTestEngine(jobs, &fakeLogStore{}, &fakeNotifier{})
	biller := auth.Identity{ID: "B1", Role: models.RoleBilling}

	if _, err := engine.Advance(context.Background(), biller, 101); !errors.Is(err, ErrMissingArtifact) {
		t.Fatalf("want ErrMissingArtifact, got %v", err)
	}
	job, _ := jobs.GetJob(context.Background(), 101)
	if job.Status != models.StatusBilling {
		t.Fatalf("status must remain BILLING, got %s", job.Status)
	}
}

func TestAdvanceBillingRequiresPaymentMode(t *testing.T) {
	jobs := newFakeJobStore(models.Job{
		ID:           5,
		Status:       models.StatusBilling,
		AssignedTo:   strPtr("B1"),
		AssignedRole: rolePtr(models.RoleBilling),
		DesignURL:    strPtr("s3://bucket/designs/5/a.pdf"),
	})
	engine := newTestEngine(jobs, &fakeLogStore{}, &fakeNotifier{})
	biller := auth.Identity{ID: "B1", Role: models.RoleBilling}

	if _, err := engine.Advance(context.Background(), biller, 5); !errors.Is(err, ErrPaymentModeRequired) {
		t.Fatalf("want ErrPaymentModeRequired, got %v", err)
	}
}

func TestAdvanceBillingCopiesDesignToPrintFile(t *testing.T) {
	mode := "upi"
	jobs := newFakeJobStore(models.Job{
		ID:            6,
		Status:        models.StatusBilling,
		AssignedTo:    strPtr("B1"),
		AssignedRole:  rolePtr(models.RoleBilling),
		DesignURL:     strPtr("s3://bucket/designs/6/a.pdf"),
		ModeOfPayment: &mode,
	})
	engine := newTestEngine(jobs, &fakeLogStore{}, &fakeNotifier{})
	biller := auth.Identity{ID: "B1", Role: models.RoleBilling}

	job, err := engine.Advance(context.Background(), biller, 6)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if job.Status != models.StatusPrinting {
		t.Fatalf("want PRINTING, got %s", job.Status)
	}
	if job.PrintFileURL == nil || *job.PrintFileURL != "s3://bucket/designs/6/a.pdf" {
		t.Fatalf("print_file_url not copied from design_url: %v", job.PrintFileURL)
	}
	if job.AssignedTo != nil {
		t.Fatal("advance must release the lock")
	}
	if job.AssignedRole == nil || *job.AssignedRole != models.RolePrinter {
		t.Fatalf("want printer as next role, got %v", job.AssignedRole)
	}
}

func TestAdvancePrintingBranches(t *testing.T) {
	cases := []struct {
		name         string
		needsFixing  bool
		deliveryMode string
		wantStatus   models.Status
		wantRole     models.Role
	}{
		{"fixing wins", true, models.DeliveryOnsite, models.StatusFixing, models.RoleFixer},
		{"onsite delivery", false, models.DeliveryOnsite, models.StatusDelivery, models.RoleDelivery},
		{"shop pickup", false, models.DeliveryOffice, models.StatusWaitAttendant, models.RoleAttendant},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			jobs := newFakeJobStore(models.Job{
				ID:           10,
				Status:       models.StatusPrinting,
				AssignedTo:   strPtr("P1"),
				AssignedRole: rolePtr(models.RolePrinter),
				NeedsFixing:  tc.needsFixing,
				DeliveryMode: tc.deliveryMode,
			})
			engine := newTestEngine(jobs, &fakeLogStore{}, &fakeNotifier{})
			printer := auth.Identity{ID: "P1", Role: models.RolePrinter}

			job, err := engine.Advance(context.Background(), printer, 10)
			if err != nil {
				t.Fatalf("advance: %v", err)
			}
			if job.Status != tc.wantStatus {
				t.Fatalf("want %s, got %s", tc.wantStatus, job.Status)
			}
			if job.AssignedRole == nil || *job.AssignedRole != tc.wantRole {
				t.Fatalf("want role %s, got %v", tc.wantRole, job.AssignedRole)
			}
		})
	}
}

func TestAdvanceStaleState(t *testing.T) {
	jobs := newFakeJobStore(models.Job{
		ID:           11,
		Status:       models.StatusPrinting,
		AssignedTo:   strPtr("P1"),
		AssignedRole: rolePtr(models.RolePrinter),
		DeliveryMode: models.DeliveryOffice,
	})
	engine := newTestEngine(jobs, &fakeLogStore{}, &fakeNotifier{})
	printer := auth.Identity{ID: "P1", Role: models.RolePrinter}
	ctx := context.Background()

	// Simulate a concurrent move after the handler read the job.
	got, _ := jobs.GetJob(ctx, 11)
	if _, err := jobs.AdvanceJob(ctx, 11, got.Status, store.AdvancePatch{NextStatus: models.StatusWaitAttendant}); err != nil {
		t.Fatal(err)
	}
	// Restore the read snapshot's view by advancing against the old status.
	affected, err := jobs.AdvanceJob(ctx, 11, models.StatusPrinting, store.AdvancePatch{NextStatus: models.StatusWaitAttendant})
	if err != nil {
		t.Fatal(err)
	}
	if affected {
		t.Fatal("advance against a stale status must not apply")
	}

	if _, err := engine.Advance(ctx, printer, 11); !errors.Is(err, ErrInvalidStage) && !errors.Is(err, ErrStaleState) && !errors.Is(err, ErrWrongRole) && !errors.Is(err, ErrNotOwner) {
		// The job is now in WAIT_ATTENDANT; the printer can no longer act
		// on it whichever way the race is observed.
		t.Fatalf("stale caller must be rejected, got %v", err)
	}
}

func TestAdvanceDeliveryRequiresOTP(t *testing.T) {
	jobs := newFakeJobStore(models.Job{
		ID:           102,
		Status:       models.StatusDelivery,
		AssignedTo:   strPtr("D1"),
		AssignedRole: rolePtr(models.RoleDelivery),
		DeliveryMode: models.DeliveryOnsite,
		Cost:         1200,
		Advance:      200,
	})
	engine := newTestEngine(jobs, &fakeLogStore{}, &fakeNotifier{})
	courier := auth.Identity{ID: "D1", Role: models.RoleDelivery}

	if _, err := engine.Advance(context.Background(), courier, 102); !errors.Is(err, ErrOTPRequired) {
		t.Fatalf("want ErrOTPRequired, got %v", err)
	}
}

func TestDeliveryCompletionSettlesBalance(t *testing.T) {
	jobs := newFakeJobStore(models.Job{
		ID:           102,
		Status:       models.StatusDelivery,
		AssignedTo:   strPtr("D1"),
		AssignedRole: rolePtr(models.RoleDelivery),
		DeliveryMode: models.DeliveryOnsite,
		Cost:         1200,
		Advance:      200,
		OTPVerified:  true,
	})
	logs := &fakeLogStore{}
	notifier := &fakeNotifier{}
	engine := newTestEngine(jobs, logs, notifier)
	courier := auth.Identity{ID: "D1", Role: models.RoleDelivery}
	ctx := context.Background()

	_ = logs.AppendOpenLog(ctx, 102, "DELIVERY", "D1", "Courier", time.Now())

	job, err := engine.Advance(ctx, courier, 102)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if job.Status != models.StatusCompleted {
		t.Fatalf("want COMPLETED, got %s", job.Status)
	}
	if job.Advance != job.Cost || job.Balance() != 0 {
		t.Fatalf("delivery completion must settle the balance, advance=%v cost=%v", job.Advance, job.Cost)
	}
	if job.AssignedTo != nil || job.AssignedRole != nil {
		t.Fatal("terminal state must clear assignment")
	}
	if job.OTPVerified || job.OTPCode != nil {
		t.Fatal("completion must clear the challenge")
	}
	if logs.openCount(102, "DELIVERY") != 0 {
		t.Fatal("delivery log entry must be closed")
	}
	if len(notifier.thankYou) != 1 || notifier.thankYou[0] != 102 {
		t.Fatalf("thank-you not queued: %v", notifier.thankYou)
	}
}

func TestPickupCompletionRequiresOTP(t *testing.T) {
	jobs := newFakeJobStore(models.Job{
		ID:           20,
		Status:       models.StatusWaitAttendant,
		DeliveryMode: models.DeliveryOffice,
	})
	engine := newTestEngine(jobs, &fakeLogStore{}, &fakeNotifier{})
	attendant := auth.Identity{ID: "AT1", Role: models.RoleAttendant, Name: "Front Desk"}

	if _, err := engine.Advance(context.Background(), attendant, 20); !errors.Is(err, ErrOTPRequired) {
		t.Fatalf("want ErrOTPRequired, got %v", err)
	}
}

func TestPickupCompletion(t *testing.T) {
	jobs := newFakeJobStore(models.Job{
		ID:           21,
		Status:       models.StatusWaitAttendant,
		DeliveryMode: models.DeliveryOffice,
		OTPVerified:  true,
	})
	logs := &fakeLogStore{}
	engine := newTestEngine(jobs, logs, &fakeNotifier{})
	attendant := auth.Identity{ID: "AT1", Role: models.RoleAttendant, Name: "Front Desk"}

	job, err := engine.Advance(context.Background(), attendant, 21)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if job.Status != models.StatusCompleted {
		t.Fatalf("want COMPLETED, got %s", job.Status)
	}

	found := false
	for _, e := range logs.entries {
		if e.Stage == models.StageCompleted && e.TimeOut != nil {
			found = true
		}
	}
	if !found {
		t.Fatal("pickup must append a closed COMPLETED log entry")
	}
}

func TestDesignApproval(t *testing.T) {
	jobs := newFakeJobStore(models.Job{
		ID:        60,
		Status:    models.StatusDesignReview,
		DesignURL: strPtr("s3://bucket/designs/60/a.pdf"),
	})
	logs := &fakeLogStore{}
	engine := newTestEngine(jobs, logs, &fakeNotifier{})
	attendant := auth.Identity{ID: "AT1", Role: models.RoleAttendant, Name: "Front Desk"}

	job, err := engine.Advance(context.Background(), attendant, 60)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if job.Status != models.StatusWaitBilling {
		t.Fatalf("want WAIT_BILLING, got %s", job.Status)
	}

	found := false
	for _, e := range logs.entries {
		if e.Stage == models.StageDesignApproved && e.TimeOut != nil {
			found = true
		}
	}
	if !found {
		t.Fatal("approval must append a closed DESIGN_APPROVED entry")
	}
}

func TestDesignApprovalRequiresArtifact(t *testing.T) {
	jobs := newFakeJobStore(models.Job{ID: 61, Status: models.StatusDesignReview})
	engine := newTestEngine(jobs, &fakeLogStore{}, &fakeNotifier{})
	attendant := auth.Identity{ID: "AT1", Role: models.RoleAttendant}

	if _, err := engine.Advance(context.Background(), attendant, 61); !errors.Is(err, ErrMissingArtifact) {
		t.Fatalf("want ErrMissingArtifact, got %v", err)
	}
}

func TestCompletedIsTerminal(t *testing.T) {
	jobs := newFakeJobStore(models.Job{ID: 30, Status: models.StatusCompleted})
	engine := newTestEngine(jobs, &fakeLogStore{}, &fakeNotifier{})
	attendant := auth.Identity{ID: "AT1", Role: models.RoleAttendant}

	if _, err := engine.Advance(context.Background(), attendant, 30); !errors.Is(err, ErrInvalidStage) {
		t.Fatalf("want ErrInvalidStage, got %v", err)
	}
}

func TestRework(t *testing.T) {
	jobs := newFakeJobStore(models.Job{ID: 40, Status: models.StatusDesignReview})
	logs := &fakeLogStore{}
	engine := newTestEngine(jobs, logs, &fakeNotifier{})
	ctx := context.Background()

	_ = logs.AppendOpenLog(ctx, 40, "DESIGN", "DES9", "Original Designer", time.Now().Add(-time.Hour))
	_, _ = logs.CloseOpenLog(ctx, 40, "DESIGN", "DES9", time.Now())

	attendant := auth.Identity{ID: "AT1", Role: models.RoleAttendant, Name: "Front Desk"}
	job, err := engine.Rework(ctx, attendant, 40, "logo is pixelated")
	if err != nil {
		t.Fatalf("rework: %v", err)
	}
	if job.Status != models.StatusDesign {
		t.Fatalf("want DESIGN, got %s", job.Status)
	}
	if job.AssignedTo == nil || *job.AssignedTo != "DES9" {
		t.Fatalf("rework must return the job to its designer, got %v", job.AssignedTo)
	}
	if job.AssignedRole == nil || *job.AssignedRole != models.RoleDesigner {
		t.Fatalf("want designer role, got %v", job.AssignedRole)
	}

	var reason string
	for _, e := range logs.entries {
		if e.Stage == models.StageReworkRequested {
			reason = e.Notes
		}
	}
	if reason != "logo is pixelated" {
		t.Fatalf("rework reason not logged, got %q", reason)
	}
}

func TestReworkByNonAttendant(t *testing.T) {
	jobs := newFakeJobStore(models.Job{ID: 41, Status: models.StatusDesignReview})
	engine := newTestEngine(jobs, &fakeLogStore{}, &fakeNotifier{})

	if _, err := engine.Rework(context.Background(), designer("A"), 41, "x"); !errors.Is(err, ErrWrongRole) {
		t.Fatalf("want ErrWrongRole, got %v", err)
	}
}

func TestPoolOmitsAssignedJobs(t *testing.T) {
	jobs := newFakeJobStore(
		models.Job{ID: 50, Status: models.StatusDesign},
		models.Job{ID: 51, Status: models.StatusDesign, AssignedTo: strPtr("A"), AssignedRole: rolePtr(models.RoleDesigner)},
		models.Job{ID: 52, Status: models.StatusPrinting},
	)
	engine := newTestEngine(jobs, &fakeLogStore{}, &fakeNotifier{})

	pool, err := engine.Pool(context.Background(), designer("B"))
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if len(pool) != 1 || pool[0].ID != 50 {
		t.Fatalf("want only the unassigned DESIGN job, got %+v", pool)
	}
}

func rolePtr(r models.Role) *models.Role { return &r }
