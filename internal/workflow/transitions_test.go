package workflow

import (
	"testing"

	"printshop-workflow/internal/models"
)

func TestClaimableStatusPerRole(t *testing.T) {
	want := map[models.Role]models.Status{
		models.RoleDesigner: models.StatusDesign,
		models.RoleBilling:  models.StatusWaitBilling,
		models.RolePrinter:  models.StatusPrinting,
		models.RoleFixer:    models.StatusFixing,
		models.RoleDelivery: models.StatusDelivery,
	}
	for role, status := range want {
		if got, ok := claimableStatus[role]; !ok || got != status {
			t.Errorf("role %s: want claimable %s, got %s (ok=%v)", role, status, got, ok)
		}
	}
	if _, ok := claimableStatus[models.RoleAttendant]; ok {
		t.Error("attendant stages must not be claimable")
	}
}

func TestAttendantPoolStatuses(t *testing.T) {
	statuses := poolStatuses[models.RoleAttendant]
	has := func(s models.Status) bool {
		for _, st := range statuses {
			if st == s {
				return true
			}
		}
		return false
	}
	if !has(models.StatusDesignReview) || !has(models.StatusWaitAttendant) {
		t.Fatalf("attendant pool must cover review and pickup, got %v", statuses)
	}
}

func TestBillingClaimMovesStatus(t *testing.T) {
	rule := stageRules[models.StatusWaitBilling]
	if !rule.Claimable || rule.ClaimTo != models.StatusBilling {
		t.Fatalf("WAIT_BILLING must claim into BILLING, got %+v", rule)
	}
	if rule.Next != nil {
		t.Fatal("WAIT_BILLING itself has no forward transition")
	}
}

func TestTerminalStatusHasNoRule(t *testing.T) {
	if _, ok := stageRules[models.StatusCompleted]; ok {
		t.Fatal("COMPLETED is terminal")
	}
}
