package workflow

import (
	"printshop-workflow/internal/models"
)

// StageRule describes who owns a status and what advancing out of it does.
// The table below is the whole pipeline; handlers never hardcode statuses.
type StageRule struct {
	// Owner is the only role allowed to act on jobs in this status.
	Owner models.Role

	// Claimable statuses sit in the owner's pool and must be claimed before
	// advancing. Non-claimable stages (design review, shop pickup) are acted
	// on by the owning role without taking assignment.
	Claimable bool

	// ClaimTo is the status written by a claim. Usually the same status;
	// WAIT_BILLING flips to BILLING in the claim write itself.
	ClaimTo models.Status

	// LogStage names the workflow log entry opened on claim and closed on
	// advance.
	LogStage string

	// NeedsOTP reports whether advancing requires a verified customer OTP.
	NeedsOTP func(models.Job) bool

	// Precondition blocks the advance before any write when role-specific
	// inputs are missing.
	Precondition func(models.Job) error

	// Next computes the advance target. An empty role means the terminal
	// state (no role responsible).
	Next func(models.Job) (models.Status, models.Role)
}

var stageRules = map[models.Status]StageRule{
	models.StatusDesign: {
		Owner:        models.RoleDesigner,
		Claimable:    true,
		ClaimTo:      models.StatusDesign,
		LogStage:     string(models.StatusDesign),
		Precondition: requireDesignFiles,
		Next: func(models.Job) (models.Status, models.Role) {
			return models.StatusDesignReview, models.RoleAttendant
		},
	},
	models.StatusDesignReview: {
		Owner:        models.RoleAttendant,
		LogStage:     models.StageDesignApproved,
		Precondition: requireDesignFiles,
		Next: func(models.Job) (models.Status, models.Role) {
			return models.StatusWaitBilling, models.RoleBilling
		},
	},
	models.StatusWaitBilling: {
		Owner:     models.RoleBilling,
		Claimable: true,
		ClaimTo:   models.StatusBilling,
		LogStage:  string(models.StatusBilling),
	},
	models.StatusBilling: {
		Owner:    models.RoleBilling,
		LogStage: string(models.StatusBilling),
		Precondition: func(j models.Job) error {
			if err := requireDesignFiles(j); err != nil {
				return err
			}
			if j.ModeOfPayment == nil || *j.ModeOfPayment == "" {
				return ErrPaymentModeRequired
			}
			return nil
		},
		Next: func(models.Job) (models.Status, models.Role) {
			return models.StatusPrinting, models.RolePrinter
		},
	},
	models.StatusPrinting: {
		Owner:     models.RolePrinter,
		Claimable: true,
		ClaimTo:   models.StatusPrinting,
		LogStage:  string(models.StatusPrinting),
		Next: func(j models.Job) (models.Status, models.Role) {
			switch {
			case j.NeedsFixing:
				return models.StatusFixing, models.RoleFixer
			case j.DeliveryMode == models.DeliveryOnsite:
				return models.StatusDelivery, models.RoleDelivery
			default:
				return models.StatusWaitAttendant, models.RoleAttendant
			}
		},
	},
	models.StatusFixing: {
		Owner:     models.RoleFixer,
		Claimable: true,
		ClaimTo:   models.StatusFixing,
		LogStage:  string(models.StatusFixing),
		NeedsOTP: func(j models.Job) bool {
			return j.DeliveryMode == models.DeliveryOnsite
		},
		Next: func(j models.Job) (models.Status, models.Role) {
			if j.DeliveryMode == models.DeliveryOnsite {
				return models.StatusDelivery, models.RoleDelivery
			}
			return models.StatusWaitAttendant, models.RoleAttendant
		},
	},
	models.StatusDelivery: {
		Owner:     models.RoleDelivery,
		Claimable: true,
		ClaimTo:   models.StatusDelivery,
		LogStage:  string(models.StatusDelivery),
		NeedsOTP:  func(models.Job) bool { return true },
		Next: func(models.Job) (models.Status, models.Role) {
			return models.StatusCompleted, ""
		},
	},
	models.StatusWaitAttendant: {
		Owner:    models.RoleAttendant,
		LogStage: models.StageCompleted,
		NeedsOTP: func(models.Job) bool { return true },
		Next: func(models.Job) (models.Status, models.Role) {
			return models.StatusCompleted, ""
		},
	},
	// COMPLETED is terminal: absent from the table, so no rule permits
	// claiming or advancing out of it.
}

func requireDesignFiles(j models.Job) error {
	if j.DesignURL == nil || *j.DesignURL == "" {
		return ErrMissingArtifact
	}
	return nil
}

// claimableStatus maps a role to the single pool status it claims from.
var claimableStatus = func() map[models.Role]models.Status {
	m := make(map[models.Role]models.Status)
	for status, rule := range stageRules {
		if rule.Claimable {
			m[rule.Owner] = status
		}
	}
	return m
}()

// poolStatuses maps a role to every status it acts on, claimable or not.
var poolStatuses = func() map[models.Role][]models.Status {
	m := make(map[models.Role][]models.Status)
	for status, rule := range stageRules {
		m[rule.Owner] = append(m[rule.Owner], status)
	}
	return m
}()
