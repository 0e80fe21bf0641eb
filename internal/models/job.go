package models

import (
	"time"
)

// Status enumerates pipeline states persisted in Postgres, in pipeline order.
type Status string

const (
	StatusDesign        Status = "DESIGN"
	StatusDesignReview  Status = "DESIGN_REVIEW"
	StatusWaitBilling   Status = "WAIT_BILLING"
	StatusBilling       Status = "BILLING"
	StatusPrinting      Status = "PRINTING"
	StatusFixing        Status = "FIXING"
	StatusDelivery      Status = "DELIVERY"
	StatusWaitAttendant Status = "WAIT_ATTENDANT"
	StatusCompleted     Status = "COMPLETED"
)

// Role enumerates the staff roles that own pipeline stages.
type Role string

const (
	RoleAttendant Role = "attendant"
	RoleDesigner  Role = "designer"
	RoleBilling   Role = "billing"
	RolePrinter   Role = "printer"
	RoleFixer     Role = "fixer"
	RoleDelivery  Role = "delivery"
)

// Delivery modes for the final handoff.
const (
	DeliveryOffice = "office"
	DeliveryOnsite = "onsite"
)

// Job represents a print order tracked through the fulfillment pipeline.
type Job struct {
	ID        int64  `json:"job_id"`
	JobCardNo string `json:"job_card_no,omitempty"`

	CustomerName string `json:"customer_name"`
	Phone        string `json:"phone"`
	Area         string `json:"area,omitempty"`
	Urgent       bool   `json:"is_urgent"`

	Cost          float64 `json:"cost"`
	Advance       float64 `json:"advance"`
	ModeOfPayment *string `json:"mode_of_payment,omitempty"`

	Status       Status  `json:"status"`
	DeliveryMode string  `json:"delivery_mode"`
	NeedsFixing  bool    `json:"needs_fixing"`
	AssignedTo   *string `json:"assigned_to"`
	AssignedRole *Role   `json:"assigned_role"`

	DesignURL    *string `json:"design_url,omitempty"`
	PrintFileURL *string `json:"print_file_url,omitempty"`

	OTPCode        *string    `json:"-"`
	OTPVerified    bool       `json:"otp_verified"`
	OTPGeneratedAt *time.Time `json:"otp_generated_at,omitempty"`
	OTPAttempts    int        `json:"otp_attempts"`

	Items []JobItem `json:"items,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Balance is always derived; it is never stored so it cannot drift from
// cost and advance.
func (j Job) Balance() float64 {
	return j.Cost - j.Advance
}

// JobItem is a single line item on a job (banner, signage, ...).
type JobItem struct {
	ID          int64   `json:"id"`
	JobID       int64   `json:"job_id"`
	Position    int     `json:"position"`
	JobType     string  `json:"job_type"`
	Description string  `json:"description,omitempty"`
	Size        string  `json:"size,omitempty"`
	Quantity    int     `json:"quantity"`
	Material    string  `json:"material,omitempty"`
	Cost        float64 `json:"cost"`
}

// WorkflowLogEntry is the audit record of who worked a stage and for how
// long. An entry is opened (time_out null) when a worker starts a stage and
// closed in place when the stage is handed off.
type WorkflowLogEntry struct {
	ID         int64      `json:"id"`
	JobID      int64      `json:"job_id"`
	Stage      string     `json:"stage"`
	WorkerID   string     `json:"worker_id"`
	WorkerName string     `json:"worker_name"`
	Notes      string     `json:"notes,omitempty"`
	TimeIn     time.Time  `json:"time_in"`
	TimeOut    *time.Time `json:"time_out,omitempty"`
}

// Extra log stages that do not mirror a status.
const (
	StageDesignApproved  = "DESIGN_APPROVED"
	StageReworkRequested = "REWORK_REQUESTED"
	StageCompleted       = "COMPLETED"
)
